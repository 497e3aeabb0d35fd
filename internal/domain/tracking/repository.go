package tracking

import (
	"context"

	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ShipmentFilter defines filtering options for shipment queries
type ShipmentFilter struct {
	shared.Filter
	Status     *CoarseStatus // Filter by coarse status
	Route      *ServiceRoute // Filter by service route
	CustomerID *uuid.UUID    // Filter by customer
}

// ShipmentRepository defines the interface for shipment persistence
type ShipmentRepository interface {
	// FindByIDForTenant finds a shipment by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Shipment, error)

	// FindByReference finds an active shipment by reference number for a tenant
	FindByReference(ctx context.Context, tenantID uuid.UUID, reference string) (*Shipment, error)

	// FindAllForTenant lists shipments with filtering and returns the total count
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter ShipmentFilter) ([]Shipment, int64, error)

	// ExistsByReference checks if a reference number is taken for a tenant
	ExistsByReference(ctx context.Context, tenantID uuid.UUID, reference string) (bool, error)

	// Create inserts a newly booked shipment
	Create(ctx context.Context, shipment *Shipment) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, shipment *Shipment) error
}

// EventLog is the append-only OTIF history of each shipment.
// Append is the only write path for stage events.
type EventLog interface {
	// Append stores event; a taken sequence number yields a conflict error
	Append(ctx context.Context, event *OtifEvent) error

	// CurrentStage returns the stage of the newest event, or Booked when none
	CurrentStage(ctx context.Context, shipmentID uuid.UUID) (Stage, error)

	// History returns the shipment's events oldest first
	History(ctx context.Context, shipmentID uuid.UUID) ([]OtifEvent, error)

	// AnnotateDelay stores a delay annotation
	AnnotateDelay(ctx context.Context, annotation *DelayAnnotation) error

	// DelaysFor returns the delays recorded for one stage, oldest first
	DelaysFor(ctx context.Context, shipmentID uuid.UUID, stage Stage) ([]DelayAnnotation, error)
}
