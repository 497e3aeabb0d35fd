package settlement

import (
	"context"

	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	Status     *InvoiceStatus // Filter by status
	ShipmentID *uuid.UUID     // Filter by shipment
}

// InvoiceRepository defines the interface for invoice persistence.
// Loaded invoices always carry their payment attempts.
type InvoiceRepository interface {
	// FindByIDForTenant finds an invoice by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindByNumber finds an invoice by number for a tenant
	FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*Invoice, error)

	// FindByShipment returns every invoice of a shipment, newest first.
	// A shipment that was never invoiced yields an empty slice.
	FindByShipment(ctx context.Context, tenantID, shipmentID uuid.UUID) ([]Invoice, error)

	// FindAllForTenant lists invoices with filtering and returns the total count
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) ([]Invoice, int64, error)

	// ExistsByNumber checks if an invoice number is taken for a tenant
	ExistsByNumber(ctx context.Context, tenantID uuid.UUID, number string) (bool, error)

	// Create inserts a newly opened invoice
	Create(ctx context.Context, invoice *Invoice) error

	// SaveWithLock saves the invoice and its attempts with optimistic locking
	SaveWithLock(ctx context.Context, invoice *Invoice) error
}
