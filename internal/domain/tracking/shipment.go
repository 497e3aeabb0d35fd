package tracking

import (
	"strings"
	"time"

	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Shipment is the aggregate whose OTIF progression is tracked.
// CurrentStage and LastSequence mirror the newest event in the log and are
// only rewritten in the transaction that appends that event.
type Shipment struct {
	shared.TenantAggregateRoot
	ReferenceNumber string
	Route           ServiceRoute
	CurrentStage    Stage
	Status          CoarseStatus
	CompanyID       uuid.UUID
	CustomerID      uuid.UUID
	IsActive        bool
	LastSequence    int
}

// BookShipment creates a shipment at the Booked stage
func BookShipment(tenantID uuid.UUID, referenceNumber string, route ServiceRoute, companyID, customerID, bookedBy uuid.UUID, now time.Time) (*Shipment, error) {
	referenceNumber = strings.TrimSpace(referenceNumber)
	if referenceNumber == "" {
		return nil, shared.NewValidationError("INVALID_REFERENCE", "Shipment reference number cannot be empty")
	}
	if len(referenceNumber) > 64 {
		return nil, shared.NewValidationError("INVALID_REFERENCE", "Shipment reference number cannot exceed 64 characters")
	}
	if !route.IsValid() {
		return nil, shared.NewValidationError("INVALID_ROUTE", "Unknown service route: "+string(route))
	}
	if customerID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}

	s := &Shipment{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID, now),
		ReferenceNumber:     referenceNumber,
		Route:               route,
		CurrentStage:        StageBooked,
		Status:              StatusWaiting,
		CompanyID:           companyID,
		CustomerID:          customerID,
		IsActive:            true,
	}
	s.SetCreatedBy(bookedBy)
	s.AddDomainEvent(NewShipmentBookedEvent(s, now))
	return s, nil
}

// IsTerminal returns true when the shipment accepts no further transitions
func (s *Shipment) IsTerminal() bool {
	return s.CurrentStage.IsTerminal()
}

// IsFailed returns true once the shipment was rejected or cancelled
func (s *Shipment) IsFailed() bool {
	return s.CurrentStage.IsFailure()
}

// apply moves the projection onto an approved event
func (s *Shipment) apply(event *OtifEvent) {
	s.CurrentStage = event.Stage
	s.Status = CoarseStatusOf(event.Stage)
	s.LastSequence = event.Sequence
	s.Touch(event.OccurredAt)
	s.IncrementVersion()
}
