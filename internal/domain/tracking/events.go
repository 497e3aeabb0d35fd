package tracking

import (
	"time"

	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateTypeShipment is the aggregate type for shipment events
const AggregateTypeShipment = "Shipment"

// Event type constants for shipment events
const (
	EventTypeShipmentBooked     = "ShipmentBooked"
	EventTypeOtifStageAdvanced  = "OtifStageAdvanced"
	EventTypeShipmentFailed     = "ShipmentFailed"
	EventTypeOtifDelayAnnotated = "OtifDelayAnnotated"
)

// ShipmentBookedEvent is raised when a shipment is booked
type ShipmentBookedEvent struct {
	shared.EventHeader
	ShipmentID      uuid.UUID    `json:"shipment_id"`
	ReferenceNumber string       `json:"reference_number"`
	Route           ServiceRoute `json:"route"`
	CustomerID      uuid.UUID    `json:"customer_id"`
}

// EventType returns the event type name
func (e *ShipmentBookedEvent) EventType() string {
	return EventTypeShipmentBooked
}

// NewShipmentBookedEvent creates a new ShipmentBookedEvent
func NewShipmentBookedEvent(s *Shipment, at time.Time) *ShipmentBookedEvent {
	return &ShipmentBookedEvent{
		EventHeader:     shared.NewEventHeader(EventTypeShipmentBooked, AggregateTypeShipment, s.ID, s.TenantID, at),
		ShipmentID:      s.ID,
		ReferenceNumber: s.ReferenceNumber,
		Route:           s.Route,
		CustomerID:      s.CustomerID,
	}
}

// OtifStageAdvancedEvent is raised when a shipment moves to its next stage
type OtifStageAdvancedEvent struct {
	shared.EventHeader
	ShipmentID      uuid.UUID    `json:"shipment_id"`
	ReferenceNumber string       `json:"reference_number"`
	Route           ServiceRoute `json:"route"`
	FromStage       Stage        `json:"from_stage"`
	ToStage         Stage        `json:"to_stage"`
	Sequence        int          `json:"sequence"`
	Status          CoarseStatus `json:"status"`
	Progress        int          `json:"progress"`
}

// EventType returns the event type name
func (e *OtifStageAdvancedEvent) EventType() string {
	return EventTypeOtifStageAdvanced
}

// NewOtifStageAdvancedEvent creates a new OtifStageAdvancedEvent
func NewOtifStageAdvancedEvent(s *Shipment, from Stage, evt *OtifEvent, progress int) *OtifStageAdvancedEvent {
	return &OtifStageAdvancedEvent{
		EventHeader:     shared.NewEventHeader(EventTypeOtifStageAdvanced, AggregateTypeShipment, s.ID, s.TenantID, evt.OccurredAt),
		ShipmentID:      s.ID,
		ReferenceNumber: s.ReferenceNumber,
		Route:           s.Route,
		FromStage:       from,
		ToStage:         evt.Stage,
		Sequence:        evt.Sequence,
		Status:          s.Status,
		Progress:        progress,
	}
}

// ShipmentFailedEvent is raised when a shipment is rejected or cancelled
type ShipmentFailedEvent struct {
	shared.EventHeader
	ShipmentID      uuid.UUID    `json:"shipment_id"`
	ReferenceNumber string       `json:"reference_number"`
	Route           ServiceRoute `json:"route"`
	FromStage       Stage        `json:"from_stage"`
	FailureStage    Stage        `json:"failure_stage"`
	Reason          string       `json:"reason"`
}

// EventType returns the event type name
func (e *ShipmentFailedEvent) EventType() string {
	return EventTypeShipmentFailed
}

// NewShipmentFailedEvent creates a new ShipmentFailedEvent
func NewShipmentFailedEvent(s *Shipment, from Stage, evt *OtifEvent, reason string) *ShipmentFailedEvent {
	return &ShipmentFailedEvent{
		EventHeader:     shared.NewEventHeader(EventTypeShipmentFailed, AggregateTypeShipment, s.ID, s.TenantID, evt.OccurredAt),
		ShipmentID:      s.ID,
		ReferenceNumber: s.ReferenceNumber,
		Route:           s.Route,
		FromStage:       from,
		FailureStage:    evt.Stage,
		Reason:          reason,
	}
}

// OtifDelayAnnotatedEvent is raised when a delay is recorded against a stage
type OtifDelayAnnotatedEvent struct {
	shared.EventHeader
	ShipmentID      uuid.UUID `json:"shipment_id"`
	ReferenceNumber string    `json:"reference_number"`
	Stage           Stage     `json:"stage"`
	DelayFrom       time.Time `json:"delay_from"`
	DelayUntil      time.Time `json:"delay_until"`
	Note            string    `json:"note,omitempty"`
}

// EventType returns the event type name
func (e *OtifDelayAnnotatedEvent) EventType() string {
	return EventTypeOtifDelayAnnotated
}

// NewOtifDelayAnnotatedEvent creates a new OtifDelayAnnotatedEvent
func NewOtifDelayAnnotatedEvent(s *Shipment, d *DelayAnnotation) *OtifDelayAnnotatedEvent {
	return &OtifDelayAnnotatedEvent{
		EventHeader:     shared.NewEventHeader(EventTypeOtifDelayAnnotated, AggregateTypeShipment, s.ID, s.TenantID, d.RecordedAt),
		ShipmentID:      s.ID,
		ReferenceNumber: s.ReferenceNumber,
		Stage:           d.Stage,
		DelayFrom:       d.DelayFrom,
		DelayUntil:      d.DelayUntil,
		Note:            d.Note,
	}
}
