package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact recorded by a shipment or an invoice. It is written
// to the outbox in the transaction that changed the aggregate and delivered
// to subscribers after commit.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
	TenantID() uuid.UUID
}

// AggregateRef names the aggregate an event belongs to
type AggregateRef struct {
	Type     string    `json:"type"`
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`
}

// EventHeader is embedded by every event struct. It implements DomainEvent;
// the embedding struct only adds its payload.
type EventHeader struct {
	ID        uuid.UUID    `json:"id"`
	Type      string       `json:"type"`
	At        time.Time    `json:"occurred_at"`
	Aggregate AggregateRef `json:"aggregate"`
}

// NewEventHeader stamps a new event of eventType raised by the aggregate at at
func NewEventHeader(eventType, aggregateType string, aggregateID, tenantID uuid.UUID, at time.Time) EventHeader {
	return EventHeader{
		ID:   uuid.New(),
		Type: eventType,
		At:   at,
		Aggregate: AggregateRef{
			Type:     aggregateType,
			ID:       aggregateID,
			TenantID: tenantID,
		},
	}
}

func (h *EventHeader) EventID() uuid.UUID     { return h.ID }
func (h *EventHeader) EventType() string      { return h.Type }
func (h *EventHeader) OccurredAt() time.Time  { return h.At }
func (h *EventHeader) AggregateID() uuid.UUID { return h.Aggregate.ID }
func (h *EventHeader) AggregateType() string  { return h.Aggregate.Type }
func (h *EventHeader) TenantID() uuid.UUID    { return h.Aggregate.TenantID }

// EventHandler reacts to delivered events. An empty EventTypes subscribes to
// every type.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	EventTypes() []string
}

// EventPublisher delivers committed events; the outbox processor is its
// only caller
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus is the in-process delivery point behind the outbox processor.
// Subscribe with no types falls back to the handler's EventTypes.
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// EventSerializer encodes events for the outbox payload column
type EventSerializer interface {
	Serialize(event DomainEvent) ([]byte, error)
}
