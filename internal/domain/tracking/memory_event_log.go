package tracking

import (
	"context"
	"fmt"
	"sync"

	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// MemoryEventLog is an in-process EventLog. It enforces the same
// one-event-per-sequence rule as the database unique index.
type MemoryEventLog struct {
	mu     sync.RWMutex
	events map[uuid.UUID][]OtifEvent
	delays map[uuid.UUID][]DelayAnnotation
}

// NewMemoryEventLog creates an empty MemoryEventLog
func NewMemoryEventLog() *MemoryEventLog {
	return &MemoryEventLog{
		events: make(map[uuid.UUID][]OtifEvent),
		delays: make(map[uuid.UUID][]DelayAnnotation),
	}
}

// Append implements EventLog
func (l *MemoryEventLog) Append(_ context.Context, event *OtifEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	existing := l.events[event.ShipmentID]
	if event.Sequence != len(existing)+1 {
		return shared.NewConflictError("SEQUENCE_TAKEN",
			fmt.Sprintf("Shipment %s already has an event at sequence %d", event.ShipmentReference, event.Sequence))
	}
	stored := *event
	stored.Payload = event.Payload.Clone()
	l.events[event.ShipmentID] = append(existing, stored)
	return nil
}

// CurrentStage implements EventLog
func (l *MemoryEventLog) CurrentStage(_ context.Context, shipmentID uuid.UUID) (Stage, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	events := l.events[shipmentID]
	if len(events) == 0 {
		return StageBooked, nil
	}
	return events[len(events)-1].Stage, nil
}

// History implements EventLog
func (l *MemoryEventLog) History(_ context.Context, shipmentID uuid.UUID) ([]OtifEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	events := l.events[shipmentID]
	out := make([]OtifEvent, len(events))
	for i, e := range events {
		out[i] = e
		out[i].Payload = e.Payload.Clone()
	}
	return out, nil
}

// AnnotateDelay implements EventLog
func (l *MemoryEventLog) AnnotateDelay(_ context.Context, annotation *DelayAnnotation) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.delays[annotation.ShipmentID] = append(l.delays[annotation.ShipmentID], *annotation)
	return nil
}

// DelaysFor implements EventLog
func (l *MemoryEventLog) DelaysFor(_ context.Context, shipmentID uuid.UUID, stage Stage) ([]DelayAnnotation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []DelayAnnotation
	for _, d := range l.delays[shipmentID] {
		if d.Stage == stage {
			out = append(out, d)
		}
	}
	return out, nil
}
