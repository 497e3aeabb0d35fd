// Package transaction defines the unit of work the application services run
// their writes in.
package transaction

import (
	"context"
	"sync"

	"github.com/freightdesk/backend/internal/domain/settlement"
	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/domain/tracking"
)

// Scope runs fn inside one database transaction. If fn returns an error the
// transaction is rolled back, otherwise it is committed.
type Scope interface {
	Execute(ctx context.Context, fn func(repos Repositories) error) error
}

// Repositories gives access to every repository bound to the current
// transaction.
//
// Shipment and invoice aggregates are written through their repositories;
// stage events and delay annotations go through EventLog, which is the only
// write path for OTIF history. Domain events raised by the aggregates are
// handed to Events so they are committed together with the state change.
type Repositories interface {
	Shipments() tracking.ShipmentRepository
	EventLog() tracking.EventLog
	Invoices() settlement.InvoiceRepository
	Events() EventRecorder
}

// EventRecorder stores domain events for later delivery
type EventRecorder interface {
	Record(ctx context.Context, events ...shared.DomainEvent) error
}

// NoOpScope runs fn directly against the given repositories without a
// transaction. It backs unit tests and in-memory setups.
type NoOpScope struct {
	shipments tracking.ShipmentRepository
	eventLog  tracking.EventLog
	invoices  settlement.InvoiceRepository
	events    EventRecorder
}

// NewNoOpScope creates a NoOpScope with the given repositories
func NewNoOpScope(
	shipments tracking.ShipmentRepository,
	eventLog tracking.EventLog,
	invoices settlement.InvoiceRepository,
	events EventRecorder,
) *NoOpScope {
	return &NoOpScope{
		shipments: shipments,
		eventLog:  eventLog,
		invoices:  invoices,
		events:    events,
	}
}

// Execute runs fn without a transaction
func (s *NoOpScope) Execute(_ context.Context, fn func(repos Repositories) error) error {
	return fn(s)
}

func (s *NoOpScope) Shipments() tracking.ShipmentRepository { return s.shipments }

func (s *NoOpScope) EventLog() tracking.EventLog { return s.eventLog }

func (s *NoOpScope) Invoices() settlement.InvoiceRepository { return s.invoices }

func (s *NoOpScope) Events() EventRecorder { return s.events }

// EventCollector is an EventRecorder that keeps events in memory
type EventCollector struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

// Record appends events to the collector
func (c *EventCollector) Record(_ context.Context, events ...shared.DomainEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, events...)
	return nil
}

// Events returns a copy of everything recorded so far
func (c *EventCollector) Events() []shared.DomainEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]shared.DomainEvent(nil), c.events...)
}

// Types returns the type names of the recorded events in order
func (c *EventCollector) Types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make([]string, len(c.events))
	for i, e := range c.events {
		types[i] = e.EventType()
	}
	return types
}

var (
	_ Scope         = (*NoOpScope)(nil)
	_ Repositories  = (*NoOpScope)(nil)
	_ EventRecorder = (*EventCollector)(nil)
)
