package persistence

import (
	"context"
	"fmt"

	"github.com/freightdesk/backend/internal/application/transaction"
	"github.com/freightdesk/backend/internal/domain/settlement"
	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/domain/tracking"
	"gorm.io/gorm"
)

// GormTransactionScope implements transaction.Scope using GORM transactions.
// Domain events recorded inside the scope are written to the outbox table in
// the same transaction.
type GormTransactionScope struct {
	db         *gorm.DB
	serializer shared.EventSerializer
	maxRetries int
}

// NewGormTransactionScope creates a new GormTransactionScope. maxRetries sets
// the delivery budget of each outbox entry; values below 1 keep the default.
func NewGormTransactionScope(db *gorm.DB, serializer shared.EventSerializer, maxRetries int) *GormTransactionScope {
	if maxRetries < 1 {
		maxRetries = shared.DefaultMaxRetries
	}
	return &GormTransactionScope{db: db, serializer: serializer, maxRetries: maxRetries}
}

// Execute runs fn within a database transaction
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos transaction.Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx, scope: s})
	})
}

type gormTransactionalRepositories struct {
	tx    *gorm.DB
	scope *GormTransactionScope
}

func (r *gormTransactionalRepositories) Shipments() tracking.ShipmentRepository {
	return NewGormShipmentRepository(r.tx)
}

func (r *gormTransactionalRepositories) EventLog() tracking.EventLog {
	return NewGormOtifEventLog(r.tx)
}

func (r *gormTransactionalRepositories) Invoices() settlement.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx)
}

func (r *gormTransactionalRepositories) Events() transaction.EventRecorder {
	return &outboxRecorder{repo: NewGormOutboxRepository(r.tx), scope: r.scope}
}

// outboxRecorder serializes events into outbox entries
type outboxRecorder struct {
	repo  *GormOutboxRepository
	scope *GormTransactionScope
}

func (o *outboxRecorder) Record(ctx context.Context, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	entries := make([]*shared.OutboxEntry, 0, len(events))
	for _, evt := range events {
		payload, err := o.scope.serializer.Serialize(evt)
		if err != nil {
			return fmt.Errorf("record %s: %w", evt.EventType(), err)
		}
		entry := shared.NewOutboxEntry(evt, payload)
		entry.MaxRetries = o.scope.maxRetries
		entries = append(entries, entry)
	}
	return o.repo.Save(ctx, entries...)
}

var (
	_ transaction.Scope         = (*GormTransactionScope)(nil)
	_ transaction.Repositories  = (*gormTransactionalRepositories)(nil)
	_ transaction.EventRecorder = (*outboxRecorder)(nil)
)
