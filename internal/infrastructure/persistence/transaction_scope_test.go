package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/freightdesk/backend/internal/application/transaction"
	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/domain/tracking"
	"github.com/freightdesk/backend/internal/infrastructure/event"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScope(t *testing.T) (*GormTransactionScope, *event.Codec) {
	t.Helper()
	codec := event.NewCodec()
	event.RegisterFreightEvents(codec)
	return NewGormTransactionScope(setupFreightTestDB(t), codec, 3), codec
}

func TestGormTransactionScope_CommitWritesOutbox(t *testing.T) {
	scope, codec := newTestScope(t)
	ctx := context.Background()
	tenantID := uuid.New()

	shipment, err := tracking.BookShipment(tenantID, "FD-9001", tracking.RouteDoorToPort, uuid.New(), uuid.New(), uuid.New(), testEpoch)
	require.NoError(t, err)

	err = scope.Execute(ctx, func(repos transaction.Repositories) error {
		if err := repos.Shipments().Create(ctx, shipment); err != nil {
			return err
		}
		return repos.Events().Record(ctx, shipment.GetDomainEvents()...)
	})
	require.NoError(t, err)

	found, err := NewGormShipmentRepository(scope.db).FindByReference(ctx, tenantID, "FD-9001")
	require.NoError(t, err)
	assert.Equal(t, shipment.ID, found.ID)

	outbox := NewGormOutboxRepository(scope.db)
	pending, err := outbox.FindPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, tracking.EventTypeShipmentBooked, pending[0].EventType)
	assert.Equal(t, shipment.ID, pending[0].AggregateID)
	assert.Equal(t, tenantID, pending[0].TenantID)
	assert.Equal(t, 3, pending[0].MaxRetries)

	decoded, err := codec.Deserialize(pending[0].EventType, pending[0].Payload)
	require.NoError(t, err)
	booked, ok := decoded.(*tracking.ShipmentBookedEvent)
	require.True(t, ok)
	assert.Equal(t, "FD-9001", booked.ReferenceNumber)
}

func TestGormTransactionScope_RollbackOnError(t *testing.T) {
	scope, _ := newTestScope(t)
	ctx := context.Background()
	tenantID := uuid.New()
	boom := errors.New("boom")

	shipment, err := tracking.BookShipment(tenantID, "FD-9101", tracking.RoutePortToPort, uuid.New(), uuid.New(), uuid.New(), testEpoch)
	require.NoError(t, err)

	err = scope.Execute(ctx, func(repos transaction.Repositories) error {
		if err := repos.Shipments().Create(ctx, shipment); err != nil {
			return err
		}
		if err := repos.Events().Record(ctx, shipment.GetDomainEvents()...); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = NewGormShipmentRepository(scope.db).FindByReference(ctx, tenantID, "FD-9101")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	pending, err := NewGormOutboxRepository(scope.db).FindPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestGormTransactionScope_TakenSequenceRollsBackShipment(t *testing.T) {
	scope, _ := newTestScope(t)
	ctx := context.Background()
	tenantID := uuid.New()

	shipment := bookTestShipment(t, tenantID, "FD-9201", tracking.RoutePortToPort, testEpoch)
	require.NoError(t, NewGormShipmentRepository(scope.db).Create(ctx, shipment))

	winner, err := NewGormShipmentRepository(scope.db).FindByIDForTenant(ctx, tenantID, shipment.ID)
	require.NoError(t, err)
	winnerEvent := scheduleShipment(t, winner)
	require.NoError(t, NewGormOtifEventLog(scope.db).Append(ctx, winnerEvent))

	loserEvent := scheduleShipment(t, shipment)
	err = scope.Execute(ctx, func(repos transaction.Repositories) error {
		if err := repos.EventLog().Append(ctx, loserEvent); err != nil {
			return err
		}
		return repos.Shipments().SaveWithLock(ctx, shipment)
	})
	require.Error(t, err)
	assert.True(t, shared.IsConflict(err))

	stored, err := NewGormShipmentRepository(scope.db).FindByIDForTenant(ctx, tenantID, shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Version)
	assert.Equal(t, tracking.StageBooked, stored.CurrentStage)
}
