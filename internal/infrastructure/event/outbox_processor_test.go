package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeOutboxRepository struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*shared.OutboxEntry
	deleted time.Time
}

func newFakeOutboxRepository() *fakeOutboxRepository {
	return &fakeOutboxRepository{entries: make(map[uuid.UUID]*shared.OutboxEntry)}
}

func (r *fakeOutboxRepository) Save(_ context.Context, entries ...*shared.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.entries[e.ID] = e
	}
	return nil
}

func (r *fakeOutboxRepository) find(match func(*shared.OutboxEntry) bool, limit int) []*shared.OutboxEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*shared.OutboxEntry
	for _, e := range r.entries {
		if match(e) && len(out) < limit {
			out = append(out, e)
		}
	}
	return out
}

func (r *fakeOutboxRepository) FindPending(_ context.Context, limit int) ([]*shared.OutboxEntry, error) {
	return r.find(func(e *shared.OutboxEntry) bool { return e.Status == shared.OutboxStatusPending }, limit), nil
}

func (r *fakeOutboxRepository) FindRetryable(_ context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	return r.find(func(e *shared.OutboxEntry) bool {
		return e.Status == shared.OutboxStatusFailed && e.NextRetryAt != nil && !e.NextRetryAt.After(before)
	}, limit), nil
}

func (r *fakeOutboxRepository) MarkProcessing(_ context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*shared.OutboxEntry
	for _, id := range ids {
		if e, ok := r.entries[id]; ok && e.MarkProcessing() == nil {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeOutboxRepository) Update(_ context.Context, entry *shared.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.ID] = entry
	return nil
}

func (r *fakeOutboxRepository) DeleteOlderThan(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = before
	return 0, nil
}

func (r *fakeOutboxRepository) FindByIDForTenant(_ context.Context, _, id uuid.UUID) (*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		return e, nil
	}
	return nil, shared.ErrNotFound
}

func (r *fakeOutboxRepository) FindDead(context.Context, uuid.UUID, int, int) ([]*shared.OutboxEntry, int64, error) {
	return nil, 0, nil
}

func (r *fakeOutboxRepository) CountByStatus(context.Context, uuid.UUID) (map[shared.OutboxStatus]int64, error) {
	return map[shared.OutboxStatus]int64{}, nil
}

func (r *fakeOutboxRepository) status(id uuid.UUID) *shared.OutboxEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *r.entries[id]
	return &copied
}

type failingPublisher struct{ err error }

func (p failingPublisher) Publish(context.Context, ...shared.DomainEvent) error { return p.err }

func storedEntry(t *testing.T, codec *Codec, repo *fakeOutboxRepository, eventType string) *shared.OutboxEntry {
	t.Helper()
	evt := newTestEvent(eventType)
	payload, err := codec.Serialize(evt)
	require.NoError(t, err)
	entry := shared.NewOutboxEntry(evt, payload)
	require.NoError(t, repo.Save(context.Background(), entry))
	return entry
}

func testCodec() *Codec {
	codec := NewCodec()
	codec.Register("OtifStageAdvanced", func() shared.DomainEvent { return &testEvent{} })
	return codec
}

func TestOutboxProcessor_ProcessOnce_Delivers(t *testing.T) {
	codec := testCodec()
	repo := newFakeOutboxRepository()
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler("OtifStageAdvanced")
	bus.Subscribe(handler)

	entry := storedEntry(t, codec, repo, "OtifStageAdvanced")
	processor := NewOutboxProcessor(repo, bus, codec, DefaultOutboxProcessorConfig(), zap.NewNop())

	assert.Equal(t, 1, processor.ProcessOnce(context.Background()))
	assert.Equal(t, 1, handler.count())

	stored := repo.status(entry.ID)
	assert.Equal(t, shared.OutboxStatusSent, stored.Status)
	assert.NotNil(t, stored.ProcessedAt)

	assert.Equal(t, 0, processor.ProcessOnce(context.Background()))
	assert.Equal(t, 1, handler.count())
}

func TestOutboxProcessor_UnknownTypeSchedulesRetry(t *testing.T) {
	codec := testCodec()
	repo := newFakeOutboxRepository()
	entry := storedEntry(t, codec, repo, "OtifStageAdvanced")
	entry.EventType = "Unregistered"

	processor := NewOutboxProcessor(repo, NewInMemoryEventBus(zap.NewNop()), codec, DefaultOutboxProcessorConfig(), zap.NewNop())
	assert.Equal(t, 0, processor.ProcessOnce(context.Background()))

	stored := repo.status(entry.ID)
	assert.Equal(t, shared.OutboxStatusFailed, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Contains(t, stored.LastError, "unknown event type")
	require.NotNil(t, stored.NextRetryAt)
}

func TestOutboxProcessor_PublishFailureBecomesDeadLetter(t *testing.T) {
	codec := testCodec()
	repo := newFakeOutboxRepository()
	entry := storedEntry(t, codec, repo, "OtifStageAdvanced")
	entry.MaxRetries = 1

	processor := NewOutboxProcessor(repo, failingPublisher{err: errors.New("bus closed")}, codec, DefaultOutboxProcessorConfig(), zap.NewNop())
	processor.ProcessOnce(context.Background())

	stored := repo.status(entry.ID)
	assert.True(t, stored.IsDead())
	assert.Equal(t, "bus closed", stored.LastError)
}

func TestOutboxProcessor_StartStop(t *testing.T) {
	codec := testCodec()
	repo := newFakeOutboxRepository()
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler("OtifStageAdvanced")
	bus.Subscribe(handler)
	storedEntry(t, codec, repo, "OtifStageAdvanced")

	cfg := DefaultOutboxProcessorConfig()
	cfg.PollInterval = 20 * time.Millisecond
	processor := NewOutboxProcessor(repo, bus, codec, cfg, zap.NewNop())

	require.NoError(t, processor.Start(context.Background()))
	assert.Eventually(t, func() bool { return handler.count() == 1 }, time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, processor.Stop(stopCtx))
}

func TestProcessorConfigFrom(t *testing.T) {
	cfg := ProcessorConfigFrom(config.EventConfig{
		BatchSize:        10,
		PollInterval:     time.Second,
		CleanupEnabled:   false,
		CleanupRetention: 0,
	})
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.False(t, cfg.CleanupEnabled)
	assert.Equal(t, 7*24*time.Hour, cfg.CleanupRetention)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
}
