package tracking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	settlementapp "github.com/freightdesk/backend/internal/application/settlement"
	"github.com/freightdesk/backend/internal/application/transaction"
	"github.com/freightdesk/backend/internal/domain/settlement"
	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/domain/shared/valueobject"
	"github.com/freightdesk/backend/internal/domain/tracking"
	"github.com/freightdesk/backend/internal/infrastructure/lock"
	"github.com/freightdesk/backend/internal/infrastructure/persistence/memory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var now = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *ShipmentService
	shipments *memory.ShipmentRepository
	invoices  *memory.InvoiceRepository
	eventLog  *tracking.MemoryEventLog
	events    *transaction.EventCollector
	guard     *transaction.Guard
	logs      *observer.ObservedLogs
	tenantID  uuid.UUID
	userID    uuid.UUID
}

func newFixture(t *testing.T, wrap func(transaction.Scope) transaction.Scope) *fixture {
	t.Helper()
	f := &fixture{
		shipments: memory.NewShipmentRepository(),
		invoices:  memory.NewInvoiceRepository(),
		eventLog:  tracking.NewMemoryEventLog(),
		events:    &transaction.EventCollector{},
		tenantID:  uuid.New(),
		userID:    uuid.New(),
	}
	var scope transaction.Scope = transaction.NewNoOpScope(f.shipments, f.eventLog, f.invoices, f.events)
	if wrap != nil {
		scope = wrap(scope)
	}
	core, logs := observer.New(zap.DebugLevel)
	f.logs = logs
	f.guard = transaction.NewGuard(lock.NewMemoryLocker(5*time.Second), transaction.RetryPolicy{
		Attempts:       3,
		InitialBackoff: time.Millisecond,
		LockTTL:        time.Second,
	})
	f.svc = NewShipmentService(f.shipments, f.eventLog, f.invoices, scope, f.guard, shared.FixedClock(now), zap.New(core))
	return f
}

// invoiceService shares the fixture's repositories and locks. A nil wrap
// leaves the scope as is.
func (f *fixture) invoiceService(wrap func(transaction.Scope) transaction.Scope) *settlementapp.InvoiceService {
	var scope transaction.Scope = transaction.NewNoOpScope(f.shipments, f.eventLog, f.invoices, &transaction.EventCollector{})
	if wrap != nil {
		scope = wrap(scope)
	}
	return settlementapp.NewInvoiceService(f.invoices, f.shipments, scope, f.guard, valueobject.NewRateConverter(),
		valueobject.IDR, shared.FixedClock(now), zap.NewNop())
}

func (f *fixture) book(t *testing.T, ref, route string) *ShipmentResponse {
	t.Helper()
	resp, err := f.svc.Book(context.Background(), f.tenantID, f.userID, BookShipmentRequest{
		ReferenceNumber: ref,
		Route:           route,
		CustomerID:      uuid.New(),
	})
	require.NoError(t, err)
	return resp
}

func (f *fixture) submit(ref string, stage tracking.Stage, payload map[string]any) (*TransitionResponse, error) {
	return f.svc.SubmitOtif(context.Background(), f.tenantID, f.userID, ref, SubmitOtifRequest{
		Stage:   string(stage),
		Payload: payload,
	})
}

func (f *fixture) openInvoice(t *testing.T, shipmentRef string) *settlement.Invoice {
	t.Helper()
	return f.seedInvoice(t, shipmentRef, "INV-"+shipmentRef, settlement.InvoiceStatusProforma, now)
}

// seedInvoice stores an invoice of 16,000,000 IDR with the given status
// straight into the repository
func (f *fixture) seedInvoice(t *testing.T, shipmentRef, number string, status settlement.InvoiceStatus, createdAt time.Time) *settlement.Invoice {
	t.Helper()
	shipment, err := f.shipments.FindByReference(context.Background(), f.tenantID, shipmentRef)
	require.NoError(t, err)
	rate, err := valueobject.NewExchangeRate(valueobject.IDR, valueobject.USD, decimal.NewFromInt(16000))
	require.NoError(t, err)
	ledger := settlement.NewInvoiceLedger(valueobject.NewRateConverter(), shared.FixedClock(now))
	inv, err := ledger.Open(settlement.OpenInvoiceParams{
		TenantID:          f.tenantID,
		InvoiceNumber:     number,
		ShipmentID:        shipment.ID,
		ShipmentReference: shipmentRef,
		Total:             valueobject.MustMoney("16000000", valueobject.IDR),
		Rate:              rate,
	})
	require.NoError(t, err)
	inv.Status = status
	inv.CreatedAt = createdAt
	require.NoError(t, f.invoices.Create(context.Background(), inv))
	return inv
}

var scheduledPayload = map[string]any{"etd": "2025-06-03", "eta": "2025-06-20"}

// conflictOnce fails the first n transactions with a concurrency conflict
type conflictOnce struct {
	inner transaction.Scope
	left  atomic.Int32
}

func (s *conflictOnce) Execute(ctx context.Context, fn func(repos transaction.Repositories) error) error {
	if s.left.Add(-1) >= 0 {
		return shared.ErrConcurrencyConflict
	}
	return s.inner.Execute(ctx, fn)
}

// pausedCommit calls during once, just before the first transaction it runs
type pausedCommit struct {
	inner  transaction.Scope
	during func()
	fired  atomic.Bool
}

func (s *pausedCommit) Execute(ctx context.Context, fn func(repos transaction.Repositories) error) error {
	if s.during != nil && s.fired.CompareAndSwap(false, true) {
		s.during()
	}
	return s.inner.Execute(ctx, fn)
}

func codeOf(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

func TestShipmentService_Book(t *testing.T) {
	t.Run("books at BOOKED with progress zero", func(t *testing.T) {
		f := newFixture(t, nil)
		resp := f.book(t, "SHP-001", "DOOR_TO_DOOR")

		assert.Equal(t, "BOOKED", resp.CurrentStage)
		assert.Equal(t, "WAITING", resp.Status)
		assert.Equal(t, 0, resp.Progress)
		assert.Equal(t, 0, resp.StagesPassed)
		assert.Equal(t, 8, resp.StagesTotal)
		assert.Equal(t, "SCHEDULED", resp.NextStage)
		assert.Equal(t, []string{tracking.EventTypeShipmentBooked}, f.events.Types())

		history, err := f.svc.History(context.Background(), f.tenantID, "SHP-001")
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("rejects duplicate reference", func(t *testing.T) {
		f := newFixture(t, nil)
		f.book(t, "SHP-001", "PORT_TO_PORT")

		_, err := f.svc.Book(context.Background(), f.tenantID, f.userID, BookShipmentRequest{
			ReferenceNumber: "SHP-001",
			Route:           "PORT_TO_PORT",
			CustomerID:      uuid.New(),
		})
		assert.True(t, shared.IsConflict(err))
	})

	t.Run("rejects unknown route", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.svc.Book(context.Background(), f.tenantID, f.userID, BookShipmentRequest{
			ReferenceNumber: "SHP-002",
			Route:           "AIR",
			CustomerID:      uuid.New(),
		})
		assert.True(t, shared.IsValidation(err))
	})
}

func TestShipmentService_SubmitOtif(t *testing.T) {
	t.Run("advances to the next stage", func(t *testing.T) {
		f := newFixture(t, nil)
		f.book(t, "SHP-001", "DOOR_TO_DOOR")

		resp, err := f.submit("SHP-001", tracking.StageScheduled, scheduledPayload)
		require.NoError(t, err)

		assert.Equal(t, "SCHEDULED", resp.Shipment.CurrentStage)
		assert.Equal(t, "ONGOING", resp.Shipment.Status)
		assert.Equal(t, 10, resp.Shipment.Progress)
		assert.Equal(t, 1, resp.Shipment.StagesPassed)
		assert.Equal(t, 1, resp.Event.Sequence)
		assert.Equal(t, "2025-06-03", resp.Event.Payload["etd"])
		assert.Equal(t, now, resp.Event.OccurredAt)
		assert.Contains(t, f.events.Types(), tracking.EventTypeOtifStageAdvanced)

		stored, err := f.shipments.FindByReference(context.Background(), f.tenantID, "SHP-001")
		require.NoError(t, err)
		assert.Equal(t, tracking.StageScheduled, stored.CurrentStage)
		assert.Equal(t, 1, stored.LastSequence)
		assert.Equal(t, 1, f.logs.FilterMessage("otif stage recorded").Len())
	})

	t.Run("refuses an out of sequence stage", func(t *testing.T) {
		f := newFixture(t, nil)
		f.book(t, "SHP-001", "DOOR_TO_DOOR")

		_, err := f.submit("SHP-001", tracking.StageDeparture, map[string]any{
			"port_of_loading": "IDJKT", "shipping_line": "MSC", "vessel": "MSC Aurora", "voyage": "V12",
		})
		require.Error(t, err)
		assert.True(t, shared.IsSequencing(err))

		history, err := f.svc.History(context.Background(), f.tenantID, "SHP-001")
		require.NoError(t, err)
		assert.Empty(t, history)
		assert.Equal(t, 1, f.logs.FilterMessage("otif transition refused").Len())
	})

	t.Run("refuses missing payload fields", func(t *testing.T) {
		f := newFixture(t, nil)
		f.book(t, "SHP-001", "DOOR_TO_DOOR")

		_, err := f.submit("SHP-001", tracking.StageScheduled, map[string]any{"etd": "2025-06-03"})
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("rejects unknown stage names", func(t *testing.T) {
		f := newFixture(t, nil)
		f.book(t, "SHP-001", "DOOR_TO_DOOR")

		_, err := f.submit("SHP-001", tracking.Stage("TELEPORTED"), nil)
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("unknown shipment", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.submit("NOPE", tracking.StageScheduled, scheduledPayload)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("retries after a concurrent update", func(t *testing.T) {
		var wrapper *conflictOnce
		f := newFixture(t, func(inner transaction.Scope) transaction.Scope {
			wrapper = &conflictOnce{inner: inner}
			return wrapper
		})
		f.book(t, "SHP-001", "PORT_TO_PORT")
		wrapper.left.Store(1)

		resp, err := f.submit("SHP-001", tracking.StageScheduled, scheduledPayload)
		require.NoError(t, err)
		assert.Equal(t, 1, resp.Event.Sequence)
		assert.Equal(t, 1, f.logs.FilterMessage("otif transition lost a concurrent update").Len())
	})

	t.Run("gives up after exhausting retries", func(t *testing.T) {
		var wrapper *conflictOnce
		f := newFixture(t, func(inner transaction.Scope) transaction.Scope {
			wrapper = &conflictOnce{inner: inner}
			return wrapper
		})
		f.book(t, "SHP-001", "PORT_TO_PORT")
		wrapper.left.Store(10)

		_, err := f.submit("SHP-001", tracking.StageScheduled, scheduledPayload)
		assert.True(t, shared.IsConflict(err))
	})

	t.Run("concurrent submissions of the same stage", func(t *testing.T) {
		f := newFixture(t, nil)
		f.book(t, "SHP-001", "PORT_TO_PORT")

		var (
			wg        sync.WaitGroup
			succeeded atomic.Int32
			refused   atomic.Int32
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.submit("SHP-001", tracking.StageScheduled, scheduledPayload)
				switch {
				case err == nil:
					succeeded.Add(1)
				case shared.IsSequencing(err):
					refused.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), succeeded.Load())
		assert.Equal(t, int32(7), refused.Load())
		history, err := f.svc.History(context.Background(), f.tenantID, "SHP-001")
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})

	t.Run("walks a route to completion", func(t *testing.T) {
		f := newFixture(t, nil)
		f.book(t, "SHP-001", "PORT_TO_PORT")

		steps := []struct {
			stage   tracking.Stage
			payload map[string]any
		}{
			{tracking.StageScheduled, scheduledPayload},
			{tracking.StageDeparture, map[string]any{"port_of_loading": "IDJKT", "shipping_line": "MSC", "vessel": "MSC Aurora", "voyage": "V12"}},
			{tracking.StageArrival, map[string]any{"port_of_discharge": "SGSIN"}},
			{tracking.StageComplete, nil},
		}
		var last *TransitionResponse
		for _, step := range steps {
			resp, err := f.submit("SHP-001", step.stage, step.payload)
			require.NoError(t, err, step.stage)
			last = resp
		}
		assert.Equal(t, "COMPLETE", last.Shipment.Status)
		assert.Equal(t, 100, last.Shipment.Progress)
		assert.Empty(t, last.Shipment.NextStage)
		assert.True(t, last.Shipment.HasDeparted)

		_, err := f.submit("SHP-001", tracking.StageCancelled, map[string]any{"reason": "late"})
		assert.True(t, shared.IsSequencing(err))
	})
}

func TestShipmentService_Cancellation(t *testing.T) {
	cancel := map[string]any{"reason": "customer withdrew"}

	t.Run("allowed without an invoice", func(t *testing.T) {
		f := newFixture(t, nil)
		f.book(t, "SHP-001", "DOOR_TO_DOOR")

		resp, err := f.submit("SHP-001", tracking.StageCancelled, cancel)
		require.NoError(t, err)
		assert.Equal(t, "FAILED", resp.Shipment.Status)
		assert.Equal(t, 0, resp.Shipment.Progress)
		assert.Contains(t, f.events.Types(), tracking.EventTypeShipmentFailed)
	})

	t.Run("allowed while the invoice is proforma", func(t *testing.T) {
		f := newFixture(t, nil)
		f.book(t, "SHP-001", "DOOR_TO_DOOR")
		f.openInvoice(t, "SHP-001")

		_, err := f.submit("SHP-001", tracking.StageRejected, cancel)
		require.NoError(t, err)
	})

	t.Run("refused once the invoice is issued", func(t *testing.T) {
		f := newFixture(t, nil)
		f.book(t, "SHP-001", "DOOR_TO_DOOR")
		inv := f.openInvoice(t, "SHP-001")
		inv.Status = settlement.InvoiceStatusIssued
		inv.Version++
		require.NoError(t, f.invoices.SaveWithLock(context.Background(), inv))

		_, err := f.submit("SHP-001", tracking.StageCancelled, cancel)
		require.Error(t, err)
		assert.True(t, shared.IsSequencing(err))
		var de *shared.DomainError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "INVOICE_COMMITTED", de.Code)
	})

	t.Run("refused when an older invoice is committed", func(t *testing.T) {
		f := newFixture(t, nil)
		f.book(t, "SHP-001", "DOOR_TO_DOOR")
		f.seedInvoice(t, "SHP-001", "INV-001", settlement.InvoiceStatusIssued, now)
		f.seedInvoice(t, "SHP-001", "INV-002", settlement.InvoiceStatusNeedsRevision, now.Add(time.Hour))

		_, err := f.submit("SHP-001", tracking.StageCancelled, cancel)
		assert.True(t, shared.IsSequencing(err))
		assert.Equal(t, "INVOICE_COMMITTED", codeOf(err))
	})

	t.Run("refused after a partial payment even when reopening is attempted", func(t *testing.T) {
		f := newFixture(t, nil)
		invoices := f.invoiceService(nil)
		ctx := context.Background()
		f.book(t, "SHP-001", "DOOR_TO_DOOR")

		open := func(number string) error {
			_, err := invoices.Open(ctx, f.tenantID, f.userID, settlementapp.OpenInvoiceRequest{
				InvoiceNumber:     number,
				ShipmentReference: "SHP-001",
				Amount:            "100",
				Currency:          "USD",
				ForeignCurrency:   "USD",
				ExchangeRate:      "10000",
			})
			return err
		}
		require.NoError(t, open("INV-001"))
		_, err := invoices.Issue(ctx, f.tenantID, "INV-001", settlementapp.IssueInvoiceRequest{})
		require.NoError(t, err)
		paid, err := invoices.SubmitPayment(ctx, f.tenantID, f.userID, "INV-001", settlementapp.SubmitPaymentRequest{
			Amount:      "40",
			Currency:    "USD",
			EvidenceRef: "transfer.pdf",
		})
		require.NoError(t, err)
		_, err = invoices.ConfirmPayment(ctx, f.tenantID, uuid.New(), "INV-001", paid.Attempt.ID)
		require.NoError(t, err)

		err = open("INV-002")
		assert.True(t, shared.IsConflict(err))
		assert.Equal(t, "SHIPMENT_INVOICED", codeOf(err))

		_, err = f.submit("SHP-001", tracking.StageCancelled, cancel)
		assert.Equal(t, "INVOICE_COMMITTED", codeOf(err))

		shipment, err := f.svc.Get(ctx, f.tenantID, "SHP-001")
		require.NoError(t, err)
		assert.Equal(t, "BOOKED", shipment.CurrentStage)
	})
}

func TestShipmentService_CancellationRacesInvoiceWrites(t *testing.T) {
	cancel := map[string]any{"reason": "customer withdrew"}

	t.Run("an issue waiting on the cancellation sees the failed shipment", func(t *testing.T) {
		issued := make(chan error, 1)
		f := newFixture(t, func(inner transaction.Scope) transaction.Scope {
			return &pausedCommit{inner: inner}
		})
		invoices := f.invoiceService(nil)
		f.book(t, "SHP-001", "DOOR_TO_DOOR")
		inv := f.openInvoice(t, "SHP-001")

		// The cancellation has passed its commitment check and holds the
		// shipment lock when the issue starts.
		pause := f.svc.scope.(*pausedCommit)
		pause.during = func() {
			go func() {
				_, err := invoices.Issue(context.Background(), f.tenantID, inv.InvoiceNumber, settlementapp.IssueInvoiceRequest{})
				issued <- err
			}()
			time.Sleep(50 * time.Millisecond)
		}

		resp, err := f.submit("SHP-001", tracking.StageCancelled, cancel)
		require.NoError(t, err)
		assert.Equal(t, "FAILED", resp.Shipment.Status)

		select {
		case err = <-issued:
		case <-time.After(5 * time.Second):
			t.Fatal("issue never finished")
		}
		assert.Equal(t, shared.KindInvalidState, shared.KindOf(err))
		assert.Equal(t, "SHIPMENT_FAILED", codeOf(err))

		stored, err := f.invoices.FindByNumber(context.Background(), f.tenantID, inv.InvoiceNumber)
		require.NoError(t, err)
		assert.Equal(t, settlement.InvoiceStatusProforma, stored.Status)
	})

	t.Run("a cancellation waiting on an issue sees the commitment", func(t *testing.T) {
		cancelled := make(chan error, 1)
		f := newFixture(t, nil)
		f.book(t, "SHP-001", "DOOR_TO_DOOR")
		inv := f.openInvoice(t, "SHP-001")

		invoices := f.invoiceService(func(inner transaction.Scope) transaction.Scope {
			return &pausedCommit{inner: inner, during: func() {
				go func() {
					_, err := f.submit("SHP-001", tracking.StageCancelled, cancel)
					cancelled <- err
				}()
				time.Sleep(50 * time.Millisecond)
			}}
		})

		_, err := invoices.Issue(context.Background(), f.tenantID, inv.InvoiceNumber, settlementapp.IssueInvoiceRequest{})
		require.NoError(t, err)

		select {
		case err = <-cancelled:
		case <-time.After(5 * time.Second):
			t.Fatal("cancellation never finished")
		}
		assert.True(t, shared.IsSequencing(err))
		assert.Equal(t, "INVOICE_COMMITTED", codeOf(err))

		shipment, err := f.svc.Get(context.Background(), f.tenantID, "SHP-001")
		require.NoError(t, err)
		assert.Equal(t, "BOOKED", shipment.CurrentStage)
	})
}

func TestShipmentService_AnnotateDelay(t *testing.T) {
	f := newFixture(t, nil)
	f.book(t, "SHP-001", "DOOR_TO_DOOR")
	ctx := context.Background()

	resp, err := f.svc.AnnotateDelay(ctx, f.tenantID, f.userID, "SHP-001", "DEPARTURE", AnnotateDelayRequest{
		DelayFrom:    now,
		DelayUntil:   now.Add(36 * time.Hour),
		Note:         "vessel rolled over",
		EvidenceRefs: []string{"notice.pdf", " "},
	})
	require.NoError(t, err)
	assert.Equal(t, 36.0, resp.DelayHours)
	assert.Equal(t, []string{"notice.pdf"}, resp.EvidenceRefs)
	assert.Contains(t, f.events.Types(), tracking.EventTypeOtifDelayAnnotated)

	delays, err := f.svc.Delays(ctx, f.tenantID, "SHP-001", "DEPARTURE")
	require.NoError(t, err)
	require.Len(t, delays, 1)
	assert.Equal(t, "vessel rolled over", delays[0].Note)

	shipment, err := f.svc.Get(ctx, f.tenantID, "SHP-001")
	require.NoError(t, err)
	assert.Equal(t, "BOOKED", shipment.CurrentStage)
	assert.Equal(t, 1, shipment.Version)

	t.Run("rejects an inverted window", func(t *testing.T) {
		_, err := f.svc.AnnotateDelay(ctx, f.tenantID, f.userID, "SHP-001", "DEPARTURE", AnnotateDelayRequest{
			DelayFrom:  now,
			DelayUntil: now.Add(-time.Hour),
		})
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("rejects a stage off the route", func(t *testing.T) {
		f2 := newFixture(t, nil)
		f2.book(t, "SHP-002", "PORT_TO_PORT")
		_, err := f2.svc.AnnotateDelay(ctx, f2.tenantID, f2.userID, "SHP-002", "PICKUP", AnnotateDelayRequest{
			DelayFrom:  now,
			DelayUntil: now.Add(time.Hour),
		})
		assert.True(t, shared.IsValidation(err))
	})
}

func TestShipmentService_List(t *testing.T) {
	f := newFixture(t, nil)
	f.book(t, "SHP-001", "DOOR_TO_DOOR")
	f.book(t, "SHP-002", "PORT_TO_PORT")
	f.book(t, "SHP-003", "PORT_TO_PORT")
	_, err := f.submit("SHP-003", tracking.StageScheduled, scheduledPayload)
	require.NoError(t, err)

	all, err := f.svc.List(context.Background(), f.tenantID, ShipmentListQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)

	ongoing, err := f.svc.List(context.Background(), f.tenantID, ShipmentListQuery{Status: "ONGOING"})
	require.NoError(t, err)
	require.Len(t, ongoing.Items, 1)
	assert.Equal(t, "SHP-003", ongoing.Items[0].ReferenceNumber)

	other, err := f.svc.List(context.Background(), uuid.New(), ShipmentListQuery{})
	require.NoError(t, err)
	assert.Zero(t, other.Total)
}
