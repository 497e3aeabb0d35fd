package settlement

import (
	"testing"
	"time"

	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var openedAt = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

// ============================================
// Helpers
// ============================================

func testRate(t *testing.T) valueobject.ExchangeRate {
	t.Helper()
	rate, err := valueobject.NewExchangeRate(valueobject.IDR, valueobject.USD, decimal.NewFromInt(10000))
	require.NoError(t, err)
	return rate
}

func newTestLedger() (*InvoiceLedger, *PaymentReconciler) {
	clock := shared.FixedClock(openedAt)
	ledger := NewInvoiceLedger(valueobject.NewRateConverter(), clock)
	return ledger, NewPaymentReconciler(ledger, clock)
}

func idr(amount string) valueobject.Money { return valueobject.MustMoney(amount, valueobject.IDR) }
func usd(amount string) valueobject.Money { return valueobject.MustMoney(amount, valueobject.USD) }

func createTestInvoice(t *testing.T, ledger *InvoiceLedger) *Invoice {
	t.Helper()
	inv, err := ledger.Open(OpenInvoiceParams{
		TenantID:          uuid.New(),
		InvoiceNumber:     "INV-2025-0042",
		ShipmentID:        uuid.New(),
		ShipmentReference: "SHP-2025-0001",
		Total:             idr("1000000"),
		Rate:              testRate(t),
		CreatedBy:         uuid.New(),
	})
	require.NoError(t, err)
	inv.ClearDomainEvents()
	return inv
}

func submitAndConfirm(t *testing.T, r *PaymentReconciler, inv *Invoice, amount valueobject.Money) *PaymentAttempt {
	t.Helper()
	attempt, err := r.Submit(inv, amount, "bank-slip.pdf", uuid.New())
	require.NoError(t, err)
	confirmed, err := r.Confirm(inv, attempt.ID, uuid.New())
	require.NoError(t, err)
	return confirmed
}

// ============================================
// Open / Issue / Revision
// ============================================

func TestInvoiceLedger_Open(t *testing.T) {
	ledger, _ := newTestLedger()

	t.Run("home total converts to foreign", func(t *testing.T) {
		inv := createTestInvoice(t, ledger)
		assert.Equal(t, InvoiceStatusProforma, inv.Status)
		assert.True(t, inv.HomeTotal.Equals(idr("1000000")))
		assert.True(t, inv.ForeignTotal.Equals(usd("100")))
		assert.True(t, inv.RemainingHome.Equals(inv.HomeTotal))
		assert.True(t, inv.RemainingForeign.Equals(inv.ForeignTotal))
		assert.False(t, inv.IsSettlementLocked())
		assert.Equal(t, 1, inv.GetVersion())
	})

	t.Run("foreign total converts to home", func(t *testing.T) {
		inv, err := ledger.Open(OpenInvoiceParams{
			TenantID: uuid.New(), InvoiceNumber: "INV-2", ShipmentID: uuid.New(),
			Total: usd("12.34"), Rate: testRate(t),
		})
		require.NoError(t, err)
		assert.True(t, inv.HomeTotal.Equals(idr("123400")))
		require.Len(t, inv.GetDomainEvents(), 1)
		assert.Equal(t, EventTypeInvoiceOpened, inv.GetDomainEvents()[0].EventType())
	})

	tests := []struct {
		name   string
		params OpenInvoiceParams
		code   string
	}{
		{"empty number", OpenInvoiceParams{ShipmentID: uuid.New(), Total: usd("1"), Rate: testRate(t)}, "INVALID_INVOICE_NUMBER"},
		{"no shipment", OpenInvoiceParams{InvoiceNumber: "X", Total: usd("1"), Rate: testRate(t)}, "INVALID_SHIPMENT"},
		{"zero total", OpenInvoiceParams{InvoiceNumber: "X", ShipmentID: uuid.New(), Total: usd("0"), Rate: testRate(t)}, "INVALID_AMOUNT"},
		{"missing rate", OpenInvoiceParams{InvoiceNumber: "X", ShipmentID: uuid.New(), Total: usd("1")}, "INVALID_EXCHANGE_RATE"},
		{"currency off pair", OpenInvoiceParams{InvoiceNumber: "X", ShipmentID: uuid.New(), Total: valueobject.MustMoney("1", valueobject.EUR), Rate: testRate(t)}, "CURRENCY_NOT_ON_INVOICE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ledger.Open(tt.params)
			var de *shared.DomainError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.code, de.Code)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestInvoiceLedger_Issue(t *testing.T) {
	ledger, _ := newTestLedger()
	inv := createTestInvoice(t, ledger)
	due := openedAt.AddDate(0, 0, 30)

	require.NoError(t, ledger.Issue(inv, &due))
	assert.Equal(t, InvoiceStatusIssued, inv.Status)
	assert.Equal(t, due, *inv.DueDate)
	assert.Equal(t, openedAt, *inv.IssuedAt)
	assert.Equal(t, 2, inv.GetVersion())
	assert.True(t, inv.RemainingForeign.Equals(usd("100")))

	err := ledger.Issue(inv, nil)
	assert.Equal(t, shared.KindInvalidState, shared.KindOf(err))
}

func TestInvoiceLedger_MarkNeedsRevision(t *testing.T) {
	ledger, r := newTestLedger()

	t.Run("proforma invoice", func(t *testing.T) {
		inv := createTestInvoice(t, ledger)
		require.NoError(t, ledger.MarkNeedsRevision(inv, "wrong consignee"))
		assert.Equal(t, InvoiceStatusNeedsRevision, inv.Status)
		assert.True(t, inv.Status.IsTerminal())

		_, err := r.Submit(inv, usd("1"), "", uuid.New())
		assert.Equal(t, shared.KindInvalidState, shared.KindOf(err))
	})

	t.Run("reason required", func(t *testing.T) {
		inv := createTestInvoice(t, ledger)
		assert.True(t, shared.IsValidation(ledger.MarkNeedsRevision(inv, " ")))
	})

	t.Run("refused once paid", func(t *testing.T) {
		inv := createTestInvoice(t, ledger)
		submitAndConfirm(t, r, inv, usd("1"))
		err := ledger.MarkNeedsRevision(inv, "late change")
		assert.Equal(t, shared.KindInvalidState, shared.KindOf(err))
	})
}

// ============================================
// Recompute
// ============================================

func TestInvoiceLedger_RecomputeAfterPayment(t *testing.T) {
	ledger, _ := newTestLedger()

	t.Run("overpayment is a consistency error", func(t *testing.T) {
		inv := createTestInvoice(t, ledger)
		inv.SettlementCurrency = valueobject.USD
		before := *inv

		err := ledger.RecomputeAfterPayment(inv, usd("100.01"))
		assert.True(t, shared.IsConsistency(err))
		assert.True(t, inv.RemainingForeign.Equals(before.RemainingForeign))
		assert.Equal(t, before.Status, inv.Status)
	})

	t.Run("currency drift is a consistency error", func(t *testing.T) {
		inv := createTestInvoice(t, ledger)
		inv.SettlementCurrency = valueobject.USD
		err := ledger.RecomputeAfterPayment(inv, idr("10"))
		assert.True(t, shared.IsConsistency(err))
	})

	t.Run("derived side is rounded", func(t *testing.T) {
		inv := createTestInvoice(t, ledger)
		inv.SettlementCurrency = valueobject.IDR
		require.NoError(t, ledger.RecomputeAfterPayment(inv, idr("333333")))
		assert.True(t, inv.RemainingHome.Equals(idr("666667")))
		assert.True(t, inv.RemainingForeign.Equals(usd("66.67")))
		assert.Equal(t, InvoiceStatusPartiallyPaid, inv.Status)
	})
}
