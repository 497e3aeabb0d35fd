package settlement

import (
	"math/rand"
	"testing"

	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================
// Scenarios
// ============================================

func TestReconciler_PartialForeignPayment(t *testing.T) {
	ledger, r := newTestLedger()
	inv := createTestInvoice(t, ledger)

	attempt := submitAndConfirm(t, r, inv, usd("40"))

	assert.Equal(t, PaymentStatusConfirmed, attempt.Status)
	assert.True(t, inv.RemainingForeign.Equals(usd("60")))
	assert.True(t, inv.RemainingHome.Equals(idr("600000")))
	assert.Equal(t, InvoiceStatusPartiallyPaid, inv.Status)
	assert.Equal(t, valueobject.USD, inv.SettlementCurrency)
}

func TestReconciler_SecondPaymentSettles(t *testing.T) {
	ledger, r := newTestLedger()
	inv := createTestInvoice(t, ledger)
	submitAndConfirm(t, r, inv, usd("40"))

	submitAndConfirm(t, r, inv, usd("60"))

	assert.True(t, inv.RemainingForeign.IsZero())
	assert.True(t, inv.RemainingHome.IsZero())
	assert.Equal(t, InvoiceStatusSettled, inv.Status)
	require.NotNil(t, inv.SettledAt)

	types := make([]string, 0)
	for _, e := range inv.GetDomainEvents() {
		types = append(types, e.EventType())
	}
	assert.Contains(t, types, EventTypeInvoiceSettled)
	assert.Contains(t, types, EventTypeInvoicePartiallyPaid)
}

func TestReconciler_RejectLeavesBalances(t *testing.T) {
	ledger, r := newTestLedger()
	inv := createTestInvoice(t, ledger)
	submitAndConfirm(t, r, inv, usd("40"))

	pending, err := r.Submit(inv, usd("30"), "slip-2.jpg", uuid.New())
	require.NoError(t, err)

	rejected, err := r.Reject(inv, pending.ID, uuid.New(), "amount not received")
	require.NoError(t, err)

	assert.Equal(t, PaymentStatusRejected, rejected.Status)
	assert.Equal(t, "amount not received", rejected.RejectionReason)
	assert.True(t, inv.RemainingForeign.Equals(usd("60")))
	assert.True(t, inv.RemainingHome.Equals(idr("600000")))
	assert.Equal(t, InvoiceStatusPartiallyPaid, inv.Status)

	_, err = r.Confirm(inv, pending.ID, uuid.New())
	assert.True(t, shared.IsConflict(err))
	attempt, err := inv.FindAttempt(pending.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusRejected, attempt.Status)
}

func TestReconciler_CurrencyMismatch(t *testing.T) {
	ledger, r := newTestLedger()
	inv := createTestInvoice(t, ledger)
	submitAndConfirm(t, r, inv, usd("40"))
	version := inv.GetVersion()
	attempts := len(inv.Attempts)

	_, err := r.Submit(inv, idr("100000"), "slip.jpg", uuid.New())

	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "CURRENCY_MISMATCH", de.Code)
	assert.Equal(t, version, inv.GetVersion())
	assert.Len(t, inv.Attempts, attempts)
	assert.True(t, inv.RemainingForeign.Equals(usd("60")))
}

func TestReconciler_ExactRemainingSettles(t *testing.T) {
	ledger, r := newTestLedger()
	inv := createTestInvoice(t, ledger)
	submitAndConfirm(t, r, inv, usd("12.34"))

	submitAndConfirm(t, r, inv, inv.RemainingForeign)

	assert.Equal(t, InvoiceStatusSettled, inv.Status)
	assert.True(t, inv.RemainingHome.IsZero())
}

// ============================================
// Submit / confirm / reject rules
// ============================================

func TestReconciler_Submit(t *testing.T) {
	ledger, r := newTestLedger()

	tests := []struct {
		name   string
		amount valueobject.Money
		code   string
	}{
		{"zero amount", usd("0"), "INVALID_AMOUNT"},
		{"negative amount", usd("-5"), "INVALID_AMOUNT"},
		{"sub-cent precision", usd("1.001"), "INVALID_AMOUNT"},
		{"exceeds remaining", usd("100.01"), "EXCEEDS_REMAINING"},
		{"currency off invoice", valueobject.MustMoney("5", valueobject.EUR), "CURRENCY_NOT_ON_INVOICE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := createTestInvoice(t, ledger)
			_, err := r.Submit(inv, tt.amount, "", uuid.New())
			var de *shared.DomainError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.code, de.Code)
			assert.True(t, shared.IsValidation(err))
			assert.Empty(t, inv.Attempts)
		})
	}

	t.Run("records waiting attempt", func(t *testing.T) {
		inv := createTestInvoice(t, ledger)
		attempt, err := r.Submit(inv, idr("250000"), " slip.png ", uuid.New())
		require.NoError(t, err)
		assert.Equal(t, PaymentStatusWaitingConfirmation, attempt.Status)
		assert.Equal(t, "slip.png", attempt.EvidenceRef)
		assert.Equal(t, openedAt, attempt.SubmittedAt)
		assert.Len(t, inv.PendingAttempts(), 1)
		assert.False(t, inv.IsSettlementLocked())
		assert.Equal(t, InvoiceStatusProforma, inv.Status)
	})

	t.Run("settled invoice refuses payments", func(t *testing.T) {
		inv := createTestInvoice(t, ledger)
		submitAndConfirm(t, r, inv, usd("100"))
		_, err := r.Submit(inv, usd("1"), "", uuid.New())
		assert.Equal(t, shared.KindInvalidState, shared.KindOf(err))
	})
}

func TestReconciler_ConfirmRechecksBalance(t *testing.T) {
	ledger, r := newTestLedger()
	inv := createTestInvoice(t, ledger)

	first, err := r.Submit(inv, usd("70"), "", uuid.New())
	require.NoError(t, err)
	second, err := r.Submit(inv, usd("70"), "", uuid.New())
	require.NoError(t, err)

	_, err = r.Confirm(inv, first.ID, uuid.New())
	require.NoError(t, err)

	_, err = r.Confirm(inv, second.ID, uuid.New())
	assert.True(t, shared.IsValidation(err))
	attempt, err := inv.FindAttempt(second.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusWaitingConfirmation, attempt.Status)
	assert.True(t, inv.RemainingForeign.Equals(usd("30")))
}

func TestReconciler_ConfirmRechecksCurrencyLock(t *testing.T) {
	ledger, r := newTestLedger()
	inv := createTestInvoice(t, ledger)

	home, err := r.Submit(inv, idr("100000"), "", uuid.New())
	require.NoError(t, err)
	foreign, err := r.Submit(inv, usd("10"), "", uuid.New())
	require.NoError(t, err)

	_, err = r.Confirm(inv, foreign.ID, uuid.New())
	require.NoError(t, err)

	_, err = r.Confirm(inv, home.ID, uuid.New())
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "CURRENCY_MISMATCH", de.Code)
}

func TestReconciler_ReviewTwiceIsConflict(t *testing.T) {
	ledger, r := newTestLedger()
	inv := createTestInvoice(t, ledger)
	attempt := submitAndConfirm(t, r, inv, usd("40"))
	remaining := inv.RemainingForeign
	version := inv.GetVersion()

	_, err := r.Confirm(inv, attempt.ID, uuid.New())
	assert.True(t, shared.IsConflict(err))
	_, err = r.Reject(inv, attempt.ID, uuid.New(), "duplicate")
	assert.True(t, shared.IsConflict(err))

	assert.True(t, inv.RemainingForeign.Equals(remaining))
	assert.Equal(t, version, inv.GetVersion())
}

func TestReconciler_UnknownAttempt(t *testing.T) {
	ledger, r := newTestLedger()
	inv := createTestInvoice(t, ledger)
	_, err := r.Confirm(inv, uuid.New(), uuid.New())
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
}

func TestReconciler_RejectRequiresReason(t *testing.T) {
	ledger, r := newTestLedger()
	inv := createTestInvoice(t, ledger)
	attempt, err := r.Submit(inv, usd("10"), "", uuid.New())
	require.NoError(t, err)

	_, err = r.Reject(inv, attempt.ID, uuid.New(), "")
	assert.True(t, shared.IsValidation(err))
	assert.Equal(t, PaymentStatusWaitingConfirmation, inv.Attempts[0].Status)
}

func TestReconciler_PaymentOnIssuedInvoice(t *testing.T) {
	ledger, r := newTestLedger()
	inv := createTestInvoice(t, ledger)
	require.NoError(t, ledger.Issue(inv, nil))

	submitAndConfirm(t, r, inv, idr("250000"))

	assert.Equal(t, InvoiceStatusPartiallyPaid, inv.Status)
	assert.Equal(t, valueobject.IDR, inv.SettlementCurrency)
	assert.True(t, inv.RemainingHome.Equals(idr("750000")))
	assert.True(t, inv.RemainingForeign.Equals(usd("75")))
}

// ============================================
// Invariants
// ============================================

// TestReconciler_RandomSequencesKeepBalances drives random submit, confirm
// and reject sequences and checks the balance invariants after every step.
func TestReconciler_RandomSequencesKeepBalances(t *testing.T) {
	rng := rand.New(rand.NewSource(20250601))
	conv := valueobject.NewRateConverter()

	for run := 0; run < 50; run++ {
		ledger, r := newTestLedger()
		inv := createTestInvoice(t, ledger)
		prevHome, prevForeign := inv.RemainingHome, inv.RemainingForeign

		for step := 0; step < 20; step++ {
			switch rng.Intn(3) {
			case 0:
				currency := valueobject.USD
				if rng.Intn(2) == 0 {
					currency = valueobject.IDR
				}
				amount := decimal.NewFromInt(int64(rng.Intn(40) + 1))
				if currency == valueobject.IDR {
					amount = amount.Mul(decimal.NewFromInt(10000))
				}
				m, err := valueobject.NewMoney(amount, currency)
				require.NoError(t, err)
				_, _ = r.Submit(inv, m, "", uuid.New())
			case 1:
				if pending := inv.PendingAttempts(); len(pending) > 0 {
					_, _ = r.Confirm(inv, pending[rng.Intn(len(pending))].ID, uuid.New())
				}
			case 2:
				if pending := inv.PendingAttempts(); len(pending) > 0 {
					_, _ = r.Reject(inv, pending[rng.Intn(len(pending))].ID, uuid.New(), "not received")
				}
			}

			require.False(t, inv.RemainingHome.IsNegative())
			require.False(t, inv.RemainingForeign.IsNegative())
			require.True(t, inv.RemainingHome.Amount().LessThanOrEqual(prevHome.Amount()))
			require.True(t, inv.RemainingForeign.Amount().LessThanOrEqual(prevForeign.Amount()))
			prevHome, prevForeign = inv.RemainingHome, inv.RemainingForeign

			confirmed := inv.ConfirmedTotal()
			homeEquivalent, err := conv.Convert(confirmed, valueobject.IDR, inv.Rate)
			require.NoError(t, err)
			paidHome := inv.HomeTotal.Amount().Sub(inv.RemainingHome.Amount())
			require.True(t, paidHome.Equal(homeEquivalent.Amount()),
				"run %d step %d: paid %s, confirmed %s", run, step, paidHome, homeEquivalent)
		}
	}
}
