package settlement

import (
	"fmt"
	"strings"

	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// PaymentReconciler submits and reviews payment attempts against an
// invoice. Every rejected request leaves the invoice unchanged.
type PaymentReconciler struct {
	ledger *InvoiceLedger
	clock  shared.Clock
}

// NewPaymentReconciler creates a PaymentReconciler over ledger
func NewPaymentReconciler(ledger *InvoiceLedger, clock shared.Clock) *PaymentReconciler {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &PaymentReconciler{ledger: ledger, clock: clock}
}

// Submit records a payment claim awaiting confirmation
func (r *PaymentReconciler) Submit(inv *Invoice, amount valueobject.Money, evidenceRef string, submittedBy uuid.UUID) (*PaymentAttempt, error) {
	if !inv.Status.AcceptsPayments() {
		return nil, shared.NewInvalidStateError("INVALID_STATE",
			fmt.Sprintf("Invoice %s in %s status does not accept payments", inv.InvoiceNumber, inv.Status))
	}
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if !amount.Rounded().Equals(amount) {
		return nil, shared.NewValidationError("INVALID_AMOUNT",
			fmt.Sprintf("Payment amount %s has more precision than %s allows", amount.Amount(), amount.Currency()))
	}
	if err := r.checkAgainstBalance(inv, amount); err != nil {
		return nil, err
	}

	now := r.clock.Now()
	inv.Attempts = append(inv.Attempts, newPaymentAttempt(inv.ID, amount, strings.TrimSpace(evidenceRef), submittedBy, now))
	attempt := &inv.Attempts[len(inv.Attempts)-1]
	inv.Touch(now)
	inv.IncrementVersion()
	inv.AddDomainEvent(NewPaymentSubmittedEvent(inv, attempt))
	return attempt, nil
}

// Confirm accepts a waiting attempt, locks the settlement currency on first
// confirmation and recomputes the remaining balances.
func (r *PaymentReconciler) Confirm(inv *Invoice, attemptID, reviewer uuid.UUID) (*PaymentAttempt, error) {
	attempt, err := inv.FindAttempt(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status.IsTerminal() {
		return nil, shared.NewConflictError("PAYMENT_ALREADY_REVIEWED",
			fmt.Sprintf("Payment attempt %s is already %s", attempt.ID, attempt.Status))
	}
	if !inv.Status.AcceptsPayments() {
		return nil, shared.NewInvalidStateError("INVALID_STATE",
			fmt.Sprintf("Invoice %s in %s status does not accept payments", inv.InvoiceNumber, inv.Status))
	}
	// Balances may have moved since submission.
	if err := r.checkAgainstBalance(inv, attempt.Amount); err != nil {
		return nil, err
	}

	state := inv.snapshot()
	now := r.clock.Now()
	if !inv.IsSettlementLocked() {
		inv.SettlementCurrency = attempt.Amount.Currency()
	}
	attempt.review(PaymentStatusConfirmed, reviewer, "", now)

	if err := r.ledger.RecomputeAfterPayment(inv, inv.ConfirmedTotal()); err != nil {
		inv.restore(state)
		return nil, err
	}
	inv.IncrementVersion()
	inv.AddDomainEvent(NewPaymentConfirmedEvent(inv, attempt))
	return attempt, nil
}

// Reject declines a waiting attempt; it is excluded from every future sum
func (r *PaymentReconciler) Reject(inv *Invoice, attemptID, reviewer uuid.UUID, reason string) (*PaymentAttempt, error) {
	attempt, err := inv.FindAttempt(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status.IsTerminal() {
		return nil, shared.NewConflictError("PAYMENT_ALREADY_REVIEWED",
			fmt.Sprintf("Payment attempt %s is already %s", attempt.ID, attempt.Status))
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, shared.NewValidationError("INVALID_REASON", "Rejection reason is required")
	}

	state := inv.snapshot()
	now := r.clock.Now()
	attempt.review(PaymentStatusRejected, reviewer, reason, now)

	if !inv.Status.IsTerminal() {
		if err := r.ledger.RecomputeAfterPayment(inv, inv.ConfirmedTotal()); err != nil {
			inv.restore(state)
			return nil, err
		}
	}
	inv.Touch(now)
	inv.IncrementVersion()
	inv.AddDomainEvent(NewPaymentRejectedEvent(inv, attempt))
	return attempt, nil
}

// checkAgainstBalance enforces the currency lock and the remaining balance
func (r *PaymentReconciler) checkAgainstBalance(inv *Invoice, amount valueobject.Money) error {
	if inv.IsSettlementLocked() && amount.Currency() != inv.SettlementCurrency {
		return shared.NewValidationError("CURRENCY_MISMATCH",
			fmt.Sprintf("Invoice %s settles in %s; payment in %s is not accepted", inv.InvoiceNumber, inv.SettlementCurrency, amount.Currency()))
	}
	remaining, err := inv.RemainingIn(amount.Currency())
	if err != nil {
		return err
	}
	if exceeds, _ := amount.GreaterThan(remaining); exceeds {
		return shared.NewValidationError("EXCEEDS_REMAINING",
			fmt.Sprintf("Payment %s exceeds remaining balance %s", amount, remaining))
	}
	return nil
}
