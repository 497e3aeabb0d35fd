package settlement

import (
	"fmt"
	"time"

	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// InvoiceStatus represents the lifecycle status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusProforma      InvoiceStatus = "PROFORMA"
	InvoiceStatusIssued        InvoiceStatus = "ISSUED"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusSettled       InvoiceStatus = "SETTLED"
	InvoiceStatusNeedsRevision InvoiceStatus = "NEEDS_REVISION"
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusProforma, InvoiceStatusIssued, InvoiceStatusPartiallyPaid,
		InvoiceStatusSettled, InvoiceStatusNeedsRevision:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the invoice is in a terminal state
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusSettled || s == InvoiceStatusNeedsRevision
}

// AcceptsPayments returns true if payments may be submitted or confirmed
func (s InvoiceStatus) AcceptsPayments() bool {
	return s == InvoiceStatusProforma || s == InvoiceStatusIssued || s == InvoiceStatusPartiallyPaid
}

// IsCommitted returns true once the invoice has gone beyond a draft
func (s InvoiceStatus) IsCommitted() bool {
	return s == InvoiceStatusIssued || s == InvoiceStatusPartiallyPaid || s == InvoiceStatusSettled
}

// IsInForce reports whether the invoice still bills its shipment. A shipment
// has at most one invoice in force; only NEEDS_REVISION frees it.
func (s InvoiceStatus) IsInForce() bool {
	return s != InvoiceStatusNeedsRevision
}

// InForce returns the invoice among invoices that still bills the shipment,
// or nil when every one of them was retired for revision
func InForce(invoices []Invoice) *Invoice {
	for i := range invoices {
		if invoices[i].Status.IsInForce() {
			return &invoices[i]
		}
	}
	return nil
}

// AnyCommitted reports whether money has been committed through any of invoices
func AnyCommitted(invoices []Invoice) bool {
	for i := range invoices {
		if invoices[i].Status.IsCommitted() {
			return true
		}
	}
	return false
}

// Invoice is the settlement ledger of one shipment: totals and remaining
// balances kept in both currencies of Rate, plus the payment attempts made
// against it.
type Invoice struct {
	shared.TenantAggregateRoot
	InvoiceNumber     string
	ShipmentID        uuid.UUID
	ShipmentReference string
	Status            InvoiceStatus
	Rate              valueobject.ExchangeRate
	HomeTotal         valueobject.Money
	ForeignTotal      valueobject.Money
	// SettlementCurrency is empty until the first payment is confirmed and
	// never changes afterwards.
	SettlementCurrency valueobject.Currency
	RemainingHome      valueobject.Money
	RemainingForeign   valueobject.Money
	DueDate            *time.Time
	IssuedAt           *time.Time
	SettledAt          *time.Time
	RevisionReason     string
	Attempts           []PaymentAttempt
}

// TotalIn returns the invoice total in c
func (inv *Invoice) TotalIn(c valueobject.Currency) (valueobject.Money, error) {
	switch c {
	case inv.Rate.Home:
		return inv.HomeTotal, nil
	case inv.Rate.Foreign:
		return inv.ForeignTotal, nil
	}
	return valueobject.Money{}, shared.NewValidationError("CURRENCY_NOT_ON_INVOICE",
		fmt.Sprintf("Invoice %s is billed in %s/%s, not %s", inv.InvoiceNumber, inv.Rate.Home, inv.Rate.Foreign, c))
}

// RemainingIn returns the remaining balance in c
func (inv *Invoice) RemainingIn(c valueobject.Currency) (valueobject.Money, error) {
	switch c {
	case inv.Rate.Home:
		return inv.RemainingHome, nil
	case inv.Rate.Foreign:
		return inv.RemainingForeign, nil
	}
	return valueobject.Money{}, shared.NewValidationError("CURRENCY_NOT_ON_INVOICE",
		fmt.Sprintf("Invoice %s is billed in %s/%s, not %s", inv.InvoiceNumber, inv.Rate.Home, inv.Rate.Foreign, c))
}

// IsSettlementLocked returns true once a confirmed payment fixed the currency
func (inv *Invoice) IsSettlementLocked() bool {
	return inv.SettlementCurrency != ""
}

// FindAttempt returns the attempt with the given ID
func (inv *Invoice) FindAttempt(id uuid.UUID) (*PaymentAttempt, error) {
	for i := range inv.Attempts {
		if inv.Attempts[i].ID == id {
			return &inv.Attempts[i], nil
		}
	}
	return nil, &shared.DomainError{
		Code:    "PAYMENT_NOT_FOUND",
		Message: fmt.Sprintf("Payment attempt %s not found on invoice %s", id, inv.InvoiceNumber),
		Kind:    shared.KindNotFound,
	}
}

// ConfirmedTotal sums confirmed attempts in the settlement currency. Before
// the currency is locked it is zero in the home currency.
func (inv *Invoice) ConfirmedTotal() valueobject.Money {
	if !inv.IsSettlementLocked() {
		return valueobject.Zero(inv.Rate.Home)
	}
	total := valueobject.Zero(inv.SettlementCurrency)
	for _, a := range inv.Attempts {
		if a.Status != PaymentStatusConfirmed {
			continue
		}
		// Attempts are only confirmed in the locked currency.
		total, _ = total.Add(a.Amount)
	}
	return total
}

// PendingAttempts returns attempts still awaiting review
func (inv *Invoice) PendingAttempts() []PaymentAttempt {
	var out []PaymentAttempt
	for _, a := range inv.Attempts {
		if a.Status == PaymentStatusWaitingConfirmation {
			out = append(out, a)
		}
	}
	return out
}

// ledgerState is the mutable part of an invoice touched by payment review
type ledgerState struct {
	status             InvoiceStatus
	settlementCurrency valueobject.Currency
	remainingHome      valueobject.Money
	remainingForeign   valueobject.Money
	settledAt          *time.Time
	attempts           []PaymentAttempt
}

func (inv *Invoice) snapshot() ledgerState {
	attempts := make([]PaymentAttempt, len(inv.Attempts))
	copy(attempts, inv.Attempts)
	return ledgerState{
		status:             inv.Status,
		settlementCurrency: inv.SettlementCurrency,
		remainingHome:      inv.RemainingHome,
		remainingForeign:   inv.RemainingForeign,
		settledAt:          inv.SettledAt,
		attempts:           attempts,
	}
}

func (inv *Invoice) restore(s ledgerState) {
	inv.Status = s.status
	inv.SettlementCurrency = s.settlementCurrency
	inv.RemainingHome = s.remainingHome
	inv.RemainingForeign = s.remainingForeign
	inv.SettledAt = s.settledAt
	inv.Attempts = s.attempts
}
