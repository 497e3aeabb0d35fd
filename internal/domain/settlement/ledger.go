package settlement

import (
	"fmt"
	"strings"
	"time"

	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// OpenInvoiceParams carries the inputs for a new Proforma invoice
type OpenInvoiceParams struct {
	TenantID          uuid.UUID
	InvoiceNumber     string
	ShipmentID        uuid.UUID
	ShipmentReference string
	// Total is given in either currency of Rate; the other side is converted.
	Total     valueobject.Money
	Rate      valueobject.ExchangeRate
	DueDate   *time.Time
	CreatedBy uuid.UUID
}

// InvoiceLedger owns invoice status and the dual-currency balances. All
// balance arithmetic goes through RecomputeAfterPayment.
type InvoiceLedger struct {
	converter valueobject.CurrencyConverter
	clock     shared.Clock
}

// NewInvoiceLedger creates an InvoiceLedger
func NewInvoiceLedger(converter valueobject.CurrencyConverter, clock shared.Clock) *InvoiceLedger {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &InvoiceLedger{converter: converter, clock: clock}
}

// Open creates a Proforma invoice whose remaining balances equal its totals
func (l *InvoiceLedger) Open(p OpenInvoiceParams) (*Invoice, error) {
	number := strings.TrimSpace(p.InvoiceNumber)
	if number == "" {
		return nil, shared.NewValidationError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if len(number) > 64 {
		return nil, shared.NewValidationError("INVALID_INVOICE_NUMBER", "Invoice number cannot exceed 64 characters")
	}
	if p.ShipmentID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_SHIPMENT", "Invoice must reference a shipment")
	}
	if !p.Rate.Rate.IsPositive() || p.Rate.Home == "" || p.Rate.Foreign == "" {
		return nil, shared.NewValidationError("INVALID_EXCHANGE_RATE", "Exchange rate must name both currencies and be positive")
	}
	if !p.Total.IsPositive() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Invoice total must be positive")
	}
	counter, err := p.Rate.Counterpart(p.Total.Currency())
	if err != nil {
		return nil, shared.NewValidationError("CURRENCY_NOT_ON_INVOICE", err.Error())
	}

	total := p.Total.Rounded()
	converted, err := l.converter.Convert(total, counter, p.Rate)
	if err != nil {
		return nil, shared.NewValidationError("CONVERSION_FAILED", err.Error())
	}

	now := l.clock.Now()
	inv := &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(p.TenantID, now),
		InvoiceNumber:       number,
		ShipmentID:          p.ShipmentID,
		ShipmentReference:   p.ShipmentReference,
		Status:              InvoiceStatusProforma,
		Rate:                p.Rate,
		DueDate:             p.DueDate,
	}
	if total.Currency() == p.Rate.Home {
		inv.HomeTotal, inv.ForeignTotal = total, converted
	} else {
		inv.HomeTotal, inv.ForeignTotal = converted, total
	}
	inv.RemainingHome, inv.RemainingForeign = inv.HomeTotal, inv.ForeignTotal
	inv.SetCreatedBy(p.CreatedBy)
	inv.AddDomainEvent(NewInvoiceOpenedEvent(inv))
	return inv, nil
}

// Issue moves a Proforma invoice to Issued and re-affirms remaining balances
// at the full totals. The due date is decided by the caller.
func (l *InvoiceLedger) Issue(inv *Invoice, dueDate *time.Time) error {
	if inv.Status != InvoiceStatusProforma {
		return shared.NewInvalidStateError("INVALID_STATE",
			fmt.Sprintf("Cannot issue invoice %s in %s status", inv.InvoiceNumber, inv.Status))
	}
	if inv.ConfirmedTotal().IsPositive() {
		return shared.NewInvalidStateError("INVALID_STATE",
			fmt.Sprintf("Cannot issue invoice %s after payments were confirmed", inv.InvoiceNumber))
	}
	now := l.clock.Now()
	inv.Status = InvoiceStatusIssued
	inv.RemainingHome, inv.RemainingForeign = inv.HomeTotal, inv.ForeignTotal
	inv.IssuedAt = &now
	if dueDate != nil {
		inv.DueDate = dueDate
	}
	inv.Touch(now)
	inv.IncrementVersion()
	inv.AddDomainEvent(NewInvoiceIssuedEvent(inv))
	return nil
}

// MarkNeedsRevision retires an invoice that has taken no confirmed payment
func (l *InvoiceLedger) MarkNeedsRevision(inv *Invoice, reason string) error {
	if inv.Status != InvoiceStatusProforma && inv.Status != InvoiceStatusIssued {
		return shared.NewInvalidStateError("INVALID_STATE",
			fmt.Sprintf("Cannot revise invoice %s in %s status", inv.InvoiceNumber, inv.Status))
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.NewValidationError("INVALID_REASON", "Revision reason is required")
	}
	now := l.clock.Now()
	inv.Status = InvoiceStatusNeedsRevision
	inv.RevisionReason = reason
	inv.Touch(now)
	inv.IncrementVersion()
	inv.AddDomainEvent(NewInvoiceNeedsRevisionEvent(inv))
	return nil
}

// RecomputeAfterPayment derives both remaining balances from the confirmed
// total. The settlement side is exact; the other side is its converted,
// rounded equivalent clamped at zero. A negative settlement side is a
// ConsistencyError and leaves the invoice untouched.
func (l *InvoiceLedger) RecomputeAfterPayment(inv *Invoice, confirmedTotal valueobject.Money) error {
	remainingHome, remainingForeign := inv.HomeTotal, inv.ForeignTotal
	paid := confirmedTotal.IsPositive()

	if paid || inv.IsSettlementLocked() {
		if confirmedTotal.IsNegative() {
			return shared.NewConsistencyError("NEGATIVE_PAYMENT_TOTAL",
				fmt.Sprintf("Invoice %s has a negative confirmed total %s", inv.InvoiceNumber, confirmedTotal))
		}
		if inv.IsSettlementLocked() && confirmedTotal.Currency() != inv.SettlementCurrency {
			return shared.NewConsistencyError("SETTLEMENT_CURRENCY_DRIFT",
				fmt.Sprintf("Invoice %s settles in %s but confirmed total is in %s", inv.InvoiceNumber, inv.SettlementCurrency, confirmedTotal.Currency()))
		}
		settleTotal, err := inv.TotalIn(confirmedTotal.Currency())
		if err != nil {
			return shared.NewConsistencyError("SETTLEMENT_CURRENCY_DRIFT", err.Error())
		}
		remSettle, err := settleTotal.Subtract(confirmedTotal)
		if err != nil {
			return shared.NewConsistencyError("SETTLEMENT_CURRENCY_DRIFT", err.Error())
		}
		if remSettle.IsNegative() {
			return shared.NewConsistencyError("NEGATIVE_REMAINING",
				fmt.Sprintf("Invoice %s would be overpaid: remaining %s", inv.InvoiceNumber, remSettle))
		}
		counter, _ := inv.Rate.Counterpart(remSettle.Currency())
		remOther, err := l.converter.Convert(remSettle, counter, inv.Rate)
		if err != nil {
			return shared.NewConsistencyError("CONVERSION_FAILED", err.Error())
		}
		remOther = remOther.ClampZero()
		if remSettle.Currency() == inv.Rate.Home {
			remainingHome, remainingForeign = remSettle, remOther
		} else {
			remainingHome, remainingForeign = remOther, remSettle
		}
	}

	now := l.clock.Now()
	inv.RemainingHome, inv.RemainingForeign = remainingHome, remainingForeign
	inv.Touch(now)
	previous := inv.Status

	switch {
	case remainingHome.IsZero() && remainingForeign.IsZero():
		inv.Status = InvoiceStatusSettled
		if previous != InvoiceStatusSettled {
			inv.SettledAt = &now
			inv.AddDomainEvent(NewInvoiceSettledEvent(inv))
		}
	case paid:
		inv.Status = InvoiceStatusPartiallyPaid
		if previous != InvoiceStatusPartiallyPaid {
			inv.AddDomainEvent(NewInvoicePartiallyPaidEvent(inv))
		}
	case previous == InvoiceStatusPartiallyPaid:
		if inv.IssuedAt != nil {
			inv.Status = InvoiceStatusIssued
		} else {
			inv.Status = InvoiceStatusProforma
		}
	}
	return nil
}
