package settlement

import (
	"time"

	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeInvoice is the aggregate type for invoice events
const AggregateTypeInvoice = "Invoice"

// Event type constants for invoice events
const (
	EventTypeInvoiceOpened        = "InvoiceOpened"
	EventTypeInvoiceIssued        = "InvoiceIssued"
	EventTypeInvoicePartiallyPaid = "InvoicePartiallyPaid"
	EventTypeInvoiceSettled       = "InvoiceSettled"
	EventTypeInvoiceNeedsRevision = "InvoiceNeedsRevision"
	EventTypePaymentSubmitted     = "PaymentSubmitted"
	EventTypePaymentConfirmed     = "PaymentConfirmed"
	EventTypePaymentRejected      = "PaymentRejected"
)

func newInvoiceBase(eventType string, inv *Invoice) shared.EventHeader {
	return shared.NewEventHeader(eventType, AggregateTypeInvoice, inv.ID, inv.TenantID, inv.UpdatedAt)
}

// InvoiceOpenedEvent is raised when a Proforma invoice is opened
type InvoiceOpenedEvent struct {
	shared.EventHeader
	InvoiceID       uuid.UUID       `json:"invoice_id"`
	InvoiceNumber   string          `json:"invoice_number"`
	ShipmentID      uuid.UUID       `json:"shipment_id"`
	HomeCurrency    string          `json:"home_currency"`
	ForeignCurrency string          `json:"foreign_currency"`
	HomeTotal       decimal.Decimal `json:"home_total"`
	ForeignTotal    decimal.Decimal `json:"foreign_total"`
	ExchangeRate    decimal.Decimal `json:"exchange_rate"`
}

// EventType returns the event type name
func (e *InvoiceOpenedEvent) EventType() string {
	return EventTypeInvoiceOpened
}

// NewInvoiceOpenedEvent creates a new InvoiceOpenedEvent
func NewInvoiceOpenedEvent(inv *Invoice) *InvoiceOpenedEvent {
	return &InvoiceOpenedEvent{
		EventHeader:     newInvoiceBase(EventTypeInvoiceOpened, inv),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		ShipmentID:      inv.ShipmentID,
		HomeCurrency:    inv.Rate.Home.String(),
		ForeignCurrency: inv.Rate.Foreign.String(),
		HomeTotal:       inv.HomeTotal.Amount(),
		ForeignTotal:    inv.ForeignTotal.Amount(),
		ExchangeRate:    inv.Rate.Rate,
	}
}

// InvoiceIssuedEvent is raised when an invoice leaves Proforma
type InvoiceIssuedEvent struct {
	shared.EventHeader
	InvoiceID     uuid.UUID  `json:"invoice_id"`
	InvoiceNumber string     `json:"invoice_number"`
	ShipmentID    uuid.UUID  `json:"shipment_id"`
	DueDate       *time.Time `json:"due_date,omitempty"`
}

// EventType returns the event type name
func (e *InvoiceIssuedEvent) EventType() string {
	return EventTypeInvoiceIssued
}

// NewInvoiceIssuedEvent creates a new InvoiceIssuedEvent
func NewInvoiceIssuedEvent(inv *Invoice) *InvoiceIssuedEvent {
	return &InvoiceIssuedEvent{
		EventHeader:   newInvoiceBase(EventTypeInvoiceIssued, inv),
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		ShipmentID:    inv.ShipmentID,
		DueDate:       inv.DueDate,
	}
}

// InvoiceBalanceEvent carries the balances after a payment changed them.
// It backs both InvoicePartiallyPaid and InvoiceSettled.
type InvoiceBalanceEvent struct {
	shared.EventHeader
	InvoiceID          uuid.UUID       `json:"invoice_id"`
	InvoiceNumber      string          `json:"invoice_number"`
	SettlementCurrency string          `json:"settlement_currency"`
	RemainingHome      decimal.Decimal `json:"remaining_home"`
	RemainingForeign   decimal.Decimal `json:"remaining_foreign"`
}

// InvoicePartiallyPaidEvent is raised when the first payment is confirmed
type InvoicePartiallyPaidEvent struct {
	InvoiceBalanceEvent
}

// EventType returns the event type name
func (e *InvoicePartiallyPaidEvent) EventType() string {
	return EventTypeInvoicePartiallyPaid
}

// InvoiceSettledEvent is raised when both balances reach zero
type InvoiceSettledEvent struct {
	InvoiceBalanceEvent
}

// EventType returns the event type name
func (e *InvoiceSettledEvent) EventType() string {
	return EventTypeInvoiceSettled
}

func newBalanceEvent(eventType string, inv *Invoice) InvoiceBalanceEvent {
	return InvoiceBalanceEvent{
		EventHeader:        newInvoiceBase(eventType, inv),
		InvoiceID:          inv.ID,
		InvoiceNumber:      inv.InvoiceNumber,
		SettlementCurrency: inv.SettlementCurrency.String(),
		RemainingHome:      inv.RemainingHome.Amount(),
		RemainingForeign:   inv.RemainingForeign.Amount(),
	}
}

// NewInvoicePartiallyPaidEvent creates a new InvoicePartiallyPaidEvent
func NewInvoicePartiallyPaidEvent(inv *Invoice) *InvoicePartiallyPaidEvent {
	return &InvoicePartiallyPaidEvent{newBalanceEvent(EventTypeInvoicePartiallyPaid, inv)}
}

// NewInvoiceSettledEvent creates a new InvoiceSettledEvent
func NewInvoiceSettledEvent(inv *Invoice) *InvoiceSettledEvent {
	return &InvoiceSettledEvent{newBalanceEvent(EventTypeInvoiceSettled, inv)}
}

// InvoiceNeedsRevisionEvent is raised when an invoice is sent back for revision
type InvoiceNeedsRevisionEvent struct {
	shared.EventHeader
	InvoiceID     uuid.UUID `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	Reason        string    `json:"reason"`
}

// EventType returns the event type name
func (e *InvoiceNeedsRevisionEvent) EventType() string {
	return EventTypeInvoiceNeedsRevision
}

// NewInvoiceNeedsRevisionEvent creates a new InvoiceNeedsRevisionEvent
func NewInvoiceNeedsRevisionEvent(inv *Invoice) *InvoiceNeedsRevisionEvent {
	return &InvoiceNeedsRevisionEvent{
		EventHeader:   newInvoiceBase(EventTypeInvoiceNeedsRevision, inv),
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		Reason:        inv.RevisionReason,
	}
}

// PaymentEvent describes a change to one payment attempt
type PaymentEvent struct {
	shared.EventHeader
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	AttemptID     uuid.UUID       `json:"attempt_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        PaymentStatus   `json:"status"`
	Reason        string          `json:"reason,omitempty"`
}

func newPaymentEvent(eventType string, inv *Invoice, a *PaymentAttempt) PaymentEvent {
	return PaymentEvent{
		EventHeader:   newInvoiceBase(eventType, inv),
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		AttemptID:     a.ID,
		Amount:        a.Amount.Amount(),
		Currency:      a.Amount.Currency().String(),
		Status:        a.Status,
		Reason:        a.RejectionReason,
	}
}

// PaymentSubmittedEvent is raised when proof of payment is submitted
type PaymentSubmittedEvent struct {
	PaymentEvent
}

// EventType returns the event type name
func (e *PaymentSubmittedEvent) EventType() string {
	return EventTypePaymentSubmitted
}

// NewPaymentSubmittedEvent creates a new PaymentSubmittedEvent
func NewPaymentSubmittedEvent(inv *Invoice, a *PaymentAttempt) *PaymentSubmittedEvent {
	return &PaymentSubmittedEvent{newPaymentEvent(EventTypePaymentSubmitted, inv, a)}
}

// PaymentConfirmedEvent is raised when a reviewer confirms a payment
type PaymentConfirmedEvent struct {
	PaymentEvent
}

// EventType returns the event type name
func (e *PaymentConfirmedEvent) EventType() string {
	return EventTypePaymentConfirmed
}

// NewPaymentConfirmedEvent creates a new PaymentConfirmedEvent
func NewPaymentConfirmedEvent(inv *Invoice, a *PaymentAttempt) *PaymentConfirmedEvent {
	return &PaymentConfirmedEvent{newPaymentEvent(EventTypePaymentConfirmed, inv, a)}
}

// PaymentRejectedEvent is raised when a reviewer rejects a payment
type PaymentRejectedEvent struct {
	PaymentEvent
}

// EventType returns the event type name
func (e *PaymentRejectedEvent) EventType() string {
	return EventTypePaymentRejected
}

// NewPaymentRejectedEvent creates a new PaymentRejectedEvent
func NewPaymentRejectedEvent(inv *Invoice, a *PaymentAttempt) *PaymentRejectedEvent {
	return &PaymentRejectedEvent{newPaymentEvent(EventTypePaymentRejected, inv, a)}
}
