package settlement

import (
	"time"

	"github.com/freightdesk/backend/internal/domain/settlement"
	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// OpenInvoiceRequest represents a request to open a Proforma invoice.
// Amount is given in Currency, which must be the home currency or
// ForeignCurrency. ExchangeRate is the number of home units per foreign unit.
type OpenInvoiceRequest struct {
	InvoiceNumber     string     `json:"invoice_number" binding:"required,min=1,max=64"`
	ShipmentReference string     `json:"shipment_reference" binding:"required,max=64"`
	Amount            string     `json:"amount" binding:"required,positive_decimal"`
	Currency          string     `json:"currency" binding:"required,iso4217"`
	ForeignCurrency   string     `json:"foreign_currency" binding:"required,iso4217"`
	ExchangeRate      string     `json:"exchange_rate" binding:"required,positive_decimal"`
	DueDate           *time.Time `json:"due_date"`
}

// IssueInvoiceRequest represents a request to issue an invoice
type IssueInvoiceRequest struct {
	DueDate *time.Time `json:"due_date"`
}

// RevisionRequest represents a request to retire an invoice for revision
type RevisionRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// SubmitPaymentRequest represents a payer's claim of payment
type SubmitPaymentRequest struct {
	Amount      string `json:"amount" binding:"required,positive_decimal"`
	Currency    string `json:"currency" binding:"required,iso4217"`
	EvidenceRef string `json:"evidence_ref" binding:"max=512"`
}

// RejectPaymentRequest represents a reviewer declining a payment attempt
type RejectPaymentRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// InvoiceListQuery represents the list filters accepted by the API
type InvoiceListQuery struct {
	Search     string     `form:"search"`
	Status     string     `form:"status" binding:"omitempty,oneof=PROFORMA ISSUED PARTIALLY_PAID SETTLED NEEDS_REVISION"`
	ShipmentID *uuid.UUID `form:"shipment_id"`
	Page       int        `form:"page" binding:"omitempty,min=1"`
	PageSize   int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy    string     `form:"order_by"`
	OrderDir   string     `form:"order_dir" binding:"omitempty,oneof=asc desc ASC DESC"`
}

// ToFilter converts the query into a repository filter
func (q InvoiceListQuery) ToFilter() settlement.InvoiceFilter {
	f := settlement.InvoiceFilter{Filter: shared.DefaultFilter(), ShipmentID: q.ShipmentID}
	f.Search = q.Search
	if q.Page > 0 {
		f.Page = q.Page
	}
	if q.PageSize > 0 {
		f.PageSize = q.PageSize
	}
	if q.OrderBy != "" {
		f.OrderBy = q.OrderBy
	}
	if q.OrderDir != "" {
		f.OrderDir = q.OrderDir
	}
	if q.Status != "" {
		status := settlement.InvoiceStatus(q.Status)
		f.Status = &status
	}
	return f
}

// PaymentAttemptResponse represents one payment attempt
type PaymentAttemptResponse struct {
	ID              uuid.UUID         `json:"id"`
	Amount          valueobject.Money `json:"amount"`
	Status          string            `json:"status"`
	EvidenceRef     string            `json:"evidence_ref,omitempty"`
	SubmittedBy     uuid.UUID         `json:"submitted_by"`
	SubmittedAt     time.Time         `json:"submitted_at"`
	ReviewedBy      *uuid.UUID        `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time        `json:"reviewed_at,omitempty"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
}

// InvoiceResponse is the ledger view of an invoice
type InvoiceResponse struct {
	ID                 uuid.UUID                `json:"id"`
	InvoiceNumber      string                   `json:"invoice_number"`
	ShipmentID         uuid.UUID                `json:"shipment_id"`
	ShipmentReference  string                   `json:"shipment_reference"`
	ShipmentDeparted   bool                     `json:"shipment_departed"`
	Status             string                   `json:"status"`
	HomeCurrency       string                   `json:"home_currency"`
	ForeignCurrency    string                   `json:"foreign_currency"`
	ExchangeRate       string                   `json:"exchange_rate"`
	HomeTotal          valueobject.Money        `json:"home_total"`
	ForeignTotal       valueobject.Money        `json:"foreign_total"`
	RemainingHome      valueobject.Money        `json:"remaining_home"`
	RemainingForeign   valueobject.Money        `json:"remaining_foreign"`
	SettlementCurrency string                   `json:"settlement_currency,omitempty"`
	DueDate            *time.Time               `json:"due_date,omitempty"`
	IssuedAt           *time.Time               `json:"issued_at,omitempty"`
	SettledAt          *time.Time               `json:"settled_at,omitempty"`
	RevisionReason     string                   `json:"revision_reason,omitempty"`
	Attempts           []PaymentAttemptResponse `json:"attempts"`
	Version            int                      `json:"version"`
	CreatedAt          time.Time                `json:"created_at"`
	UpdatedAt          time.Time                `json:"updated_at"`
}

// PaymentReviewResponse is returned after submitting or reviewing a payment
type PaymentReviewResponse struct {
	Invoice InvoiceResponse        `json:"invoice"`
	Attempt PaymentAttemptResponse `json:"attempt"`
}

// ToPaymentAttemptResponse converts an attempt into its API view
func ToPaymentAttemptResponse(a *settlement.PaymentAttempt) PaymentAttemptResponse {
	return PaymentAttemptResponse{
		ID:              a.ID,
		Amount:          a.Amount,
		Status:          string(a.Status),
		EvidenceRef:     a.EvidenceRef,
		SubmittedBy:     a.SubmittedBy,
		SubmittedAt:     a.SubmittedAt,
		ReviewedBy:      a.ReviewedBy,
		ReviewedAt:      a.ReviewedAt,
		RejectionReason: a.RejectionReason,
	}
}

// ToInvoiceResponse converts the aggregate into its API view
func ToInvoiceResponse(inv *settlement.Invoice, departed bool) InvoiceResponse {
	attempts := make([]PaymentAttemptResponse, len(inv.Attempts))
	for i := range inv.Attempts {
		attempts[i] = ToPaymentAttemptResponse(&inv.Attempts[i])
	}
	return InvoiceResponse{
		ID:                 inv.ID,
		InvoiceNumber:      inv.InvoiceNumber,
		ShipmentID:         inv.ShipmentID,
		ShipmentReference:  inv.ShipmentReference,
		ShipmentDeparted:   departed,
		Status:             string(inv.Status),
		HomeCurrency:       string(inv.Rate.Home),
		ForeignCurrency:    string(inv.Rate.Foreign),
		ExchangeRate:       inv.Rate.Rate.String(),
		HomeTotal:          inv.HomeTotal,
		ForeignTotal:       inv.ForeignTotal,
		RemainingHome:      inv.RemainingHome,
		RemainingForeign:   inv.RemainingForeign,
		SettlementCurrency: string(inv.SettlementCurrency),
		DueDate:            inv.DueDate,
		IssuedAt:           inv.IssuedAt,
		SettledAt:          inv.SettledAt,
		RevisionReason:     inv.RevisionReason,
		Attempts:           attempts,
		Version:            inv.Version,
		CreatedAt:          inv.CreatedAt,
		UpdatedAt:          inv.UpdatedAt,
	}
}
