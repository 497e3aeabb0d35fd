package settlement

import (
	"time"

	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// PaymentStatus represents the review status of a payment attempt
type PaymentStatus string

const (
	PaymentStatusWaitingConfirmation PaymentStatus = "WAITING_CONFIRMATION"
	PaymentStatusConfirmed           PaymentStatus = "CONFIRMED"
	PaymentStatusRejected            PaymentStatus = "REJECTED"
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusWaitingConfirmation, PaymentStatusConfirmed, PaymentStatusRejected:
		return true
	}
	return false
}

// IsTerminal returns true once the attempt has been reviewed
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusConfirmed || s == PaymentStatusRejected
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// PaymentAttempt is a payer's claim of payment against an invoice. It is
// reviewed exactly once; rejected attempts never count toward the balance.
type PaymentAttempt struct {
	shared.BaseEntity
	InvoiceID       uuid.UUID
	Amount          valueobject.Money
	Status          PaymentStatus
	EvidenceRef     string
	SubmittedBy     uuid.UUID
	SubmittedAt     time.Time
	ReviewedBy      *uuid.UUID
	ReviewedAt      *time.Time
	RejectionReason string
}

func newPaymentAttempt(invoiceID uuid.UUID, amount valueobject.Money, evidenceRef string, submittedBy uuid.UUID, now time.Time) PaymentAttempt {
	return PaymentAttempt{
		BaseEntity:  shared.NewBaseEntity(now),
		InvoiceID:   invoiceID,
		Amount:      amount,
		Status:      PaymentStatusWaitingConfirmation,
		EvidenceRef: evidenceRef,
		SubmittedBy: submittedBy,
		SubmittedAt: now,
	}
}

func (a *PaymentAttempt) review(status PaymentStatus, reviewer uuid.UUID, reason string, now time.Time) {
	a.Status = status
	a.ReviewedBy = &reviewer
	a.ReviewedAt = &now
	a.RejectionReason = reason
	a.Touch(now)
}
