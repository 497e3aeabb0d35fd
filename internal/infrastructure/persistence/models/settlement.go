package models

import (
	"fmt"
	"time"

	"github.com/freightdesk/backend/internal/domain/settlement"
	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
// Both sides of the exchange rate are stored so the ledger can be rebuilt
// without a rate lookup.
type InvoiceModel struct {
	TenantAggregateModel
	InvoiceNumber      string                   `gorm:"type:varchar(64);not null;index"`
	ShipmentID         uuid.UUID                `gorm:"type:uuid;not null;index;uniqueIndex:idx_invoices_shipment_in_force,where:status <> 'NEEDS_REVISION'"`
	ShipmentReference  string                   `gorm:"type:varchar(64);not null"`
	Status             settlement.InvoiceStatus `gorm:"type:varchar(20);not null;default:'PROFORMA';index"`
	HomeCurrency       string                   `gorm:"type:char(3);not null"`
	ForeignCurrency    string                   `gorm:"type:char(3);not null"`
	ExchangeRate       decimal.Decimal          `gorm:"type:decimal(20,8);not null"`
	HomeTotal          decimal.Decimal          `gorm:"type:decimal(20,4);not null"`
	ForeignTotal       decimal.Decimal          `gorm:"type:decimal(20,4);not null"`
	SettlementCurrency string                   `gorm:"type:varchar(3);not null;default:''"`
	RemainingHome      decimal.Decimal          `gorm:"type:decimal(20,4);not null"`
	RemainingForeign   decimal.Decimal          `gorm:"type:decimal(20,4);not null"`
	DueDate            *time.Time               `gorm:"index"`
	IssuedAt           *time.Time
	SettledAt          *time.Time
	RevisionReason     string                `gorm:"type:varchar(500)"`
	Attempts           []PaymentAttemptModel `gorm:"foreignKey:InvoiceID;references:ID"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model, attempts included, to a domain Invoice.
func (m *InvoiceModel) ToDomain() (*settlement.Invoice, error) {
	home := valueobject.Currency(m.HomeCurrency)
	foreign := valueobject.Currency(m.ForeignCurrency)
	rate, err := valueobject.NewExchangeRate(home, foreign, m.ExchangeRate)
	if err != nil {
		return nil, corruptRow("invoice", m.ID, err)
	}

	inv := &settlement.Invoice{
		InvoiceNumber:      m.InvoiceNumber,
		ShipmentID:         m.ShipmentID,
		ShipmentReference:  m.ShipmentReference,
		Status:             m.Status,
		Rate:               rate,
		SettlementCurrency: valueobject.Currency(m.SettlementCurrency),
		DueDate:            m.DueDate,
		IssuedAt:           m.IssuedAt,
		SettledAt:          m.SettledAt,
		RevisionReason:     m.RevisionReason,
		Attempts:           make([]settlement.PaymentAttempt, 0, len(m.Attempts)),
	}
	m.PopulateTenantAggregateRoot(&inv.TenantAggregateRoot)

	if inv.HomeTotal, err = valueobject.NewMoney(m.HomeTotal, home); err != nil {
		return nil, corruptRow("invoice", m.ID, err)
	}
	if inv.ForeignTotal, err = valueobject.NewMoney(m.ForeignTotal, foreign); err != nil {
		return nil, corruptRow("invoice", m.ID, err)
	}
	if inv.RemainingHome, err = valueobject.NewMoney(m.RemainingHome, home); err != nil {
		return nil, corruptRow("invoice", m.ID, err)
	}
	if inv.RemainingForeign, err = valueobject.NewMoney(m.RemainingForeign, foreign); err != nil {
		return nil, corruptRow("invoice", m.ID, err)
	}

	for i := range m.Attempts {
		a, err := m.Attempts[i].ToDomain()
		if err != nil {
			return nil, err
		}
		inv.Attempts = append(inv.Attempts, a)
	}
	return inv, nil
}

// FromDomain populates the persistence model from a domain Invoice.
func (m *InvoiceModel) FromDomain(inv *settlement.Invoice) {
	m.FromDomainTenantAggregateRoot(inv.TenantAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.ShipmentID = inv.ShipmentID
	m.ShipmentReference = inv.ShipmentReference
	m.Status = inv.Status
	m.HomeCurrency = inv.Rate.Home.String()
	m.ForeignCurrency = inv.Rate.Foreign.String()
	m.ExchangeRate = inv.Rate.Rate
	m.HomeTotal = inv.HomeTotal.Amount()
	m.ForeignTotal = inv.ForeignTotal.Amount()
	m.SettlementCurrency = inv.SettlementCurrency.String()
	m.RemainingHome = inv.RemainingHome.Amount()
	m.RemainingForeign = inv.RemainingForeign.Amount()
	m.DueDate = inv.DueDate
	m.IssuedAt = inv.IssuedAt
	m.SettledAt = inv.SettledAt
	m.RevisionReason = inv.RevisionReason
	m.Attempts = make([]PaymentAttemptModel, len(inv.Attempts))
	for i := range inv.Attempts {
		m.Attempts[i].FromDomain(&inv.Attempts[i])
	}
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *settlement.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// PaymentAttemptModel is the persistence model for a payment attempt.
type PaymentAttemptModel struct {
	BaseModel
	InvoiceID       uuid.UUID                `gorm:"type:uuid;not null;index"`
	Amount          decimal.Decimal          `gorm:"type:decimal(20,4);not null"`
	Currency        string                   `gorm:"type:char(3);not null"`
	Status          settlement.PaymentStatus `gorm:"type:varchar(30);not null;index"`
	EvidenceRef     string                   `gorm:"type:varchar(500)"`
	SubmittedBy     uuid.UUID                `gorm:"type:uuid"`
	SubmittedAt     time.Time                `gorm:"not null"`
	ReviewedBy      *uuid.UUID               `gorm:"type:uuid"`
	ReviewedAt      *time.Time
	RejectionReason string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (PaymentAttemptModel) TableName() string {
	return "payment_attempts"
}

// ToDomain converts the persistence model to a domain PaymentAttempt.
func (m *PaymentAttemptModel) ToDomain() (settlement.PaymentAttempt, error) {
	amount, err := valueobject.NewMoney(m.Amount, valueobject.Currency(m.Currency))
	if err != nil {
		return settlement.PaymentAttempt{}, corruptRow("payment attempt", m.ID, err)
	}
	return settlement.PaymentAttempt{
		BaseEntity:      m.BaseModel.ToDomain(),
		InvoiceID:       m.InvoiceID,
		Amount:          amount,
		Status:          m.Status,
		EvidenceRef:     m.EvidenceRef,
		SubmittedBy:     m.SubmittedBy,
		SubmittedAt:     m.SubmittedAt,
		ReviewedBy:      m.ReviewedBy,
		ReviewedAt:      m.ReviewedAt,
		RejectionReason: m.RejectionReason,
	}, nil
}

// FromDomain populates the persistence model from a domain PaymentAttempt.
func (m *PaymentAttemptModel) FromDomain(a *settlement.PaymentAttempt) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.InvoiceID = a.InvoiceID
	m.Amount = a.Amount.Amount()
	m.Currency = a.Amount.Currency().String()
	m.Status = a.Status
	m.EvidenceRef = a.EvidenceRef
	m.SubmittedBy = a.SubmittedBy
	m.SubmittedAt = a.SubmittedAt
	m.ReviewedBy = a.ReviewedBy
	m.ReviewedAt = a.ReviewedAt
	m.RejectionReason = a.RejectionReason
}

func corruptRow(kind string, id uuid.UUID, err error) error {
	return shared.NewConsistencyError("CORRUPT_ROW", fmt.Sprintf("Stored %s %s cannot be loaded: %v", kind, id, err))
}
