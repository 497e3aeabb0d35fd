package models

import (
	"encoding/json"
	"time"

	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/domain/tracking"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ShipmentModel is the persistence model for the Shipment aggregate root.
type ShipmentModel struct {
	TenantAggregateModel
	ReferenceNumber string                `gorm:"type:varchar(64);not null;index"`
	Route           tracking.ServiceRoute `gorm:"type:varchar(20);not null;index"`
	CurrentStage    tracking.Stage        `gorm:"type:varchar(40);not null"`
	Status          tracking.CoarseStatus `gorm:"type:varchar(20);not null;default:'WAITING';index"`
	CompanyID       uuid.UUID             `gorm:"type:uuid"`
	CustomerID      uuid.UUID             `gorm:"type:uuid;not null;index"`
	IsActive        bool                  `gorm:"not null;default:true"`
	LastSequence    int                   `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (ShipmentModel) TableName() string {
	return "shipments"
}

// ToDomain converts the persistence model to a domain Shipment.
func (m *ShipmentModel) ToDomain() *tracking.Shipment {
	s := &tracking.Shipment{
		ReferenceNumber: m.ReferenceNumber,
		Route:           m.Route,
		CurrentStage:    m.CurrentStage,
		Status:          m.Status,
		CompanyID:       m.CompanyID,
		CustomerID:      m.CustomerID,
		IsActive:        m.IsActive,
		LastSequence:    m.LastSequence,
	}
	m.PopulateTenantAggregateRoot(&s.TenantAggregateRoot)
	return s
}

// FromDomain populates the persistence model from a domain Shipment.
func (m *ShipmentModel) FromDomain(s *tracking.Shipment) {
	m.FromDomainTenantAggregateRoot(s.TenantAggregateRoot)
	m.ReferenceNumber = s.ReferenceNumber
	m.Route = s.Route
	m.CurrentStage = s.CurrentStage
	m.Status = s.Status
	m.CompanyID = s.CompanyID
	m.CustomerID = s.CustomerID
	m.IsActive = s.IsActive
	m.LastSequence = s.LastSequence
}

// ShipmentModelFromDomain creates a new persistence model from a domain Shipment.
func ShipmentModelFromDomain(s *tracking.Shipment) *ShipmentModel {
	m := &ShipmentModel{}
	m.FromDomain(s)
	return m
}

// OtifEventModel is one row of the append-only OTIF log. The unique index on
// (shipment_id, sequence) rejects a second writer claiming the same slot.
type OtifEventModel struct {
	ID                uuid.UUID         `gorm:"type:uuid;primaryKey"`
	TenantID          uuid.UUID         `gorm:"type:uuid;not null;index"`
	ShipmentID        uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_otif_events_shipment_seq,priority:1"`
	ShipmentReference string            `gorm:"type:varchar(64);not null"`
	Sequence          int               `gorm:"not null;uniqueIndex:idx_otif_events_shipment_seq,priority:2"`
	Stage             tracking.Stage    `gorm:"type:varchar(40);not null"`
	Payload           datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	OccurredAt        time.Time         `gorm:"not null"`
	RecordedBy        uuid.UUID         `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (OtifEventModel) TableName() string {
	return "otif_events"
}

// ToDomain converts the persistence model to a domain OtifEvent.
func (m *OtifEventModel) ToDomain() tracking.OtifEvent {
	payload := tracking.Payload{}
	for k, v := range m.Payload {
		payload[k] = v
	}
	return tracking.OtifEvent{
		ID:                m.ID,
		TenantID:          m.TenantID,
		ShipmentID:        m.ShipmentID,
		ShipmentReference: m.ShipmentReference,
		Sequence:          m.Sequence,
		Stage:             m.Stage,
		Payload:           payload,
		OccurredAt:        m.OccurredAt,
		RecordedBy:        m.RecordedBy,
	}
}

// OtifEventModelFromDomain creates a new persistence model from a domain OtifEvent.
func OtifEventModelFromDomain(e *tracking.OtifEvent) *OtifEventModel {
	payload := datatypes.JSONMap{}
	for k, v := range e.Payload {
		payload[k] = v
	}
	return &OtifEventModel{
		ID:                e.ID,
		TenantID:          e.TenantID,
		ShipmentID:        e.ShipmentID,
		ShipmentReference: e.ShipmentReference,
		Sequence:          e.Sequence,
		Stage:             e.Stage,
		Payload:           payload,
		OccurredAt:        e.OccurredAt,
		RecordedBy:        e.RecordedBy,
	}
}

// DelayAnnotationModel is the persistence model for a stage delay.
type DelayAnnotationModel struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey"`
	TenantID     uuid.UUID      `gorm:"type:uuid;not null;index"`
	ShipmentID   uuid.UUID      `gorm:"type:uuid;not null;index:idx_otif_delays_shipment_stage,priority:1"`
	Stage        tracking.Stage `gorm:"type:varchar(40);not null;index:idx_otif_delays_shipment_stage,priority:2"`
	DelayFrom    time.Time      `gorm:"not null"`
	DelayUntil   time.Time      `gorm:"not null"`
	Note         string         `gorm:"type:text"`
	EvidenceRefs datatypes.JSON `gorm:"type:jsonb"`
	RecordedBy   uuid.UUID      `gorm:"type:uuid"`
	RecordedAt   time.Time      `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DelayAnnotationModel) TableName() string {
	return "otif_delays"
}

// ToDomain converts the persistence model to a domain DelayAnnotation.
func (m *DelayAnnotationModel) ToDomain() (tracking.DelayAnnotation, error) {
	refs := []string{}
	if len(m.EvidenceRefs) > 0 {
		if err := json.Unmarshal(m.EvidenceRefs, &refs); err != nil {
			return tracking.DelayAnnotation{}, shared.NewConsistencyError("CORRUPT_EVIDENCE_REFS", "Stored evidence references are not a JSON array: "+err.Error())
		}
	}
	return tracking.DelayAnnotation{
		ID:           m.ID,
		TenantID:     m.TenantID,
		ShipmentID:   m.ShipmentID,
		Stage:        m.Stage,
		DelayFrom:    m.DelayFrom,
		DelayUntil:   m.DelayUntil,
		Note:         m.Note,
		EvidenceRefs: refs,
		RecordedBy:   m.RecordedBy,
		RecordedAt:   m.RecordedAt,
	}, nil
}

// DelayAnnotationModelFromDomain creates a new persistence model from a domain DelayAnnotation.
func DelayAnnotationModelFromDomain(d *tracking.DelayAnnotation) (*DelayAnnotationModel, error) {
	refs := d.EvidenceRefs
	if refs == nil {
		refs = []string{}
	}
	raw, err := json.Marshal(refs)
	if err != nil {
		return nil, err
	}
	return &DelayAnnotationModel{
		ID:           d.ID,
		TenantID:     d.TenantID,
		ShipmentID:   d.ShipmentID,
		Stage:        d.Stage,
		DelayFrom:    d.DelayFrom,
		DelayUntil:   d.DelayUntil,
		Note:         d.Note,
		EvidenceRefs: datatypes.JSON(raw),
		RecordedBy:   d.RecordedBy,
		RecordedAt:   d.RecordedAt,
	}, nil
}
