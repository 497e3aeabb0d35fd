package tracking

import (
	"time"

	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/domain/tracking"
	"github.com/google/uuid"
)

// BookShipmentRequest represents a request to book a new shipment
type BookShipmentRequest struct {
	ReferenceNumber string    `json:"reference_number" binding:"required,min=1,max=64"`
	Route           string    `json:"route" binding:"required,oneof=DOOR_TO_DOOR DOOR_TO_PORT PORT_TO_DOOR PORT_TO_PORT"`
	CompanyID       uuid.UUID `json:"company_id"`
	CustomerID      uuid.UUID `json:"customer_id" binding:"required"`
}

// SubmitOtifRequest asks for the shipment to move to Stage. Payload carries
// the stage's required fields plus any free-form extras.
type SubmitOtifRequest struct {
	Stage   string         `json:"stage" binding:"required"`
	Payload map[string]any `json:"payload"`
}

// AnnotateDelayRequest records an estimated delay against one stage
type AnnotateDelayRequest struct {
	DelayFrom    time.Time `json:"delay_from" binding:"required"`
	DelayUntil   time.Time `json:"delay_until" binding:"required"`
	Note         string    `json:"note" binding:"max=2000"`
	EvidenceRefs []string  `json:"evidence_refs" binding:"max=20,dive,max=512"`
}

// ShipmentListQuery represents the list filters accepted by the API
type ShipmentListQuery struct {
	Search     string     `form:"search"`
	Status     string     `form:"status" binding:"omitempty,oneof=WAITING ONGOING COMPLETE FAILED"`
	Route      string     `form:"route" binding:"omitempty,oneof=DOOR_TO_DOOR DOOR_TO_PORT PORT_TO_DOOR PORT_TO_PORT"`
	CustomerID *uuid.UUID `form:"customer_id"`
	Page       int        `form:"page" binding:"omitempty,min=1"`
	PageSize   int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy    string     `form:"order_by"`
	OrderDir   string     `form:"order_dir" binding:"omitempty,oneof=asc desc ASC DESC"`
}

// ToFilter converts the query into a repository filter
func (q ShipmentListQuery) ToFilter() tracking.ShipmentFilter {
	f := tracking.ShipmentFilter{Filter: shared.DefaultFilter(), CustomerID: q.CustomerID}
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
		status := tracking.CoarseStatus(q.Status)
		f.Status = &status
	}
	if q.Route != "" {
		route := tracking.ServiceRoute(q.Route)
		f.Route = &route
	}
	return f
}

// ShipmentResponse is the dashboard view of a shipment
type ShipmentResponse struct {
	ID              uuid.UUID  `json:"id"`
	ReferenceNumber string     `json:"reference_number"`
	Route           string     `json:"route"`
	CurrentStage    string     `json:"current_stage"`
	Status          string     `json:"status"`
	Progress        int        `json:"progress"`
	StagesPassed    int        `json:"stages_passed"`
	StagesTotal     int        `json:"stages_total"`
	NextStage       string     `json:"next_stage,omitempty"`
	HasDeparted     bool       `json:"has_departed"`
	CompanyID       uuid.UUID  `json:"company_id"`
	CustomerID      uuid.UUID  `json:"customer_id"`
	CreatedBy       *uuid.UUID `json:"created_by,omitempty"`
	Version         int        `json:"version"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// OtifEventResponse represents one entry of the OTIF history
type OtifEventResponse struct {
	ID         uuid.UUID      `json:"id"`
	Sequence   int            `json:"sequence"`
	Stage      string         `json:"stage"`
	Payload    map[string]any `json:"payload"`
	OccurredAt time.Time      `json:"occurred_at"`
	RecordedBy uuid.UUID      `json:"recorded_by"`
}

// TransitionResponse is returned after an accepted OTIF submission
type TransitionResponse struct {
	Shipment ShipmentResponse  `json:"shipment"`
	Event    OtifEventResponse `json:"event"`
}

// DelayResponse represents a recorded delay annotation
type DelayResponse struct {
	ID           uuid.UUID `json:"id"`
	Stage        string    `json:"stage"`
	DelayFrom    time.Time `json:"delay_from"`
	DelayUntil   time.Time `json:"delay_until"`
	DelayHours   float64   `json:"delay_hours"`
	Note         string    `json:"note,omitempty"`
	EvidenceRefs []string  `json:"evidence_refs"`
	RecordedBy   uuid.UUID `json:"recorded_by"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// ToShipmentResponse converts the aggregate into its API view
func ToShipmentResponse(s *tracking.Shipment) ShipmentResponse {
	passed, total := tracking.StagesPassed(s)
	resp := ShipmentResponse{
		ID:              s.ID,
		ReferenceNumber: s.ReferenceNumber,
		Route:           string(s.Route),
		CurrentStage:    string(s.CurrentStage),
		Status:          string(s.Status),
		Progress:        tracking.ProgressPercentage(s),
		StagesPassed:    passed,
		StagesTotal:     total,
		HasDeparted:     tracking.HasDeparted(s.Route, s.CurrentStage),
		CompanyID:       s.CompanyID,
		CustomerID:      s.CustomerID,
		CreatedBy:       s.CreatedBy,
		Version:         s.Version,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
	if next, err := tracking.NextStage(s.Route, s.CurrentStage); err == nil {
		resp.NextStage = string(next)
	}
	return resp
}

// ToOtifEventResponse converts a stored event into its API view
func ToOtifEventResponse(e *tracking.OtifEvent) OtifEventResponse {
	payload := map[string]any(e.Payload.Clone())
	if payload == nil {
		payload = map[string]any{}
	}
	return OtifEventResponse{
		ID:         e.ID,
		Sequence:   e.Sequence,
		Stage:      string(e.Stage),
		Payload:    payload,
		OccurredAt: e.OccurredAt,
		RecordedBy: e.RecordedBy,
	}
}

// ToDelayResponse converts a delay annotation into its API view
func ToDelayResponse(d *tracking.DelayAnnotation) DelayResponse {
	refs := d.EvidenceRefs
	if refs == nil {
		refs = []string{}
	}
	return DelayResponse{
		ID:           d.ID,
		Stage:        string(d.Stage),
		DelayFrom:    d.DelayFrom,
		DelayUntil:   d.DelayUntil,
		DelayHours:   d.Duration().Hours(),
		Note:         d.Note,
		EvidenceRefs: refs,
		RecordedBy:   d.RecordedBy,
		RecordedAt:   d.RecordedAt,
	}
}
