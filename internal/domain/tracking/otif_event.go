package tracking

import (
	"strings"
	"time"

	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// OtifEvent records one applied stage transition. Events are immutable;
// a correction is a new event.
type OtifEvent struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	ShipmentID        uuid.UUID
	ShipmentReference string
	Sequence          int
	Stage             Stage
	Payload           Payload
	OccurredAt        time.Time
	RecordedBy        uuid.UUID
}

// DelayAnnotation attaches an estimated delay to a stage without moving the
// shipment's current stage.
type DelayAnnotation struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	ShipmentID   uuid.UUID
	Stage        Stage
	DelayFrom    time.Time
	DelayUntil   time.Time
	Note         string
	EvidenceRefs []string
	RecordedBy   uuid.UUID
	RecordedAt   time.Time
}

// NewDelayAnnotation validates and builds a delay annotation for a shipment
func NewDelayAnnotation(s *Shipment, stage Stage, from, until time.Time, note string, evidence []string, recordedBy uuid.UUID, now time.Time) (*DelayAnnotation, error) {
	if !IsOnRoute(s.Route, stage) || stage == StageBooked {
		return nil, shared.NewValidationError("INVALID_STAGE", "Stage "+string(stage)+" cannot be delayed on route "+string(s.Route))
	}
	if from.IsZero() || until.IsZero() || !until.After(from) {
		return nil, shared.NewValidationError("INVALID_DELAY_WINDOW", "Delay window end must be after its start")
	}
	if len(note) > 2000 {
		return nil, shared.NewValidationError("INVALID_NOTE", "Delay note cannot exceed 2000 characters")
	}
	refs := make([]string, 0, len(evidence))
	for _, ref := range evidence {
		if ref = strings.TrimSpace(ref); ref != "" {
			refs = append(refs, ref)
		}
	}
	return &DelayAnnotation{
		ID:           uuid.New(),
		TenantID:     s.TenantID,
		ShipmentID:   s.ID,
		Stage:        stage,
		DelayFrom:    from,
		DelayUntil:   until,
		Note:         strings.TrimSpace(note),
		EvidenceRefs: refs,
		RecordedBy:   recordedBy,
		RecordedAt:   now,
	}, nil
}

// Duration returns the length of the delay window
func (d *DelayAnnotation) Duration() time.Duration {
	return d.DelayUntil.Sub(d.DelayFrom)
}
