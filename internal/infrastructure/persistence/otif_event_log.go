package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/domain/tracking"
	"github.com/freightdesk/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormOtifEventLog implements tracking.EventLog on the otif_events and
// otif_delays tables. Rows are only ever inserted.
type GormOtifEventLog struct {
	db *gorm.DB
}

// NewGormOtifEventLog creates a new GormOtifEventLog
func NewGormOtifEventLog(db *gorm.DB) *GormOtifEventLog {
	return &GormOtifEventLog{db: db}
}

// Append stores event. A second event with the same (shipment, sequence)
// is rejected by the unique index and reported as a conflict.
func (l *GormOtifEventLog) Append(ctx context.Context, event *tracking.OtifEvent) error {
	model := models.OtifEventModelFromDomain(event)
	if err := l.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.NewConflictError("SEQUENCE_TAKEN",
				fmt.Sprintf("Sequence %d of shipment %s was written concurrently", event.Sequence, event.ShipmentReference))
		}
		return err
	}
	return nil
}

// CurrentStage returns the stage of the newest event, or Booked when none
func (l *GormOtifEventLog) CurrentStage(ctx context.Context, shipmentID uuid.UUID) (tracking.Stage, error) {
	var model models.OtifEventModel
	err := l.db.WithContext(ctx).
		Where("shipment_id = ?", shipmentID).
		Order("sequence DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tracking.StageBooked, nil
	}
	if err != nil {
		return "", err
	}
	return model.Stage, nil
}

// History returns the shipment's events oldest first
func (l *GormOtifEventLog) History(ctx context.Context, shipmentID uuid.UUID) ([]tracking.OtifEvent, error) {
	var eventModels []models.OtifEventModel
	if err := l.db.WithContext(ctx).
		Where("shipment_id = ?", shipmentID).
		Order("sequence ASC").
		Find(&eventModels).Error; err != nil {
		return nil, err
	}
	events := make([]tracking.OtifEvent, len(eventModels))
	for i := range eventModels {
		events[i] = eventModels[i].ToDomain()
	}
	return events, nil
}

// AnnotateDelay stores a delay annotation
func (l *GormOtifEventLog) AnnotateDelay(ctx context.Context, annotation *tracking.DelayAnnotation) error {
	model, err := models.DelayAnnotationModelFromDomain(annotation)
	if err != nil {
		return err
	}
	return l.db.WithContext(ctx).Create(model).Error
}

// DelaysFor returns the delays recorded for one stage, oldest first
func (l *GormOtifEventLog) DelaysFor(ctx context.Context, shipmentID uuid.UUID, stage tracking.Stage) ([]tracking.DelayAnnotation, error) {
	var delayModels []models.DelayAnnotationModel
	if err := l.db.WithContext(ctx).
		Where("shipment_id = ? AND stage = ?", shipmentID, stage).
		Order("recorded_at ASC").
		Find(&delayModels).Error; err != nil {
		return nil, err
	}
	delays := make([]tracking.DelayAnnotation, 0, len(delayModels))
	for i := range delayModels {
		d, err := delayModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		delays = append(delays, d)
	}
	return delays, nil
}

// Ensure GormOtifEventLog implements EventLog
var _ tracking.EventLog = (*GormOtifEventLog)(nil)
