package telemetry

import (
	"context"
	"fmt"

	"github.com/freightdesk/backend/internal/domain/settlement"
	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/domain/tracking"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Transition outcomes
const (
	OutcomeAdvanced = "advanced"
	OutcomeFailed   = "failed"
	OutcomeRefused  = "refused"
)

// FreightMetrics holds the business counters of the back office
type FreightMetrics struct {
	transitions metric.Int64Counter
	reviews     metric.Int64Counter
}

// NewFreightMetrics registers the counters on meter
func NewFreightMetrics(meter metric.Meter) (*FreightMetrics, error) {
	transitions, err := meter.Int64Counter("freight_otif_transition_total",
		metric.WithDescription("OTIF transition requests by route, target stage and outcome"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create transition counter: %w", err)
	}
	reviews, err := meter.Int64Counter("freight_payment_review_total",
		metric.WithDescription("Payment attempt reviews by decision and currency"),
		metric.WithUnit("{review}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create review counter: %w", err)
	}
	return &FreightMetrics{transitions: transitions, reviews: reviews}, nil
}

// RecordTransition counts one transition request
func (m *FreightMetrics) RecordTransition(ctx context.Context, route tracking.ServiceRoute, stage tracking.Stage, outcome string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route", string(route)),
		attribute.String("stage", string(stage)),
		attribute.String("outcome", outcome),
	))
}

// RecordPaymentReview counts one confirm or reject decision
func (m *FreightMetrics) RecordPaymentReview(ctx context.Context, decision settlement.PaymentStatus, currency string) {
	if m == nil {
		return
	}
	m.reviews.Add(ctx, 1, metric.WithAttributes(
		attribute.String("decision", string(decision)),
		attribute.String("currency", currency),
	))
}

// MetricsHandler feeds the counters from domain events delivered by the bus
type MetricsHandler struct {
	metrics *FreightMetrics
}

// NewMetricsHandler creates a bus handler for m
func NewMetricsHandler(m *FreightMetrics) *MetricsHandler {
	return &MetricsHandler{metrics: m}
}

// EventTypes implements shared.EventHandler
func (h *MetricsHandler) EventTypes() []string {
	return []string{
		tracking.EventTypeOtifStageAdvanced,
		tracking.EventTypeShipmentFailed,
		settlement.EventTypePaymentConfirmed,
		settlement.EventTypePaymentRejected,
	}
}

// Handle implements shared.EventHandler
func (h *MetricsHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *tracking.OtifStageAdvancedEvent:
		h.metrics.RecordTransition(ctx, e.Route, e.ToStage, OutcomeAdvanced)
	case *tracking.ShipmentFailedEvent:
		h.metrics.RecordTransition(ctx, e.Route, e.FailureStage, OutcomeFailed)
	case *settlement.PaymentConfirmedEvent:
		h.metrics.RecordPaymentReview(ctx, e.Status, e.Currency)
	case *settlement.PaymentRejectedEvent:
		h.metrics.RecordPaymentReview(ctx, e.Status, e.Currency)
	}
	return nil
}

var _ shared.EventHandler = (*MetricsHandler)(nil)
