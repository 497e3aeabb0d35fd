package tracking

import (
	"context"

	"github.com/freightdesk/backend/internal/application/transaction"
	"github.com/freightdesk/backend/internal/domain/settlement"
	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/freightdesk/backend/internal/domain/tracking"
	"github.com/freightdesk/backend/internal/infrastructure/logger"
	"github.com/freightdesk/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ShipmentService handles shipment booking and OTIF progression
type ShipmentService struct {
	shipments tracking.ShipmentRepository
	eventLog  tracking.EventLog
	invoices  settlement.InvoiceRepository
	scope     transaction.Scope
	guard     *transaction.Guard
	machine   *tracking.StateMachine
	clock     shared.Clock
	logger    *zap.Logger
	metrics   *telemetry.FreightMetrics
}

// NewShipmentService creates a new ShipmentService. The repositories are
// used for reads; every write goes through scope.
func NewShipmentService(
	shipments tracking.ShipmentRepository,
	eventLog tracking.EventLog,
	invoices settlement.InvoiceRepository,
	scope transaction.Scope,
	guard *transaction.Guard,
	clock shared.Clock,
	logger *zap.Logger,
) *ShipmentService {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &ShipmentService{
		shipments: shipments,
		eventLog:  eventLog,
		invoices:  invoices,
		scope:     scope,
		guard:     guard,
		machine:   tracking.NewStateMachine(clock),
		clock:     clock,
		logger:    logger,
	}
}

// SetMetrics enables counting of refused transitions
func (s *ShipmentService) SetMetrics(m *telemetry.FreightMetrics) {
	s.metrics = m
}

// Book creates a shipment at the Booked stage
func (s *ShipmentService) Book(ctx context.Context, tenantID, userID uuid.UUID, req BookShipmentRequest) (resp *ShipmentResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "tracking", "book",
		attribute.String("shipment.reference", req.ReferenceNumber))
	defer func() { telemetry.EndSpan(span, err) }()

	shipment, err := tracking.BookShipment(tenantID, req.ReferenceNumber, tracking.ServiceRoute(req.Route),
		req.CompanyID, req.CustomerID, userID, s.clock.Now())
	if err != nil {
		return nil, err
	}

	err = s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		exists, err := repos.Shipments().ExistsByReference(ctx, tenantID, shipment.ReferenceNumber)
		if err != nil {
			return err
		}
		if exists {
			return shared.NewConflictError("SHIPMENT_EXISTS", "A shipment with reference "+shipment.ReferenceNumber+" already exists")
		}
		if err := repos.Shipments().Create(ctx, shipment); err != nil {
			return err
		}
		return repos.Events().Record(ctx, shipment.GetDomainEvents()...)
	})
	if err != nil {
		return nil, err
	}
	shipment.ClearDomainEvents()

	logger.LOr(ctx, s.logger).Info("shipment booked",
		logger.Shipment(shipment.ReferenceNumber),
		zap.String("route", string(shipment.Route)))

	out := ToShipmentResponse(shipment)
	return &out, nil
}

// SubmitOtif requests the shipment's next OTIF stage. The whole
// load-validate-append-save cycle runs under the shipment's lock and is
// repeated from a fresh load when a concurrent writer wins.
func (s *ShipmentService) SubmitOtif(ctx context.Context, tenantID, userID uuid.UUID, reference string, req SubmitOtifRequest) (resp *TransitionResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "tracking", "request_transition",
		attribute.String("shipment.reference", reference),
		attribute.String("otif.stage", req.Stage))
	defer func() { telemetry.EndSpan(span, err) }()

	target, err := tracking.ParseStage(req.Stage)
	if err != nil {
		return nil, shared.NewValidationError("INVALID_STAGE", err.Error())
	}

	found, err := s.shipments.FindByReference(ctx, tenantID, reference)
	if err != nil {
		return nil, err
	}

	log := logger.LOr(ctx, s.logger).With(logger.Shipment(reference), logger.Stage(string(target)))

	var (
		shipment *tracking.Shipment
		event    *tracking.OtifEvent
	)
	err = s.guard.Run(ctx, shared.LockKey(tracking.AggregateTypeShipment, found.ID.String()), func(ctx context.Context, attempt int) error {
		current, err := s.shipments.FindByIDForTenant(ctx, tenantID, found.ID)
		if err != nil {
			return err
		}
		commitment, err := s.commitmentOf(ctx, tenantID, current.ID)
		if err != nil {
			return err
		}
		evt, err := s.machine.RequestTransition(current, tracking.TransitionRequest{
			Target:     target,
			Payload:    tracking.Payload(req.Payload),
			Commitment: commitment,
			RecordedBy: userID,
		})
		if err != nil {
			return err
		}
		err = s.scope.Execute(ctx, func(repos transaction.Repositories) error {
			if err := repos.EventLog().Append(ctx, evt); err != nil {
				return err
			}
			if err := repos.Shipments().SaveWithLock(ctx, current); err != nil {
				return err
			}
			return repos.Events().Record(ctx, current.GetDomainEvents()...)
		})
		if err != nil {
			if shared.IsConflict(err) {
				log.Warn("otif transition lost a concurrent update", zap.Int("attempt", attempt))
			}
			return err
		}
		current.ClearDomainEvents()
		shipment, event = current, evt
		return nil
	})
	if err != nil {
		switch {
		case shared.IsSequencing(err):
			if s.metrics != nil {
				s.metrics.RecordTransition(ctx, found.Route, target, telemetry.OutcomeRefused)
			}
			log.Info("otif transition refused", zap.Error(err))
		case shared.IsConsistency(err):
			log.Error("otif transition broke shipment consistency", zap.Error(err))
		}
		return nil, err
	}

	log.Info("otif stage recorded",
		zap.Int("sequence", event.Sequence),
		zap.String("status", string(shipment.Status)))

	return &TransitionResponse{
		Shipment: ToShipmentResponse(shipment),
		Event:    ToOtifEventResponse(event),
	}, nil
}

// commitmentOf derives how far the shipment's invoices have gone. Any
// committed invoice commits the shipment, whichever invoice is newest.
// Callers hold the shipment's lock, which every invoice write also takes.
func (s *ShipmentService) commitmentOf(ctx context.Context, tenantID, shipmentID uuid.UUID) (tracking.FinancialCommitment, error) {
	if s.invoices == nil {
		return tracking.CommitmentNone, nil
	}
	invoices, err := s.invoices.FindByShipment(ctx, tenantID, shipmentID)
	if err != nil {
		return "", err
	}
	switch {
	case len(invoices) == 0:
		return tracking.CommitmentNone, nil
	case settlement.AnyCommitted(invoices):
		return tracking.CommitmentCommitted, nil
	default:
		return tracking.CommitmentProforma, nil
	}
}

// AnnotateDelay records an estimated delay for one stage of the shipment.
// The shipment itself is not modified.
func (s *ShipmentService) AnnotateDelay(ctx context.Context, tenantID, userID uuid.UUID, reference, stage string, req AnnotateDelayRequest) (resp *DelayResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "tracking", "annotate_delay",
		attribute.String("shipment.reference", reference),
		attribute.String("otif.stage", stage))
	defer func() { telemetry.EndSpan(span, err) }()

	target, err := tracking.ParseStage(stage)
	if err != nil {
		return nil, shared.NewValidationError("INVALID_STAGE", err.Error())
	}
	shipment, err := s.shipments.FindByReference(ctx, tenantID, reference)
	if err != nil {
		return nil, err
	}
	annotation, err := tracking.NewDelayAnnotation(shipment, target, req.DelayFrom, req.DelayUntil,
		req.Note, req.EvidenceRefs, userID, s.clock.Now())
	if err != nil {
		return nil, err
	}

	err = s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		if err := repos.EventLog().AnnotateDelay(ctx, annotation); err != nil {
			return err
		}
		return repos.Events().Record(ctx, tracking.NewOtifDelayAnnotatedEvent(shipment, annotation))
	})
	if err != nil {
		return nil, err
	}

	logger.LOr(ctx, s.logger).Info("otif delay annotated",
		logger.Shipment(reference),
		logger.Stage(string(target)),
		zap.Duration("delay", annotation.Duration()))

	out := ToDelayResponse(annotation)
	return &out, nil
}

// Get returns the shipment with the given reference
func (s *ShipmentService) Get(ctx context.Context, tenantID uuid.UUID, reference string) (*ShipmentResponse, error) {
	shipment, err := s.shipments.FindByReference(ctx, tenantID, reference)
	if err != nil {
		return nil, err
	}
	out := ToShipmentResponse(shipment)
	return &out, nil
}

// GetByID returns the shipment with the given ID
func (s *ShipmentService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*ShipmentResponse, error) {
	shipment, err := s.shipments.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	out := ToShipmentResponse(shipment)
	return &out, nil
}

// History returns the shipment's OTIF events oldest first
func (s *ShipmentService) History(ctx context.Context, tenantID uuid.UUID, reference string) ([]OtifEventResponse, error) {
	shipment, err := s.shipments.FindByReference(ctx, tenantID, reference)
	if err != nil {
		return nil, err
	}
	events, err := s.eventLog.History(ctx, shipment.ID)
	if err != nil {
		return nil, err
	}
	out := make([]OtifEventResponse, len(events))
	for i := range events {
		out[i] = ToOtifEventResponse(&events[i])
	}
	return out, nil
}

// Delays returns the delay annotations recorded for one stage
func (s *ShipmentService) Delays(ctx context.Context, tenantID uuid.UUID, reference, stage string) ([]DelayResponse, error) {
	target, err := tracking.ParseStage(stage)
	if err != nil {
		return nil, shared.NewValidationError("INVALID_STAGE", err.Error())
	}
	shipment, err := s.shipments.FindByReference(ctx, tenantID, reference)
	if err != nil {
		return nil, err
	}
	delays, err := s.eventLog.DelaysFor(ctx, shipment.ID, target)
	if err != nil {
		return nil, err
	}
	out := make([]DelayResponse, len(delays))
	for i := range delays {
		out[i] = ToDelayResponse(&delays[i])
	}
	return out, nil
}

// List returns a page of shipments
func (s *ShipmentService) List(ctx context.Context, tenantID uuid.UUID, query ShipmentListQuery) (shared.Paginated[ShipmentResponse], error) {
	filter := query.ToFilter()
	rows, total, err := s.shipments.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return shared.Paginated[ShipmentResponse]{}, err
	}
	items := make([]ShipmentResponse, len(rows))
	for i := range rows {
		items[i] = ToShipmentResponse(&rows[i])
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}
