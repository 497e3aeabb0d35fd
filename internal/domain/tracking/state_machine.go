package tracking

import (
	"fmt"

	"github.com/freightdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// FinancialCommitment summarises how far the shipment's invoice has gone.
// Cancellation is only allowed up to CommitmentProforma.
type FinancialCommitment string

const (
	CommitmentNone      FinancialCommitment = "NONE"
	CommitmentProforma  FinancialCommitment = "PROFORMA"
	CommitmentCommitted FinancialCommitment = "COMMITTED"
)

// AllowsCancellation reports whether a failure stage may still be entered
func (c FinancialCommitment) AllowsCancellation() bool {
	return c == "" || c == CommitmentNone || c == CommitmentProforma
}

// cancellableStages are the stages from which Rejected/Cancelled may be requested.
var cancellableStages = map[Stage]bool{
	StageBooked:              true,
	StageScheduled:           true,
	StagePickup:              true,
	StageOriginLocalHandling: true,
	StageDeparture:           true,
}

// TransitionRequest is one requested OTIF stage change
type TransitionRequest struct {
	Target     Stage
	Payload    Payload
	Commitment FinancialCommitment
	RecordedBy uuid.UUID
}

// StateMachine validates and applies OTIF transitions. It holds no state of
// its own beyond the clock used to stamp events.
type StateMachine struct {
	clock shared.Clock
}

// NewStateMachine creates a StateMachine stamping events with clock
func NewStateMachine(clock shared.Clock) *StateMachine {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &StateMachine{clock: clock}
}

// RequestTransition checks req against the shipment's current stage and, on
// success, applies it to the shipment and returns the event to append.
// The shipment is left untouched on error.
func (m *StateMachine) RequestTransition(s *Shipment, req TransitionRequest) (*OtifEvent, error) {
	if !req.Target.IsValid() {
		return nil, shared.NewValidationError("INVALID_STAGE", fmt.Sprintf("Unknown OTIF stage: %s", req.Target))
	}
	if s.IsTerminal() {
		return nil, shared.NewSequencingError("SHIPMENT_TERMINAL",
			fmt.Sprintf("Shipment %s is %s and accepts no further transitions", s.ReferenceNumber, s.CurrentStage))
	}

	if req.Target.IsFailure() {
		if !cancellableStages[s.CurrentStage] {
			return nil, shared.NewSequencingError("CANCELLATION_TOO_LATE",
				fmt.Sprintf("Shipment %s cannot be %s after %s", s.ReferenceNumber, req.Target, s.CurrentStage))
		}
		if !req.Commitment.AllowsCancellation() {
			return nil, shared.NewSequencingError("INVOICE_COMMITTED",
				fmt.Sprintf("Shipment %s cannot be %s once its invoice is issued", s.ReferenceNumber, req.Target))
		}
	} else {
		next, err := NextStage(s.Route, s.CurrentStage)
		if err != nil {
			return nil, err
		}
		if req.Target != next {
			return nil, shared.NewSequencingError("OUT_OF_SEQUENCE",
				fmt.Sprintf("Shipment %s is at %s; next stage is %s, not %s", s.ReferenceNumber, s.CurrentStage, next, req.Target))
		}
	}

	if err := ValidatePayload(req.Target, req.Payload); err != nil {
		return nil, err
	}

	now := m.clock.Now()
	from := s.CurrentStage
	event := &OtifEvent{
		ID:                uuid.New(),
		TenantID:          s.TenantID,
		ShipmentID:        s.ID,
		ShipmentReference: s.ReferenceNumber,
		Sequence:          s.LastSequence + 1,
		Stage:             req.Target,
		Payload:           req.Payload.Clone(),
		OccurredAt:        now,
		RecordedBy:        req.RecordedBy,
	}
	s.apply(event)

	if req.Target.IsFailure() {
		s.AddDomainEvent(NewShipmentFailedEvent(s, from, event, req.Payload.String("reason")))
	} else {
		s.AddDomainEvent(NewOtifStageAdvancedEvent(s, from, event, ProgressPercentage(s)))
	}
	return event, nil
}

// NextStage returns the stage that must follow current on route
func NextStage(route ServiceRoute, current Stage) (Stage, error) {
	if current.IsTerminal() {
		return "", shared.NewSequencingError("TERMINAL", fmt.Sprintf("Stage %s is terminal", current))
	}
	stages := mustRoute(route).stages
	idx := indexIn(stages, current)
	if idx < 0 {
		return "", shared.NewSequencingError("STAGE_NOT_ON_ROUTE",
			fmt.Sprintf("Stage %s is not part of route %s", current, route))
	}
	return stages[idx+1], nil
}

// ProgressPercentage sums the weights of every stage up to and including the
// current one. Failure stages report zero.
func ProgressPercentage(s *Shipment) int {
	if s.CurrentStage.IsFailure() {
		return 0
	}
	def := mustRoute(s.Route)
	idx := indexIn(def.stages, s.CurrentStage)
	total := 0
	for i := 0; i <= idx; i++ {
		total += def.weights[def.stages[i]]
	}
	return total
}

// StagesPassed reports progress as "passed of total" milestones, ignoring
// weights. Booked is the starting point and is not counted.
func StagesPassed(s *Shipment) (passed, total int) {
	stages := mustRoute(s.Route).stages
	total = len(stages) - 1
	if s.CurrentStage.IsFailure() {
		return 0, total
	}
	return indexIn(stages, s.CurrentStage), total
}

// HasReached reports whether stage lies at or before current on route.
// Failure stages have reached nothing.
func HasReached(route ServiceRoute, current, stage Stage) bool {
	if current.IsFailure() {
		return false
	}
	stages := mustRoute(route).stages
	target := indexIn(stages, stage)
	return target >= 0 && indexIn(stages, current) >= target
}

// HasDeparted reports whether the shipment has left the port of loading
func HasDeparted(route ServiceRoute, current Stage) bool {
	return HasReached(route, current, StageDeparture)
}
