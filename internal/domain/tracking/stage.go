package tracking

import "fmt"

// ServiceRoute is the door/port combination chosen at booking. It never
// changes for the lifetime of a shipment.
type ServiceRoute string

const (
	RouteDoorToDoor ServiceRoute = "DOOR_TO_DOOR"
	RouteDoorToPort ServiceRoute = "DOOR_TO_PORT"
	RoutePortToDoor ServiceRoute = "PORT_TO_DOOR"
	RoutePortToPort ServiceRoute = "PORT_TO_PORT"
)

// AllRoutes lists every service route
func AllRoutes() []ServiceRoute {
	return []ServiceRoute{RouteDoorToDoor, RouteDoorToPort, RoutePortToDoor, RoutePortToPort}
}

// IsValid checks if the route is a known ServiceRoute
func (r ServiceRoute) IsValid() bool {
	switch r {
	case RouteDoorToDoor, RouteDoorToPort, RoutePortToDoor, RoutePortToPort:
		return true
	}
	return false
}

// String returns the string representation of ServiceRoute
func (r ServiceRoute) String() string {
	return string(r)
}

// ParseServiceRoute converts a string into a ServiceRoute
func ParseServiceRoute(s string) (ServiceRoute, error) {
	r := ServiceRoute(s)
	if !r.IsValid() {
		return "", fmt.Errorf("unknown service route %q", s)
	}
	return r, nil
}

// Stage is one OTIF milestone
type Stage string

const (
	StageBooked                   Stage = "BOOKED"
	StageScheduled                Stage = "SCHEDULED"
	StagePickup                   Stage = "PICKUP"
	StageOriginLocalHandling      Stage = "ORIGIN_LOCAL_HANDLING"
	StageDeparture                Stage = "DEPARTURE"
	StageArrival                  Stage = "ARRIVAL"
	StageDestinationLocalHandling Stage = "DESTINATION_LOCAL_HANDLING"
	StageDelivery                 Stage = "DELIVERY"
	StageComplete                 Stage = "COMPLETE"

	// Failure pseudo-stages live outside every route sequence.
	StageRejected  Stage = "REJECTED"
	StageCancelled Stage = "CANCELLED"
)

// IsValid checks if the stage is a known Stage
func (s Stage) IsValid() bool {
	switch s {
	case StageBooked, StageScheduled, StagePickup, StageOriginLocalHandling, StageDeparture,
		StageArrival, StageDestinationLocalHandling, StageDelivery, StageComplete,
		StageRejected, StageCancelled:
		return true
	}
	return false
}

// IsFailure returns true for Rejected and Cancelled
func (s Stage) IsFailure() bool {
	return s == StageRejected || s == StageCancelled
}

// IsTerminal returns true when no further transition is accepted
func (s Stage) IsTerminal() bool {
	return s == StageComplete || s.IsFailure()
}

// String returns the string representation of Stage
func (s Stage) String() string {
	return string(s)
}

// ParseStage converts a string into a Stage
func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	if !st.IsValid() {
		return "", fmt.Errorf("unknown OTIF stage %q", s)
	}
	return st, nil
}

// CoarseStatus is the dashboard-level summary of a shipment
type CoarseStatus string

const (
	StatusWaiting  CoarseStatus = "WAITING"
	StatusOngoing  CoarseStatus = "ONGOING"
	StatusComplete CoarseStatus = "COMPLETE"
	StatusFailed   CoarseStatus = "FAILED"
)

// IsValid checks if the status is a known CoarseStatus
func (c CoarseStatus) IsValid() bool {
	switch c {
	case StatusWaiting, StatusOngoing, StatusComplete, StatusFailed:
		return true
	}
	return false
}

// String returns the string representation of CoarseStatus
func (c CoarseStatus) String() string {
	return string(c)
}

// CoarseStatusOf derives the coarse status from a stage
func CoarseStatusOf(stage Stage) CoarseStatus {
	switch {
	case stage.IsFailure():
		return StatusFailed
	case stage == StageComplete:
		return StatusComplete
	case stage == StageBooked || stage == StageScheduled:
		return StatusWaiting
	default:
		return StatusOngoing
	}
}
