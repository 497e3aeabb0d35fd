package tracking

import "fmt"

type routeDefinition struct {
	stages  []Stage
	weights map[Stage]int
}

// routeTable must be total over AllRoutes; init panics otherwise.
var routeTable = map[ServiceRoute]routeDefinition{
	RouteDoorToDoor: {
		stages: []Stage{
			StageBooked, StageScheduled, StagePickup, StageOriginLocalHandling, StageDeparture,
			StageArrival, StageDestinationLocalHandling, StageDelivery, StageComplete,
		},
		weights: map[Stage]int{
			StageScheduled:                10,
			StagePickup:                   10,
			StageOriginLocalHandling:      15,
			StageDeparture:                35,
			StageArrival:                  10,
			StageDestinationLocalHandling: 10,
			StageDelivery:                 10,
		},
	},
	RouteDoorToPort: {
		stages: []Stage{
			StageBooked, StageScheduled, StagePickup, StageOriginLocalHandling, StageDeparture,
			StageArrival, StageComplete,
		},
		weights: map[Stage]int{
			StageScheduled:           10,
			StagePickup:              15,
			StageOriginLocalHandling: 15,
			StageDeparture:           40,
			StageArrival:             20,
		},
	},
	RoutePortToDoor: {
		stages: []Stage{
			StageBooked, StageScheduled, StageDeparture, StageArrival,
			StageDestinationLocalHandling, StageDelivery, StageComplete,
		},
		weights: map[Stage]int{
			StageScheduled:                10,
			StageDeparture:                40,
			StageArrival:                  20,
			StageDestinationLocalHandling: 15,
			StageDelivery:                 15,
		},
	},
	RoutePortToPort: {
		stages: []Stage{
			StageBooked, StageScheduled, StageDeparture, StageArrival, StageComplete,
		},
		weights: map[Stage]int{
			StageScheduled: 20,
			StageDeparture: 50,
			StageArrival:   30,
		},
	},
}

func init() {
	for _, route := range AllRoutes() {
		def, ok := routeTable[route]
		if !ok {
			panic(fmt.Sprintf("tracking: route %s has no stage table", route))
		}
		if len(def.stages) < 2 || def.stages[0] != StageBooked || def.stages[len(def.stages)-1] != StageComplete {
			panic(fmt.Sprintf("tracking: route %s must run from BOOKED to COMPLETE", route))
		}
		sum := 0
		for stage, w := range def.weights {
			if stage == StageBooked || stage == StageComplete || indexIn(def.stages, stage) < 0 {
				panic(fmt.Sprintf("tracking: route %s weights stage %s outside its sequence", route, stage))
			}
			sum += w
		}
		if sum != 100 {
			panic(fmt.Sprintf("tracking: route %s weights sum to %d", route, sum))
		}
	}
}

func mustRoute(route ServiceRoute) routeDefinition {
	def, ok := routeTable[route]
	if !ok {
		panic(fmt.Sprintf("tracking: unknown service route %q", route))
	}
	return def
}

func indexIn(stages []Stage, stage Stage) int {
	for i, s := range stages {
		if s == stage {
			return i
		}
	}
	return -1
}

// StagesFor returns the ordered stage sequence of a route. It panics on an
// unknown route.
func StagesFor(route ServiceRoute) []Stage {
	stages := mustRoute(route).stages
	out := make([]Stage, len(stages))
	copy(out, stages)
	return out
}

// WeightOf returns the progress points a stage contributes on a route.
// Booked, Complete, failure stages and stages off the route weigh zero.
func WeightOf(route ServiceRoute, stage Stage) int {
	return mustRoute(route).weights[stage]
}

// TerminalStagesFor returns the stages after which no transition is accepted
func TerminalStagesFor(route ServiceRoute) []Stage {
	mustRoute(route)
	return []Stage{StageComplete, StageRejected, StageCancelled}
}

// StageIndex returns the position of stage in the route sequence, or -1
func StageIndex(route ServiceRoute, stage Stage) int {
	return indexIn(mustRoute(route).stages, stage)
}

// IsOnRoute reports whether stage belongs to the route sequence
func IsOnRoute(route ServiceRoute, stage Stage) bool {
	return StageIndex(route, stage) >= 0
}
