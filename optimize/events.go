package optimize

import "github.com/tailored-agentic-units/stateopt/observability"

const (
	EventOptimizeStart      observability.EventType = "optimize.start"
	EventOptimizePass       observability.EventType = "optimize.pass"
	EventStateRemoved       observability.EventType = "optimize.state.removed"
	EventVariableEliminated observability.EventType = "optimize.variable.eliminated"
	EventChoicesJoined      observability.EventType = "optimize.choices.joined"
	EventOptimizeComplete   observability.EventType = "optimize.complete"
)
