package simulate

import "github.com/tailored-agentic-units/stateopt/observability"

const (
	EventSimulateStart    observability.EventType = "simulate.start"
	EventSimulateState    observability.EventType = "simulate.state"
	EventSimulateRetry    observability.EventType = "simulate.retry"
	EventSimulateCatch    observability.EventType = "simulate.catch"
	EventSimulateCycle    observability.EventType = "simulate.cycle"
	EventSimulateComplete observability.EventType = "simulate.complete"
)
