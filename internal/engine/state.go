package engine

import "fmt"

// State is a step of the guarded GenAI request lifecycle.
type State string

const (
	StatePending          State = "PENDING"
	StateInputValidating  State = "INPUT_VALIDATING"
	StateInputRejected    State = "INPUT_REJECTED"
	StateModelInvoking    State = "MODEL_INVOKING"
	StateOutputValidating State = "OUTPUT_VALIDATING"
	StateOutputFixing     State = "OUTPUT_FIXING"
	StateOutputRejected   State = "OUTPUT_REJECTED"
	StateAccepted         State = "ACCEPTED"
	StateFailed           State = "FAILED"
)

// transitions lists the allowed next states. FAILED is reachable from every
// non-terminal state and is added by canTransition.
var transitions = map[State][]State{
	StatePending:          {StateInputValidating},
	StateInputValidating:  {StateInputRejected, StateModelInvoking},
	StateModelInvoking:    {StateOutputValidating},
	StateOutputValidating: {StateOutputRejected, StateOutputFixing, StateAccepted},
	StateOutputFixing:     {StateOutputValidating},
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	switch s {
	case StateInputRejected, StateOutputRejected, StateAccepted, StateFailed:
		return true
	}
	return false
}

func canTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// invalidTransition is raised when the engine attempts an edge outside the
// table. Process recovers it into a FAILED outcome.
type invalidTransition struct {
	from, to State
}

func (e invalidTransition) Error() string {
	return fmt.Sprintf("invalid state transition %s -> %s", e.from, e.to)
}
