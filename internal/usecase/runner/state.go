package runner

import "fmt"

// State is the loop's explicit phase. Transitions are validated so a
// logic error surfaces as a loud failure instead of a silent odd run.
type State int

const (
	StateStart State = iota
	StateAwaitAction
	StateExecuting
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateAwaitAction:
		return "AWAIT_ACTION"
	case StateExecuting:
		return "EXECUTING"
	case StateDone:
		return "DONE"
	case StateAborted:
		return "ABORTED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var validTransitions = map[State][]State{
	StateStart:       {StateAwaitAction, StateAborted},
	StateAwaitAction: {StateExecuting, StateDone, StateAborted},
	StateExecuting:   {StateAwaitAction, StateDone, StateAborted},
}

func (s State) canTransition(to State) bool {
	for _, next := range validTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s State) terminal() bool {
	return s == StateDone || s == StateAborted
}
