package models

// State is the workflow status of an art record.
type State string

const (
	StateNone       State = ""
	StateWant       State = "want"
	StateInProgress State = "in_progress"
	StateDone       State = "done"
	StateOnHold     State = "on_hold"
)

var states = []State{StateNone, StateWant, StateInProgress, StateDone, StateOnHold}

func States() []State {
	out := make([]State, len(states))
	copy(out, states)
	return out
}

func (s State) Valid() bool {
	for _, v := range states {
		if s == v {
			return true
		}
	}
	return false
}
