package client

// State is the conversation's request state.
type State int

const (
	// StateIdle accepts a new submission.
	StateIdle State = iota
	// StateAwaiting has exactly one relay call in flight.
	StateAwaiting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaiting:
		return "awaiting"
	default:
		return "unknown"
	}
}

// begin moves Idle to Awaiting. Any other state refuses the transition, which
// is how a submission made while a reply is pending gets dropped.
func (s State) begin() (State, bool) {
	if s != StateIdle {
		return s, false
	}
	return StateAwaiting, true
}

// settle returns to Idle however the relay call ended.
func (s State) settle() State {
	return StateIdle
}
