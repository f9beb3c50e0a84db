package pipeline

import "fmt"

// State is the lifecycle tag of one video within a run
type State string

const (
	StateInit        State = "INIT"
	StateResolved    State = "RESOLVED"
	StateExtracted   State = "EXTRACTED"
	StateTranscribed State = "TRANSCRIBED"
	StateWritten     State = "WRITTEN"
	StateFailed      State = "FAILED"
)

var nextState = map[State]State{
	StateInit:        StateResolved,
	StateResolved:    StateExtracted,
	StateExtracted:   StateTranscribed,
	StateTranscribed: StateWritten,
}

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == StateWritten || s == StateFailed
}

// RunState tracks one video through the pipeline
type RunState struct {
	state State
	err   error
}

// NewRunState returns a state in INIT
func NewRunState() *RunState {
	return &RunState{state: StateInit}
}

// State returns the current tag
func (r *RunState) State() State {
	return r.state
}

// Err returns the failure record, nil unless FAILED
func (r *RunState) Err() error {
	return r.err
}

// Advance moves to the given state if it is the immediate successor
func (r *RunState) Advance(to State) error {
	if next, ok := nextState[r.state]; !ok || next != to {
		return fmt.Errorf("illegal transition %s -> %s", r.state, to)
	}
	r.state = to
	return nil
}

// Fail moves to FAILED with the given error. INIT and terminal states cannot fail.
func (r *RunState) Fail(err error) error {
	if r.state == StateInit || r.state.Terminal() {
		return fmt.Errorf("illegal transition %s -> %s", r.state, StateFailed)
	}
	if err == nil {
		err = fmt.Errorf("unspecified failure")
	}
	r.state = StateFailed
	r.err = err
	return nil
}
