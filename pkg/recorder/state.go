package recorder

import "fmt"

// State is the lifecycle position of a Session.
type State string

const (
	StateReady     State = "READY"
	StateRecording State = "RECORDING"
	StatePaused    State = "PAUSED"
	StateStopped   State = "STOPPED"
	// StateAborted is terminal; the event source could not be attached or
	// detached.
	StateAborted State = "ABORTED"
)

// Active reports whether events are being captured in this state.
func (s State) Active() bool {
	return s == StateRecording || s == StatePaused
}

// Terminal reports whether the session can no longer change state.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateAborted
}

// TransitionError reports an operation that is illegal in the current state.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("recorder: cannot go from %s to %s", e.From, e.To)
}
