package debugger

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrBusy is returned for operations that need the run to be idle.
	ErrBusy        = errors.New("debugger: a run is in progress")
	ErrOutOfRange  = errors.New("debugger: index out of range")
	ErrUnsupported = errors.New("debugger: unsupported command")
)

// SelectorResolutionError reports a selector that did not match exactly one
// element.
type SelectorResolutionError struct {
	Selector string
	Matches  int
}

func (e *SelectorResolutionError) Error() string {
	if e.Matches == 0 {
		return fmt.Sprintf("selector %q matched no element", e.Selector)
	}
	return fmt.Sprintf("selector %q matched %d elements", e.Selector, e.Matches)
}

// TimeoutError reports a WAIT whose selector never appeared.
type TimeoutError struct {
	Selector string
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %q", e.Elapsed, e.Selector)
}

func outOfRange(i, n int) error {
	return fmt.Errorf("%w: %d not in [0,%d)", ErrOutOfRange, i, n)
}
