package capture

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyStarted = errors.New("capture: already started")
	ErrNilSink        = errors.New("capture: nil sink")
)

// CaptureError reports a failure to attach or detach page listeners. It is
// fatal to the recording session that owns the capture.
type CaptureError struct {
	Op  string
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture: %s listeners: %v", e.Op, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }
