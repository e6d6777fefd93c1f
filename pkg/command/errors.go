package command

import (
	"errors"
	"fmt"
)

var (
	ErrEmptySelector = errors.New("command: selector is required")
	ErrEmptyKey      = errors.New("command: key is required")
	ErrBadAmount     = errors.New("command: scroll amount must be positive")
	ErrBadDirection  = errors.New("command: unknown scroll direction")
	ErrBadWait       = errors.New("command: invalid wait")
	ErrNilCommand    = errors.New("command: nil command")
)

// UnknownKindError is returned when decoding a record whose type tag is not
// one of the known variants.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("command: unknown type %q", e.Kind)
}

// UnknownModifierError names a modifier that could not be parsed.
type UnknownModifierError struct {
	Name string
}

func (e *UnknownModifierError) Error() string {
	return fmt.Sprintf("command: unknown modifier %q", e.Name)
}
