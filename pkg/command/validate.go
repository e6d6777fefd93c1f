package command

import "fmt"

// Validate checks the structure of a single command. It does not
// look at any page: a selector that no longer matches is a replay failure,
// not an invalid command.
func Validate(c Command) error {
	switch v := c.(type) {
	case nil:
		return ErrNilCommand
	case Click:
		return requireSelector(v.Selector)
	case DoubleClick:
		return requireSelector(v.Selector)
	case RightClick:
		return requireSelector(v.Selector)
	case Set:
		return requireSelector(v.Selector)
	case Scroll:
		if !v.Direction.Valid() {
			return fmt.Errorf("%w: %q", ErrBadDirection, v.Direction)
		}
		if v.Amount <= 0 {
			return ErrBadAmount
		}
	case Wait:
		switch v.Mode {
		case WaitTime:
			if v.Duration < 0 {
				return fmt.Errorf("%w: negative duration", ErrBadWait)
			}
		case WaitSelector:
			if err := requireSelector(v.Selector); err != nil {
				return err
			}
			if v.Timeout <= 0 {
				return fmt.Errorf("%w: timeout must be positive", ErrBadWait)
			}
		default:
			return fmt.Errorf("%w: mode %q", ErrBadWait, v.Mode)
		}
	case Shortcut:
		if v.Key == "" {
			return ErrEmptyKey
		}
	case KeyPress:
		if v.Key == "" {
			return ErrEmptyKey
		}
	}
	return nil
}

// ValidateAll validates every command and reports the first failing index.
func ValidateAll(cmds []Command) error {
	for i, c := range cmds {
		if err := Validate(c); err != nil {
			return fmt.Errorf("command %d: %w", i, err)
		}
	}
	return nil
}

func requireSelector(s string) error {
	if s == "" {
		return ErrEmptySelector
	}
	return nil
}
