// Package command defines the semantic commands a recording is compiled into.
//
// Command is a closed set: every variant lives in this package and carries
// an unexported marker method, so switches over it in other packages can
// only ever see the types declared here.
package command

import (
	"fmt"
	"time"
)

// Kind is the tag of a Command variant.
type Kind string

const (
	KindClick       Kind = "CLICK"
	KindDoubleClick Kind = "DOUBLE_CLICK"
	KindRightClick  Kind = "RIGHT_CLICK"
	KindType        Kind = "TYPE"
	KindSet         Kind = "SET"
	KindScroll      Kind = "SCROLL"
	KindWait        Kind = "WAIT"
	KindShortcut    Kind = "KEYBOARD_SHORTCUT"
	KindKeyPress    Kind = "KEY_PRESS"
)

// Kinds lists every variant tag in declaration order.
var Kinds = []Kind{
	KindClick, KindDoubleClick, KindRightClick, KindType, KindSet,
	KindScroll, KindWait, KindShortcut, KindKeyPress,
}

// Command is one replayable user intent.
type Command interface {
	Kind() Kind
	isCommand()
}

// Direction of a scroll gesture.
type Direction string

const (
	Up    Direction = "UP"
	Down  Direction = "DOWN"
	Left  Direction = "LEFT"
	Right Direction = "RIGHT"
)

// Valid reports whether d is one of the four known directions.
func (d Direction) Valid() bool {
	switch d {
	case Up, Down, Left, Right:
		return true
	}
	return false
}

// WaitMode selects between a fixed delay and polling for an element.
type WaitMode string

const (
	WaitTime     WaitMode = "time"
	WaitSelector WaitMode = "selector"
)

// Click is a primary-button click on an element.
type Click struct {
	Selector string
}

// DoubleClick is a double click on an element.
type DoubleClick struct {
	Selector string
}

// RightClick opens the context menu of an element.
type RightClick struct {
	Selector string
}

// Type appends Value to the current content of an element. An empty
// Selector means the focused element.
type Type struct {
	Selector string
	Value    string
}

// Set replaces the content of an element with Value.
type Set struct {
	Selector string
	Value    string
}

// Scroll scrolls an element, or the window when Selector is empty.
type Scroll struct {
	Selector  string
	Direction Direction
	Amount    int
}

// Wait pauses either for Duration or until Selector matches, bounded by Timeout.
type Wait struct {
	Mode     WaitMode
	Duration time.Duration
	Selector string
	Timeout  time.Duration
}

// Shortcut is a key combined with at least one of Ctrl, Alt or Meta.
type Shortcut struct {
	Key       string
	Modifiers Modifiers
}

// KeyPress is a single non-text key such as Backspace or Escape.
type KeyPress struct {
	Key string
}

func (Click) Kind() Kind       { return KindClick }
func (DoubleClick) Kind() Kind { return KindDoubleClick }
func (RightClick) Kind() Kind  { return KindRightClick }
func (Type) Kind() Kind        { return KindType }
func (Set) Kind() Kind         { return KindSet }
func (Scroll) Kind() Kind      { return KindScroll }
func (Wait) Kind() Kind        { return KindWait }
func (Shortcut) Kind() Kind    { return KindShortcut }
func (KeyPress) Kind() Kind    { return KindKeyPress }

func (Click) isCommand()       {}
func (DoubleClick) isCommand() {}
func (RightClick) isCommand()  {}
func (Type) isCommand()        {}
func (Set) isCommand()         {}
func (Scroll) isCommand()      {}
func (Wait) isCommand()        {}
func (Shortcut) isCommand()    {}
func (KeyPress) isCommand()    {}

// SleepFor returns a time-mode Wait.
func SleepFor(d time.Duration) Wait {
	return Wait{Mode: WaitTime, Duration: d}
}

// WaitFor returns a selector-mode Wait bounded by timeout.
func WaitFor(selector string, timeout time.Duration) Wait {
	return Wait{Mode: WaitSelector, Selector: selector, Timeout: timeout}
}

// SelectorOf returns the element selector a command targets. Window scrolls
// and keyboard-only commands report false.
func SelectorOf(c Command) (string, bool) {
	switch v := c.(type) {
	case Click:
		return v.Selector, true
	case DoubleClick:
		return v.Selector, true
	case RightClick:
		return v.Selector, true
	case Type:
		return v.Selector, v.Selector != ""
	case Set:
		return v.Selector, true
	case Scroll:
		return v.Selector, v.Selector != ""
	case Wait:
		return v.Selector, v.Mode == WaitSelector
	}
	return "", false
}

// Describe renders a short human-readable line for logs and UIs.
func Describe(c Command) string {
	switch v := c.(type) {
	case Click:
		return fmt.Sprintf("CLICK %s", v.Selector)
	case DoubleClick:
		return fmt.Sprintf("DOUBLE_CLICK %s", v.Selector)
	case RightClick:
		return fmt.Sprintf("RIGHT_CLICK %s", v.Selector)
	case Type:
		return fmt.Sprintf("TYPE %s %q", v.Selector, v.Value)
	case Set:
		return fmt.Sprintf("SET %s %q", v.Selector, v.Value)
	case Scroll:
		target := v.Selector
		if target == "" {
			target = "window"
		}
		return fmt.Sprintf("SCROLL %s %s %d", target, v.Direction, v.Amount)
	case Wait:
		if v.Mode == WaitSelector {
			return fmt.Sprintf("WAIT %s (timeout %s)", v.Selector, v.Timeout)
		}
		return fmt.Sprintf("WAIT %s", v.Duration)
	case Shortcut:
		return fmt.Sprintf("KEYBOARD_SHORTCUT %s", Combo(v.Modifiers, v.Key))
	case KeyPress:
		return fmt.Sprintf("KEY_PRESS %s", v.Key)
	case nil:
		return "<nil>"
	}
	return fmt.Sprintf("%T", c)
}

// Clone returns an independent copy of a command list. Variants are plain
// values, so a shallow slice copy is enough.
func Clone(cmds []Command) []Command {
	if cmds == nil {
		return nil
	}
	out := make([]Command, len(cmds))
	copy(out, cmds)
	return out
}
