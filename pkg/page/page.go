// Package page declares the page-interaction capabilities the recorder and
// the debugger depend on. Concrete bindings live in pkg/browser (go-rod),
// pkg/cdppage (chromedp) and pkg/page/pagetest (in-memory).
package page

import (
	"context"
	"errors"
)

var (
	ErrDetached    = errors.New("page: node is detached")
	ErrNotEditable = errors.New("page: node is not editable")
)

// Rect is a bounding client rectangle in CSS pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// EditKind tells how text is inserted into a node.
type EditKind int

const (
	NotEditable EditKind = iota
	FormInput            // <input>, <textarea>: value property
	ContentEditable      // contenteditable host: text nodes
)

// SyntheticEvent is an event dispatched on a node with dispatchEvent.
type SyntheticEvent struct {
	Type      string  `json:"type"`
	Key       string  `json:"key,omitempty"`
	Button    int     `json:"button,omitempty"`
	Detail    int     `json:"detail,omitempty"`
	X         float64 `json:"clientX,omitempty"`
	Y         float64 `json:"clientY,omitempty"`
	CtrlKey   bool    `json:"ctrlKey,omitempty"`
	AltKey    bool    `json:"altKey,omitempty"`
	ShiftKey  bool    `json:"shiftKey,omitempty"`
	MetaKey   bool    `json:"metaKey,omitempty"`
	InputType string  `json:"inputType,omitempty"`
	Data      string  `json:"data,omitempty"`
}

// Page is the document-level capability set.
type Page interface {
	// QuerySelectorAll returns every node matching selector.
	QuerySelectorAll(ctx context.Context, selector string) ([]Node, error)
	// ActiveElement returns the focused node, or the body when nothing is focused.
	ActiveElement(ctx context.Context) (Node, error)
	ScrollWindowBy(ctx context.Context, dx, dy float64) error
	URL(ctx context.Context) (string, error)
}

// Node is the element-level capability set.
type Node interface {
	Dispatch(ctx context.Context, ev SyntheticEvent) error
	BoundingRect(ctx context.Context) (Rect, error)
	IsScrollable(ctx context.Context) (bool, error)
	Focus(ctx context.Context) error
	EditKind(ctx context.Context) (EditKind, error)
	Value(ctx context.Context) (string, error)
	// SetValue replaces the value of a form input or the text of a
	// contenteditable host.
	SetValue(ctx context.Context, value string) error
	// InsertText inserts text at the caret of a contenteditable host.
	InsertText(ctx context.Context, text string) error
	ScrollBy(ctx context.Context, dx, dy float64) error
}

// ScrollReporter is implemented by pages that can report the current window
// scroll offset.
type ScrollReporter interface {
	ScrollOffset(ctx context.Context) (x, y float64, err error)
}

// EventSource delivers raw DOM events observed at document level.
type EventSource interface {
	// Subscribe attaches listeners and calls fn for every event until the
	// returned unsubscribe function is called or ctx ends.
	Subscribe(ctx context.Context, fn func(DOMEvent)) (unsubscribe func() error, err error)
}
