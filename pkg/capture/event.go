package capture

import "github.com/ivikasavnish/go-flowrec/pkg/command"

// Kind is the DOM event type a RawEvent was built from.
type Kind string

const (
	KindClick       Kind = "click"
	KindDoubleClick Kind = "dblclick"
	KindContextMenu Kind = "contextmenu"
	KindKeyDown     Kind = "keydown"
	KindInput       Kind = "input"
	KindChange      Kind = "change"
	KindScroll      Kind = "scroll"
	KindWheel       Kind = "wheel"
)

// Kinds are the DOM event types capture subscribes to.
var Kinds = []Kind{
	KindClick, KindDoubleClick, KindContextMenu, KindKeyDown,
	KindInput, KindChange, KindScroll, KindWheel,
}

// RawEvent is one observed interaction, normalized for the grouper.
type RawEvent struct {
	Kind        Kind
	TimestampMs int64
	Selector    string
	Tag         string

	// Pointer events.
	X, Y float64

	// Keyboard events.
	Key       string
	Modifiers command.Modifiers

	// Input and change events. InputKind is the type attribute of an <input>.
	Value     string
	InputType string
	InputKind string
	Checked   bool

	// Scroll and wheel events. Window is set when no element ancestor scrolls.
	DeltaX, DeltaY float64
	Window         bool
}

// IsScroll reports whether the event moves a scroll position.
func (e RawEvent) IsScroll() bool {
	return e.Kind == KindScroll || e.Kind == KindWheel
}
