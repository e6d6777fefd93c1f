// Package grouper folds a stream of capture.RawEvents into a compact list of
// semantic commands.
//
// A Grouper is not safe for concurrent use. The recording session owns it
// from a single goroutine and drives the inactivity flush from there.
package grouper

import (
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ivikasavnish/go-flowrec/pkg/capture"
	"github.com/ivikasavnish/go-flowrec/pkg/command"
)

const (
	DefaultIdleFlush    = 500 * time.Millisecond
	DefaultScrollWindow = 500 * time.Millisecond

	// historySize bounds the look-back used to tell TYPE from SET.
	historySize = 3
)

// Grouper accumulates commands from raw events.
type Grouper struct {
	idleMs         int64
	scrollWindowMs int64
	logger         *zap.Logger

	commands []command.Command
	history  []capture.RawEvent
	buf      keyBuffer
	scrolls  map[scrollKey]scrollMark
}

type keyBuffer struct {
	active   bool
	selector string
	replace  bool
	text     strings.Builder
	lastMs   int64
}

type scrollKey struct {
	selector  string
	direction command.Direction
}

type scrollMark struct {
	index  int
	lastMs int64
}

// Option configures a Grouper.
type Option func(*Grouper)

// WithIdleFlush sets the keystroke inactivity window.
func WithIdleFlush(d time.Duration) Option {
	return func(g *Grouper) { g.idleMs = d.Milliseconds() }
}

// WithScrollWindow sets how long a scroll command stays open for coalescing.
func WithScrollWindow(d time.Duration) Option {
	return func(g *Grouper) { g.scrollWindowMs = d.Milliseconds() }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Grouper) { g.logger = l }
}

// New returns an empty Grouper.
func New(opts ...Option) *Grouper {
	g := &Grouper{
		idleMs:         DefaultIdleFlush.Milliseconds(),
		scrollWindowMs: DefaultScrollWindow.Milliseconds(),
		logger:         zap.NewNop(),
		scrolls:        make(map[scrollKey]scrollMark),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// IdleFlush returns the keystroke inactivity window.
func (g *Grouper) IdleFlush() time.Duration {
	return time.Duration(g.idleMs) * time.Millisecond
}

// Pending reports whether keystrokes are buffered.
func (g *Grouper) Pending() bool { return g.buf.active }

// Commands returns a copy of the commands emitted so far.
func (g *Grouper) Commands() []command.Command {
	return command.Clone(g.commands)
}

// Len returns the number of emitted commands.
func (g *Grouper) Len() int { return len(g.commands) }

// Reset drops every command and all pending state.
func (g *Grouper) Reset() {
	g.commands = nil
	g.history = nil
	g.buf.reset()
	g.scrolls = make(map[scrollKey]scrollMark)
}

// Feed processes one raw event.
func (g *Grouper) Feed(ev capture.RawEvent) {
	if g.buf.active && ev.TimestampMs-g.buf.lastMs >= g.idleMs {
		g.Flush()
	}

	switch ev.Kind {
	case capture.KindKeyDown:
		g.keyDown(ev)
	case capture.KindClick:
		g.Flush()
		if isToggle(ev) {
			// the change event that follows carries the toggle
			break
		}
		g.emit(command.Click{Selector: ev.Selector})
	case capture.KindDoubleClick:
		g.Flush()
		g.dropTrailingClicks(ev.Selector, 2)
		g.emit(command.DoubleClick{Selector: ev.Selector})
	case capture.KindContextMenu:
		g.Flush()
		g.emit(command.RightClick{Selector: ev.Selector})
	case capture.KindChange:
		g.change(ev)
	case capture.KindScroll, capture.KindWheel:
		g.scroll(ev)
	}

	g.remember(ev)
}

// Flush turns buffered keystrokes into one TYPE or SET command. It is a
// no-op when nothing is buffered.
func (g *Grouper) Flush() {
	if !g.buf.active {
		return
	}
	value := g.buf.text.String()
	if g.buf.replace {
		g.emit(command.Set{Selector: g.buf.selector, Value: value})
	} else {
		g.emit(command.Type{Selector: g.buf.selector, Value: value})
	}
	g.buf.reset()
}

func (g *Grouper) keyDown(ev capture.RawEvent) {
	key := ev.Key
	if command.IsModifierKey(key) {
		return
	}

	if ev.Modifiers.Command() {
		g.Flush()
		g.emit(command.Shortcut{Key: key, Modifiers: ev.Modifiers})
		return
	}

	if text, ok := typedText(key); ok {
		if !g.buf.active && isDeletion(key) {
			g.emit(command.KeyPress{Key: key})
			return
		}
		if g.buf.active && g.buf.selector != ev.Selector {
			g.Flush()
		}
		if !g.buf.active {
			g.buf.active = true
			g.buf.selector = ev.Selector
			g.buf.replace = g.replacesContent(ev.Selector)
		}
		// Deletions append nothing: the buffer approximates the keys typed,
		// it does not model the field's final text.
		g.buf.text.WriteString(text)
		g.buf.lastMs = ev.TimestampMs
		return
	}

	if standaloneKeys[key] {
		g.Flush()
		g.emit(command.KeyPress{Key: key})
	}
}

// replacesContent looks back over the last few events before the first
// buffered keystroke. A click or select-all on the same target means the
// typing overwrites the field.
func (g *Grouper) replacesContent(selector string) bool {
	for i := len(g.history) - 1; i >= 0 && i >= len(g.history)-historySize; i-- {
		e := g.history[i]
		switch {
		case e.Kind == capture.KindInput:
			continue
		case e.Kind == capture.KindKeyDown && command.IsModifierKey(e.Key):
			continue
		case e.Kind == capture.KindClick:
			return e.Selector == selector
		case e.Kind == capture.KindKeyDown && isSelectAll(e):
			return e.Selector == selector
		default:
			return false
		}
	}
	return false
}

func (g *Grouper) change(ev capture.RawEvent) {
	switch {
	case ev.Tag == "select":
		g.Flush()
		g.emit(command.Set{Selector: ev.Selector, Value: ev.Value})
	case isToggle(ev):
		g.Flush()
		g.emit(command.Click{Selector: ev.Selector})
	}
}

func (g *Grouper) scroll(ev capture.RawEvent) {
	dir, delta := direction(ev.DeltaX, ev.DeltaY)
	amount := int(math.Round(math.Abs(delta)))
	if dir == "" || amount == 0 {
		return
	}
	g.Flush()

	cmd := command.Scroll{Selector: ev.Selector, Direction: dir, Amount: amount}
	key := scrollKey{selector: ev.Selector, direction: dir}

	if mark, ok := g.scrolls[key]; ok && ev.TimestampMs-mark.lastMs <= g.scrollWindowMs && mark.index < len(g.commands) {
		if prev, ok := g.commands[mark.index].(command.Scroll); ok && prev.Selector == cmd.Selector && prev.Direction == dir {
			g.commands[mark.index] = cmd
			g.scrolls[key] = scrollMark{index: mark.index, lastMs: ev.TimestampMs}
			return
		}
	}

	g.emit(cmd)
	g.scrolls[key] = scrollMark{index: len(g.commands) - 1, lastMs: ev.TimestampMs}
}

// dropTrailingClicks removes up to n plain clicks on selector from the end
// of the list; a browser fires them before every dblclick.
func (g *Grouper) dropTrailingClicks(selector string, n int) {
	for ; n > 0 && len(g.commands) > 0; n-- {
		last, ok := g.commands[len(g.commands)-1].(command.Click)
		if !ok || last.Selector != selector {
			return
		}
		g.commands = g.commands[:len(g.commands)-1]
	}
}

func (g *Grouper) emit(c command.Command) {
	g.commands = append(g.commands, c)
	g.logger.Debug("command emitted",
		zap.Int("index", len(g.commands)-1),
		zap.String("command", command.Describe(c)))
}

func (g *Grouper) remember(ev capture.RawEvent) {
	g.history = append(g.history, ev)
	if len(g.history) > historySize {
		g.history = g.history[len(g.history)-historySize:]
	}
}

func (b *keyBuffer) reset() {
	b.active = false
	b.selector = ""
	b.replace = false
	b.text.Reset()
	b.lastMs = 0
}
