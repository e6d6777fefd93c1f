// Package capture turns DOM events from a page.EventSource into RawEvents.
package capture

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ivikasavnish/go-flowrec/pkg/command"
	"github.com/ivikasavnish/go-flowrec/pkg/page"
	"github.com/ivikasavnish/go-flowrec/pkg/selector"
)

const windowKey = "\x00window"

// Capture subscribes to a page and forwards normalized events to a sink.
type Capture struct {
	src    page.EventSource
	logger *zap.Logger
	now    func() time.Time

	mu          sync.Mutex
	started     bool
	start       time.Time
	sink        func(RawEvent)
	unsubscribe func() error
	offsets     map[string][2]float64
}

// Option configures a Capture.
type Option func(*Capture)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Capture) { c.logger = l }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Capture) { c.now = now }
}

// New creates a stopped Capture over src.
func New(src page.EventSource, opts ...Option) *Capture {
	c := &Capture{
		src:    src,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start attaches the page listeners. Events are timestamped relative to the
// moment Start is called.
func (c *Capture) Start(ctx context.Context, sink func(RawEvent)) error {
	if sink == nil {
		return ErrNilSink
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return ErrAlreadyStarted
	}

	c.start = c.now()
	c.sink = sink
	c.offsets = make(map[string][2]float64)
	if r, ok := c.src.(page.ScrollReporter); ok {
		x, y, err := r.ScrollOffset(ctx)
		if err != nil {
			c.logger.Warn("window scroll offset unavailable", zap.Error(err))
		} else {
			c.offsets[windowKey] = [2]float64{x, y}
		}
	}

	unsub, err := c.src.Subscribe(ctx, c.handle)
	if err != nil {
		return &CaptureError{Op: "attach", Err: err}
	}
	c.unsubscribe = unsub
	c.started = true
	c.logger.Debug("capture started")
	return nil
}

// Stop detaches every listener. Calling Stop on a stopped capture is a no-op.
// The lock is released before unsubscribing so an in-flight handler can
// drain.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	c.sink = nil
	unsub := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsub != nil {
		if err := unsub(); err != nil {
			return &CaptureError{Op: "detach", Err: err}
		}
	}
	c.logger.Debug("capture stopped")
	return nil
}

// Active reports whether listeners are attached.
func (c *Capture) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

func (c *Capture) handle(ev page.DOMEvent) {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	raw, ok := c.normalize(ev)
	sink := c.sink
	c.mu.Unlock()

	if ok {
		sink(raw)
	}
}

// normalize must be called with c.mu held.
func (c *Capture) normalize(ev page.DOMEvent) (RawEvent, bool) {
	target := ev.Target
	if target == nil || selector.IsOwnElement(target) {
		return RawEvent{}, false
	}

	raw := RawEvent{
		Kind:        Kind(ev.Type),
		TimestampMs: c.now().Sub(c.start).Milliseconds(),
		Tag:         strings.ToLower(target.TagName),
		Modifiers:   modifiers(ev),
		InputKind:   strings.ToLower(target.InputType),
	}

	switch raw.Kind {
	case KindClick, KindDoubleClick, KindContextMenu:
		raw.Selector = selector.Generate(target)
		raw.X, raw.Y = ev.X, ev.Y

	case KindKeyDown:
		if ev.Key == "" {
			return RawEvent{}, false
		}
		raw.Selector = selector.Generate(target)
		raw.Key = ev.Key

	case KindInput, KindChange:
		raw.Selector = selector.Generate(target)
		raw.Value = ev.Value
		raw.InputType = ev.InputType
		raw.Checked = ev.Checked

	case KindWheel, KindScroll:
		scroller := target.ScrollableAncestor()
		if scroller == nil {
			raw.Window = true
			raw.Tag = "window"
		} else {
			raw.Selector = selector.Generate(scroller)
			raw.Tag = strings.ToLower(scroller.TagName)
		}
		if raw.Kind == KindWheel {
			c.seedOffset(raw, scroller, ev)
			raw.DeltaX, raw.DeltaY = ev.DeltaX, ev.DeltaY
		} else {
			raw.DeltaX, raw.DeltaY = c.scrollDelta(raw, scroller, ev)
		}
		if raw.DeltaX == 0 && raw.DeltaY == 0 {
			return RawEvent{}, false
		}

	default:
		return RawEvent{}, false
	}
	return raw, true
}

// scrollDelta derives the movement of a scroll event from the last offset
// seen for the same target. The first offset seen for a target is only a
// baseline and yields no movement.
func (c *Capture) scrollDelta(raw RawEvent, scroller *page.ElementInfo, ev page.DOMEvent) (float64, float64) {
	key, x, y := offsetOf(raw, scroller, ev)
	prev, seen := c.offsets[key]
	c.offsets[key] = [2]float64{x, y}
	if !seen {
		return 0, 0
	}
	return x - prev[0], y - prev[1]
}

// seedOffset records the pre-scroll offset carried by a wheel event when
// the target has no baseline yet.
func (c *Capture) seedOffset(raw RawEvent, scroller *page.ElementInfo, ev page.DOMEvent) {
	key, x, y := offsetOf(raw, scroller, ev)
	if _, seen := c.offsets[key]; !seen {
		c.offsets[key] = [2]float64{x, y}
	}
}

func offsetOf(raw RawEvent, scroller *page.ElementInfo, ev page.DOMEvent) (string, float64, float64) {
	if scroller != nil {
		return raw.Selector, scroller.ScrollLeft, scroller.ScrollTop
	}
	return windowKey, ev.ScrollX, ev.ScrollY
}

func modifiers(ev page.DOMEvent) command.Modifiers {
	var m command.Modifiers
	if ev.CtrlKey {
		m |= command.Ctrl
	}
	if ev.AltKey {
		m |= command.Alt
	}
	if ev.ShiftKey {
		m |= command.Shift
	}
	if ev.MetaKey {
		m |= command.Meta
	}
	return m
}
