package debugger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ivikasavnish/go-flowrec/pkg/command"
	"github.com/ivikasavnish/go-flowrec/pkg/page"
)

const (
	DefaultSettleDelay    = 100 * time.Millisecond
	DefaultScrollDuration = 300 * time.Millisecond
	DefaultWaitPoll       = 100 * time.Millisecond
	DefaultWaitTimeout    = 5 * time.Second

	frameInterval = 16 * time.Millisecond
)

// PageExecutor replays commands on a page.Page with synthetic DOM events.
type PageExecutor struct {
	page   page.Page
	logger *zap.Logger

	settle         time.Duration
	scrollDuration time.Duration
	waitPoll       time.Duration
	waitTimeout    time.Duration

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// ExecutorOption configures a PageExecutor.
type ExecutorOption func(*PageExecutor)

// WithSettleDelay sets the pause after each command.
func WithSettleDelay(d time.Duration) ExecutorOption {
	return func(e *PageExecutor) { e.settle = d }
}

// WithScrollDuration sets how long a scroll animation takes.
func WithScrollDuration(d time.Duration) ExecutorOption {
	return func(e *PageExecutor) { e.scrollDuration = d }
}

// WithWaitPoll sets the selector polling interval.
func WithWaitPoll(d time.Duration) ExecutorOption {
	return func(e *PageExecutor) { e.waitPoll = d }
}

// WithWaitTimeout sets the bound for WAIT commands without one.
func WithWaitTimeout(d time.Duration) ExecutorOption {
	return func(e *PageExecutor) { e.waitTimeout = d }
}

// WithSleep replaces the context-aware sleep, for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) ExecutorOption {
	return func(e *PageExecutor) { e.sleep = fn }
}

// WithExecutorClock replaces time.Now.
func WithExecutorClock(now func() time.Time) ExecutorOption {
	return func(e *PageExecutor) { e.now = now }
}

// WithExecutorLogger sets the logger.
func WithExecutorLogger(l *zap.Logger) ExecutorOption {
	return func(e *PageExecutor) { e.logger = l }
}

// NewPageExecutor returns an executor bound to p.
func NewPageExecutor(p page.Page, opts ...ExecutorOption) *PageExecutor {
	e := &PageExecutor{
		page:           p,
		logger:         zap.NewNop(),
		settle:         DefaultSettleDelay,
		scrollDuration: DefaultScrollDuration,
		waitPoll:       DefaultWaitPoll,
		waitTimeout:    DefaultWaitTimeout,
		sleep:          sleepContext,
		now:            time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute runs one command and then waits the settle delay.
func (e *PageExecutor) Execute(ctx context.Context, cmd command.Command) error {
	var err error
	switch c := cmd.(type) {
	case command.Click:
		err = e.click(ctx, c.Selector, 0, "click")
	case command.DoubleClick:
		err = e.doubleClick(ctx, c.Selector)
	case command.RightClick:
		err = e.click(ctx, c.Selector, 2, "contextmenu")
	case command.Type:
		err = e.typeText(ctx, c.Selector, c.Value, false)
	case command.Set:
		err = e.typeText(ctx, c.Selector, c.Value, true)
	case command.Scroll:
		err = e.scroll(ctx, c)
	case command.Wait:
		err = e.wait(ctx, c)
	case command.Shortcut:
		err = e.key(ctx, c.Key, c.Modifiers)
	case command.KeyPress:
		err = e.key(ctx, c.Key, 0)
	default:
		err = fmt.Errorf("%w: %T", ErrUnsupported, cmd)
	}
	if err != nil {
		return err
	}
	e.logger.Debug("replayed", zap.String("command", command.Describe(cmd)))
	return e.sleep(ctx, e.settle)
}

// resolve returns the only node matching selector.
func (e *PageExecutor) resolve(ctx context.Context, selector string) (page.Node, error) {
	nodes, err := e.page.QuerySelectorAll(ctx, selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	if len(nodes) != 1 {
		return nil, &SelectorResolutionError{Selector: selector, Matches: len(nodes)}
	}
	return nodes[0], nil
}

// target resolves selector, or returns the focused element when it is empty.
func (e *PageExecutor) target(ctx context.Context, selector string) (page.Node, error) {
	if selector != "" {
		return e.resolve(ctx, selector)
	}
	n, err := e.page.ActiveElement(ctx)
	if err != nil {
		return nil, fmt.Errorf("active element: %w", err)
	}
	return n, nil
}

func (e *PageExecutor) click(ctx context.Context, selector string, button int, final string) error {
	n, err := e.resolve(ctx, selector)
	if err != nil {
		return err
	}
	x, y, err := center(ctx, n)
	if err != nil {
		return err
	}
	return dispatchAll(ctx, n,
		page.SyntheticEvent{Type: "mousedown", Button: button, Detail: 1, X: x, Y: y},
		page.SyntheticEvent{Type: "mouseup", Button: button, Detail: 1, X: x, Y: y},
		page.SyntheticEvent{Type: final, Button: button, Detail: 1, X: x, Y: y},
	)
}

func (e *PageExecutor) doubleClick(ctx context.Context, selector string) error {
	n, err := e.resolve(ctx, selector)
	if err != nil {
		return err
	}
	x, y, err := center(ctx, n)
	if err != nil {
		return err
	}
	var evs []page.SyntheticEvent
	for detail := 1; detail <= 2; detail++ {
		evs = append(evs,
			page.SyntheticEvent{Type: "mousedown", Detail: detail, X: x, Y: y},
			page.SyntheticEvent{Type: "mouseup", Detail: detail, X: x, Y: y},
			page.SyntheticEvent{Type: "click", Detail: detail, X: x, Y: y},
		)
	}
	evs = append(evs, page.SyntheticEvent{Type: "dblclick", Detail: 2, X: x, Y: y})
	return dispatchAll(ctx, n, evs...)
}

// typeText focuses the node and inserts text one character at a time. With
// replace set the current content is cleared first.
func (e *PageExecutor) typeText(ctx context.Context, selector, text string, replace bool) error {
	n, err := e.target(ctx, selector)
	if err != nil {
		return err
	}
	kind, err := n.EditKind(ctx)
	if err != nil {
		return err
	}
	if kind == page.NotEditable {
		return fmt.Errorf("type into %q: %w", selector, page.ErrNotEditable)
	}
	if err := n.Focus(ctx); err != nil {
		return fmt.Errorf("focus %q: %w", selector, err)
	}

	if replace {
		if err := n.SetValue(ctx, ""); err != nil {
			return err
		}
		if err := n.Dispatch(ctx, page.SyntheticEvent{Type: "input", InputType: "deleteContentBackward"}); err != nil {
			return err
		}
	}

	for _, r := range text {
		ch := string(r)
		key, inputType := keyFor(ch)

		if err := n.Dispatch(ctx, page.SyntheticEvent{Type: "keydown", Key: key}); err != nil {
			return err
		}
		if kind == page.ContentEditable {
			err = n.InsertText(ctx, ch)
		} else {
			var cur string
			if cur, err = n.Value(ctx); err == nil {
				err = n.SetValue(ctx, cur+ch)
			}
		}
		if err != nil {
			return fmt.Errorf("insert into %q: %w", selector, err)
		}
		if err := dispatchAll(ctx, n,
			page.SyntheticEvent{Type: "input", InputType: inputType, Data: ch},
			page.SyntheticEvent{Type: "keyup", Key: key},
		); err != nil {
			return err
		}
	}

	if kind == page.FormInput {
		return n.Dispatch(ctx, page.SyntheticEvent{Type: "change"})
	}
	return nil
}

// scroll animates the offset change over scrollDuration in ~60fps frames.
func (e *PageExecutor) scroll(ctx context.Context, c command.Scroll) error {
	var dx, dy float64
	amount := float64(c.Amount)
	switch c.Direction {
	case command.Up:
		dy = -amount
	case command.Down:
		dy = amount
	case command.Left:
		dx = -amount
	case command.Right:
		dx = amount
	default:
		return fmt.Errorf("%w: %q", command.ErrBadDirection, c.Direction)
	}

	by := e.page.ScrollWindowBy
	if c.Selector != "" {
		n, err := e.resolve(ctx, c.Selector)
		if err != nil {
			return err
		}
		by = n.ScrollBy
	}

	frames := int(e.scrollDuration / frameInterval)
	if frames < 1 {
		frames = 1
	}
	stepX, stepY := dx/float64(frames), dy/float64(frames)
	var doneX, doneY float64
	for f := 1; f <= frames; f++ {
		sx, sy := stepX, stepY
		if f == frames {
			// land exactly on the target despite float rounding
			sx, sy = dx-doneX, dy-doneY
		}
		if err := by(ctx, sx, sy); err != nil {
			return fmt.Errorf("scroll: %w", err)
		}
		doneX += sx
		doneY += sy
		if f < frames {
			if err := e.sleep(ctx, frameInterval); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *PageExecutor) wait(ctx context.Context, c command.Wait) error {
	if c.Mode == command.WaitTime {
		return e.sleep(ctx, c.Duration)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = e.waitTimeout
	}
	start := e.now()
	for {
		nodes, err := e.page.QuerySelectorAll(ctx, c.Selector)
		if err != nil {
			return fmt.Errorf("query %q: %w", c.Selector, err)
		}
		if len(nodes) > 0 {
			return nil
		}
		elapsed := e.now().Sub(start)
		if elapsed >= timeout {
			return &TimeoutError{Selector: c.Selector, Elapsed: elapsed}
		}
		if err := e.sleep(ctx, e.waitPoll); err != nil {
			return err
		}
	}
}

// key sends keydown and keyup to the focused element.
func (e *PageExecutor) key(ctx context.Context, key string, mods command.Modifiers) error {
	n, err := e.target(ctx, "")
	if err != nil {
		return err
	}
	ev := page.SyntheticEvent{
		Key:      key,
		CtrlKey:  mods.Has(command.Ctrl),
		AltKey:   mods.Has(command.Alt),
		ShiftKey: mods.Has(command.Shift),
		MetaKey:  mods.Has(command.Meta),
	}
	down, up := ev, ev
	down.Type, up.Type = "keydown", "keyup"
	return dispatchAll(ctx, n, down, up)
}

func keyFor(ch string) (key, inputType string) {
	switch ch {
	case "\n":
		return "Enter", "insertLineBreak"
	case "\t":
		return "Tab", "insertText"
	}
	return ch, "insertText"
}

func center(ctx context.Context, n page.Node) (float64, float64, error) {
	r, err := n.BoundingRect(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("bounding rect: %w", err)
	}
	x, y := r.Center()
	return x, y, nil
}

func dispatchAll(ctx context.Context, n page.Node, evs ...page.SyntheticEvent) error {
	for _, ev := range evs {
		if err := n.Dispatch(ctx, ev); err != nil {
			return fmt.Errorf("dispatch %s: %w", ev.Type, err)
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
