// Package debugger steps through a command list against a live page with
// breakpoints, cooperative pause and inline editing.
package debugger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ivikasavnish/go-flowrec/pkg/command"
)

// Mode is the debugger's run state.
type Mode string

const (
	ModeIdle      Mode = "idle"
	ModeRunning   Mode = "running"
	ModePaused    Mode = "paused"
	ModeCompleted Mode = "completed"
	ModeStopped   Mode = "stopped"
)

// Executor performs one command against a page.
type Executor interface {
	Execute(ctx context.Context, cmd command.Command) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, cmd command.Command) error

func (f ExecutorFunc) Execute(ctx context.Context, cmd command.Command) error { return f(ctx, cmd) }

// State is a snapshot of the debugger.
type State struct {
	Commands    []command.Command `json:"-"`
	Cursor      int               `json:"cursor"`
	Breakpoints []int             `json:"breakpoints"`
	Mode        Mode              `json:"mode"`
	// Failed is the index of the command that last failed, or -1.
	Failed    int    `json:"failed"`
	LastError string `json:"last_error,omitempty"`
}

// Report describes the outcome of Step or Run.
type Report struct {
	Executed     int   `json:"executed"`
	Cursor       int   `json:"cursor"`
	Mode         Mode  `json:"mode"`
	EndOfActions bool  `json:"end_of_actions,omitempty"`
	Breakpoint   bool  `json:"breakpoint,omitempty"`
	Err          error `json:"-"`
}

// Debugger owns an editable copy of a command list.
type Debugger struct {
	exec   Executor
	logger *zap.Logger

	mu          sync.Mutex
	commands    []command.Command
	cursor      int
	breakpoints map[int]struct{}
	mode        Mode
	failed      int
	lastErr     error

	pauseReq atomic.Bool
	stopReq  atomic.Bool
}

// Option configures a Debugger.
type Option func(*Debugger)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Debugger) { d.logger = l }
}

// WithBreakpoints presets breakpoints; indexes out of range are ignored.
func WithBreakpoints(idx ...int) Option {
	return func(d *Debugger) {
		for _, i := range idx {
			if i >= 0 && i < len(d.commands) {
				d.breakpoints[i] = struct{}{}
			}
		}
	}
}

// New returns an idle debugger over a copy of commands.
func New(commands []command.Command, exec Executor, opts ...Option) *Debugger {
	d := &Debugger{
		exec:        exec,
		logger:      zap.NewNop(),
		commands:    command.Clone(commands),
		breakpoints: make(map[int]struct{}),
		mode:        ModeIdle,
		failed:      -1,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Step executes the command at the cursor. At the end of the list it
// reports EndOfActions and changes nothing.
func (d *Debugger) Step(ctx context.Context) Report {
	d.mu.Lock()
	if d.mode == ModeRunning {
		defer d.mu.Unlock()
		return d.report(0, ErrBusy)
	}
	if d.cursor >= len(d.commands) {
		defer d.mu.Unlock()
		r := d.report(0, nil)
		r.EndOfActions = true
		return r
	}
	i, cmd := d.cursor, d.commands[d.cursor]
	d.mode = ModeRunning
	d.mu.Unlock()

	err := d.execute(ctx, i, cmd)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.fail(i, err)
		return d.report(0, err)
	}
	d.cursor++
	d.mode = ModeIdle
	return d.report(1, nil)
}

// Run executes from the cursor until the end, a breakpoint, a failure or a
// pause/stop request. A breakpoint on the first index this run executes
// does not stop it, so Run resumes past the breakpoint it paused on.
func (d *Debugger) Run(ctx context.Context) Report {
	d.mu.Lock()
	if d.mode == ModeRunning {
		defer d.mu.Unlock()
		return d.report(0, ErrBusy)
	}
	d.mode = ModeRunning
	d.pauseReq.Store(false)
	d.stopReq.Store(false)
	first := d.cursor
	d.mu.Unlock()

	d.logger.Debug("run started", zap.Int("cursor", first))

	executed := 0
	for {
		d.mu.Lock()
		i := d.cursor
		if r, halt := d.halt(ctx, i, first, executed); halt {
			d.mu.Unlock()
			return r
		}
		cmd := d.commands[i]
		d.mu.Unlock()

		err := d.execute(ctx, i, cmd)

		d.mu.Lock()
		if err != nil {
			d.fail(i, err)
			r := d.report(executed, err)
			d.mu.Unlock()
			return r
		}
		d.cursor++
		executed++
		d.mu.Unlock()
	}
}

// halt decides whether Run stops before index i; the caller holds d.mu.
func (d *Debugger) halt(ctx context.Context, i, first, executed int) (Report, bool) {
	var r Report
	switch {
	case i >= len(d.commands):
		d.mode = ModeCompleted
		r = d.report(executed, nil)
		r.EndOfActions = true
	case d.stopReq.Load() || ctx.Err() != nil:
		d.mode = ModeStopped
		r = d.report(executed, nil)
	case d.pauseReq.Load():
		d.mode = ModePaused
		r = d.report(executed, nil)
	case i != first && d.hasBreakpoint(i):
		d.mode = ModePaused
		r = d.report(executed, nil)
		r.Breakpoint = true
	default:
		return r, false
	}
	d.logger.Debug("run halted", zap.Int("cursor", i), zap.String("mode", string(d.mode)))
	return r, true
}

// Pause asks a run to halt after the in-flight command. It is a no-op when
// nothing is running.
func (d *Debugger) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode == ModeRunning {
		d.pauseReq.Store(true)
	}
}

// Stop abandons the run. A running command completes first.
func (d *Debugger) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode == ModeRunning {
		d.stopReq.Store(true)
		return
	}
	d.mode = ModeStopped
}

// Restart rewinds to the first command. Breakpoints are kept.
func (d *Debugger) Restart() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode == ModeRunning {
		return ErrBusy
	}
	d.cursor = 0
	d.mode = ModeIdle
	d.failed = -1
	d.lastErr = nil
	return nil
}

// SetBreakpoint adds or removes the breakpoint at i.
func (d *Debugger) SetBreakpoint(i int, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.commands) {
		return outOfRange(i, len(d.commands))
	}
	if on {
		d.breakpoints[i] = struct{}{}
	} else {
		delete(d.breakpoints, i)
	}
	return nil
}

// ToggleBreakpoint flips the breakpoint at i and returns its new setting.
func (d *Debugger) ToggleBreakpoint(i int) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.commands) {
		return false, outOfRange(i, len(d.commands))
	}
	if d.hasBreakpoint(i) {
		delete(d.breakpoints, i)
		return false, nil
	}
	d.breakpoints[i] = struct{}{}
	return true, nil
}

// Edit replaces the command at i.
func (d *Debugger) Edit(i int, cmd command.Command) error {
	if err := command.Validate(cmd); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode == ModeRunning {
		return ErrBusy
	}
	if i < 0 || i >= len(d.commands) {
		return outOfRange(i, len(d.commands))
	}
	d.commands[i] = cmd
	return nil
}

// Delete removes the command at i. Breakpoints after i shift down, the
// breakpoint at i goes away and a cursor past i moves back by one.
func (d *Debugger) Delete(i int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode == ModeRunning {
		return ErrBusy
	}
	if i < 0 || i >= len(d.commands) {
		return outOfRange(i, len(d.commands))
	}

	d.commands = append(d.commands[:i], d.commands[i+1:]...)

	shifted := make(map[int]struct{}, len(d.breakpoints))
	for b := range d.breakpoints {
		switch {
		case b < i:
			shifted[b] = struct{}{}
		case b > i:
			shifted[b-1] = struct{}{}
		}
	}
	d.breakpoints = shifted

	if d.cursor > i {
		d.cursor--
	}
	if d.failed == i {
		d.failed = -1
	} else if d.failed > i {
		d.failed--
	}
	return nil
}

// Insert places cmd before index i; i == len appends.
func (d *Debugger) Insert(i int, cmd command.Command) error {
	if err := command.Validate(cmd); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode == ModeRunning {
		return ErrBusy
	}
	if i < 0 || i > len(d.commands) {
		return outOfRange(i, len(d.commands)+1)
	}

	d.commands = append(d.commands, nil)
	copy(d.commands[i+1:], d.commands[i:])
	d.commands[i] = cmd

	shifted := make(map[int]struct{}, len(d.breakpoints))
	for b := range d.breakpoints {
		if b >= i {
			b++
		}
		shifted[b] = struct{}{}
	}
	d.breakpoints = shifted

	if d.cursor > i {
		d.cursor++
	}
	if d.failed >= i {
		d.failed++
	}
	return nil
}

// State returns a snapshot.
func (d *Debugger) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := State{
		Commands:    command.Clone(d.commands),
		Cursor:      d.cursor,
		Breakpoints: d.sortedBreakpoints(),
		Mode:        d.mode,
		Failed:      d.failed,
	}
	if d.lastErr != nil {
		s.LastError = d.lastErr.Error()
	}
	return s
}

// Commands returns a copy of the debugger's command list.
func (d *Debugger) Commands() []command.Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return command.Clone(d.commands)
}

func (d *Debugger) execute(ctx context.Context, i int, cmd command.Command) error {
	d.logger.Debug("executing", zap.Int("index", i), zap.String("command", command.Describe(cmd)))
	if err := d.exec.Execute(ctx, cmd); err != nil {
		return fmt.Errorf("command %d (%s): %w", i, cmd.Kind(), err)
	}
	return nil
}

// fail records a failure; the caller holds d.mu.
func (d *Debugger) fail(i int, err error) {
	d.mode = ModePaused
	d.failed = i
	d.lastErr = err
	d.logger.Warn("command failed", zap.Int("index", i), zap.Error(err))
}

func (d *Debugger) report(executed int, err error) Report {
	if err == nil && executed > 0 {
		d.failed = -1
		d.lastErr = nil
	}
	return Report{Executed: executed, Cursor: d.cursor, Mode: d.mode, Err: err}
}

func (d *Debugger) hasBreakpoint(i int) bool {
	_, ok := d.breakpoints[i]
	return ok
}

func (d *Debugger) sortedBreakpoints() []int {
	out := make([]int, 0, len(d.breakpoints))
	for b := range d.breakpoints {
		out = append(out, b)
	}
	sort.Ints(out)
	return out
}
