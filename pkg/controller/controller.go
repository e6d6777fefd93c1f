// Package controller routes host messages to the recording session, the
// debugger, the code generator and the persistence and export collaborators.
// A recording session and a debugger never coexist.
package controller

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ivikasavnish/go-flowrec/pkg/codegen"
	"github.com/ivikasavnish/go-flowrec/pkg/command"
	"github.com/ivikasavnish/go-flowrec/pkg/debugger"
	"github.com/ivikasavnish/go-flowrec/pkg/export"
	"github.com/ivikasavnish/go-flowrec/pkg/flowstore"
	"github.com/ivikasavnish/go-flowrec/pkg/page"
	"github.com/ivikasavnish/go-flowrec/pkg/recorder"
)

var (
	ErrUnknownAction  = errors.New("unknown action")
	ErrRecording      = errors.New("a recording session is active")
	ErrNotRecording   = errors.New("no recording session")
	ErrDebuggerOpen   = errors.New("the debugger is open")
	ErrNoDebugger     = errors.New("the debugger is not open")
	ErrNoCommands     = errors.New("no commands recorded")
	ErrMissingIndex   = errors.New("missing index")
	ErrMissingCommand = errors.New("missing command")
	ErrNoStore        = errors.New("no flow store configured")
	ErrNoExporter     = errors.New("no exporter configured")
	ErrBadDestination = errors.New("unknown export destination")
)

// Target is the live page the controller records and replays on.
type Target interface {
	page.Page
	page.EventSource
}

// Controller owns the current command list and at most one of a recording
// session or a debugger.
type Controller struct {
	target   Target
	store    flowstore.Store
	exporter export.Exporter
	logger   *zap.Logger
	now      func() time.Time

	recorderOpts []recorder.Option
	execOpts     []debugger.ExecutorOption

	mu       sync.Mutex
	idle     *sync.Cond
	session  *recorder.Session
	commands []command.Command

	debug       *debugger.Debugger
	debugCtx    context.Context
	debugCancel context.CancelFunc
	// runs counts debug_step and debug_run calls still executing. The page
	// stays owned by the debugger until it drops to zero.
	runs int
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithStore enables the flow actions.
func WithStore(s flowstore.Store) Option {
	return func(c *Controller) { c.store = s }
}

// WithExporter enables the export action.
func WithExporter(e export.Exporter) Option {
	return func(c *Controller) { c.exporter = e }
}

// WithRecorderOptions are applied to every recording session.
func WithRecorderOptions(opts ...recorder.Option) Option {
	return func(c *Controller) { c.recorderOpts = append(c.recorderOpts, opts...) }
}

// WithExecutorOptions are applied to the executor of every debugger.
func WithExecutorOptions(opts ...debugger.ExecutorOption) Option {
	return func(c *Controller) { c.execOpts = append(c.execOpts, opts...) }
}

// WithClock replaces time.Now for generated metadata.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New returns a controller for target.
func New(target Target, opts ...Option) *Controller {
	c := &Controller{
		target: target,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	c.idle = sync.NewCond(&c.mu)
	for _, o := range opts {
		o(c)
	}
	return c
}

// Handle dispatches msg. Failures are reported in the Reply, never returned.
func (c *Controller) Handle(ctx context.Context, msg Message) Reply {
	data, err := c.Do(ctx, msg)
	if err != nil {
		c.logger.Warn("message failed", zap.String("action", string(msg.Action)), zap.Error(err))
		return Reply{Success: false, Error: err.Error(), Data: data}
	}
	c.logger.Debug("message handled", zap.String("action", string(msg.Action)))
	return Reply{Success: true, Data: data}
}

// Do dispatches msg and returns the reply payload with the error unflattened,
// for transports that map errors to their own status codes. The payload may
// be set alongside an error.
func (c *Controller) Do(ctx context.Context, msg Message) (any, error) {
	switch msg.Action {
	case ActionStartRecording:
		return c.startRecording(ctx)
	case ActionPauseRecording:
		return c.withSession(func(s *recorder.Session) error { return s.Pause() })
	case ActionResumeRecording:
		return c.withSession(func(s *recorder.Session) error { return s.Resume() })
	case ActionStopRecording:
		return c.stopRecording()
	case ActionStatus:
		return c.status(), nil
	case ActionGenerateCode:
		return c.generate(ctx, msg)

	case ActionDebugOpen:
		return c.debugOpen(msg)
	case ActionDebugStep:
		return c.debugRun(ctx, (*debugger.Debugger).Step)
	case ActionDebugRun:
		return c.debugRun(ctx, (*debugger.Debugger).Run)
	case ActionDebugPause:
		return c.withDebugger(func(d *debugger.Debugger) error { d.Pause(); return nil })
	case ActionDebugStop:
		return c.withDebugger(func(d *debugger.Debugger) error { d.Stop(); return nil })
	case ActionDebugRestart:
		return c.withDebugger((*debugger.Debugger).Restart)
	case ActionDebugBreakpoint:
		return c.debugBreakpoint(msg)
	case ActionDebugEdit, ActionDebugInsert:
		return c.debugEdit(msg)
	case ActionDebugDelete:
		if msg.Index == nil {
			return nil, ErrMissingIndex
		}
		return c.withDebugger(func(d *debugger.Debugger) error { return d.Delete(*msg.Index) })
	case ActionDebugState:
		return c.withDebugger(func(*debugger.Debugger) error { return nil })
	case ActionDebugSave:
		return c.debugSave()
	case ActionDebugClose:
		return c.debugClose()

	case ActionSaveFlow:
		return c.saveFlow(ctx, msg)
	case ActionListFlows:
		return c.listFlows(ctx, msg)
	case ActionGetFlow:
		return c.getFlow(ctx, msg)
	case ActionDeleteFlow:
		return c.deleteFlow(ctx, msg)
	case ActionExport:
		return c.export(ctx, msg)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, msg.Action)
}

// Close stops an active recording session and closes the debugger.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.debug != nil {
		c.closeDebugger()
	}
	if c.session == nil || !c.session.State().Active() {
		return nil
	}
	cmds, err := c.session.Stop()
	c.commands = cmds
	return err
}

// Commands returns a copy of the current command list.
func (c *Controller) Commands() []command.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	return command.Clone(c.commands)
}

func (c *Controller) startRecording(ctx context.Context) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.debuggerOwnsPage() {
		return nil, ErrDebuggerOpen
	}
	if c.session != nil && c.session.State().Active() {
		return nil, ErrRecording
	}

	opts := append([]recorder.Option{recorder.WithLogger(c.logger.Named("recorder"))}, c.recorderOpts...)
	s := recorder.New(c.target, opts...)
	if err := s.Start(ctx); err != nil {
		return sessionInfo(s), err
	}
	c.session = s
	c.commands = nil
	return sessionInfo(s), nil
}

func (c *Controller) withSession(fn func(*recorder.Session) error) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, ErrNotRecording
	}
	if err := fn(c.session); err != nil {
		return sessionInfo(c.session), err
	}
	return sessionInfo(c.session), nil
}

func (c *Controller) stopRecording() (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, ErrNotRecording
	}
	cmds, err := c.session.Stop()
	if cmds != nil {
		c.commands = cmds
	}
	return sessionInfo(c.session), err
}

func (c *Controller) status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{DebuggerOpen: c.debug != nil, Commands: len(c.commands)}
	if c.session != nil {
		info := sessionInfo(c.session)
		st.Recording = &info
	}
	return st
}

// commandsFor picks the message's commands, or the current list.
func (c *Controller) commandsFor(msg Message) ([]command.Command, error) {
	if len(msg.Commands) > 0 {
		if err := command.ValidateAll(msg.Commands); err != nil {
			return nil, err
		}
		return command.Clone(msg.Commands), nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.commands) == 0 {
		return nil, ErrNoCommands
	}
	return command.Clone(c.commands), nil
}

func (c *Controller) generate(ctx context.Context, msg Message) (any, error) {
	cmds, err := c.commandsFor(msg)
	if err != nil {
		return nil, err
	}
	code, target, err := c.render(ctx, cmds, msg)
	if err != nil {
		return nil, err
	}
	return Code{Target: string(target), Code: code}, nil
}

func (c *Controller) render(ctx context.Context, cmds []command.Command, msg Message) (string, codegen.Target, error) {
	target, err := codegen.ParseTarget(msg.Target)
	if err != nil {
		return "", "", err
	}
	code, err := codegen.Generate(cmds, target)
	if err != nil {
		return "", "", err
	}
	if !msg.Wrap {
		return code, target, nil
	}
	src, _ := c.target.URL(ctx)
	code, err = codegen.Wrap(target, code, codegen.Meta{Name: msg.Name, SourceURL: src, GeneratedAt: c.now()})
	return code, target, err
}

func (c *Controller) debugOpen(msg Message) (any, error) {
	cmds, err := c.commandsFor(msg)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil && c.session.State().Active() {
		return nil, ErrRecording
	}
	if c.debuggerOwnsPage() {
		return nil, ErrDebuggerOpen
	}

	opts := append([]debugger.ExecutorOption{debugger.WithExecutorLogger(c.logger.Named("executor"))}, c.execOpts...)
	exec := debugger.NewPageExecutor(c.target, opts...)
	c.debug = debugger.New(cmds, exec, debugger.WithLogger(c.logger.Named("debugger")))
	c.debugCtx, c.debugCancel = context.WithCancel(context.Background())
	return debugInfo(c.debug, nil), nil
}

// debuggerOwnsPage reports whether a debugger is open or still executing
// after being closed; the caller holds c.mu.
func (c *Controller) debuggerOwnsPage() bool {
	return c.debug != nil || c.runs > 0
}

// acquireDebugger registers an executing call. The returned context is
// cancelled when the debugger is closed; release must be called once the
// call returns.
func (c *Controller) acquireDebugger(ctx context.Context) (*debugger.Debugger, context.Context, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.debug == nil {
		return nil, nil, nil, ErrNoDebugger
	}
	runCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.debugCtx, cancel)
	c.runs++
	release := func() {
		stop()
		cancel()
		c.mu.Lock()
		defer c.mu.Unlock()
		c.runs--
		if c.runs == 0 {
			c.idle.Broadcast()
		}
	}
	return c.debug, runCtx, release, nil
}

func (c *Controller) currentDebugger() (*debugger.Debugger, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.debug == nil {
		return nil, ErrNoDebugger
	}
	return c.debug, nil
}

// debugRun executes without holding c.mu so pause and stop messages get
// through while commands run.
func (c *Controller) debugRun(ctx context.Context, fn func(*debugger.Debugger, context.Context) debugger.Report) (any, error) {
	d, runCtx, release, err := c.acquireDebugger(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	r := fn(d, runCtx)
	return debugInfo(d, &r), r.Err
}

func (c *Controller) withDebugger(fn func(*debugger.Debugger) error) (any, error) {
	d, err := c.currentDebugger()
	if err != nil {
		return nil, err
	}
	if err := fn(d); err != nil {
		return debugInfo(d, nil), err
	}
	return debugInfo(d, nil), nil
}

func (c *Controller) debugBreakpoint(msg Message) (any, error) {
	if msg.Index == nil {
		return nil, ErrMissingIndex
	}
	return c.withDebugger(func(d *debugger.Debugger) error {
		if msg.On == nil {
			_, err := d.ToggleBreakpoint(*msg.Index)
			return err
		}
		return d.SetBreakpoint(*msg.Index, *msg.On)
	})
}

func (c *Controller) debugEdit(msg Message) (any, error) {
	if msg.Index == nil {
		return nil, ErrMissingIndex
	}
	if msg.Command == nil {
		return nil, ErrMissingCommand
	}
	cmd, err := command.FromRecord(*msg.Command)
	if err != nil {
		return nil, err
	}
	return c.withDebugger(func(d *debugger.Debugger) error {
		if msg.Action == ActionDebugInsert {
			return d.Insert(*msg.Index, cmd)
		}
		return d.Edit(*msg.Index, cmd)
	})
}

// debugSave makes the debugger's edited list the current list.
func (c *Controller) debugSave() (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.debug == nil {
		return nil, ErrNoDebugger
	}
	c.commands = c.debug.Commands()
	return debugInfo(c.debug, nil), nil
}

func (c *Controller) debugClose() (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.debug == nil {
		return nil, ErrNoDebugger
	}
	c.closeDebugger()
	return nil, nil
}

// closeDebugger stops the debugger and waits for executing calls to return
// before the page is released; the caller holds c.mu.
func (c *Controller) closeDebugger() {
	c.debug.Stop()
	c.debugCancel()
	c.debug = nil
	for c.runs > 0 {
		c.idle.Wait()
	}
}

func (c *Controller) saveFlow(ctx context.Context, msg Message) (any, error) {
	if c.store == nil {
		return nil, ErrNoStore
	}
	cmds, err := c.commandsFor(msg)
	if err != nil {
		return nil, err
	}
	domain := msg.Domain
	if domain == "" {
		domain = c.domain(ctx)
	}
	id, err := c.store.SaveFlow(ctx, msg.Name, domain, cmds)
	if err != nil {
		return nil, err
	}
	return map[string]string{"id": id, "domain": domain}, nil
}

func (c *Controller) listFlows(ctx context.Context, msg Message) (any, error) {
	if c.store == nil {
		return nil, ErrNoStore
	}
	return c.store.ListFlows(ctx, msg.Domain)
}

// getFlow loads a flow and makes it the current list, unless a session or
// the debugger holds the list.
func (c *Controller) getFlow(ctx context.Context, msg Message) (any, error) {
	if c.store == nil {
		return nil, ErrNoStore
	}
	f, err := c.store.GetFlow(ctx, msg.ID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.debug == nil && (c.session == nil || !c.session.State().Active()) {
		c.commands = command.Clone(f.Commands)
	}
	return f, nil
}

func (c *Controller) deleteFlow(ctx context.Context, msg Message) (any, error) {
	if c.store == nil {
		return nil, ErrNoStore
	}
	return nil, c.store.DeleteFlow(ctx, msg.ID)
}

func (c *Controller) export(ctx context.Context, msg Message) (any, error) {
	if c.exporter == nil {
		return nil, ErrNoExporter
	}
	content := msg.Content
	if content == "" {
		cmds, err := c.commandsFor(msg)
		if err != nil {
			return nil, err
		}
		if content, _, err = c.render(ctx, cmds, msg); err != nil {
			return nil, err
		}
	}

	switch msg.Destination {
	case ExportDownload, "":
		name := msg.Name
		if name == "" {
			name = "flow" + extension(msg)
		}
		return map[string]string{"name": export.SafeName(name)}, c.exporter.Download(name, content)
	case ExportClipboard:
		return nil, c.exporter.CopyToClipboard(content)
	}
	return nil, fmt.Errorf("%w: %q", ErrBadDestination, msg.Destination)
}

func extension(msg Message) string {
	t, err := codegen.ParseTarget(msg.Target)
	switch {
	case err != nil:
		return ".txt"
	case t == codegen.Imperative && msg.Wrap:
		return ".go"
	case t == codegen.Imperative:
		return ".js"
	}
	return ".flow"
}

func (c *Controller) domain(ctx context.Context) string {
	raw, err := c.target.URL(ctx)
	if err != nil {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func sessionInfo(s *recorder.Session) SessionInfo {
	info := SessionInfo{ID: s.ID(), State: s.State(), Commands: s.Commands()}
	if t := s.StartedAt(); !t.IsZero() {
		info.StartedAt = &t
	}
	return info
}

func debugInfo(d *debugger.Debugger, r *debugger.Report) DebugInfo {
	st := d.State()
	return DebugInfo{State: st, Commands: st.Commands, Report: r}
}
