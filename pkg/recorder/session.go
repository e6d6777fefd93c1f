// Package recorder drives a recording session: it attaches event capture to
// a page, feeds a grouper from a single owner goroutine and freezes the
// resulting command list when the session stops.
package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivikasavnish/go-flowrec/pkg/capture"
	"github.com/ivikasavnish/go-flowrec/pkg/command"
	"github.com/ivikasavnish/go-flowrec/pkg/grouper"
	"github.com/ivikasavnish/go-flowrec/pkg/page"
)

const eventBuffer = 1024

type opKind int

const (
	opPause opKind = iota
	opResume
	opSnapshot
	opStop
)

type op struct {
	kind  opKind
	reply chan []command.Command
}

// Session records one interaction sequence.
type Session struct {
	id      string
	logger  *zap.Logger
	now     func() time.Time
	capture *capture.Capture
	grouper *grouper.Grouper

	events chan capture.RawEvent
	ops    chan op
	done   chan struct{}

	mu        sync.Mutex
	state     State
	startedAt time.Time
	frozen    []command.Command
}

type settings struct {
	logger      *zap.Logger
	now         func() time.Time
	grouperOpts []grouper.Option
}

// Option configures a Session.
type Option func(*settings)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithIdleFlush sets the keystroke inactivity window.
func WithIdleFlush(d time.Duration) Option {
	return func(s *settings) { s.grouperOpts = append(s.grouperOpts, grouper.WithIdleFlush(d)) }
}

// WithScrollWindow sets the scroll coalescing window.
func WithScrollWindow(d time.Duration) Option {
	return func(s *settings) { s.grouperOpts = append(s.grouperOpts, grouper.WithScrollWindow(d)) }
}

// New returns a READY session over src.
func New(src page.EventSource, opts ...Option) *Session {
	cfg := settings{logger: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(&cfg)
	}

	id := uuid.NewString()
	logger := cfg.logger.With(zap.String("session", id))
	return &Session{
		id:      id,
		logger:  logger,
		now:     cfg.now,
		capture: capture.New(src, capture.WithLogger(logger), capture.WithClock(cfg.now)),
		grouper: grouper.New(append([]grouper.Option{grouper.WithLogger(logger)}, cfg.grouperOpts...)...),
		events:  make(chan capture.RawEvent, eventBuffer),
		ops:     make(chan op),
		done:    make(chan struct{}),
		state:   StateReady,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StartedAt returns when recording began; zero before Start.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// Start attaches capture and begins recording. The session outlives ctx's
// cancellation; it ends only through Stop.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		return &TransitionError{From: s.state, To: StateRecording}
	}

	if err := s.capture.Start(context.WithoutCancel(ctx), s.enqueue); err != nil {
		s.state = StateAborted
		close(s.done)
		s.logger.Error("recording aborted", zap.Error(err))
		return fmt.Errorf("start session: %w", err)
	}

	s.startedAt = s.now()
	s.state = StateRecording
	go s.loop()

	s.logger.Info("recording started")
	return nil
}

// Pause stops forwarding events to the grouper. Buffered keystrokes are
// flushed first so nothing typed before the pause is lost.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording {
		return &TransitionError{From: s.state, To: StatePaused}
	}
	s.call(opPause)
	s.state = StatePaused
	s.logger.Info("recording paused")
	return nil
}

// Resume continues recording after Pause.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePaused {
		return &TransitionError{From: s.state, To: StateRecording}
	}
	s.call(opResume)
	s.state = StateRecording
	s.logger.Info("recording resumed")
	return nil
}

// Stop detaches capture, flushes pending keystrokes and freezes the command
// list. The frozen list is returned even when detaching fails; the session
// then ends ABORTED.
func (s *Session) Stop() ([]command.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Active() {
		return nil, &TransitionError{From: s.state, To: StateStopped}
	}

	detachErr := s.capture.Stop()
	s.frozen = s.call(opStop)
	<-s.done

	if detachErr != nil {
		s.state = StateAborted
		s.logger.Error("recording aborted on detach", zap.Error(detachErr))
		return command.Clone(s.frozen), fmt.Errorf("stop session: %w", detachErr)
	}

	s.state = StateStopped
	s.logger.Info("recording stopped", zap.Int("commands", len(s.frozen)))
	return command.Clone(s.frozen), nil
}

// Commands returns a copy of the commands recorded so far.
func (s *Session) Commands() []command.Command {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state.Active():
		return s.call(opSnapshot)
	case s.frozen != nil:
		return command.Clone(s.frozen)
	}
	return nil
}

// call hands an op to the owner goroutine and waits for its reply. The
// caller holds s.mu and has checked that the loop is running.
func (s *Session) call(kind opKind) []command.Command {
	reply := make(chan []command.Command, 1)
	s.ops <- op{kind: kind, reply: reply}
	return <-reply
}

// enqueue is the capture sink. It runs on the event source's goroutine.
func (s *Session) enqueue(ev capture.RawEvent) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// loop owns the grouper. It ends after opStop.
func (s *Session) loop() {
	defer close(s.done)

	var (
		paused bool
		timer  *time.Timer
		timerC <-chan time.Time
	)
	disarm := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
	}
	feed := func(ev capture.RawEvent) {
		if paused {
			return
		}
		s.grouper.Feed(ev)
		disarm()
		if s.grouper.Pending() {
			timer = time.NewTimer(s.grouper.IdleFlush())
			timerC = timer.C
		}
	}
	drain := func() {
		for {
			select {
			case ev := <-s.events:
				feed(ev)
			default:
				return
			}
		}
	}

	for {
		select {
		case ev := <-s.events:
			feed(ev)

		case <-timerC:
			timer, timerC = nil, nil
			s.grouper.Flush()

		case o := <-s.ops:
			drain()
			switch o.kind {
			case opPause:
				disarm()
				s.grouper.Flush()
				paused = true
			case opResume:
				paused = false
			case opStop:
				disarm()
				s.grouper.Flush()
				o.reply <- s.grouper.Commands()
				return
			}
			o.reply <- s.grouper.Commands()
		}
	}
}
