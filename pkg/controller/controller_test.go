package controller

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ivikasavnish/go-flowrec/pkg/command"
	"github.com/ivikasavnish/go-flowrec/pkg/debugger"
	"github.com/ivikasavnish/go-flowrec/pkg/export"
	"github.com/ivikasavnish/go-flowrec/pkg/flowstore"
	"github.com/ivikasavnish/go-flowrec/pkg/page"
	"github.com/ivikasavnish/go-flowrec/pkg/page/pagetest"
	"github.com/ivikasavnish/go-flowrec/pkg/recorder"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	page      *pagetest.Page
	ctrl      *Controller
	store     *flowstore.MemoryStore
	dir       string
	clipboard *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		page:      pagetest.New("https://shop.example.test/cart"),
		store:     flowstore.NewMemoryStore(),
		dir:       t.TempDir(),
		clipboard: &bytes.Buffer{},
	}
	noSleep := func(ctx context.Context, d time.Duration) error { return nil }
	f.ctrl = New(f.page,
		WithStore(f.store),
		WithExporter(export.NewDir(f.dir, f.clipboard, nil)),
		WithRecorderOptions(recorder.WithIdleFlush(time.Hour)),
		WithExecutorOptions(debugger.WithSleep(noSleep)),
		WithClock(func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }),
	)
	t.Cleanup(func() { _ = f.ctrl.Close() })
	return f
}

func (f *fixture) send(t *testing.T, msg Message) Reply {
	t.Helper()
	return f.ctrl.Handle(context.Background(), msg)
}

func (f *fixture) ok(t *testing.T, msg Message) Reply {
	t.Helper()
	r := f.send(t, msg)
	require.True(t, r.Success, "%s: %s", msg.Action, r.Error)
	return r
}

func (f *fixture) record(t *testing.T) {
	t.Helper()
	checkout := pagetest.El("BUTTON", pagetest.WithID("checkout"))
	qty := pagetest.El("INPUT", pagetest.WithAttr("name", "qty"), pagetest.WithAttr("data-testid", "qty"))

	f.ok(t, Message{Action: ActionStartRecording})
	f.page.Emit(page.DOMEvent{Type: "click", Target: qty})
	f.page.Emit(page.DOMEvent{Type: "keydown", Target: qty, Key: "3"})
	f.page.Emit(page.DOMEvent{Type: "click", Target: checkout})
	f.ok(t, Message{Action: ActionStopRecording})
}

func intp(i int) *int { return &i }

func TestRecordGenerateAndSave(t *testing.T) {
	f := newFixture(t)
	f.record(t)

	want := []command.Command{
		command.Click{Selector: `input[data-testid="qty"]`},
		command.Set{Selector: `input[data-testid="qty"]`, Value: "3"},
		command.Click{Selector: "#checkout"},
	}
	assert.Equal(t, want, f.ctrl.Commands())

	r := f.ok(t, Message{Action: ActionGenerateCode, Target: "declarative"})
	code := r.Data.(Code)
	assert.Equal(t, "declarative", code.Target)
	assert.Equal(t, "CLICK input[data-testid=\"qty\"]\nSET input[data-testid=\"qty\"] \"3\"\nCLICK #checkout\n", code.Code)

	r = f.ok(t, Message{Action: ActionGenerateCode, Target: "imperative", Wrap: true, Name: "checkout"})
	assert.Contains(t, r.Data.(Code).Code, "package main")
	assert.Contains(t, r.Data.(Code).Code, `"https://shop.example.test/cart"`)

	r = f.ok(t, Message{Action: ActionSaveFlow, Name: "checkout"})
	saved := r.Data.(map[string]string)
	assert.Equal(t, "shop.example.test", saved["domain"])

	r = f.ok(t, Message{Action: ActionListFlows, Domain: "shop.example.test"})
	flows := r.Data.([]flowstore.Flow)
	require.Len(t, flows, 1)
	assert.Equal(t, saved["id"], flows[0].ID)

	f.ok(t, Message{Action: ActionDeleteFlow, ID: saved["id"]})
	r = f.send(t, Message{Action: ActionGetFlow, ID: saved["id"]})
	assert.False(t, r.Success)
	assert.Equal(t, flowstore.ErrFlowNotFound.Error(), r.Error)
}

func TestRecordingLifecycleReplies(t *testing.T) {
	f := newFixture(t)

	r := f.send(t, Message{Action: ActionPauseRecording})
	assert.False(t, r.Success)
	assert.Equal(t, ErrNotRecording.Error(), r.Error)

	r = f.ok(t, Message{Action: ActionStartRecording})
	assert.Equal(t, recorder.StateRecording, r.Data.(SessionInfo).State)

	r = f.send(t, Message{Action: ActionStartRecording})
	assert.Equal(t, ErrRecording.Error(), r.Error)

	r = f.ok(t, Message{Action: ActionPauseRecording})
	assert.Equal(t, recorder.StatePaused, r.Data.(SessionInfo).State)
	r = f.send(t, Message{Action: ActionPauseRecording})
	assert.False(t, r.Success)

	f.ok(t, Message{Action: ActionResumeRecording})
	st := f.ok(t, Message{Action: ActionStatus}).Data.(Status)
	require.NotNil(t, st.Recording)
	assert.Equal(t, recorder.StateRecording, st.Recording.State)
	assert.NotNil(t, st.Recording.StartedAt)

	r = f.ok(t, Message{Action: ActionStopRecording})
	assert.Equal(t, recorder.StateStopped, r.Data.(SessionInfo).State)

	r = f.send(t, Message{Action: ActionGenerateCode})
	assert.Equal(t, ErrNoCommands.Error(), r.Error)
}

func TestSessionAndDebuggerAreExclusive(t *testing.T) {
	f := newFixture(t)
	f.ok(t, Message{Action: ActionStartRecording})

	r := f.send(t, Message{Action: ActionDebugOpen, Commands: command.List{command.Click{Selector: "#a"}}})
	assert.Equal(t, ErrRecording.Error(), r.Error)

	f.ok(t, Message{Action: ActionStopRecording})
	f.ok(t, Message{Action: ActionDebugOpen, Commands: command.List{command.Click{Selector: "#a"}}})

	r = f.send(t, Message{Action: ActionStartRecording})
	assert.Equal(t, ErrDebuggerOpen.Error(), r.Error)

	f.ok(t, Message{Action: ActionDebugClose})
	f.ok(t, Message{Action: ActionStartRecording})
}

func TestDebugCloseWaitsForRunningCommands(t *testing.T) {
	p := pagetest.New("https://shop.example.test/")
	sleeping := make(chan struct{}, 1)
	var returned atomic.Bool
	blockingSleep := func(ctx context.Context, d time.Duration) error {
		select {
		case sleeping <- struct{}{}:
		default:
		}
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		returned.Store(true)
		return ctx.Err()
	}
	ctrl := New(p, WithExecutorOptions(debugger.WithSleep(blockingSleep)))
	ctx := context.Background()

	r := ctrl.Handle(ctx, Message{Action: ActionDebugOpen, Commands: command.List{command.SleepFor(10 * time.Second)}})
	require.True(t, r.Success, r.Error)

	runDone := make(chan Reply, 1)
	go func() { runDone <- ctrl.Handle(ctx, Message{Action: ActionDebugRun}) }()
	select {
	case <-sleeping:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not start")
	}

	r = ctrl.Handle(ctx, Message{Action: ActionStartRecording})
	assert.Equal(t, ErrDebuggerOpen.Error(), r.Error)

	r = ctrl.Handle(ctx, Message{Action: ActionDebugClose})
	require.True(t, r.Success, r.Error)
	assert.True(t, returned.Load(), "close returned while a command was still executing")

	select {
	case <-runDone:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish after close")
	}

	r = ctrl.Handle(ctx, Message{Action: ActionStartRecording})
	require.True(t, r.Success, r.Error)
	require.NoError(t, ctrl.Close())
	assert.Equal(t, 0, p.Listeners())
}

func TestCloseStopsRunningDebugger(t *testing.T) {
	p := pagetest.New("https://shop.example.test/")
	sleeping := make(chan struct{}, 1)
	blockingSleep := func(ctx context.Context, d time.Duration) error {
		select {
		case sleeping <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	}
	ctrl := New(p, WithExecutorOptions(debugger.WithSleep(blockingSleep)))
	ctx := context.Background()

	require.True(t, ctrl.Handle(ctx, Message{Action: ActionDebugOpen, Commands: command.List{command.SleepFor(time.Minute)}}).Success)
	runDone := make(chan Reply, 1)
	go func() { runDone <- ctrl.Handle(ctx, Message{Action: ActionDebugStep}) }()
	<-sleeping

	require.NoError(t, ctrl.Close())
	select {
	case <-runDone:
	case <-time.After(5 * time.Second):
		t.Fatal("step did not return after Close")
	}
	assert.False(t, ctrl.Handle(ctx, Message{Action: ActionStatus}).Data.(Status).DebuggerOpen)
}

func TestDebuggerMessages(t *testing.T) {
	f := newFixture(t)
	a := f.page.Add("#a", &pagetest.Node{})
	f.page.Add("#q", &pagetest.Node{Kind: page.FormInput})
	f.page.Add("#b", &pagetest.Node{})

	cmds := command.List{
		command.Click{Selector: "#a"},
		command.Type{Selector: "#q", Value: "hi"},
		command.Click{Selector: "#b"},
	}
	r := f.send(t, Message{Action: ActionDebugStep})
	assert.Equal(t, ErrNoDebugger.Error(), r.Error)

	f.ok(t, Message{Action: ActionDebugOpen, Commands: cmds})
	r = f.ok(t, Message{Action: ActionDebugBreakpoint, Index: intp(2)})
	assert.Equal(t, []int{2}, r.Data.(DebugInfo).Breakpoints)

	r = f.ok(t, Message{Action: ActionDebugStep})
	info := r.Data.(DebugInfo)
	assert.Equal(t, 1, info.Cursor)
	assert.Equal(t, debugger.ModeIdle, info.Mode)
	assert.Equal(t, []string{"mousedown", "mouseup", "click"}, a.EventTypes())

	r = f.ok(t, Message{Action: ActionDebugRun})
	info = r.Data.(DebugInfo)
	assert.Equal(t, 2, info.Cursor)
	assert.Equal(t, debugger.ModePaused, info.Mode)
	require.NotNil(t, info.Report)
	assert.True(t, info.Report.Breakpoint)

	rec := command.ToRecord(command.Click{Selector: "#missing"})
	f.ok(t, Message{Action: ActionDebugEdit, Index: intp(2), Command: &rec})
	r = f.send(t, Message{Action: ActionDebugRun})
	assert.False(t, r.Success)
	assert.Contains(t, r.Error, `selector "#missing" matched no element`)
	assert.Equal(t, 2, r.Data.(DebugInfo).Failed)

	f.ok(t, Message{Action: ActionDebugDelete, Index: intp(2)})
	r = f.send(t, Message{Action: ActionDebugDelete})
	assert.Equal(t, ErrMissingIndex.Error(), r.Error)

	f.ok(t, Message{Action: ActionDebugSave})
	assert.Equal(t, []command.Command(cmds[:2]), f.ctrl.Commands())

	r = f.ok(t, Message{Action: ActionDebugRestart})
	assert.Equal(t, 0, r.Data.(DebugInfo).Cursor)
	r = f.ok(t, Message{Action: ActionDebugState})
	assert.Len(t, r.Data.(DebugInfo).Commands, 2)
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	cmds := command.List{command.Click{Selector: "#a"}}

	f.ok(t, Message{Action: ActionExport, Commands: cmds, Destination: ExportClipboard, Target: "js"})
	assert.Contains(t, f.clipboard.String(), `__q("#a").click();`)

	r := f.ok(t, Message{Action: ActionExport, Commands: cmds, Name: "my flow.txt"})
	assert.Equal(t, "my_flow.txt", r.Data.(map[string]string)["name"])
	data, err := os.ReadFile(filepath.Join(f.dir, "my_flow.txt"))
	require.NoError(t, err)
	assert.Equal(t, "CLICK #a\n", string(data))

	r = f.ok(t, Message{Action: ActionExport, Commands: cmds, Target: "imperative", Wrap: true})
	assert.Equal(t, "flow.go", r.Data.(map[string]string)["name"])

	r = f.send(t, Message{Action: ActionExport, Content: "x", Destination: "printer"})
	assert.Contains(t, r.Error, ErrBadDestination.Error())
}

func TestUnknownActionAndInvalidCommands(t *testing.T) {
	f := newFixture(t)
	r := f.send(t, Message{Action: "dance"})
	assert.False(t, r.Success)
	assert.Contains(t, r.Error, "unknown action")

	r = f.send(t, Message{Action: ActionGenerateCode, Commands: command.List{command.Click{}}})
	assert.Contains(t, r.Error, command.ErrEmptySelector.Error())
}

func TestGetFlowLoadsCommands(t *testing.T) {
	f := newFixture(t)
	id, err := f.store.SaveFlow(context.Background(), "saved", "d", []command.Command{command.KeyPress{Key: "Escape"}})
	require.NoError(t, err)

	f.ok(t, Message{Action: ActionGetFlow, ID: id})
	assert.Equal(t, []command.Command{command.KeyPress{Key: "Escape"}}, f.ctrl.Commands())
}
