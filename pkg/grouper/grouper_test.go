package grouper

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivikasavnish/go-flowrec/pkg/capture"
	"github.com/ivikasavnish/go-flowrec/pkg/command"
)

func click(ms int64, sel string) capture.RawEvent {
	return capture.RawEvent{Kind: capture.KindClick, TimestampMs: ms, Selector: sel, Tag: "input"}
}

func key(ms int64, sel, k string, mods command.Modifiers) capture.RawEvent {
	return capture.RawEvent{Kind: capture.KindKeyDown, TimestampMs: ms, Selector: sel, Key: k, Modifiers: mods}
}

func wheel(ms int64, sel string, dx, dy float64) capture.RawEvent {
	return capture.RawEvent{Kind: capture.KindWheel, TimestampMs: ms, Selector: sel, DeltaX: dx, DeltaY: dy, Window: sel == ""}
}

func feed(g *Grouper, evs ...capture.RawEvent) {
	for _, ev := range evs {
		g.Feed(ev)
	}
}

func assertCommands(t *testing.T, want []command.Command, got []command.Command) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestClickThenTypingBecomesSet(t *testing.T) {
	g := New()
	feed(g,
		click(0, "#search"),
		key(50, "#search", "a", 0),
		key(90, "#search", "b", 0),
	)
	require.True(t, g.Pending())

	// debounce timer fires after 600ms of silence
	g.Flush()

	assertCommands(t, []command.Command{
		command.Click{Selector: "#search"},
		command.Set{Selector: "#search", Value: "ab"},
	}, g.Commands())
	assert.False(t, g.Pending())
}

func TestIdleGapFlushesOnNextEvent(t *testing.T) {
	g := New()
	feed(g,
		click(0, "#search"),
		key(50, "#search", "a", 0),
		key(90, "#search", "b", 0),
		key(700, "#search", "c", 0),
	)
	g.Flush()

	assertCommands(t, []command.Command{
		command.Click{Selector: "#search"},
		command.Set{Selector: "#search", Value: "ab"},
		command.Type{Selector: "#search", Value: "c"},
	}, g.Commands())
}

func TestScrollBurstCoalesces(t *testing.T) {
	g := New()
	feed(g,
		wheel(0, "", 0, 100),
		wheel(100, "", 0, 100),
		wheel(200, "", 0, 100),
	)

	assertCommands(t, []command.Command{
		command.Scroll{Direction: command.Down, Amount: 100},
	}, g.Commands())
}

func TestScrollAmountIsLastDelta(t *testing.T) {
	g := New()
	feed(g,
		wheel(0, "div.feed", 0, 40),
		wheel(150, "div.feed", 0, 260.4),
	)
	assertCommands(t, []command.Command{
		command.Scroll{Selector: "div.feed", Direction: command.Down, Amount: 260},
	}, g.Commands())
}

func TestScrollOutsideWindowStartsNewCommand(t *testing.T) {
	g := New()
	feed(g,
		wheel(0, "", 0, 100),
		wheel(400, "", 0, 50),
		wheel(1000, "", 0, 30),
		wheel(1100, "", 0, -20),
		wheel(1200, "", 15, 0),
		wheel(1300, "", 0, 0),
	)
	assertCommands(t, []command.Command{
		command.Scroll{Direction: command.Down, Amount: 50},
		command.Scroll{Direction: command.Down, Amount: 30},
		command.Scroll{Direction: command.Up, Amount: 20},
		command.Scroll{Direction: command.Right, Amount: 15},
	}, g.Commands())
}

func TestScrollCoalescingIsPerSelector(t *testing.T) {
	g := New()
	feed(g,
		wheel(0, "", 0, 100),
		wheel(50, "div.feed", 0, 10),
		wheel(100, "", 0, 70),
	)
	assertCommands(t, []command.Command{
		command.Scroll{Direction: command.Down, Amount: 70},
		command.Scroll{Selector: "div.feed", Direction: command.Down, Amount: 10},
	}, g.Commands())
}

func TestFlushIsIdempotent(t *testing.T) {
	g := New()
	g.Flush()
	assert.Empty(t, g.Commands())

	feed(g, key(0, "textarea", "x", 0))
	g.Flush()
	once := g.Commands()
	g.Flush()
	g.Flush()
	assertCommands(t, once, g.Commands())
	require.Len(t, once, 1)
}

func TestTypingWithoutPriorClickIsType(t *testing.T) {
	g := New()
	feed(g,
		click(0, "#other"),
		key(10, "#search", "h", command.Shift),
		key(20, "#search", "i", 0),
		key(30, "#search", " ", 0),
		key(40, "#search", "Enter", 0),
		key(50, "#search", "Tab", 0),
	)
	g.Flush()
	assertCommands(t, []command.Command{
		command.Click{Selector: "#other"},
		command.Type{Selector: "#search", Value: "hi \n\t"},
	}, g.Commands())
}

func TestSelectAllMakesSet(t *testing.T) {
	g := New()
	feed(g,
		key(0, "#name", "Control", command.Ctrl),
		key(10, "#name", "a", command.Ctrl),
		capture.RawEvent{Kind: capture.KindInput, TimestampMs: 15, Selector: "#name"},
		key(20, "#name", "z", 0),
	)
	g.Flush()
	assertCommands(t, []command.Command{
		command.Shortcut{Key: "a", Modifiers: command.Ctrl},
		command.Set{Selector: "#name", Value: "z"},
	}, g.Commands())
}

func TestShortcutFlushesBuffer(t *testing.T) {
	g := New()
	feed(g,
		key(0, "#doc", "h", 0),
		key(10, "#doc", "Shift", command.Shift),
		key(20, "#doc", "s", command.Meta),
	)
	assertCommands(t, []command.Command{
		command.Type{Selector: "#doc", Value: "h"},
		command.Shortcut{Key: "s", Modifiers: command.Meta},
	}, g.Commands())
	assert.False(t, g.Pending())
}

func TestTargetChangeFlushes(t *testing.T) {
	g := New()
	feed(g,
		key(0, "#first", "a", 0),
		key(10, "#last", "b", 0),
	)
	g.Flush()
	assertCommands(t, []command.Command{
		command.Type{Selector: "#first", Value: "a"},
		command.Type{Selector: "#last", Value: "b"},
	}, g.Commands())
}

func TestDeletionKeys(t *testing.T) {
	g := New()
	feed(g,
		key(0, "#q", "Backspace", 0),
		key(10, "#q", "x", 0),
		key(20, "#q", "Delete", 0),
		key(30, "#q", "y", 0),
		key(40, "#q", "Escape", 0),
		key(50, "#q", "ArrowDown", 0),
		key(60, "#q", "CapsLock", 0),
	)
	assertCommands(t, []command.Command{
		command.KeyPress{Key: "Backspace"},
		command.Type{Selector: "#q", Value: "xy"},
		command.KeyPress{Key: "Escape"},
		command.KeyPress{Key: "ArrowDown"},
	}, g.Commands())
}

func TestChangeEvents(t *testing.T) {
	g := New()
	feed(g,
		capture.RawEvent{Kind: capture.KindChange, TimestampMs: 0, Selector: "#country", Tag: "select", Value: "NL"},
		capture.RawEvent{Kind: capture.KindClick, TimestampMs: 10, Selector: "#agree", Tag: "input", InputKind: "checkbox"},
		capture.RawEvent{Kind: capture.KindChange, TimestampMs: 11, Selector: "#agree", Tag: "input", InputKind: "checkbox", Checked: true},
		capture.RawEvent{Kind: capture.KindChange, TimestampMs: 20, Selector: "#name", Tag: "input", InputKind: "text", Value: "bob"},
	)
	assertCommands(t, []command.Command{
		command.Set{Selector: "#country", Value: "NL"},
		command.Click{Selector: "#agree"},
	}, g.Commands())
}

func TestDoubleClickReplacesTrailingClicks(t *testing.T) {
	g := New()
	feed(g,
		click(0, "#a"),
		click(100, "td.cell"),
		click(200, "td.cell"),
		capture.RawEvent{Kind: capture.KindDoubleClick, TimestampMs: 201, Selector: "td.cell"},
		capture.RawEvent{Kind: capture.KindContextMenu, TimestampMs: 300, Selector: "td.cell"},
	)
	assertCommands(t, []command.Command{
		command.Click{Selector: "#a"},
		command.DoubleClick{Selector: "td.cell"},
		command.RightClick{Selector: "td.cell"},
	}, g.Commands())
}

func TestReset(t *testing.T) {
	g := New(WithIdleFlush(time.Second))
	assert.Equal(t, time.Second, g.IdleFlush())
	feed(g, click(0, "#a"), key(10, "#a", "b", 0))
	g.Reset()
	assert.False(t, g.Pending())
	assert.Zero(t, g.Len())
}

func TestCommandsReturnsCopy(t *testing.T) {
	g := New()
	feed(g, click(0, "#a"))
	got := g.Commands()
	got[0] = command.Click{Selector: "#mutated"}
	assertCommands(t, []command.Command{command.Click{Selector: "#a"}}, g.Commands())
}

// Any run of printable keystrokes on one target, each within the idle
// window of the last, yields exactly one command holding their
// concatenation.
func TestKeystrokeRunsConcatenate(t *testing.T) {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 .,;-_"
	r := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		g := New()
		n := 1 + r.Intn(40)
		var want strings.Builder
		var ms int64
		for j := 0; j < n; j++ {
			ch := string(alphabet[r.Intn(len(alphabet))])
			want.WriteString(ch)
			ms += int64(r.Intn(int(DefaultIdleFlush.Milliseconds())))
			g.Feed(key(ms, "#field", ch, 0))
		}
		g.Flush()

		got := g.Commands()
		require.Len(t, got, 1, "run %d", i)
		require.Equal(t, command.Type{Selector: "#field", Value: want.String()}, got[0], "run %d", i)
	}
}
