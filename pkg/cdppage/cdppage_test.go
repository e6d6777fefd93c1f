package cdppage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivikasavnish/go-flowrec/pkg/command"
	"github.com/ivikasavnish/go-flowrec/pkg/debugger"
	"github.com/ivikasavnish/go-flowrec/pkg/page"
)

const fixtureHTML = `<!doctype html>
<html><body style="height:4000px">
<input id="q" type="text">
<button id="go" onclick="this.textContent='done'">Go</button>
<div id="box" style="height:50px;overflow:auto"><div style="height:500px"></div></div>
</body></html>`

func openFixture(t *testing.T) *Page {
	t.Helper()
	if os.Getenv("FLOWREC_CHROME_TESTS") == "" || testing.Short() {
		t.Skip("set FLOWREC_CHROME_TESTS=1 to run browser tests")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(fixtureHTML))
	}))
	t.Cleanup(srv.Close)

	p, err := Open(context.Background(), Config{Headless: true, Timeout: 20 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	require.NoError(t, p.Navigate(context.Background(), srv.URL))
	return p
}

func TestNodePrimitives(t *testing.T) {
	p := openFixture(t)
	ctx := context.Background()

	none, err := p.QuerySelectorAll(ctx, "#missing")
	require.NoError(t, err)
	assert.Empty(t, none)

	box, err := p.QuerySelectorAll(ctx, "#box")
	require.NoError(t, err)
	require.Len(t, box, 1)
	scrollable, err := box[0].IsScrollable(ctx)
	require.NoError(t, err)
	assert.True(t, scrollable)

	q, err := p.QuerySelectorAll(ctx, "#q")
	require.NoError(t, err)
	kind, err := q[0].EditKind(ctx)
	require.NoError(t, err)
	assert.Equal(t, page.FormInput, kind)
	rect, err := q[0].BoundingRect(ctx)
	require.NoError(t, err)
	assert.Greater(t, rect.Width, 0.0)

	require.NoError(t, q[0].Focus(ctx))
	active, err := p.ActiveElement(ctx)
	require.NoError(t, err)
	require.NoError(t, active.SetValue(ctx, "typed"))
	v, err := q[0].Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, "typed", v)
}

func TestReplayThroughDebugger(t *testing.T) {
	p := openFixture(t)
	ctx := context.Background()

	exec := debugger.NewPageExecutor(p, debugger.WithSettleDelay(0))
	d := debugger.New([]command.Command{
		command.Set{Selector: "#q", Value: "abc"},
		command.Click{Selector: "#go"},
		command.Scroll{Direction: command.Down, Amount: 300},
		command.WaitFor("#go", time.Second),
	}, exec)
	rep := d.Run(ctx)
	require.NoError(t, rep.Err)
	assert.True(t, rep.EndOfActions)

	var scrolled float64
	require.NoError(t, p.run(ctx, chromedp.Evaluate("window.scrollY", &scrolled)))
	assert.InDelta(t, 300, scrolled, 1)
}

