// Package cdppage adapts a chromedp tab to page.Page for replaying flows.
// It does not record; use pkg/browser for that.
package cdppage

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/ivikasavnish/go-flowrec/pkg/page"
	"github.com/ivikasavnish/go-flowrec/pkg/page/pagejs"
)

// Config selects the browser to drive.
type Config struct {
	Headless bool
	// RemoteURL is a DevTools websocket of a running browser.
	RemoteURL string
	Bin       string
	Timeout   time.Duration
}

// Page is a chromedp tab. Its methods respect both the tab's lifetime and
// the ctx passed to each call.
type Page struct {
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
	timeout time.Duration
}

var (
	_ page.Page           = (*Page)(nil)
	_ page.ScrollReporter = (*Page)(nil)
	_ page.Node           = (*Node)(nil)
)

// Option configures a Page.
type Option func(*Page)

func WithLogger(l *zap.Logger) Option {
	return func(p *Page) { p.logger = l }
}

// Open starts or connects to a browser and opens one tab.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Page, error) {
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, cfg.RemoteURL)
	} else {
		execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", cfg.Headless),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
		)
		if cfg.Bin != "" {
			execOpts = append(execOpts, chromedp.ExecPath(cfg.Bin))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, execOpts...)
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	p := &Page{
		ctx: tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
		logger:  zap.NewNop(),
		timeout: cfg.Timeout,
	}
	if p.timeout <= 0 {
		p.timeout = 30 * time.Second
	}
	for _, o := range opts {
		o(p)
	}

	if err := chromedp.Run(tabCtx); err != nil {
		p.cancel()
		return nil, fmt.Errorf("cdppage: start browser: %w", err)
	}
	return p, nil
}

// Close closes the tab and, when it was launched here, the browser.
func (p *Page) Close() error {
	p.cancel()
	return nil
}

// run executes actions on the tab, cancelled early when ctx ends.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits for the body to be ready.
func (p *Page) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	start := time.Now()
	if err := p.run(navCtx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("cdppage: navigate %s: %w", url, err)
	}
	p.logger.Debug("navigated", zap.String("url", url), zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (p *Page) QuerySelectorAll(ctx context.Context, selector string) ([]page.Node, error) {
	var nodes []*cdp.Node
	var out []page.Node
	err := p.run(ctx,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
		chromedp.ActionFunc(func(c context.Context) error {
			out = make([]page.Node, 0, len(nodes))
			for _, n := range nodes {
				obj, err := dom.ResolveNode().WithNodeID(n.NodeID).Do(c)
				if err != nil {
					return err
				}
				out = append(out, &Node{page: p, id: obj.ObjectID})
			}
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("cdppage: query %q: %w", selector, err)
	}
	return out, nil
}

func (p *Page) ActiveElement(ctx context.Context) (page.Node, error) {
	var obj *runtime.RemoteObject
	err := p.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		res, exc, err := runtime.Evaluate(`document.activeElement || document.body`).Do(c)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		obj = res
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("cdppage: active element: %w", err)
	}
	return &Node{page: p, id: obj.ObjectID}, nil
}

func (p *Page) ScrollWindowBy(ctx context.Context, dx, dy float64) error {
	var ok bool
	return p.run(ctx, chromedp.Evaluate(fmt.Sprintf("window.scrollBy(%g, %g), true", dx, dy), &ok))
}

// ScrollOffset implements page.ScrollReporter.
func (p *Page) ScrollOffset(ctx context.Context) (float64, float64, error) {
	var off struct{ X, Y float64 }
	if err := p.run(ctx, chromedp.Evaluate(`({X: window.scrollX, Y: window.scrollY})`, &off)); err != nil {
		return 0, 0, err
	}
	return off.X, off.Y, nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	var u string
	err := p.run(ctx, chromedp.Location(&u))
	return u, err
}

// Node is a remote element handle.
type Node struct {
	page *Page
	id   runtime.RemoteObjectID
}

func (n *Node) call(ctx context.Context, js string, res interface{}, args ...interface{}) error {
	err := n.page.run(ctx, chromedp.CallFunctionOn(js, res,
		func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
			return p.WithObjectID(n.id)
		},
		args...,
	))
	if err != nil {
		return fmt.Errorf("cdppage: %w", err)
	}
	return nil
}

func (n *Node) Dispatch(ctx context.Context, ev page.SyntheticEvent) error {
	var ok bool
	return n.call(ctx, pagejs.Dispatch, &ok, ev)
}

func (n *Node) BoundingRect(ctx context.Context) (page.Rect, error) {
	var r page.Rect
	err := n.call(ctx, pagejs.Rect, &r)
	return r, err
}

func (n *Node) IsScrollable(ctx context.Context) (bool, error) {
	var ok bool
	err := n.call(ctx, pagejs.Scrollable, &ok)
	return ok, err
}

func (n *Node) Focus(ctx context.Context) error {
	var ok bool
	return n.call(ctx, `function () { this.focus(); return true; }`, &ok)
}

func (n *Node) EditKind(ctx context.Context) (page.EditKind, error) {
	var k int
	err := n.call(ctx, pagejs.EditKind, &k)
	return page.EditKind(k), err
}

func (n *Node) Value(ctx context.Context) (string, error) {
	var v string
	err := n.call(ctx, pagejs.Value, &v)
	return v, err
}

func (n *Node) SetValue(ctx context.Context, value string) error {
	var ok bool
	if err := n.call(ctx, pagejs.SetValue, &ok, value); err != nil {
		return err
	}
	if !ok {
		return page.ErrNotEditable
	}
	return nil
}

func (n *Node) InsertText(ctx context.Context, text string) error {
	var ok bool
	if err := n.call(ctx, pagejs.InsertText, &ok, text); err != nil {
		return err
	}
	if !ok {
		return page.ErrNotEditable
	}
	return nil
}

func (n *Node) ScrollBy(ctx context.Context, dx, dy float64) error {
	var ok bool
	return n.call(ctx, pagejs.ScrollBy, &ok, dx, dy)
}
