package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/ysmood/gson"
	"go.uber.org/zap"

	"github.com/ivikasavnish/go-flowrec/pkg/page"
	"github.com/ivikasavnish/go-flowrec/pkg/page/pagejs"
)

// Page adapts a rod page to page.Page and page.EventSource.
type Page struct {
	rp      *rod.Page
	logger  *zap.Logger
	timeout time.Duration
}

var (
	_ page.Page           = (*Page)(nil)
	_ page.EventSource    = (*Page)(nil)
	_ page.ScrollReporter = (*Page)(nil)
	_ page.Node           = (*Node)(nil)
)

func newPage(rp *rod.Page, logger *zap.Logger, timeout time.Duration) *Page {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Page{rp: rp, logger: logger, timeout: timeout}
}

// Rod returns the underlying rod page.
func (p *Page) Rod() *rod.Page { return p.rp }

// Close closes the tab.
func (p *Page) Close() error { return p.rp.Close() }

// Navigate loads url and waits for the load event. A load timeout is logged,
// not returned.
func (p *Page) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	rp := p.rp.Context(navCtx)
	if err := rp.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := rp.WaitLoad(); err != nil {
		p.logger.Warn("wait load timeout", zap.String("url", url), zap.Error(err))
	}
	p.logger.Debug("navigated", zap.String("url", url), zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (p *Page) QuerySelectorAll(ctx context.Context, selector string) ([]page.Node, error) {
	els, err := p.rp.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: query %q: %w", selector, err)
	}
	out := make([]page.Node, len(els))
	for i, el := range els {
		out[i] = &Node{el: el}
	}
	return out, nil
}

func (p *Page) ActiveElement(ctx context.Context) (page.Node, error) {
	el, err := p.rp.Context(ctx).ElementByJS(rod.Eval(`() => document.activeElement || document.body`))
	if err != nil {
		return nil, fmt.Errorf("browser: active element: %w", err)
	}
	return &Node{el: el}, nil
}

func (p *Page) ScrollWindowBy(ctx context.Context, dx, dy float64) error {
	_, err := p.rp.Context(ctx).Eval(`(dx, dy) => window.scrollBy(dx, dy)`, dx, dy)
	return err
}

// ScrollOffset implements page.ScrollReporter.
func (p *Page) ScrollOffset(ctx context.Context) (float64, float64, error) {
	res, err := p.rp.Context(ctx).Eval(`() => ({x: window.scrollX, y: window.scrollY})`)
	if err != nil {
		return 0, 0, err
	}
	return res.Value.Get("x").Num(), res.Value.Get("y").Num(), nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	res, err := p.rp.Context(ctx).Eval(`() => location.href`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

// Node adapts a rod element to page.Node.
type Node struct {
	el *rod.Element
}

func (n *Node) eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error) {
	res, err := n.el.Context(ctx).Eval(js, args...)
	if err != nil {
		var nf *rod.ObjectNotFoundError
		if errors.As(err, &nf) {
			return gson.JSON{}, fmt.Errorf("%w: %v", page.ErrDetached, err)
		}
		return gson.JSON{}, err
	}
	return res.Value, nil
}

func (n *Node) Dispatch(ctx context.Context, ev page.SyntheticEvent) error {
	_, err := n.eval(ctx, pagejs.Dispatch, ev)
	return err
}

func (n *Node) BoundingRect(ctx context.Context) (page.Rect, error) {
	res, err := n.eval(ctx, pagejs.Rect)
	if err != nil {
		return page.Rect{}, err
	}
	return page.Rect{
		X:      res.Get("x").Num(),
		Y:      res.Get("y").Num(),
		Width:  res.Get("width").Num(),
		Height: res.Get("height").Num(),
	}, nil
}

func (n *Node) IsScrollable(ctx context.Context) (bool, error) {
	res, err := n.eval(ctx, pagejs.Scrollable)
	if err != nil {
		return false, err
	}
	return res.Bool(), nil
}

func (n *Node) Focus(ctx context.Context) error {
	return n.el.Context(ctx).Focus()
}

func (n *Node) EditKind(ctx context.Context) (page.EditKind, error) {
	res, err := n.eval(ctx, pagejs.EditKind)
	if err != nil {
		return page.NotEditable, err
	}
	return page.EditKind(res.Int()), nil
}

func (n *Node) Value(ctx context.Context) (string, error) {
	res, err := n.eval(ctx, pagejs.Value)
	if err != nil {
		return "", err
	}
	return res.Str(), nil
}

func (n *Node) SetValue(ctx context.Context, value string) error {
	res, err := n.eval(ctx, pagejs.SetValue, value)
	if err != nil {
		return err
	}
	if !res.Bool() {
		return page.ErrNotEditable
	}
	return nil
}

func (n *Node) InsertText(ctx context.Context, text string) error {
	res, err := n.eval(ctx, pagejs.InsertText, text)
	if err != nil {
		return err
	}
	if !res.Bool() {
		return page.ErrNotEditable
	}
	return nil
}

func (n *Node) ScrollBy(ctx context.Context, dx, dy float64) error {
	_, err := n.eval(ctx, pagejs.ScrollBy, dx, dy)
	return err
}
