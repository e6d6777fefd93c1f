// Package pagetest provides an in-memory page.Page and page.EventSource for
// tests. Selectors are matched by exact string, not parsed as CSS.
package pagetest

import (
	"context"
	"errors"
	"sync"

	"github.com/ivikasavnish/go-flowrec/pkg/page"
)

// Page is a fake document. It is safe for concurrent use.
type Page struct {
	mu        sync.Mutex
	url       string
	nodes     map[string][]*Node
	body      *Node
	active    *Node
	scrollX   float64
	scrollY   float64
	listeners map[int]func(page.DOMEvent)
	nextID    int
	queries   int

	// SubscribeErr and UnsubscribeErr make listener attach/detach fail.
	SubscribeErr   error
	UnsubscribeErr error
}

var (
	_ page.Page           = (*Page)(nil)
	_ page.EventSource    = (*Page)(nil)
	_ page.ScrollReporter = (*Page)(nil)
)

// New returns an empty page at url.
func New(url string) *Page {
	p := &Page{
		url:       url,
		nodes:     make(map[string][]*Node),
		listeners: make(map[int]func(page.DOMEvent)),
	}
	p.body = &Node{Name: "body", page: p}
	return p
}

// Add registers n as a match for selector and returns it.
func (p *Page) Add(selector string, n *Node) *Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	n.page = p
	if n.Name == "" {
		n.Name = selector
	}
	p.nodes[selector] = append(p.nodes[selector], n)
	return n
}

// Remove drops every node registered under selector.
func (p *Page) Remove(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.nodes, selector)
}

// Queries returns how many QuerySelectorAll calls were made.
func (p *Page) Queries() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queries
}

// WindowScroll returns the current window scroll offsets.
func (p *Page) WindowScroll() (float64, float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrollX, p.scrollY
}

// Body returns the node used when nothing is focused.
func (p *Page) Body() *Node { return p.body }

func (p *Page) QuerySelectorAll(ctx context.Context, selector string) ([]page.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries++
	matches := p.nodes[selector]
	out := make([]page.Node, len(matches))
	for i, n := range matches {
		out[i] = n
	}
	return out, nil
}

func (p *Page) ActiveElement(ctx context.Context) (page.Node, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != nil {
		return p.active, nil
	}
	return p.body, nil
}

func (p *Page) ScrollWindowBy(ctx context.Context, dx, dy float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrollX += dx
	p.scrollY += dy
	return nil
}

func (p *Page) ScrollOffset(ctx context.Context) (float64, float64, error) {
	x, y := p.WindowScroll()
	return x, y, nil
}

func (p *Page) URL(ctx context.Context) (string, error) { return p.url, nil }

// Subscribe implements page.EventSource.
func (p *Page) Subscribe(ctx context.Context, fn func(page.DOMEvent)) (func() error, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SubscribeErr != nil {
		return nil, p.SubscribeErr
	}
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	var once sync.Once
	return func() error {
		var err error
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if p.UnsubscribeErr != nil {
				err = p.UnsubscribeErr
				return
			}
			delete(p.listeners, id)
		})
		return err
	}, nil
}

// Listeners returns the number of attached subscribers.
func (p *Page) Listeners() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

// Emit delivers ev synchronously to every subscriber.
func (p *Page) Emit(ev page.DOMEvent) {
	p.mu.Lock()
	fns := make([]func(page.DOMEvent), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// Node is a fake element.
type Node struct {
	Name       string
	Kind       page.EditKind
	Text       string
	Rect       page.Rect
	Scrollable bool
	ScrollX    float64
	ScrollY    float64
	// DispatchErr makes every Dispatch fail.
	DispatchErr error

	page   *Page
	events []page.SyntheticEvent
}

var _ page.Node = (*Node)(nil)

// Events returns a copy of the events dispatched on the node.
func (n *Node) Events() []page.SyntheticEvent {
	n.lock()
	defer n.unlock()
	return append([]page.SyntheticEvent(nil), n.events...)
}

// EventTypes returns just the types of the dispatched events.
func (n *Node) EventTypes() []string {
	evs := n.Events()
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Type
	}
	return out
}

// Content returns the node's current text value.
func (n *Node) Content() string {
	n.lock()
	defer n.unlock()
	return n.Text
}

// Offsets returns the node's scroll offsets.
func (n *Node) Offsets() (float64, float64) {
	n.lock()
	defer n.unlock()
	return n.ScrollX, n.ScrollY
}

func (n *Node) lock() {
	if n.page != nil {
		n.page.mu.Lock()
	}
}

func (n *Node) unlock() {
	if n.page != nil {
		n.page.mu.Unlock()
	}
}

func (n *Node) Dispatch(ctx context.Context, ev page.SyntheticEvent) error {
	n.lock()
	defer n.unlock()
	if n.DispatchErr != nil {
		return n.DispatchErr
	}
	n.events = append(n.events, ev)
	return nil
}

func (n *Node) BoundingRect(ctx context.Context) (page.Rect, error) { return n.Rect, nil }

func (n *Node) IsScrollable(ctx context.Context) (bool, error) { return n.Scrollable, nil }

func (n *Node) Focus(ctx context.Context) error {
	n.lock()
	defer n.unlock()
	if n.page != nil {
		n.page.active = n
	}
	n.events = append(n.events, page.SyntheticEvent{Type: "focus"})
	return nil
}

func (n *Node) EditKind(ctx context.Context) (page.EditKind, error) { return n.Kind, nil }

func (n *Node) Value(ctx context.Context) (string, error) {
	n.lock()
	defer n.unlock()
	return n.Text, nil
}

func (n *Node) SetValue(ctx context.Context, value string) error {
	n.lock()
	defer n.unlock()
	if n.Kind == page.NotEditable {
		return page.ErrNotEditable
	}
	n.Text = value
	return nil
}

func (n *Node) InsertText(ctx context.Context, text string) error {
	n.lock()
	defer n.unlock()
	if n.Kind != page.ContentEditable {
		return page.ErrNotEditable
	}
	n.Text += text
	return nil
}

func (n *Node) ScrollBy(ctx context.Context, dx, dy float64) error {
	n.lock()
	defer n.unlock()
	n.ScrollX += dx
	n.ScrollY += dy
	return nil
}

// ErrBoom is a convenience error for failure injection.
var ErrBoom = errors.New("pagetest: injected failure")
