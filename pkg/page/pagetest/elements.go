package pagetest

import "github.com/ivikasavnish/go-flowrec/pkg/page"

// El builds an ElementInfo chain for event fixtures. Parent defaults to a
// <body> under <html>.
func El(tag string, opts ...func(*page.ElementInfo)) *page.ElementInfo {
	e := &page.ElementInfo{TagName: tag, ChildIndex: 1, ParentInfo: body()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// WithID sets the element id.
func WithID(id string) func(*page.ElementInfo) {
	return func(e *page.ElementInfo) { e.IDAttr = id }
}

// WithAttr sets an attribute.
func WithAttr(name, value string) func(*page.ElementInfo) {
	return func(e *page.ElementInfo) {
		if e.Attrs == nil {
			e.Attrs = make(map[string]string)
		}
		e.Attrs[name] = value
	}
}

// WithClasses sets the class list.
func WithClasses(classes ...string) func(*page.ElementInfo) {
	return func(e *page.ElementInfo) { e.ClassList = classes }
}

// WithParent replaces the parent snapshot.
func WithParent(p *page.ElementInfo) func(*page.ElementInfo) {
	return func(e *page.ElementInfo) { e.ParentInfo = p }
}

// WithIndex sets the 1-based child index.
func WithIndex(i int) func(*page.ElementInfo) {
	return func(e *page.ElementInfo) { e.ChildIndex = i }
}

// WithScroll marks the element scrollable at the given offsets.
func WithScroll(top, left float64) func(*page.ElementInfo) {
	return func(e *page.ElementInfo) {
		e.Scrollable = true
		e.ScrollTop = top
		e.ScrollLeft = left
	}
}

// WithInputType sets the type attribute of an <input>.
func WithInputType(t string) func(*page.ElementInfo) {
	return func(e *page.ElementInfo) { e.InputType = t }
}

func body() *page.ElementInfo {
	return &page.ElementInfo{
		TagName:    "BODY",
		ChildIndex: 2,
		ParentInfo: &page.ElementInfo{TagName: "HTML"},
	}
}
