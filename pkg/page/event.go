package page

import "github.com/ivikasavnish/go-flowrec/pkg/selector"

// DOMEvent is a browser event as serialized by the injected listener.
type DOMEvent struct {
	Type      string       `json:"type"`
	Target    *ElementInfo `json:"target"`
	Key       string       `json:"key,omitempty"`
	Code      string       `json:"code,omitempty"`
	CtrlKey   bool         `json:"ctrlKey,omitempty"`
	AltKey    bool         `json:"altKey,omitempty"`
	ShiftKey  bool         `json:"shiftKey,omitempty"`
	MetaKey   bool         `json:"metaKey,omitempty"`
	X         float64      `json:"x,omitempty"`
	Y         float64      `json:"y,omitempty"`
	Button    int          `json:"button,omitempty"`
	DeltaX    float64      `json:"deltaX,omitempty"`
	DeltaY    float64      `json:"deltaY,omitempty"`
	ScrollX   float64      `json:"scrollX,omitempty"`
	ScrollY   float64      `json:"scrollY,omitempty"`
	Value     string       `json:"value,omitempty"`
	InputType string       `json:"inputType,omitempty"`
	Checked   bool         `json:"checked,omitempty"`
}

// ElementInfo is a snapshot of an element and its ancestor chain, enough to
// build a selector and decide scrollability without touching the page again.
type ElementInfo struct {
	TagName    string            `json:"tag"`
	IDAttr     string            `json:"id,omitempty"`
	Attrs      map[string]string `json:"attrs,omitempty"`
	ClassList  []string          `json:"classes,omitempty"`
	ChildIndex int               `json:"index,omitempty"`
	// Scrollable is true when content overflows and computed overflow allows scrolling.
	Scrollable bool         `json:"scrollable,omitempty"`
	ScrollTop  float64      `json:"scrollTop,omitempty"`
	ScrollLeft float64      `json:"scrollLeft,omitempty"`
	InputType  string       `json:"type,omitempty"`
	ParentInfo *ElementInfo `json:"parent,omitempty"`
}

var _ selector.Element = (*ElementInfo)(nil)

func (e *ElementInfo) Tag() string       { return e.TagName }
func (e *ElementInfo) ID() string        { return e.IDAttr }
func (e *ElementInfo) Classes() []string { return e.ClassList }
func (e *ElementInfo) Index() int        { return e.ChildIndex }

func (e *ElementInfo) Attr(name string) (string, bool) {
	if name == "id" {
		return e.IDAttr, e.IDAttr != ""
	}
	v, ok := e.Attrs[name]
	return v, ok
}

// Parent returns the parent snapshot as a selector.Element. It returns a
// nil interface, not a typed nil, at the top of the chain.
func (e *ElementInfo) Parent() selector.Element {
	if e.ParentInfo == nil {
		return nil
	}
	return e.ParentInfo
}

// ScrollableAncestor walks from e (inclusive) to the root and returns the
// first element that can scroll, or nil when only the window can.
func (e *ElementInfo) ScrollableAncestor() *ElementInfo {
	for cur := e; cur != nil; cur = cur.ParentInfo {
		switch cur.TagName {
		case "HTML", "BODY", "html", "body":
			return nil
		}
		if cur.Scrollable {
			return cur
		}
	}
	return nil
}
