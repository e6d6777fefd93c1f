package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type node struct {
	tag     string
	id      string
	attrs   map[string]string
	classes []string
	parent  *node
	index   int
}

func (n *node) Tag() string       { return n.tag }
func (n *node) ID() string        { return n.id }
func (n *node) Classes() []string { return n.classes }
func (n *node) Index() int        { return n.index }

func (n *node) Attr(name string) (string, bool) {
	v, ok := n.attrs[name]
	return v, ok
}

func (n *node) Parent() Element {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func TestGeneratePriority(t *testing.T) {
	form := &node{tag: "FORM", index: 2}

	tests := []struct {
		name string
		el   *node
		want string
	}{
		{
			name: "id wins over everything",
			el: &node{tag: "INPUT", id: "search", attrs: map[string]string{"data-testid": "q"},
				classes: []string{"big"}, parent: form, index: 1},
			want: "#search",
		},
		{
			name: "id is escaped",
			el:   &node{tag: "DIV", id: "1st:item", parent: form, index: 1},
			want: `#\31 st\:item`,
		},
		{
			name: "test attribute",
			el:   &node{tag: "BUTTON", attrs: map[string]string{"data-cy": "submit"}, parent: form, index: 3},
			want: `button[data-cy="submit"]`,
		},
		{
			name: "test attributes in fixed order",
			el: &node{tag: "A", attrs: map[string]string{"data-test": "t", "data-testid": "tid"},
				parent: form, index: 1},
			want: `a[data-testid="tid"]`,
		},
		{
			name: "aria label",
			el:   &node{tag: "BUTTON", attrs: map[string]string{"aria-label": `Say "hi"`}, parent: form, index: 1},
			want: `button[aria-label="Say \"hi\""]`,
		},
		{
			name: "classes filtered and capped",
			el: &node{tag: "SPAN", classes: []string{
				"flowrec-highlight", "md:flex", "card", "w-1/2", "title",
				"a-very-long-generated-class-name-over-limit", "active", "extra",
			}, parent: form, index: 1},
			want: "span.card.title.active",
		},
		{
			name: "nth-child fallback uses only the parent",
			el:   &node{tag: "LI", classes: []string{"flowrec-x"}, parent: &node{tag: "UL", parent: form}, index: 4},
			want: "ul > li:nth-child(4)",
		},
		{
			name: "orphan falls back to tag",
			el:   &node{tag: "HTML"},
			want: "html",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Generate(tt.el))
		})
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	el := &node{tag: "DIV", classes: []string{"row", "odd"}, parent: &node{tag: "BODY"}, index: 7}
	first := Generate(el)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Generate(el))
	}
}

func TestGenerateNil(t *testing.T) {
	assert.Equal(t, "", Generate(nil))
}

func TestIsOwnElement(t *testing.T) {
	toolbar := &node{tag: "DIV", attrs: map[string]string{MarkerAttr: "toolbar"}}
	button := &node{tag: "BUTTON", parent: toolbar, index: 1}
	modal := &node{tag: "DIV", classes: []string{"flowrec-modal"}}
	page := &node{tag: "MAIN", parent: &node{tag: "BODY"}, index: 1}

	assert.True(t, IsOwnElement(button))
	assert.True(t, IsOwnElement(modal))
	assert.False(t, IsOwnElement(page))
}

func TestEscape(t *testing.T) {
	tests := map[string]string{
		"plain":   "plain",
		"a b":     `a\ b`,
		"-":       `\-`,
		"-1x":     `-\31 x`,
		"über":    "über",
		"a.b":     `a\.b`,
		"_under9": "_under9",
	}
	for in, want := range tests {
		assert.Equal(t, want, Escape(in), in)
	}
}
