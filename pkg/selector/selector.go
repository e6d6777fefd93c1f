// Package selector builds short CSS selectors for page elements.
//
// Generation is a pure function of the element snapshot: it never queries
// the live DOM, so the same unmutated element always yields the same string.
package selector

import (
	"strconv"
	"strings"
)

// Element is the read-only view of a DOM element the generator needs.
type Element interface {
	Tag() string
	ID() string
	Attr(name string) (string, bool)
	Classes() []string
	Parent() Element
	// Index is the 1-based position among the parent's element children.
	Index() int
}

// MarkerPrefix prefixes every class the recorder's own UI carries.
const MarkerPrefix = "flowrec-"

// MarkerAttr is set on the root of every piece of recorder UI.
const MarkerAttr = "data-flowrec-ui"

// TestAttrs are the stable, test-oriented attributes checked after id.
var TestAttrs = []string{"data-testid", "data-id", "data-test", "data-cy"}

const (
	maxClasses     = 3
	maxClassLength = 30
)

// Generate returns a best-effort unique selector for el.
func Generate(el Element) string {
	if el == nil {
		return ""
	}
	tag := strings.ToLower(el.Tag())

	if id := el.ID(); id != "" {
		return "#" + Escape(id)
	}

	for _, attr := range TestAttrs {
		if v, ok := el.Attr(attr); ok && v != "" {
			return tag + attrSelector(attr, v)
		}
	}

	if v, ok := el.Attr("aria-label"); ok && v != "" {
		return tag + attrSelector("aria-label", v)
	}

	if classes := usableClasses(el.Classes()); len(classes) > 0 {
		var b strings.Builder
		b.WriteString(tag)
		for _, c := range classes {
			b.WriteByte('.')
			b.WriteString(c)
		}
		return b.String()
	}

	parent := el.Parent()
	if parent == nil || el.Index() <= 0 {
		return tag
	}
	return strings.ToLower(parent.Tag()) + " > " + tag + ":nth-child(" + strconv.Itoa(el.Index()) + ")"
}

// IsOwnElement reports whether el belongs to the recorder's own UI: the
// element or one of its ancestors carries a marker class or MarkerAttr.
func IsOwnElement(el Element) bool {
	for cur := el; cur != nil; cur = cur.Parent() {
		if _, ok := cur.Attr(MarkerAttr); ok {
			return true
		}
		for _, c := range cur.Classes() {
			if strings.HasPrefix(c, MarkerPrefix) {
				return true
			}
		}
	}
	return false
}

func usableClasses(classes []string) []string {
	var out []string
	for _, c := range classes {
		if len(out) == maxClasses {
			break
		}
		if c == "" || len(c) > maxClassLength || strings.HasPrefix(c, MarkerPrefix) {
			continue
		}
		if strings.ContainsAny(c, specialChars) {
			continue
		}
		if c[0] >= '0' && c[0] <= '9' {
			continue
		}
		out = append(out, c)
	}
	return out
}

// specialChars would need escaping inside a class selector; such classes
// are typically utility classes (md:flex, w-1/2) and are skipped.
const specialChars = ":./[]()#>+~*=!@$%^&'\",;{}|\\` \t"

func attrSelector(name, value string) string {
	return "[" + name + "=" + QuoteAttr(value) + "]"
}
