package command

import "strings"

// Modifiers is a bit set of held modifier keys.
type Modifiers uint8

const (
	Ctrl Modifiers = 1 << iota
	Alt
	Shift
	Meta
)

var modifierNames = []struct {
	flag Modifiers
	name string
}{
	{Ctrl, "Control"},
	{Alt, "Alt"},
	{Shift, "Shift"},
	{Meta, "Meta"},
}

// Has reports whether every flag in f is set.
func (m Modifiers) Has(f Modifiers) bool { return m&f == f }

// Command reports whether a command-producing modifier (Ctrl, Alt or Meta) is held.
func (m Modifiers) Command() bool { return m&(Ctrl|Alt|Meta) != 0 }

// Names returns the DOM key names of the set modifiers in canonical order.
func (m Modifiers) Names() []string {
	var out []string
	for _, mn := range modifierNames {
		if m.Has(mn.flag) {
			out = append(out, mn.name)
		}
	}
	return out
}

func (m Modifiers) String() string { return strings.Join(m.Names(), "+") }

// ParseModifier maps a modifier name, including common aliases, to its flag.
func ParseModifier(name string) (Modifiers, bool) {
	switch strings.ToLower(name) {
	case "control", "ctrl":
		return Ctrl, true
	case "alt", "option":
		return Alt, true
	case "shift":
		return Shift, true
	case "meta", "cmd", "command":
		return Meta, true
	}
	return 0, false
}

// ParseModifiers folds a list of modifier names into a set.
func ParseModifiers(names []string) (Modifiers, error) {
	var m Modifiers
	for _, n := range names {
		f, ok := ParseModifier(n)
		if !ok {
			return 0, &UnknownModifierError{Name: n}
		}
		m |= f
	}
	return m, nil
}

// Combo renders a key chord such as "Control+Shift+k".
func Combo(m Modifiers, key string) string {
	if m == 0 {
		return key
	}
	return m.String() + "+" + key
}

// SplitCombo is the inverse of Combo. Leading segments are consumed only
// while they name a modifier, so "Control++" yields (Ctrl, "+").
func SplitCombo(s string) (Modifiers, string) {
	var m Modifiers
	rest := s
	for {
		i := strings.IndexByte(rest, '+')
		if i <= 0 || i == len(rest)-1 {
			break
		}
		f, ok := ParseModifier(rest[:i])
		if !ok {
			break
		}
		m |= f
		rest = rest[i+1:]
	}
	return m, rest
}

// IsModifierKey reports whether a DOM key value is a bare modifier.
func IsModifierKey(key string) bool {
	switch key {
	case "Shift", "Control", "Alt", "Meta", "AltGraph", "CapsLock", "OS":
		return true
	}
	return false
}
