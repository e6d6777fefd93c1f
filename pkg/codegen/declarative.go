package codegen

import (
	"bufio"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ivikasavnish/go-flowrec/pkg/command"
)

// Declarative keywords.
const (
	kwClick       = "CLICK"
	kwDoubleClick = "DOUBLECLICK"
	kwRightClick  = "RIGHTCLICK"
	kwType        = "TYPE"
	kwSet         = "SET"
	kwScroll      = "SCROLL"
	kwWait        = "WAIT"
	kwKey         = "KEY"
)

func declarative(cmds []command.Command) string {
	var b strings.Builder
	for _, c := range cmds {
		b.WriteString(line(c))
		b.WriteByte('\n')
	}
	return b.String()
}

func line(c command.Command) string {
	switch v := c.(type) {
	case command.Click:
		return kwClick + " " + v.Selector
	case command.DoubleClick:
		return kwDoubleClick + " " + v.Selector
	case command.RightClick:
		return kwRightClick + " " + v.Selector
	case command.Type:
		return kwType + " " + strconv.Quote(v.Value)
	case command.Set:
		return fmt.Sprintf("%s %s %s", kwSet, v.Selector, strconv.Quote(v.Value))
	case command.Scroll:
		if v.Selector == "" {
			return fmt.Sprintf("%s %s %d", kwScroll, v.Direction, v.Amount)
		}
		return fmt.Sprintf("%s %s %s %d", kwScroll, v.Selector, v.Direction, v.Amount)
	case command.Wait:
		if v.Mode == command.WaitSelector {
			return fmt.Sprintf("%s %s %s", kwWait, v.Selector, seconds(v.Timeout))
		}
		return kwWait + " " + seconds(v.Duration)
	case command.Shortcut:
		return kwKey + " " + strconv.Quote(command.Combo(v.Modifiers, v.Key))
	case command.KeyPress:
		return kwKey + " " + strconv.Quote(v.Key)
	}
	return "# " + unsupported(c)
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// ParseError locates a malformed declarative line.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Parse reads a declarative script. Blank lines and lines starting with '#'
// are skipped. Keywords are case-insensitive.
func Parse(script string) ([]command.Command, error) {
	var out []command.Command
	sc := bufio.NewScanner(strings.NewReader(script))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	n := 0
	for sc.Scan() {
		n++
		text := trimSelector(sc.Text())
		if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "#") {
			continue
		}
		c, err := parseLine(text)
		if err != nil {
			return nil, &ParseError{Line: n, Msg: err.Error()}
		}
		if err := command.Validate(c); err != nil {
			return nil, &ParseError{Line: n, Msg: err.Error()}
		}
		out = append(out, c)
	}
	if err := sc.Err(); err != nil {
		return nil, &ParseError{Line: n + 1, Msg: err.Error()}
	}
	return out, nil
}

func parseLine(text string) (command.Command, error) {
	kw, rest, _ := strings.Cut(text, " ")
	rest = trimSelector(rest)

	switch strings.ToUpper(kw) {
	case kwClick:
		return command.Click{Selector: rest}, nil
	case kwDoubleClick:
		return command.DoubleClick{Selector: rest}, nil
	case kwRightClick:
		return command.RightClick{Selector: rest}, nil

	case kwType:
		value, err := unquote(rest)
		if err != nil {
			return nil, err
		}
		return command.Type{Value: value}, nil

	case kwSet:
		sel, value, err := splitTrailingString(rest)
		if err != nil {
			return nil, err
		}
		return command.Set{Selector: sel, Value: value}, nil

	case kwScroll:
		return parseScroll(rest)

	case kwWait:
		return parseWait(rest)

	case kwKey:
		combo, err := unquote(rest)
		if err != nil {
			return nil, err
		}
		mods, key := command.SplitCombo(combo)
		if mods == 0 {
			return command.KeyPress{Key: key}, nil
		}
		return command.Shortcut{Key: key, Modifiers: mods}, nil
	}
	return nil, fmt.Errorf("unknown instruction %q", kw)
}

// parseScroll reads "[<selector>] <DIR> <amount>". The selector may contain
// spaces, so the line is read from the right.
func parseScroll(rest string) (command.Command, error) {
	fields := strings.Fields(rest)
	if len(fields) < 2 {
		return nil, fmt.Errorf("SCROLL needs a direction and an amount")
	}
	amount, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return nil, fmt.Errorf("bad scroll amount %q", fields[len(fields)-1])
	}
	dir := command.Direction(strings.ToUpper(fields[len(fields)-2]))
	if !dir.Valid() {
		return nil, fmt.Errorf("bad scroll direction %q", fields[len(fields)-2])
	}
	sel := trimRightFields(rest, 2)
	return command.Scroll{Selector: sel, Direction: dir, Amount: amount}, nil
}

// parseWait reads "<seconds>" or "<selector> <timeoutSeconds>".
func parseWait(rest string) (command.Command, error) {
	fields := strings.Fields(rest)
	switch len(fields) {
	case 0:
		return nil, fmt.Errorf("WAIT needs a duration or a selector")
	case 1:
		d, err := parseSeconds(fields[0])
		if err != nil {
			return nil, err
		}
		return command.SleepFor(d), nil
	}
	timeout, err := parseSeconds(fields[len(fields)-1])
	if err != nil {
		return nil, err
	}
	return command.WaitFor(trimRightFields(rest, 1), timeout), nil
}

func parseSeconds(s string) (time.Duration, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("bad seconds value %q", s)
	}
	return time.Duration(math.Round(f*1000)) * time.Millisecond, nil
}

// trimRightFields drops the last n whitespace-separated fields from s.
func trimRightFields(s string, n int) string {
	s = strings.TrimSpace(s)
	for ; n > 0; n-- {
		i := strings.LastIndexAny(s, " \t")
		if i < 0 {
			return ""
		}
		s = trimSelector(s[:i])
		if n > 1 {
			s = strings.TrimSpace(s)
		}
	}
	return s
}

// trimSelector trims surrounding blanks but keeps the single space that
// terminates a trailing CSS hex escape, as in `#x\9 `.
func trimSelector(s string) string {
	s = strings.TrimLeft(s, " \t")
	t := strings.TrimRight(s, " \t")
	if len(t) < len(s) && endsWithHexEscape(t) {
		return t + " "
	}
	return t
}

// endsWithHexEscape reports whether s ends in an unescaped backslash
// followed by one to six hex digits.
func endsWithHexEscape(s string) bool {
	i := len(s)
	for i > 0 && len(s)-i < 6 && isHexDigit(s[i-1]) {
		i--
	}
	if i == len(s) || i == 0 || s[i-1] != '\\' {
		return false
	}
	slashes := 0
	for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
		slashes++
	}
	return slashes%2 == 1
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func unquote(s string) (string, error) {
	v, err := strconv.Unquote(s)
	if err != nil {
		return "", fmt.Errorf("expected a quoted string, got %s", s)
	}
	return v, nil
}

// splitTrailingString splits `<selector> "<value>"`. Selectors may hold
// quotes of their own, so the value starts at the leftmost space-preceded
// quote from which the remainder unquotes cleanly.
func splitTrailingString(s string) (string, string, error) {
	for i := 1; i < len(s); i++ {
		if s[i] != '"' || (s[i-1] != ' ' && s[i-1] != '\t') {
			continue
		}
		value, err := strconv.Unquote(s[i:])
		if err != nil {
			continue
		}
		return trimSelector(s[:i]), value, nil
	}
	return "", "", fmt.Errorf("expected <selector> \"<value>\", got %s", s)
}

// Equivalent reports whether a and b would produce the same declarative
// script: kinds match and selectors, values and parameters match wherever
// the declarative form carries them. TYPE carries no selector.
func Equivalent(a, b []command.Command) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !equivalent(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equivalent(a, b command.Command) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case command.Type:
		return x.Value == b.(command.Type).Value
	case command.Wait:
		y := b.(command.Wait)
		if x.Mode != y.Mode {
			return false
		}
		if x.Mode == command.WaitSelector {
			return x.Selector == y.Selector && x.Timeout.Round(time.Millisecond) == y.Timeout.Round(time.Millisecond)
		}
		return x.Duration.Round(time.Millisecond) == y.Duration.Round(time.Millisecond)
	}
	return a == b
}
