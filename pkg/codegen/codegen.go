// Package codegen compiles command lists into scripts. The imperative target
// is JavaScript evaluated in the page; the declarative target is a line
// oriented instruction language that Parse reads back.
package codegen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ivikasavnish/go-flowrec/pkg/command"
)

// Target selects the script representation.
type Target string

const (
	Imperative  Target = "imperative"
	Declarative Target = "declarative"
)

// ErrUnknownTarget is returned for a Target other than the two above.
var ErrUnknownTarget = errors.New("codegen: unknown target")

// ParseTarget accepts the target names case-insensitively, plus "js" and
// "script" as aliases.
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "imperative", "js", "javascript":
		return Imperative, nil
	case "declarative", "script", "":
		return Declarative, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTarget, s)
}

// Generate renders cmds for target. Commands it cannot express become
// placeholder comments; the only error is an unknown target.
func Generate(cmds []command.Command, target Target) (string, error) {
	switch target {
	case Imperative:
		return imperative(cmds), nil
	case Declarative:
		return declarative(cmds), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTarget, target)
}

func unsupported(c command.Command) string {
	if c == nil {
		return "unsupported command: <nil>"
	}
	return fmt.Sprintf("unsupported command: %T", c)
}
