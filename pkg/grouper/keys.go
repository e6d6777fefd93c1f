package grouper

import (
	"strings"
	"unicode/utf8"

	"github.com/ivikasavnish/go-flowrec/pkg/capture"
	"github.com/ivikasavnish/go-flowrec/pkg/command"
)

// standaloneKeys become KEY_PRESS commands of their own.
var standaloneKeys = map[string]bool{
	"Escape": true, "ArrowUp": true, "ArrowDown": true, "ArrowLeft": true, "ArrowRight": true,
	"Home": true, "End": true, "PageUp": true, "PageDown": true,
	"F1": true, "F2": true, "F3": true, "F4": true, "F5": true, "F6": true,
	"F7": true, "F8": true, "F9": true, "F10": true, "F11": true, "F12": true,
}

// typedText maps a key that belongs in a typing buffer to the text it
// contributes.
func typedText(key string) (string, bool) {
	switch key {
	case "Enter":
		return "\n", true
	case "Tab":
		return "\t", true
	case "Backspace", "Delete":
		return "", true
	case "Spacebar":
		return " ", true
	}
	if utf8.RuneCountInString(key) == 1 {
		return key, true
	}
	return "", false
}

func isDeletion(key string) bool {
	return key == "Backspace" || key == "Delete"
}

func isSelectAll(ev capture.RawEvent) bool {
	return (ev.Modifiers.Has(command.Ctrl) || ev.Modifiers.Has(command.Meta)) && strings.EqualFold(ev.Key, "a")
}

func isToggle(ev capture.RawEvent) bool {
	return ev.Tag == "input" && (ev.InputKind == "checkbox" || ev.InputKind == "radio")
}

func direction(dx, dy float64) (command.Direction, float64) {
	switch {
	case dy > 0:
		return command.Down, dy
	case dy < 0:
		return command.Up, dy
	case dx > 0:
		return command.Right, dx
	case dx < 0:
		return command.Left, dx
	}
	return "", 0
}
