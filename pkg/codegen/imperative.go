package codegen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ivikasavnish/go-flowrec/pkg/command"
)

const prelude = `  const __sleep = (ms) => new Promise((resolve) => setTimeout(resolve, ms));
  const __q = (sel) => {
    const found = document.querySelectorAll(sel);
    if (found.length !== 1) {
      throw new Error("selector " + sel + " matched " + found.length + " elements");
    }
    return found[0];
  };
  const __type = async (sel, text, replace) => {
    const el = sel ? __q(sel) : document.activeElement;
    el.focus();
    const editable = el.isContentEditable;
    if (replace) {
      if (editable) el.textContent = ""; else el.value = "";
      el.dispatchEvent(new InputEvent("input", { bubbles: true, inputType: "deleteContentBackward" }));
    }
    for (const ch of text) {
      const key = ch === "\n" ? "Enter" : ch === "\t" ? "Tab" : ch;
      el.dispatchEvent(new KeyboardEvent("keydown", { key, bubbles: true }));
      if (editable) document.execCommand("insertText", false, ch); else el.value += ch;
      el.dispatchEvent(new InputEvent("input", { bubbles: true, data: ch, inputType: "insertText" }));
      el.dispatchEvent(new KeyboardEvent("keyup", { key, bubbles: true }));
    }
    if (!editable) el.dispatchEvent(new Event("change", { bubbles: true }));
  };
  const __scroll = async (sel, dx, dy) => {
    const el = sel ? __q(sel) : null;
    const frames = 18;
    for (let i = 0; i < frames; i++) {
      if (el) el.scrollBy(dx / frames, dy / frames); else window.scrollBy(dx / frames, dy / frames);
      await __sleep(16);
    }
  };
  const __wait = async (sel, timeoutMs) => {
    const start = Date.now();
    while (document.querySelectorAll(sel).length === 0) {
      if (Date.now() - start >= timeoutMs) {
        throw new Error("timed out waiting for " + sel);
      }
      await __sleep(100);
    }
  };
  const __key = (key, mods) => {
    const el = document.activeElement || document.body;
    el.dispatchEvent(new KeyboardEvent("keydown", { key, bubbles: true, ...mods }));
    el.dispatchEvent(new KeyboardEvent("keyup", { key, bubbles: true, ...mods }));
  };
`

const settle = "  await __sleep(100);\n"

func imperative(cmds []command.Command) string {
	var b strings.Builder
	b.WriteString("(async () => {\n")
	b.WriteString(prelude)
	for _, c := range cmds {
		b.WriteString("\n  ")
		b.WriteString(statement(c))
		b.WriteString("\n")
		if _, ok := c.(command.Wait); !ok {
			b.WriteString(settle)
		}
	}
	b.WriteString("})();\n")
	return b.String()
}

func statement(c command.Command) string {
	switch v := c.(type) {
	case command.Click:
		return fmt.Sprintf("__q(%s).click();", jsString(v.Selector))
	case command.DoubleClick:
		return fmt.Sprintf(`__q(%s).dispatchEvent(new MouseEvent("dblclick", { bubbles: true, detail: 2 }));`, jsString(v.Selector))
	case command.RightClick:
		return fmt.Sprintf(`__q(%s).dispatchEvent(new MouseEvent("contextmenu", { bubbles: true, button: 2 }));`, jsString(v.Selector))
	case command.Type:
		return fmt.Sprintf("await __type(%s, %s, false);", jsNullable(v.Selector), jsString(v.Value))
	case command.Set:
		return fmt.Sprintf("await __type(%s, %s, true);", jsString(v.Selector), jsString(v.Value))
	case command.Scroll:
		dx, dy := offsets(v)
		return fmt.Sprintf("await __scroll(%s, %d, %d);", jsNullable(v.Selector), dx, dy)
	case command.Wait:
		if v.Mode == command.WaitSelector {
			return fmt.Sprintf("await __wait(%s, %d);", jsString(v.Selector), v.Timeout.Milliseconds())
		}
		return fmt.Sprintf("await __sleep(%d);", v.Duration.Milliseconds())
	case command.Shortcut:
		return fmt.Sprintf("__key(%s, %s);", jsString(v.Key), jsModifiers(v.Modifiers))
	case command.KeyPress:
		return fmt.Sprintf("__key(%s, {});", jsString(v.Key))
	}
	return "// " + unsupported(c)
}

func offsets(s command.Scroll) (int, int) {
	switch s.Direction {
	case command.Up:
		return 0, -s.Amount
	case command.Down:
		return 0, s.Amount
	case command.Left:
		return -s.Amount, 0
	case command.Right:
		return s.Amount, 0
	}
	return 0, 0
}

// jsString quotes s as a JavaScript string literal. JSON string syntax is a
// subset of it; U+2028 and U+2029 are escaped by encoding/json.
func jsString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return strconv.Quote(s)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func jsNullable(s string) string {
	if s == "" {
		return "null"
	}
	return jsString(s)
}

func jsModifiers(m command.Modifiers) string {
	var parts []string
	if m.Has(command.Ctrl) {
		parts = append(parts, "ctrlKey: true")
	}
	if m.Has(command.Alt) {
		parts = append(parts, "altKey: true")
	}
	if m.Has(command.Shift) {
		parts = append(parts, "shiftKey: true")
	}
	if m.Has(command.Meta) {
		parts = append(parts, "metaKey: true")
	}
	if len(parts) == 0 {
		return "{}"
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}
