package codegen

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"golang.org/x/tools/imports"
)

// Meta is provenance stamped into wrapped scripts.
type Meta struct {
	Name        string
	SourceURL   string
	GeneratedAt time.Time
}

var programTmpl = template.Must(template.New("program").Parse(`// Code generated by flowrec. DO NOT EDIT.
{{- if .Name}}
// Flow: {{.Name}}
{{- end}}
// Source: {{.SourceURL}}
// Generated: {{.GeneratedAt}}

package main

import (
	"flag"
	"log"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const script = {{.Script}}

func main() {
	url := flag.String("url", {{printf "%q" .SourceURL}}, "page to open")
	headless := flag.Bool("headless", false, "run without a visible window")
	flag.Parse()

	u, err := launcher.New().Headless(*headless).Launch()
	if err != nil {
		log.Fatalf("launch browser: %v", err)
	}
	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: *url})
	if err != nil {
		log.Fatalf("open %s: %v", *url, err)
	}
	if err := page.WaitLoad(); err != nil {
		log.Fatalf("wait load: %v", err)
	}
	if _, err := page.Eval(script); err != nil {
		log.Fatalf("replay: %v", err)
	}
	log.Println("replay finished")
}
`))

// Wrap packages a generated script. Imperative scripts become a Go program
// that opens the source URL with go-rod and evaluates the script;
// declarative scripts get a provenance header.
func Wrap(target Target, script string, meta Meta) (string, error) {
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now()
	}
	switch target {
	case Imperative:
		return wrapProgram(script, meta)
	case Declarative:
		return header(meta) + script, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTarget, target)
}

func header(meta Meta) string {
	var b strings.Builder
	b.WriteString("# flowrec script\n")
	if meta.Name != "" {
		fmt.Fprintf(&b, "# flow: %s\n", oneLine(meta.Name))
	}
	fmt.Fprintf(&b, "# source: %s\n", oneLine(meta.SourceURL))
	fmt.Fprintf(&b, "# generated: %s\n\n", meta.GeneratedAt.UTC().Format(time.RFC3339))
	return b.String()
}

func wrapProgram(script string, meta Meta) (string, error) {
	// page.Eval takes a function; the script is an IIFE expression.
	fn := "() => " + strings.TrimSuffix(strings.TrimSpace(script), ";")

	var buf bytes.Buffer
	err := programTmpl.Execute(&buf, struct {
		Name        string
		SourceURL   string
		GeneratedAt string
		Script      string
	}{
		Name:        oneLine(meta.Name),
		SourceURL:   oneLine(meta.SourceURL),
		GeneratedAt: meta.GeneratedAt.UTC().Format(time.RFC3339),
		Script:      goLiteral(fn),
	})
	if err != nil {
		return "", fmt.Errorf("render program: %w", err)
	}

	out, err := imports.Process("main.go", buf.Bytes(), &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return "", fmt.Errorf("format program: %w", err)
	}
	return string(out), nil
}

// goLiteral prefers a raw string literal for readability.
func goLiteral(s string) string {
	if !strings.Contains(s, "`") && !strings.Contains(s, "\r") {
		return "`" + s + "`"
	}
	return strconv.Quote(s)
}

func oneLine(s string) string {
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
}
