package codegen

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivikasavnish/go-flowrec/pkg/command"
)

var meta = Meta{
	Name:        "login",
	SourceURL:   "https://example.test/login",
	GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
}

func TestWrapImperativeIsAValidProgram(t *testing.T) {
	cmds := append(flow(), command.Set{Selector: "#t", Value: "back`tick"})
	js, err := Generate(cmds, Imperative)
	require.NoError(t, err)

	src, err := Wrap(Imperative, js, meta)
	require.NoError(t, err)

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "main.go", src, parser.ParseComments)
	require.NoError(t, err, src)
	assert.Equal(t, "main", f.Name.Name)

	var paths []string
	for _, imp := range f.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		require.NoError(t, err)
		paths = append(paths, p)
	}
	assert.ElementsMatch(t, []string{
		"flag", "log",
		"github.com/go-rod/rod",
		"github.com/go-rod/rod/lib/launcher",
		"github.com/go-rod/rod/lib/proto",
	}, paths)

	// the embedded script is the IIFE turned into a function
	var script string
	ast.Inspect(f, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if ok && vs.Names[0].Name == "script" {
			lit := vs.Values[0].(*ast.BasicLit)
			script, err = strconv.Unquote(lit.Value)
			require.NoError(t, err)
		}
		return true
	})
	assert.True(t, strings.HasPrefix(script, "() => (async () => {"))
	assert.True(t, strings.HasSuffix(script, "})()"))

	assert.Contains(t, src, "// Code generated by flowrec. DO NOT EDIT.")
	assert.Contains(t, src, "// Flow: login")
	assert.Contains(t, src, "// Generated: 2026-03-01T12:00:00Z")
	assert.Contains(t, src, `"https://example.test/login"`)
}

func TestWrapDeclarativeAddsHeader(t *testing.T) {
	script, err := Generate([]command.Command{command.Click{Selector: "#go"}}, Declarative)
	require.NoError(t, err)

	out, err := Wrap(Declarative, script, meta)
	require.NoError(t, err)
	assert.Equal(t, `# flowrec script
# flow: login
# source: https://example.test/login
# generated: 2026-03-01T12:00:00Z

CLICK #go
`, out)

	cmds, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, []command.Command{command.Click{Selector: "#go"}}, cmds)
}

func TestWrapUnknownTarget(t *testing.T) {
	_, err := Wrap(Target("pdf"), "", meta)
	assert.ErrorIs(t, err, ErrUnknownTarget)
}
