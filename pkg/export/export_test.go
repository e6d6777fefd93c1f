package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadWritesAtomically(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	d := NewDir(dir, nil, nil)

	require.NoError(t, d.Download("login flow.txt", "CLICK #a\n"))
	require.NoError(t, d.Download("login flow.txt", "CLICK #b\n"))

	data, err := os.ReadFile(filepath.Join(dir, "login_flow.txt"))
	require.NoError(t, err)
	assert.Equal(t, "CLICK #b\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestDownloadStaysInsideDir(t *testing.T) {
	dir := t.TempDir()
	d := NewDir(dir, nil, nil)
	require.NoError(t, d.Download("../../etc/passwd", "x"))
	_, err := os.Stat(filepath.Join(dir, "passwd"))
	assert.NoError(t, err)

	assert.ErrorIs(t, d.Download("..", "x"), ErrEmptyName)
	assert.ErrorIs(t, d.Download("  ", "x"), ErrEmptyName)
}

func TestClipboard(t *testing.T) {
	var buf bytes.Buffer
	d := NewDir(t.TempDir(), &buf, nil)
	require.NoError(t, d.CopyToClipboard("(async () => {})();"))
	assert.Equal(t, "(async () => {})();", buf.String())

	assert.ErrorIs(t, NewDir(t.TempDir(), nil, nil).CopyToClipboard("x"), ErrNoClipboard)
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "flow.js", SafeName("flow.js"))
	assert.Equal(t, "my_flow_v2_.txt", SafeName("my flow (v2).txt"))
	assert.Equal(t, "", SafeName("..."))
}
