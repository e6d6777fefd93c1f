// Package export hands generated scripts to the user: as files in a
// download directory or through a clipboard writer.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrEmptyName   = errors.New("export: empty file name")
	ErrNoClipboard = errors.New("export: no clipboard configured")
)

// Exporter is the export boundary.
type Exporter interface {
	Download(name, content string) error
	CopyToClipboard(content string) error
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SafeName reduces name to a portable base file name.
func SafeName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = unsafeChars.ReplaceAllString(name, "_")
	return strings.Trim(name, "._")
}

// Dir writes downloads into a directory and copies to a writer.
type Dir struct {
	dir    string
	logger *zap.Logger

	mu        sync.Mutex
	clipboard io.Writer
}

var _ Exporter = (*Dir)(nil)

// NewDir returns an exporter rooted at dir. clipboard may be nil.
func NewDir(dir string, clipboard io.Writer, logger *zap.Logger) *Dir {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dir{dir: dir, clipboard: clipboard, logger: logger}
}

// Path returns where Download would write name.
func (d *Dir) Path(name string) string {
	return filepath.Join(d.dir, SafeName(name))
}

// Download writes content to the directory. The file is written to a temp
// name and renamed so readers never see a partial script.
func (d *Dir) Download(name, content string) error {
	if SafeName(name) == "" {
		return ErrEmptyName
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", d.dir, err)
	}

	target := d.Path(name)
	tmp, err := os.CreateTemp(d.dir, ".flowrec-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", target, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("rename to %s: %w", target, err)
	}

	d.logger.Info("script exported", zap.String("path", target), zap.Int("bytes", len(content)))
	return nil
}

// CopyToClipboard writes content to the configured clipboard writer.
func (d *Dir) CopyToClipboard(content string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.clipboard == nil {
		return ErrNoClipboard
	}
	if _, err := io.WriteString(d.clipboard, content); err != nil {
		return fmt.Errorf("clipboard: %w", err)
	}
	return nil
}
