package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ivikasavnish/go-flowrec/pkg/flowstore"
)

// flowExts are the file types the importer picks up.
var flowExts = map[string]bool{
	".flow": true,
	".txt":  true,
	".json": true,
	".yaml": true,
	".yml":  true,
}

// Importer uploads flow files to a server as saved flows.
type Importer struct {
	client *Client
	domain string
	logger *zap.Logger
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithLogger sets a custom logger for the importer
func WithLogger(logger *zap.Logger) ImporterOption {
	return func(i *Importer) {
		i.logger = logger
	}
}

// WithDomain files imported flows under domain.
func WithDomain(domain string) ImporterOption {
	return func(i *Importer) {
		i.domain = domain
	}
}

// NewImporter creates an importer that saves through c.
func NewImporter(c *Client, opts ...ImporterOption) *Importer {
	i := &Importer{
		client: c,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// ImportFile saves one flow file, named after the file, and returns its ID.
func (i *Importer) ImportFile(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !flowExts[ext] {
		return "", fmt.Errorf("unsupported file type: %s", ext)
	}
	i.logger.Debug("importing flow file", zap.String("path", path))

	cmds, err := flowstore.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to process %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	id, err := i.client.SaveFlow(ctx, name, i.domain, cmds)
	if err != nil {
		return "", fmt.Errorf("failed to save %s: %w", path, err)
	}
	return id, nil
}

// ImportDirectory imports every flow file directly under dir. Files that fail
// are logged and skipped; the returned map holds the saved IDs by path.
func (i *Importer) ImportDirectory(ctx context.Context, dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	saved := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !flowExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		path := filepath.Join(dir, e.Name())
		id, err := i.ImportFile(ctx, path)
		if err != nil {
			i.logger.Warn("skipping flow file", zap.String("path", path), zap.Error(err))
			continue
		}
		saved[path] = id
	}
	i.logger.Info("imported flows", zap.String("dir", dir), zap.Int("count", len(saved)))
	return saved, nil
}
