// Package archive persists raw fetched payloads to the local filesystem so
// failed transforms can be replayed without refetching.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config captures the parameters for the filesystem archive.
type Config struct {
	BaseDir string
}

// FS writes raw payloads under a base directory and returns file:// URIs.
type FS struct {
	baseDir string
}

// NewFS creates a filesystem-backed archive, creating the base directory if
// needed.
func NewFS(cfg Config) (*FS, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("archive base directory is required")
	}
	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}
	return &FS{baseDir: cfg.BaseDir}, nil
}

// Put writes data under the archive and returns its URI.
func (a *FS) Put(_ context.Context, path string, data []byte) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}

	fullPath := filepath.Join(a.baseDir, path)
	cleanBase := filepath.Clean(a.baseDir)
	if !strings.HasPrefix(filepath.Clean(fullPath), cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes archive base directory")
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return "", fmt.Errorf("write archive file: %w", err)
	}
	return fmt.Sprintf("file://%s", fullPath), nil
}

// Noop discards payloads (the default when archiving is disabled).
type Noop struct{}

// Put discards the data.
func (Noop) Put(_ context.Context, path string, _ []byte) (string, error) {
	return "noop://" + path, nil
}
