// Package artifact stores exported logo files.
package artifact

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// ContentTypeSVG is the media type of exported logos.
const ContentTypeSVG = "image/svg+xml"

// Store writes exported files and returns the key they are reachable under.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Key builds the object key for an exported SVG version.
func Key(prefix, sessionID, svgID string) string {
	return path.Join(strings.TrimSuffix(prefix, "/"), sessionID, svgID+".svg")
}

// FileStore writes artifacts below a base directory of an afero filesystem.
type FileStore struct {
	fs      afero.Fs
	baseDir string
}

// NewFileStore creates a FileStore rooted at baseDir.
func NewFileStore(fs afero.Fs, baseDir string) (*FileStore, error) {
	if err := fs.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure artifact dir: %w", err)
	}
	return &FileStore{fs: fs, baseDir: baseDir}, nil
}

// Put writes data atomically and returns the key.
func (s *FileStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	clean := path.Clean("/" + key)[1:]
	if clean == "" {
		return "", fmt.Errorf("empty artifact key")
	}
	target := path.Join(s.baseDir, clean)
	if err := s.fs.MkdirAll(path.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact dir: %w", err)
	}

	tmp := target + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := s.fs.Rename(tmp, target); err != nil {
		return "", fmt.Errorf("failed to commit artifact: %w", err)
	}
	return clean, nil
}
