// Package storage is the pipeline's boundary to artifact storage: it
// reads a source artifact by path and writes the rendered output
// artifact. Upload layout and deletion belong to other services.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalFS stores artifacts on the local filesystem. OutputDir is where
// rendered outputs land.
type LocalFS struct {
	OutputDir string
}

// NewLocalFS creates a store rooted at the given output directory.
func NewLocalFS(outputDir string) *LocalFS {
	return &LocalFS{OutputDir: outputDir}
}

// Exists reports whether a source artifact is present and readable.
func (l *LocalFS) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Read returns the raw bytes of a source artifact.
func (l *LocalFS) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source artifact: %w", err)
	}
	return data, nil
}

// WriteOutput persists a rendered output artifact for a job and returns
// its path.
func (l *LocalFS) WriteOutput(jobID uuid.UUID, data []byte) (string, error) {
	if err := os.MkdirAll(l.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure output directory: %w", err)
	}
	path := filepath.Join(l.OutputDir, fmt.Sprintf("%s_translated.pdf", jobID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write output artifact: %w", err)
	}
	return path, nil
}
