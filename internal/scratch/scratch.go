package scratch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxLabel bounds the run ID portion of a directory name
const maxLabel = 64

// Dir is a run-scoped temporary directory
type Dir struct {
	path string
}

// New creates a unique directory under base (os.TempDir() when empty).
// runID only labels the directory; durable run IDs contain the object path.
func New(base, runID string) (*Dir, error) {
	if base != "" {
		if err := os.MkdirAll(base, 0755); err != nil {
			return nil, fmt.Errorf("failed to create scratch base: %w", err)
		}
	}
	p, err := os.MkdirTemp(base, "run-"+label(runID)+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	return &Dir{path: p}, nil
}

// label keeps letters, digits, '.', '_' and '-' and replaces everything else
func label(runID string) string {
	s := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		}
		return '_'
	}, runID)
	if len(s) > maxLabel {
		s = s[len(s)-maxLabel:]
	}
	return s
}

// Path returns the directory path
func (d *Dir) Path() string {
	return d.path
}

// File returns the path of name inside the directory
func (d *Dir) File(name string) string {
	return filepath.Join(d.path, name)
}

// Remove deletes the directory and everything in it. Safe to call twice.
func (d *Dir) Remove() error {
	if d == nil || d.path == "" {
		return nil
	}
	return os.RemoveAll(d.path)
}
