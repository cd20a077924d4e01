package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hupe1980/proposalmesh/core"
)

// FSArchive stores documents on the local filesystem, one directory per run.
type FSArchive struct {
	root string
}

var _ core.DocumentArchive = (*FSArchive)(nil)

// NewFSArchive creates the root directory if needed and returns the archive.
func NewFSArchive(root string) (*FSArchive, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("archive: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("archive: create root: %w", err)
	}
	return &FSArchive{root: root}, nil
}

// Save implements core.DocumentArchive.
func (a *FSArchive) Save(_ context.Context, runID, name string, data []byte) error {
	dir, err := a.runDir(runID)
	if err != nil {
		return err
	}
	if err := validateName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("archive: create run directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("archive: write %s/%s: %w", runID, name, err)
	}
	return nil
}

// Get implements core.DocumentArchive.
func (a *FSArchive) Get(_ context.Context, runID, name string) ([]byte, error) {
	dir, err := a.runDir(runID)
	if err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("archive: read %s/%s: %w", runID, name, err)
	}
	return data, nil
}

// List implements core.DocumentArchive. A run with no archived documents
// yields an empty list.
func (a *FSArchive) List(_ context.Context, runID string) ([]string, error) {
	dir, err := a.runDir(runID)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("archive: list %s: %w", runID, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (a *FSArchive) runDir(runID string) (string, error) {
	if err := validateName(runID); err != nil {
		return "", err
	}
	return filepath.Join(a.root, runID), nil
}

// validateName rejects empty names and anything that could escape the run
// directory.
func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("archive: empty object name")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("archive: invalid object name %q", name)
	}
	return nil
}
