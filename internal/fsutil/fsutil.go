// Package fsutil provides the whole-file read and write helpers used to
// update the counter store and the header artifact.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultFilePerm is used when writing a file that does not exist yet.
const DefaultFilePerm os.FileMode = 0o644

// ErrEmptyPath is returned when a helper is called without a path.
var ErrEmptyPath = errors.New("path is empty")

// ReadFile reads the entire file at path.
func ReadFile(path string) ([]byte, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	// Path comes from configuration or a command-line flag
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304
	if err != nil {
		return nil, err
	}
	return data, nil
}

// WriteFile truncates and rewrites the file at path in place.
// An existing file keeps its permission bits.
func WriteFile(path string, data []byte) error {
	if path == "" {
		return ErrEmptyPath
	}

	path = filepath.Clean(path)
	if err := os.WriteFile(path, data, modeOf(path)); err != nil {
		return err
	}
	return nil
}

// Staged is a fully written temp file waiting to replace its target.
type Staged struct {
	target string
	tmp    string
	done   bool
}

// StageFile writes data to a synced temp file next to path.
// Nothing at path changes until Commit is called.
func StageFile(path string, data []byte) (*Staged, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	fail := func(err error) (*Staged, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return nil, err
	}

	if _, err := tmp.Write(data); err != nil {
		return fail(fmt.Errorf("failed to write temp file: %w", err))
	}
	if err := tmp.Chmod(modeOf(path)); err != nil {
		return fail(fmt.Errorf("failed to chmod temp file: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("failed to sync temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	return &Staged{target: path, tmp: tmpName}, nil
}

// Target returns the path the staged file will replace.
func (s *Staged) Target() string {
	return s.target
}

// Commit renames the temp file over its target.
func (s *Staged) Commit() error {
	if s.done {
		return nil
	}
	if err := os.Rename(s.tmp, s.target); err != nil {
		return err
	}
	s.done = true
	return nil
}

// Discard removes the temp file if it has not been committed.
func (s *Staged) Discard() {
	if s.done {
		return
	}
	_ = os.Remove(s.tmp)
	s.done = true
}

func modeOf(path string) os.FileMode {
	info, err := os.Stat(path)
	if err != nil {
		return DefaultFilePerm
	}
	return info.Mode().Perm()
}
