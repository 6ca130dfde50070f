package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ukane-philemon/gradebook/internal/db"
	"github.com/ukane-philemon/gradebook/internal/student"
)

// Check that *File implements student.Persister.
var _ student.Persister = (*File)(nil)

// File persists the student list as a JSON array in a single file.
type File struct {
	path string
}

// New returns a *File that reads and writes path. The parent directory is
// created if it does not exist.
func New(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("data file path is required")
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("os.MkdirAll error: %w", err)
		}
	}

	return &File{path: path}, nil
}

// Load returns nil if the file does not exist yet. An empty file is read as
// an empty list.
func (f *File) Load(_ context.Context) ([]*student.Student, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("os.ReadFile error: %w", err)
	}

	students := []*student.Student{}
	if len(b) == 0 {
		return students, nil
	}

	if err := json.Unmarshal(b, &students); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", db.ErrorCorruptState, f.path, err)
	}

	return students, nil
}

// Save writes students to a temporary file next to the data file and renames
// it into place.
func (f *File) Save(_ context.Context, students []*student.Student) error {
	if students == nil {
		students = []*student.Student{}
	}

	b, err := json.MarshalIndent(students, "", "  ")
	if err != nil {
		return fmt.Errorf("json.MarshalIndent error: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("os.CreateTemp error: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("tmp.Write error: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tmp.Close error: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("os.Rename error: %w", err)
	}

	return nil
}
