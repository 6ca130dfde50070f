package jsonfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukane-philemon/gradebook/internal/db"
	"github.com/ukane-philemon/gradebook/internal/student"
)

func TestNewRequiresPath(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "students.json")
	f, err := New(path)
	require.NoError(t, err)

	students, err := f.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, students)

	// The parent directory is created by New.
	_, err = os.Stat(filepath.Dir(path))
	assert.NoError(t, err)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "students.json")
	f, err := New(path)
	require.NoError(t, err)

	want := []*student.Student{
		{ID: 3, Name: "Carlos", Scores: []float64{9, 8, 10}, Average: 9, Status: student.StatusApproved},
		{ID: 1, Name: "João", Scores: []float64{4, 6, 5}, Average: 5, Status: student.StatusFailed},
	}
	require.NoError(t, f.Save(context.Background(), want))

	got, err := f.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestSaveEmptyList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "students.json")
	f, err := New(path)
	require.NoError(t, err)

	require.NoError(t, f.Save(context.Background(), nil))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))

	got, err := f.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "students.json")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	f, err := New(path)
	require.NoError(t, err)

	got, err := f.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "students.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":1,`), 0o600))

	f, err := New(path)
	require.NoError(t, err)

	_, err = f.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, db.ErrorCorruptState))
}
