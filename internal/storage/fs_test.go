package storage

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/kvault/internal/apperr"
)

func tempRoot(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	require.NoError(t, err)
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempRoot(t)
	content := []byte("# Hello\nWorld\n")
	require.NoError(t, s.Write("note.md", content))

	got, err := s.Read("note.md")
	require.NoError(t, err)
	assert.Equal(t, string(content), string(got))
	assert.True(t, s.Exists("note.md"))
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempRoot(t)
	require.NoError(t, s.Write("a/b/c.md", []byte("deep")))

	got, err := s.Read("a/b/c.md")
	require.NoError(t, err)
	assert.Equal(t, "deep", string(got))
}

func TestWriteOverwritesAtomically(t *testing.T) {
	s := tempRoot(t)
	require.NoError(t, s.Write("x.md", []byte("one")))
	require.NoError(t, s.Write("x.md", []byte("two")))

	got, err := s.Read("x.md")
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestReadMissing(t *testing.T) {
	s := tempRoot(t)
	_, err := s.Read("nope.md")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrIO)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.False(t, s.Exists("nope.md"))
}

func TestPathTraversal(t *testing.T) {
	s := tempRoot(t)
	for _, p := range []string{"../escape.md", "a/../../escape.md", "/etc/passwd"} {
		_, err := s.Read(p)
		assert.ErrorIs(t, err, apperr.ErrInvalidPath, p)
		assert.ErrorIs(t, s.Write(p, []byte("bad")), apperr.ErrInvalidPath, p)
	}
}

func TestExistsRejectsDirectories(t *testing.T) {
	s := tempRoot(t)
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), "dir"), 0o755))
	assert.False(t, s.Exists("dir"))
}

func TestNewFS_NotADirectory(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))
	_, err := NewFS(f)
	assert.Error(t, err)
}
