package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSystemReadWrite(t *testing.T) {
	workspace := t.TempDir()
	backend := NewFileSystem(workspace)
	assert.Equal(t, "file_system", backend.Name())

	w, err := backend.Writer("images", "obj1/00000000")
	require.NoError(t, err)
	_, err = io.Copy(w, strings.NewReader("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := backend.Reader("images", "obj1/00000000")
	require.NoError(t, err)
	defer r.Close()

	payload, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(payload))
}

func TestFileSystemEntries(t *testing.T) {
	workspace := t.TempDir()
	backend := NewFileSystem(workspace)

	entries, err := backend.Entries("images")
	assert.NoError(t, err)
	assert.Empty(t, entries)

	for _, key := range []string{"obj1/00000000", "obj1/00000001", "obj2/00000000"} {
		w, err := backend.Writer("images", key)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}

	entries, err = backend.Entries("images")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.True(t, entry.Dir)
		assert.False(t, entry.ModTime.IsZero())
	}

	entries, err = backend.Entries("images/obj1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	for _, entry := range entries {
		assert.False(t, entry.Dir)
	}
}

func TestFileSystemRemoveAndCleanup(t *testing.T) {
	workspace := t.TempDir()
	backend := NewFileSystem(workspace)

	w, err := backend.Writer("videos", "obj1/00000000")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, backend.Remove("videos", "obj1"))
	_, err = backend.Reader("videos", "obj1/00000000")
	assert.Error(t, err)

	// Removing something missing is not an error.
	assert.NoError(t, backend.Remove("videos", "obj1"))

	require.NoError(t, os.MkdirAll(filepath.Join(workspace, "videos", "empty"), 0755))
	require.NoError(t, backend.Cleanup())

	_, err = os.Stat(filepath.Join(workspace, "videos", "empty"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileSystemCleanup_Nested(t *testing.T) {
	workspace := t.TempDir()
	backend := NewFileSystem(workspace)

	require.NoError(t, os.MkdirAll(filepath.Join(workspace, "images", "a", "b", "c"), 0755))

	w, err := backend.Writer("images", "obj1/00000000")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, backend.Cleanup())

	_, err = os.Stat(filepath.Join(workspace, "images", "a"))
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(workspace, "images", "obj1", "00000000"))
	assert.NoError(t, err)
}

func TestRemoveEmpty_KeepsFilledDirectories(t *testing.T) {
	workspace := t.TempDir()
	dirname := filepath.Join(workspace, "videos", "obj1")
	require.NoError(t, os.MkdirAll(dirname, 0755))

	// A chunk written after the walk saw the folder empty.
	require.NoError(t, os.WriteFile(filepath.Join(dirname, "00000000"), []byte("chunk"), 0644))

	removeEmpty([]string{filepath.Join(workspace, "videos"), dirname})

	payload, err := os.ReadFile(filepath.Join(dirname, "00000000"))
	require.NoError(t, err)
	assert.Equal(t, []byte("chunk"), payload)
}
