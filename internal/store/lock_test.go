package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirLock_TryLock(t *testing.T) {
	dir := t.TempDir()
	lock := NewDirLock(dir)

	acquired, err := lock.TryLock()
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.FileExists(t, lock.Path())

	require.NoError(t, lock.Unlock())
}

func TestDirLock_CreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	lock := NewDirLock(dir)

	acquired, err := lock.TryLock()
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.DirExists(t, dir)

	require.NoError(t, lock.Unlock())
}

func TestDirLock_UnlockWithoutLock(t *testing.T) {
	lock := NewDirLock(t.TempDir())
	assert.NoError(t, lock.Unlock())
}

func TestDirLock_Path(t *testing.T) {
	dir := t.TempDir()
	lock := NewDirLock(dir)
	assert.Equal(t, filepath.Join(dir, ".recall.lock"), lock.Path())
}
