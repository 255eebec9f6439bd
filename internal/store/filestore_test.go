package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, fs.Set("install_id", []byte("abc-123")))

	value, err := fs.Get("install_id")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc-123"), value)
}

func TestFileStoreMissingKey(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = fs.Get("nope")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestFileStoreOverwrite(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, fs.Set("k", []byte("one")))
	require.NoError(t, fs.Set("k", []byte("two")))

	value, err := fs.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), value)
}

func TestFileStoreDeleteIdempotent(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, fs.Set("k", []byte("v")))
	require.NoError(t, fs.Delete("k"))
	require.NoError(t, fs.Delete("k"))

	_, err = fs.Get("k")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestFileStoreKeys(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, fs.Set("alpha", []byte("1")))
	require.NoError(t, fs.Set("attempts:validate", []byte("2")))

	keys, err := fs.Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alpha", "attempts:validate"}, keys)
}

func TestFileStoreHostileKeysStayInDirectory(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, fs.Set("../escape", []byte("v")))

	// The hex encoding keeps the value inside the data directory.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, err = os.Stat(filepath.Join(filepath.Dir(dir), "escape"))
	assert.True(t, os.IsNotExist(err))

	value, err := fs.Get("../escape")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)
}

func TestFileStoreValuesPersistAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	fs, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, fs.Set("k", []byte("v")))

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	value, err := reopened.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)
}

func TestFileStoreFilePermissions(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, fs.Set("k", []byte("secret")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	info, err := entries[0].Info()
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestMemStoreRoundTrip(t *testing.T) {
	ms := NewMemStore()

	require.NoError(t, ms.Set("k", []byte("v")))
	value, err := ms.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)

	_, err = ms.Get("missing")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemStoreCopiesValues(t *testing.T) {
	ms := NewMemStore()

	original := []byte("v")
	require.NoError(t, ms.Set("k", original))
	original[0] = 'x'

	value, err := ms.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)

	// Mutating the returned slice does not affect the stored value.
	value[0] = 'y'
	again, err := ms.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), again)
}
