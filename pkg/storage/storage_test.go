package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_SaveLoadRoundTrip(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, fs.Save(ctx, "annotations.Checkout", []byte(`[{"id":"a-1"}]`)))

	data, err := fs.Load(ctx, "annotations.Checkout")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"a-1"}]`, string(data))
}

func TestFileStore_LoadAbsentKey(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	data, err := fs.Load(context.Background(), "never-saved")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestFileStore_Delete(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, fs.Save(ctx, "k", []byte("v")))
	require.NoError(t, fs.Delete(ctx, "k"))

	data, err := fs.Load(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestFileStore_DeleteAbsentKeyIsNoError(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, fs.Delete(context.Background(), "absent"))
}

func TestFileStore_KeyCannotEscapeBaseDir(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, fs.Save(context.Background(), "../escape/attempt", []byte("v")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "value must land inside the base directory")
	assert.Equal(t, dir, filepath.Dir(filepath.Join(dir, entries[0].Name())))
}

func TestMemoryStore_SaveLoadRoundTrip(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, ms.Save(ctx, "k", []byte("value")))

	data, err := ms.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "value", string(data))
}

func TestMemoryStore_LoadReturnsCopy(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, ms.Save(ctx, "k", []byte("abc")))

	first, err := ms.Load(ctx, "k")
	require.NoError(t, err)
	first[0] = 'z'

	second, err := ms.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(second), "callers must not share backing arrays")
}

func TestMemoryStore_Delete(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, ms.Save(ctx, "k", []byte("v")))

	require.NoError(t, ms.Delete(ctx, "k"))

	data, err := ms.Load(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, data)
}
