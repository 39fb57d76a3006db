package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framefeed/internal/npy"
)

func writeEpisode(t *testing.T, dir, name string, frames int) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, npy.WriteFile(path, []int{frames, 2, 3, 3}, make([]byte, frames*2*3*3)))

	return path
}

func TestIndexLengthsMatchEpisodes(t *testing.T) {
	dir := t.TempDir()

	lengths := map[string]int64{"a.npy": 12, "b.npy": 3, "c.npy": 40}

	for name, frames := range lengths {
		writeEpisode(t, dir, name, int(frames))
	}

	index, err := BuildIndex(dir, 2)
	require.NoError(t, err)
	require.Len(t, index, 3)

	for _, entry := range index {
		want, ok := lengths[filepath.Base(entry.Path)]
		require.True(t, ok)
		assert.Equal(t, want, entry.Length)

		// the recorded length must equal the actual leading dimension
		shape, err := npy.ReadShape(entry.Path)
		require.NoError(t, err)
		assert.Equal(t, entry.Length, int64(shape[0]))
	}
}

func TestIndexSkipsUnreadable(t *testing.T) {
	dir := t.TempDir()

	writeEpisode(t, dir, "good.npy", 8)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.npy"), []byte("truncated junk"), 0o644))

	index, err := BuildIndex(dir, 2)
	require.NoError(t, err)
	require.Len(t, index, 1)
	assert.Equal(t, filepath.Join(dir, "good.npy"), index[0].Path)
}

func TestIndexExcludesItself(t *testing.T) {
	dir := t.TempDir()

	writeEpisode(t, dir, "a.npy", 4)

	index, err := BuildIndex(dir, 1)
	require.NoError(t, err)
	require.NoError(t, WriteIndex(dir, index))

	// rebuilding after the index exists must not pick up metadata.npy
	again, err := BuildIndex(dir, 1)
	require.NoError(t, err)
	assert.Equal(t, index, again)
}

func TestWriteIndexAtomic(t *testing.T) {
	dir := t.TempDir()

	index := []npy.MetadataEntry{{Path: "a.npy", Length: 4}, {Path: "b.npy", Length: 9}}
	require.NoError(t, WriteIndex(dir, index))

	got, err := npy.ReadMetadataFile(filepath.Join(dir, IndexName))
	require.NoError(t, err)
	assert.Equal(t, index, got)

	// no temporary droppings next to the index
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, IndexName, entries[0].Name())
}
