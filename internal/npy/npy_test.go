package npy

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	shape := []int{5, 4, 6, 3}
	data := make([]byte, 5*4*6*3)

	for i := range data {
		data[i] = byte(i % 251)
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, shape, data))

	// magic + length prefix + header must land on the numpy alignment
	assert.Equal(t, 0, (buf.Len()-len(data))%headerAlign)

	gotShape, gotData, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, shape, gotShape)
	assert.Equal(t, data, gotData)
}

func TestWriteRejectsShapeMismatch(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, []int{2, 2}, make([]byte, 5))
	assert.Error(t, err)
}

func TestReadShapeHeaderOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "episode.npy")

	shape := []int{17, 9, 16, 3}
	require.NoError(t, WriteFile(path, shape, make([]byte, 17*9*16*3)))

	got, err := ReadShape(path)
	require.NoError(t, err)
	assert.Equal(t, shape, got)

	// Truncate everything past the header: the shape must still be
	// readable, proving the frames are never touched.
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-int64(17*9*16*3)))

	got, err = ReadShape(path)
	require.NoError(t, err)
	assert.Equal(t, shape, got)
}

func TestReadShapeBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.npy")
	require.NoError(t, os.WriteFile(path, []byte("not an npy file at all"), 0o644))

	_, err := ReadShape(path)
	assert.Error(t, err)
}

func TestMetadataRoundTrip(t *testing.T) {
	entries := []MetadataEntry{
		{Path: "data/10fps_160x90/a.npy", Length: 120},
		{Path: "data/10fps_160x90/some-much-longer-name.npy", Length: 7},
		{Path: "b.npy", Length: 0},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteMetadata(&buf, entries))

	got, err := ReadMetadata(&buf)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestMetadataEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMetadata(&buf, nil))

	got, err := ReadMetadata(&buf)
	require.NoError(t, err)
	assert.Empty(t, got)
}
