package index

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHNSWSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.snap")
	entries := randomVectors(50, 7)

	src, err := NewHNSW(testDim, 0)
	require.NoError(t, err)
	require.NoError(t, src.Rebuild(entries))
	require.NoError(t, src.SaveTo(path))

	dst, err := NewHNSW(testDim, 0)
	require.NoError(t, err)
	require.NoError(t, dst.LoadFrom(path, entries))
	assert.Equal(t, src.Len(), dst.Len())

	query := randomVectors(1, 99)[0].Vector
	want, err := src.Search(query, 5)
	require.NoError(t, err)
	got, err := dst.Search(query, 5)
	require.NoError(t, err)
	assert.Equal(t, want, got, "restored graph should answer like the original")
}

func TestHNSWSnapshotStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.snap")
	entries := randomVectors(10, 7)

	src, err := NewHNSW(testDim, 0)
	require.NoError(t, err)
	require.NoError(t, src.Rebuild(entries))
	require.NoError(t, src.SaveTo(path))

	// The store gained a record after the snapshot was written.
	grown := append(append([]Entry(nil), entries...), randomVectors(11, 8)[10])

	dst, err := NewHNSW(testDim, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, dst.LoadFrom(path, grown), ErrSnapshotStale)
}

func TestHNSWSnapshotMissing(t *testing.T) {
	dst, err := NewHNSW(testDim, 0)
	require.NoError(t, err)
	err = dst.LoadFrom(filepath.Join(t.TempDir(), "absent.snap"), nil)
	assert.Error(t, err)
}

func TestHNSWSnapshotEmptyIndexRemovesFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.snap")
	entries := randomVectors(1, 7)

	idx, err := NewHNSW(testDim, 0)
	require.NoError(t, err)
	require.NoError(t, idx.Rebuild(entries))
	require.NoError(t, idx.SaveTo(path))

	require.NoError(t, idx.Rebuild(nil))
	require.NoError(t, idx.SaveTo(path))

	fresh, err := NewHNSW(testDim, 0)
	require.NoError(t, err)
	assert.Error(t, fresh.LoadFrom(path, entries), "snapshot files should be gone")
}
