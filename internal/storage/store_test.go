package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *AssetStore {
	t.Helper()
	s, err := NewAssetStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestResolve_RejectsEscapes(t *testing.T) {
	s := newStore(t)

	_, err := s.Resolve("../outside.mp4")
	assert.Error(t, err)

	_, err = s.Resolve("a/../../outside.mp4")
	assert.Error(t, err)

	_, err = s.Resolve("/etc/passwd")
	assert.Error(t, err)

	_, err = s.Resolve("streams/abc/intro.mp4")
	assert.NoError(t, err)
}

func TestWriteExistsRemove(t *testing.T) {
	s := newStore(t)
	rel := "streams/s1/intro.mp4"

	n, err := s.WriteFile(rel, strings.NewReader("fake video bytes"))
	require.NoError(t, err)
	assert.Equal(t, int64(16), n)

	exists, err := s.Exists(rel)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.Remove(rel))
	exists, err = s.Exists(rel)
	require.NoError(t, err)
	assert.False(t, exists)

	// Removing again is fine.
	assert.NoError(t, s.Remove(rel))
}

func TestRemoveDir(t *testing.T) {
	s := newStore(t)
	_, err := s.WriteFile("streams/s1/a.mp4", strings.NewReader("a"))
	require.NoError(t, err)
	_, err = s.WriteFile("streams/s1/b.mp4", strings.NewReader("b"))
	require.NoError(t, err)

	require.NoError(t, s.RemoveDir("streams/s1"))

	exists, err := s.Exists("streams/s1/a.mp4")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.NoError(t, s.RemoveDir("streams/s1"), "idempotent")
	assert.Error(t, s.RemoveDir("."), "root is protected")
}

func TestDiskUsage(t *testing.T) {
	s := newStore(t)
	_, err := s.WriteFile("streams/s1/a.mp4", strings.NewReader("aaaa"))
	require.NoError(t, err)
	_, err = s.WriteFile("streams/s1/b.mp4", strings.NewReader("bb"))
	require.NoError(t, err)

	size, err := s.DiskUsage("streams/s1")
	require.NoError(t, err)
	assert.Equal(t, int64(6), size)
}
