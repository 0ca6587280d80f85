package index_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benmcclelland/ltfscore/internal/index"
)

func Test_Arena_CreateLookupUnlink(t *testing.T) {
	t.Parallel()

	a := index.NewArena()
	root := a.Root()

	uid, ok := a.Create(root, "foo.txt", false)
	require.True(t, ok)

	got, ok := a.Lookup(root, "foo.txt")
	require.True(t, ok)
	assert.Equal(t, uid, got)

	assert.True(t, a.Unlink(uid))

	_, ok = a.Lookup(root, "foo.txt")
	assert.False(t, ok)
}

func Test_Arena_Rename(t *testing.T) {
	t.Parallel()

	a := index.NewArena()
	root := a.Root()

	dir, ok := a.Create(root, "dir", true)
	require.True(t, ok)

	uid, ok := a.Create(root, "a.txt", false)
	require.True(t, ok)

	assert.True(t, a.Rename(uid, dir, "b.txt"))

	_, ok = a.Lookup(root, "a.txt")
	assert.False(t, ok)

	got, ok := a.Lookup(dir, "b.txt")
	require.True(t, ok)
	assert.Equal(t, uid, got)
}

func Test_Arena_NoCyclesNeeded_ParentIsUIDNotPointer(t *testing.T) {
	t.Parallel()

	a := index.NewArena()
	root := a.Root()

	child, ok := a.Create(root, "sub", true)
	require.True(t, ok)

	grandchild, ok := a.Create(child, "leaf.txt", false)
	require.True(t, ok)

	entry := a.Get(grandchild)
	require.NotNil(t, entry)
	assert.Equal(t, child, entry.Parent)
}
