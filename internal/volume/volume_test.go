package volume_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/benmcclelland/ltfscore/internal/backend"
	"github.com/benmcclelland/ltfscore/internal/crc"
	"github.com/benmcclelland/ltfscore/internal/device"
	"github.com/benmcclelland/ltfscore/internal/volume"
)

func newTestVolume(t *testing.T) *volume.Volume {
	t.Helper()

	ctx := context.Background()
	b := backend.NewFileBackend(1000, 100)
	require.NoError(t, b.Open(ctx, "test"))

	dev := device.New(b, crc.New(crc.AlgorithmCRC32C), zap.NewNop())
	v := volume.New(dev)
	require.NoError(t, v.Mount(ctx))

	return v
}

func Test_Volume_CreateGetAttrUnlink(t *testing.T) {
	t.Parallel()

	v := newTestVolume(t)

	_, err := v.Create("/", "file.txt")
	require.NoError(t, err)

	attr, err := v.GetAttr("/file.txt")
	require.NoError(t, err)
	assert.False(t, attr.IsDir)

	require.NoError(t, v.Unlink("/file.txt"))

	_, err = v.GetAttr("/file.txt")
	assert.Error(t, err)
}

func Test_Volume_MkdirReaddirRmdir(t *testing.T) {
	t.Parallel()

	v := newTestVolume(t)

	_, err := v.Mkdir("/", "sub")
	require.NoError(t, err)

	_, err = v.Create("/sub", "a.txt")
	require.NoError(t, err)

	names, err := v.Readdir("/sub")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, names)

	require.Error(t, v.Rmdir("/sub"))

	require.NoError(t, v.Unlink("/sub/a.txt"))
	require.NoError(t, v.Rmdir("/sub"))
}

func Test_Volume_Rename(t *testing.T) {
	t.Parallel()

	v := newTestVolume(t)

	_, err := v.Create("/", "a.txt")
	require.NoError(t, err)

	require.NoError(t, v.Rename("/a.txt", "/", "b.txt"))

	_, err = v.GetAttr("/a.txt")
	assert.Error(t, err)

	attr, err := v.GetAttr("/b.txt")
	require.NoError(t, err)
	assert.False(t, attr.IsDir)
}

func Test_Volume_CommitIndex_RunsUnderLongLock(t *testing.T) {
	t.Parallel()

	v := newTestVolume(t)

	called := false
	err := v.CommitIndex(func() error {
		called = true

		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}
