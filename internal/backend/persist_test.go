package backend_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benmcclelland/ltfscore/internal/backend"
	fsys "github.com/benmcclelland/ltfscore/pkg/fs"
)

func Test_FileBackend_SaveSnapshotThenLoadSnapshotRoundtrips(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	real := fsys.NewReal()
	path := filepath.Join(t.TempDir(), "cartridge.snap")

	src := backend.NewFileBackend(1000, 100)
	require.NoError(t, src.Open(ctx, "test"))
	require.NoError(t, src.Locate(ctx, backend.Position{Partition: 0, Block: 0}))

	payload := []byte("hello tape")
	n, err := src.Write(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)

	require.NoError(t, src.WriteAttribute(ctx, 0, 0x1234, []byte{1}))
	require.NoError(t, src.SaveSnapshot(real, path))

	dst := backend.NewFileBackend(1000, 100)
	require.NoError(t, dst.Open(ctx, "test"))
	require.NoError(t, dst.LoadSnapshot(real, path))

	require.NoError(t, dst.Locate(ctx, backend.Position{Partition: 0, Block: 0}))

	buf := make([]byte, len(payload))
	n, err = dst.Read(ctx, buf, false)
	require.NoError(t, err)
	assert.Equal(t, payload, buf[:n])

	attr, err := dst.ReadAttribute(ctx, 0, 0x1234)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, attr)
}

func Test_OpenDryRunState_SecondOpenBlocksWhileFirstIsHeld(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cartridge.state")

	first, err := backend.OpenDryRunState(path)
	require.NoError(t, err)

	defer first.Close()

	locker := fsys.NewLocker(fsys.NewReal())

	_, err = locker.TryLock(path + ".lock")
	assert.ErrorIs(t, err, fsys.ErrWouldBlock)

	require.NoError(t, first.Close())

	second, err := locker.TryLock(path + ".lock")
	require.NoError(t, err)
	require.NoError(t, second.Close())
}
