package backend_test

import (
	"context"
	"testing"

	"github.com/benmcclelland/ltfscore/internal/backend"
	"github.com/benmcclelland/ltfscore/internal/sense"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_FileBackend_WriteReadRoundtrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := backend.NewFileBackend(100, 10)
	require.NoError(t, b.Open(ctx, "test"))

	n, err := b.Write(ctx, []byte("hello tape"))
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	require.NoError(t, b.Locate(ctx, backend.Position{Partition: 0, Block: 0}))

	buf := make([]byte, 32)
	n, err = b.Read(ctx, buf, false)
	require.NoError(t, err)
	assert.Equal(t, "hello tape", string(buf[:n]))
}

func Test_FileBackend_ReadAtEODReturnsEodDetected(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := backend.NewFileBackend(100, 10)
	require.NoError(t, b.Open(ctx, "test"))

	_, err := b.Read(ctx, make([]byte, 16), false)
	require.Error(t, err)

	var senseErr *sense.Error
	require.ErrorAs(t, err, &senseErr)
	assert.Equal(t, sense.EodDetected, senseErr.Code)
}

func Test_FileBackend_FilemarkReadReturnsZeroAndAdvances(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := backend.NewFileBackend(100, 10)
	require.NoError(t, b.Open(ctx, "test"))

	require.NoError(t, b.WriteFilemark(ctx, 1, false))
	require.NoError(t, b.Locate(ctx, backend.Position{Partition: 0, Block: 0}))

	n, err := b.Read(ctx, make([]byte, 16), false)
	assert.Equal(t, 0, n)
	require.Error(t, err)

	var senseErr *sense.Error
	require.ErrorAs(t, err, &senseErr)
	assert.Equal(t, sense.FilemarkDetected, senseErr.Code)

	pos, err := b.ReadPosition(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), pos.Block)
}

func Test_FileBackend_EarlyWarningAndProgrammableEarlyWarning(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := backend.NewFileBackend(3, 1)
	require.NoError(t, b.Open(ctx, "test"))

	for i := 0; i < 2; i++ {
		_, err := b.Write(ctx, []byte{byte(i)})
		require.NoError(t, err)
	}

	pos, err := b.ReadPosition(ctx)
	require.NoError(t, err)
	assert.True(t, pos.ProgrammableEarlyWarning)
	assert.False(t, pos.EarlyWarning)

	_, err = b.Write(ctx, []byte{9})
	require.NoError(t, err)

	pos, err = b.ReadPosition(ctx)
	require.NoError(t, err)
	assert.True(t, pos.EarlyWarning)

	_, err = b.Write(ctx, []byte{9})
	require.Error(t, err)

	var senseErr *sense.Error
	require.ErrorAs(t, err, &senseErr)
	assert.Equal(t, sense.NoSpace, senseErr.Code)
}

func Test_FileBackend_LocateToEODViaMaxBlock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := backend.NewFileBackend(100, 10)
	require.NoError(t, b.Open(ctx, "test"))

	for i := 0; i < 5; i++ {
		_, err := b.Write(ctx, []byte{byte(i)})
		require.NoError(t, err)
	}

	require.NoError(t, b.Locate(ctx, backend.Position{Partition: 0, Block: ^uint64(0)}))

	pos, err := b.ReadPosition(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), pos.Block)
}
