package position_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benmcclelland/ltfscore/internal/backend"
	"github.com/benmcclelland/ltfscore/internal/position"
)

func Test_Tracker_SeekAppend_UnknownResolvesViaEOD(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := backend.NewFileBackend(100, 10)
	require.NoError(t, b.Open(ctx, "test"))

	for i := 0; i < 3; i++ {
		_, err := b.Write(ctx, []byte{byte(i)})
		require.NoError(t, err)
	}

	require.NoError(t, b.Locate(ctx, backend.Position{Partition: 0, Block: 0}))

	tr := position.NewTracker(b)
	assert.Equal(t, position.Unknown, tr.AppendPos(0))

	require.NoError(t, tr.SeekAppend(ctx, 0))
	assert.Equal(t, uint64(3), tr.AppendPos(0))

	pos, err := b.ReadPosition(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), pos.Block)
}

func Test_Tracker_Observe_CachesKnownPosition(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := backend.NewFileBackend(100, 10)
	require.NoError(t, b.Open(ctx, "test"))

	require.NoError(t, b.Locate(ctx, backend.Position{Partition: 1, Block: 0}))
	for i := 0; i < 20; i++ {
		_, err := b.Write(ctx, []byte{byte(i)})
		require.NoError(t, err)
	}

	tr := position.NewTracker(b)
	tr.Observe(1, 17)
	assert.Equal(t, uint64(17), tr.AppendPos(1))

	require.NoError(t, tr.SeekAppend(ctx, 1))

	pos, err := b.ReadPosition(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pos.Partition)
	assert.Equal(t, uint64(17), pos.Block)
}

func Test_Tracker_LocateFirstAndNextIndex(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := backend.NewFileBackend(100, 10)
	require.NoError(t, b.Open(ctx, "test"))

	for i := 0; i < 4; i++ {
		_, err := b.Write(ctx, []byte{byte(i)})
		require.NoError(t, err)
	}
	require.NoError(t, b.WriteFilemark(ctx, 1, false))

	for i := 0; i < 2; i++ {
		_, err := b.Write(ctx, []byte{byte(i)})
		require.NoError(t, err)
	}
	require.NoError(t, b.WriteFilemark(ctx, 1, false))

	tr := position.NewTracker(b)
	require.NoError(t, tr.LocateFirstIndex(ctx, 0))

	pos, err := b.ReadPosition(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), pos.Block)

	require.NoError(t, tr.LocateNextIndex(ctx))
	pos, err = b.ReadPosition(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), pos.Block)
}
