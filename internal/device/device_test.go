package device_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/benmcclelland/ltfscore/internal/backend"
	"github.com/benmcclelland/ltfscore/internal/crc"
	"github.com/benmcclelland/ltfscore/internal/device"
	"github.com/benmcclelland/ltfscore/internal/sense"
)

func newTestDevice(t *testing.T, capacity, pews int) (*device.Device, *backend.FileBackend) {
	t.Helper()

	b := backend.NewFileBackend(capacity, pews)
	require.NoError(t, b.Open(context.Background(), "test"))

	d := device.New(b, crc.New(crc.AlgorithmCRC32C), zap.NewNop())
	require.NoError(t, d.LoadTape(context.Background()))

	return d, b
}

func Test_Device_LoadTape_InitializesWritableState(t *testing.T) {
	t.Parallel()

	d, _ := newTestDevice(t, 100, 10)
	assert.Equal(t, device.StateOK, d.Writable())
	assert.Equal(t, device.Writable, d.SpaceStateOf(0))
}

func Test_Device_Write_RejectsOverMaxBlockSize(t *testing.T) {
	t.Parallel()

	d, _ := newTestDevice(t, 100, 10)

	oversized := make([]byte, crc.MaxUserBlockSize(backend.BlockMaxSize, true)+1)
	_, err := d.Write(context.Background(), 0, oversized, false, false)
	require.Error(t, err)

	var senseErr *sense.Error
	require.ErrorAs(t, err, &senseErr)
	assert.Equal(t, sense.IllegalRequest, senseErr.Code)
}

func Test_Device_Write_NoSpaceBlockedUnlessIgnored(t *testing.T) {
	t.Parallel()

	d, _ := newTestDevice(t, 1, 0)

	_, err := d.Write(context.Background(), 0, []byte("x"), false, false)
	require.NoError(t, err)

	_, err = d.Write(context.Background(), 0, []byte("y"), false, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, sense.ErrNoSpace)

	_, err = d.Write(context.Background(), 0, []byte("y"), false, true)
	assert.NoError(t, err)
}

func Test_Device_ForceReadOnly_LatchesWriteProtect(t *testing.T) {
	t.Parallel()

	d, _ := newTestDevice(t, 100, 10)
	d.ForceReadOnly()

	assert.Equal(t, device.StateWriteProtect, d.Writable())

	_, err := d.Write(context.Background(), 0, []byte("x"), false, false)
	assert.ErrorIs(t, err, sense.ErrWriteProtect)
}

func Test_Device_Fence_UnfenceRoundtrip(t *testing.T) {
	t.Parallel()

	d, _ := newTestDevice(t, 100, 10)
	assert.False(t, d.Fenced())

	d.Fence()
	assert.True(t, d.Fenced())

	d.Unfence()
	assert.False(t, d.Fenced())
}
