package crc_test

import (
	"testing"

	"github.com/benmcclelland/ltfscore/internal/crc"
	"github.com/benmcclelland/ltfscore/internal/sense"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Codec_CRC32C_Roundtrip(t *testing.T) {
	t.Parallel()

	c := crc.New(crc.AlgorithmCRC32C)
	payload := []byte("the quick brown fox jumps over the lazy dog")

	encoded := c.Encode(payload)
	require.Len(t, encoded, len(payload)+crc.TrailerSize)

	decoded, err := c.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func Test_Codec_ReedSolomon_Roundtrip(t *testing.T) {
	t.Parallel()

	c := crc.New(crc.AlgorithmReedSolomon)
	payload := make([]byte, 1024)
	for i := range payload {
		payload[i] = byte(i * 7)
	}

	encoded := c.Encode(payload)
	require.Len(t, encoded, len(payload)+crc.TrailerSize)

	decoded, err := c.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func Test_Codec_DetectsSingleBitFlip(t *testing.T) {
	t.Parallel()

	for _, alg := range []crc.Algorithm{crc.AlgorithmCRC32C, crc.AlgorithmReedSolomon} {
		c := crc.New(alg)
		payload := []byte("0123456789abcdef")

		encoded := c.Encode(payload)
		encoded[3] ^= 0x01

		_, err := c.Decode(encoded)
		require.Error(t, err)

		var senseErr *sense.Error
		require.ErrorAs(t, err, &senseErr)
		assert.Equal(t, sense.LbpReadError, senseErr.Code)
	}
}

func Test_Codec_Decode_ShortBufferRejected(t *testing.T) {
	t.Parallel()

	c := crc.New(crc.AlgorithmCRC32C)

	_, err := c.Decode([]byte{0x01, 0x02})
	require.Error(t, err)
}

func Test_MaxUserBlockSize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint32(1<<20), crc.MaxUserBlockSize(2<<20, false))
	assert.Equal(t, uint32(1<<20-4), crc.MaxUserBlockSize(2<<20, true))
	assert.Equal(t, uint32(512-4), crc.MaxUserBlockSize(512, true))
}
