// Package crc implements the block-level Logical Block Protection (LBP)
// codecs used by C3: Reed-Solomon GF(256) and CRC32C, each appending a
// fixed 4-byte trailer to a block on encode and verifying-then-stripping
// it on decode.
package crc

import (
	"hash/crc32"

	"github.com/benmcclelland/ltfscore/internal/sense"
)

// TrailerSize is the fixed number of bytes every codec appends to a block.
const TrailerSize = 4

// Algorithm selects which codec backs a Codec.
type Algorithm int

const (
	AlgorithmCRC32C Algorithm = iota
	AlgorithmReedSolomon
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Codec encodes a 4-byte trailer onto outgoing blocks and verifies/strips
// it from incoming ones, per the negotiated algorithm (§4.3).
type Codec struct {
	alg Algorithm
}

// New returns a Codec using the given algorithm.
func New(alg Algorithm) *Codec {
	return &Codec{alg: alg}
}

// Algorithm reports which codec this Codec uses.
func (c *Codec) Algorithm() Algorithm {
	return c.alg
}

// Encode appends TrailerSize bytes of checksum to buf and returns the
// combined slice. The input buf is not modified; a new slice is
// allocated and returned so callers can hand the block straight to a
// Backend.Write.
func (c *Codec) Encode(buf []byte) []byte {
	out := make([]byte, len(buf)+TrailerSize)
	copy(out, buf)

	switch c.alg {
	case AlgorithmReedSolomon:
		encodeReedSolomon(out)
	default:
		encodeCRC32C(out)
	}

	return out
}

// Decode verifies the trailing checksum of buf and returns the payload
// with the trailer stripped. Returns *sense.Error{Code: LbpReadError} on
// mismatch, matching §4.1/§4.3's "negative on mismatch" contract. Any
// panic inside the codec is recovered and converted to LbpReadError
// before crossing this function's boundary (§9: panics never propagate
// out of the CRC path).
func (c *Codec) Decode(buf []byte) (payload []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload = nil
			err = sense.New(sense.LbpReadError, "panic recovered in crc decode")
		}
	}()

	if len(buf) < TrailerSize {
		return nil, sense.New(sense.LbpReadError, "block shorter than trailer")
	}

	var ok bool

	switch c.alg {
	case AlgorithmReedSolomon:
		ok = verifyReedSolomon(buf)
	default:
		ok = verifyCRC32C(buf)
	}

	if !ok {
		return nil, sense.New(sense.LbpReadError, "checksum mismatch")
	}

	return buf[:len(buf)-TrailerSize], nil
}

func encodeCRC32C(buf []byte) {
	payload := buf[:len(buf)-TrailerSize]
	sum := crc32.Checksum(payload, castagnoli)
	putUint32LE(buf[len(buf)-TrailerSize:], sum)
}

func verifyCRC32C(buf []byte) bool {
	payload := buf[:len(buf)-TrailerSize]
	want := getUint32LE(buf[len(buf)-TrailerSize:])
	got := crc32.Checksum(payload, castagnoli)

	return want == got
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getUint32LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// MaxUserBlockSize returns the largest payload a caller may hand to
// Encode given a backend's maximum block size and whether LBP is active
// (§4.3: min(backend_max, 1 MiB) − 4 when active, else min(backend_max, 1 MiB)).
func MaxUserBlockSize(backendMax uint32, lbpActive bool) uint32 {
	const oneMiB = 1 << 20

	max := backendMax
	if max > oneMiB {
		max = oneMiB
	}

	if lbpActive {
		max -= TrailerSize
	}

	return max
}
