package label

import (
	"encoding/binary"
	"fmt"

	"github.com/benmcclelland/ltfscore/internal/sense"
)

// CoherencyAttributeID is the MAM attribute page holding a partition's
// coherency record (TC_MAM_PAGE_COHERENCY).
const CoherencyAttributeID = 0x080C

// coherencyBodySize is TC_MAM_PAGE_COHERENCY_SIZE: the payload length
// following the 6-byte MAM page header.
const coherencyBodySize = 69

// RecordSize is the full encoded size of a coherency record, header
// included, matching tape_get/set_cart_coherency's coh_data buffer.
const RecordSize = coherencyBodySize + 6

// Coherency is a partition's volume-coherency record: a monotonically
// increasing count used to pick the authoritative copy of the index
// across partitions on load (§4.5).
type Coherency struct {
	VolumeChangeRef uint64
	Count           uint64
	SetID           uint64
	UUID            [37]byte // NUL-terminated ASCII UUID string, as tape.c stores it
	Version         byte
}

// Encode renders a Coherency into its fixed-size MAM attribute payload,
// matching tape_set_cart_coherency's byte layout exactly: a 6-byte page
// header, an 8-byte VCR, 8-byte count, 8-byte set id, a 2-byte
// "application client specific information length" field fixed at 43,
// the 4-byte "LTFS" signature and its NUL terminator, the 37-byte uuid,
// and a 1-byte version.
func (c Coherency) Encode() []byte {
	buf := make([]byte, RecordSize)

	binary.BigEndian.PutUint16(buf[0:2], CoherencyAttributeID)
	buf[2] = 0
	binary.BigEndian.PutUint16(buf[3:5], coherencyBodySize)
	buf[5] = 0x08 // size of Volume Change Reference field

	binary.BigEndian.PutUint64(buf[6:14], c.VolumeChangeRef)
	binary.BigEndian.PutUint64(buf[14:22], c.Count)
	binary.BigEndian.PutUint64(buf[22:30], c.SetID)

	// APPLICATION CLIENT SPECIFIC INFORMATION LENGTH, big-endian 43.
	buf[30] = 0
	buf[31] = 43

	copy(buf[32:36], "LTFS")
	buf[36] = 0

	copy(buf[37:74], c.UUID[:])
	buf[74] = c.Version

	return buf
}

// Decode parses a coherency record read back from a MAM attribute,
// accepting an APPLICATION CLIENT SPECIFIC INFORMATION LENGTH of either
// 42 (the LTFS 1.0/1.0.1 bug, kept for backward compatibility) or the
// correct 43 (§9 Open Question).
func Decode(buf []byte) (Coherency, error) {
	if len(buf) < RecordSize {
		return Coherency{}, sense.New(sense.ParseError, "coherency record shorter than expected")
	}

	id := binary.BigEndian.Uint16(buf[0:2])
	if id != CoherencyAttributeID {
		return Coherency{}, sense.New(sense.ParseError, fmt.Sprintf("unexpected MAM page id %#x", id))
	}

	bodyLen := binary.BigEndian.Uint16(buf[3:5])
	if bodyLen != coherencyBodySize {
		return Coherency{}, sense.New(sense.ParseError, fmt.Sprintf("unexpected coherency body length %d", bodyLen))
	}

	vcrSize := buf[5]
	if vcrSize != 8 {
		return Coherency{}, sense.New(sense.ParseError, fmt.Sprintf("unsupported VCR size %d", vcrSize))
	}

	appLen := binary.BigEndian.Uint16(buf[30:32])
	if appLen != 42 && appLen != 43 {
		return Coherency{}, sense.New(sense.ParseError, fmt.Sprintf("unexpected application-client-specific length %d", appLen))
	}

	if string(buf[32:36]) != "LTFS" {
		return Coherency{}, sense.New(sense.ParseError, "missing LTFS signature in coherency record")
	}

	var c Coherency
	c.VolumeChangeRef = binary.BigEndian.Uint64(buf[6:14])
	c.Count = binary.BigEndian.Uint64(buf[14:22])
	c.SetID = binary.BigEndian.Uint64(buf[22:30])
	copy(c.UUID[:], buf[37:74])
	c.Version = buf[74]

	return c, nil
}

// Authoritative picks the authoritative coherency record between a
// partition's own record and its peer's, per §4.5: the higher Count with
// a matching UUID wins; a UUID mismatch means the cartridge needs
// recovery and is reported as a LabelMismatch.
func Authoritative(own, peer Coherency) (Coherency, error) {
	if own.UUID != peer.UUID {
		return Coherency{}, sense.New(sense.LabelMismatch, "coherency uuid mismatch between partitions")
	}

	if peer.Count > own.Count {
		return peer, nil
	}

	return own, nil
}
