// Package label implements the ANSI + LTFS label pair written at the
// start of each partition and the coherency record used to pick the
// authoritative index across partitions on load (C5).
package label

import (
	"time"

	"github.com/google/uuid"

	"github.com/benmcclelland/ltfscore/internal/sense"
)

// AnsiLabelSize is the fixed size of the ANSI label preceding the LTFS
// label on each partition, per label_make_ansi_label.
const AnsiLabelSize = 80

// Label is the in-memory form of an LTFS volume label. Field order
// mirrors struct ltfs_label so label_compare's checks read the same way
// in both implementations.
type Label struct {
	Barcode            string // 6 chars, [0-9A-Z] or all spaces
	VolUUID            uuid.UUID
	FormatTime         time.Time
	Blocksize          uint32
	EnableCompression  bool
	PartidDP           byte
	PartidIP           byte
	ThisPartition      byte
	Version            int
}

// isValidPartID matches ltfs_is_valid_partid: a partition id must be 'a' or 'b'.
func isValidPartID(id byte) bool {
	return id == 'a' || id == 'b'
}

// Compare reports whether a and b, the labels read from a cartridge's two
// partitions, are consistent with each other. Nil on match; *sense.Error
// with Code LabelMismatch otherwise. The check order follows
// label_compare exactly so the first failing field is the one reported.
func Compare(a, b *Label) error {
	switch {
	case a.Barcode != b.Barcode:
		return sense.New(sense.LabelMismatch, "barcode mismatch between partitions")
	case a.VolUUID != b.VolUUID:
		return sense.New(sense.LabelMismatch, "vol_uuid mismatch between partitions")
	case !a.FormatTime.Equal(b.FormatTime):
		return sense.New(sense.LabelMismatch, "format_time mismatch between partitions")
	case a.Blocksize != b.Blocksize:
		return sense.New(sense.LabelMismatch, "blocksize mismatch between partitions")
	case a.EnableCompression != b.EnableCompression:
		return sense.New(sense.LabelMismatch, "compression flag mismatch between partitions")
	case !isValidPartID(a.PartidDP) || !isValidPartID(a.PartidIP):
		return sense.New(sense.LabelMismatch, "invalid partition id")
	case a.PartidDP == a.PartidIP:
		return sense.New(sense.LabelMismatch, "data and index partition ids are equal")
	case b.PartidDP != a.PartidDP || b.PartidIP != a.PartidIP:
		return sense.New(sense.LabelMismatch, "partition id assignment differs between partitions")
	case (a.ThisPartition != a.PartidDP && a.ThisPartition != a.PartidIP) ||
		(b.ThisPartition != a.PartidDP && b.ThisPartition != a.PartidIP):
		return sense.New(sense.LabelMismatch, "this_partition not one of the assigned partition ids")
	case a.ThisPartition == b.ThisPartition:
		return sense.New(sense.LabelMismatch, "both labels claim the same this_partition")
	case a.Version != b.Version:
		return sense.New(sense.LabelMismatch, "label version mismatch between partitions")
	}

	if a.Barcode != "" && a.Barcode[0] != ' ' {
		for i := 0; i < len(a.Barcode); i++ {
			c := a.Barcode[i]
			if (c < '0' || c > '9') && (c < 'A' || c > 'Z') {
				return sense.New(sense.LabelMismatch, "barcode contains characters outside [0-9A-Z]")
			}
		}
	}

	return nil
}

// MakeAnsiLabel renders the fixed 80-byte ANSI label preceding the LTFS
// label, matching label_make_ansi_label's byte layout: "VOL1" at offset
// 0, up to 6 barcode bytes at offset 4, 'L' at offset 10, "LTFS" at
// offset 24, '4' in the final byte, spaces elsewhere.
func MakeAnsiLabel(barcode string) [AnsiLabelSize]byte {
	var out [AnsiLabelSize]byte
	for i := range out {
		out[i] = ' '
	}

	copy(out[0:4], "VOL1")

	n := len(barcode)
	if n > 6 {
		n = 6
	}
	copy(out[4:4+n], barcode[:n])

	out[10] = 'L'
	copy(out[24:28], "LTFS")
	out[AnsiLabelSize-1] = '4'

	return out
}
