package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/benmcclelland/ltfscore/internal/sense"
)

// record is one entry in a partition's sequential log: either a data
// block or a filemark, mirroring filedebug_tc.c's per-record file-with-
// suffix model (SUFFIX_DATA / SUFFIX_FILEMARK), flattened into memory
// instead of one file per record.
type record struct {
	filemark bool
	data     []byte
}

type partitionLog struct {
	records []record
}

// FileBackend is an in-memory, file-emulated tape drive for tests and
// development: it reproduces the block/filemark framing and EOD
// semantics of a real drive without touching hardware.
type FileBackend struct {
	mu sync.Mutex

	opened bool
	name   string

	capacityBlocks int // per-partition capacity, in records, before NoSpace
	pews           int // programmable-early-warning threshold, in records

	partitions [2]partitionLog
	pos        Position

	compression bool
	writeProt   bool

	keyAlias *KeyAlias
	dataKey  *DataKey

	attrs map[int]map[uint16][]byte
}

// NewFileBackend returns a FileBackend with the given per-partition
// capacity (in records) and programmable-early-warning threshold.
func NewFileBackend(capacityBlocks, pews int) *FileBackend {
	return &FileBackend{
		capacityBlocks: capacityBlocks,
		pews:           pews,
		attrs: map[int]map[uint16][]byte{
			0: {},
			1: {},
		},
	}
}

func (f *FileBackend) Open(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.opened {
		return sense.New(sense.Hardware, "already open")
	}

	f.opened = true
	f.name = name

	return nil
}

func (f *FileBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.opened = false

	return nil
}

func (f *FileBackend) Inquiry(_ context.Context) (InquiryData, error) {
	return InquiryData{
		VendorID:     "GOLANG  ",
		ProductID:    "FILEDEBUG       ",
		Revision:     "0001",
		SerialNumber: f.name,
	}, nil
}

func (f *FileBackend) InquiryPage(_ context.Context, page byte) ([]byte, error) {
	return []byte{page}, nil
}

func (f *FileBackend) TestUnitReady(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.opened {
		return sense.New(sense.NoMedium, "not open")
	}

	return nil
}

func (f *FileBackend) Read(_ context.Context, buf []byte, _ bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := &f.partitions[f.pos.Partition]

	if int(f.pos.Block) >= len(p.records) {
		return 0, sense.New(sense.EodDetected, "read at eod")
	}

	rec := p.records[f.pos.Block]
	f.pos.Block++

	if rec.filemark {
		return 0, sense.New(sense.FilemarkDetected, "read hit filemark")
	}

	n := copy(buf, rec.data)
	if n < len(rec.data) {
		return n, sense.New(sense.Overrun, "buffer smaller than block")
	}

	return n, nil
}

func (f *FileBackend) Write(_ context.Context, buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.writeProt {
		return 0, sense.New(sense.WriteProtect, "write-protected")
	}

	p := &f.partitions[f.pos.Partition]

	if len(p.records) >= f.capacityBlocks {
		return 0, sense.New(sense.NoSpace, "partition full")
	}

	rec := record{data: append([]byte(nil), buf...)}

	// Truncate the log at the current position (overwrite semantics),
	// matching a real drive where a write at a non-EOD position
	// destroys everything downstream of it.
	if int(f.pos.Block) < len(p.records) {
		p.records = p.records[:f.pos.Block]
	}

	p.records = append(p.records, rec)
	f.pos.Block++

	remaining := f.capacityBlocks - len(p.records)

	f.pos.EarlyWarning = remaining <= 0
	f.pos.ProgrammableEarlyWarning = remaining <= f.pews

	return len(buf), nil
}

func (f *FileBackend) WriteFilemark(_ context.Context, count int, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if count == 0 {
		return nil // flush: file-emulated backend has nothing buffered
	}

	p := &f.partitions[f.pos.Partition]

	if int(f.pos.Block) < len(p.records) {
		p.records = p.records[:f.pos.Block]
	}

	for i := 0; i < count; i++ {
		p.records = append(p.records, record{filemark: true})
		f.pos.Block++
	}

	return nil
}

func (f *FileBackend) Locate(_ context.Context, target Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if target.Partition < 0 || target.Partition > 1 {
		return sense.New(sense.IllegalRequest, "bad partition")
	}

	p := &f.partitions[target.Partition]

	block := target.Block
	if block == ^uint64(0) {
		block = uint64(len(p.records))
	}

	if block > uint64(len(p.records)) {
		block = uint64(len(p.records))
	}

	f.pos = Position{Partition: target.Partition, Block: block}

	return nil
}

func (f *FileBackend) Space(_ context.Context, count int, kind SpaceKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := &f.partitions[f.pos.Partition]

	switch kind {
	case SpaceEOD:
		f.pos.Block = uint64(len(p.records))
	case SpaceRecordForward:
		f.pos.Block = minU64(f.pos.Block+uint64(count), uint64(len(p.records)))
	case SpaceRecordBackward:
		f.pos.Block = subU64(f.pos.Block, uint64(count))
	case SpaceFilemarkForward:
		return f.spaceFilemarks(p, count)
	case SpaceFilemarkBackward:
		return f.spaceFilemarks(p, -count)
	default:
		return sense.New(sense.IllegalRequest, "unknown space kind")
	}

	return nil
}

func (f *FileBackend) spaceFilemarks(p *partitionLog, count int) error {
	if count >= 0 {
		for i := 0; i < count; i++ {
			for {
				if f.pos.Block >= uint64(len(p.records)) {
					return sense.New(sense.EodNotFound, "ran off end spacing filemarks")
				}

				isFM := p.records[f.pos.Block].filemark
				f.pos.Block++

				if isFM {
					break
				}
			}
		}

		return nil
	}

	for i := 0; i < -count; i++ {
		for {
			if f.pos.Block == 0 {
				return sense.New(sense.EodNotFound, "ran off start spacing filemarks")
			}

			f.pos.Block--

			if p.records[f.pos.Block].filemark {
				break
			}
		}
	}

	return nil
}

func (f *FileBackend) ReadPosition(_ context.Context) (Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.pos, nil
}

func (f *FileBackend) ReadAttribute(_ context.Context, partition int, id uint16) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.attrs[partition][id]
	if !ok {
		return nil, sense.New(sense.IllegalRequest, fmt.Sprintf("no attribute %#x on partition %d", id, partition))
	}

	return append([]byte(nil), v...), nil
}

func (f *FileBackend) WriteAttribute(_ context.Context, partition int, id uint16, buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.attrs[partition][id] = append([]byte(nil), buf...)

	return nil
}

func (f *FileBackend) ModeSense(_ context.Context, page byte, _ byte, _ byte) ([]byte, error) {
	return []byte{page, 0, 0, 0}, nil
}

func (f *FileBackend) ModeSelect(_ context.Context, _ []byte) error {
	return nil
}

func (f *FileBackend) Format(_ context.Context, _ FormatKind, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.partitions = [2]partitionLog{}
	f.pos = Position{}
	f.attrs = map[int]map[uint16][]byte{0: {}, 1: {}}

	return nil
}

func (f *FileBackend) Load(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pos = Position{}

	return nil
}

func (f *FileBackend) Unload(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pos = Position{}

	return nil
}

func (f *FileBackend) PreventMediumRemoval(_ context.Context) error { return nil }
func (f *FileBackend) AllowMediumRemoval(_ context.Context) error   { return nil }
func (f *FileBackend) ReserveUnit(_ context.Context) error          { return nil }
func (f *FileBackend) ReleaseUnit(_ context.Context) error          { return nil }

func (f *FileBackend) Erase(_ context.Context, long bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := &f.partitions[f.pos.Partition]
	if long {
		p.records = nil
	} else {
		p.records = p.records[:f.pos.Block]
	}

	return nil
}

func (f *FileBackend) SetKey(_ context.Context, alias *KeyAlias, key *DataKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.keyAlias = alias
	f.dataKey = key

	return nil
}

func (f *FileBackend) GetKeyAlias(_ context.Context) (*KeyAlias, EncryptionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.keyAlias == nil {
		return nil, EncryptionStatusNotEncrypted, nil
	}

	alias := *f.keyAlias

	return &alias, EncryptionStatusSupportedAlgorithm, nil
}

func (f *FileBackend) GetEODStatus(_ context.Context, partition int) (EODStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if partition < 0 || partition > 1 {
		return EODUnknown, sense.New(sense.IllegalRequest, "bad partition")
	}

	return EODGood, nil
}

func (f *FileBackend) GetCartridgeHealth(_ context.Context) (map[string]int64, error) {
	return map[string]int64{}, nil
}

func (f *FileBackend) GetTapeAlert(_ context.Context) ([]TapeAlert, error) {
	return nil, nil
}

func (f *FileBackend) ClearTapeAlert(_ context.Context, _ []int) error {
	return nil
}

func (f *FileBackend) SetCompression(_ context.Context, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.compression = on

	return nil
}

func (f *FileBackend) SetDefault(_ context.Context) error {
	return nil
}

func (f *FileBackend) Params() Params {
	return Params{MaxBlockSize: BlockMaxSize, WriteProtect: f.writeProt}
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}

	return b
}

func subU64(a, b uint64) uint64 {
	if b > a {
		return 0
	}

	return a - b
}
