// Package backend defines the capability interface that sits between the
// device wrapper (internal/device) and a physical or emulated tape drive
// (C1), plus the shared value types every implementation exchanges.
package backend

import "context"

// Position identifies a location on a dual-partition cartridge.
type Position struct {
	Partition int
	Block     uint64

	EarlyWarning             bool
	ProgrammableEarlyWarning bool
	EndOfMedium              bool
}

// SpaceKind selects what unit Space moves over and in which direction.
type SpaceKind int

const (
	SpaceEOD SpaceKind = iota
	SpaceFilemarkForward
	SpaceFilemarkBackward
	SpaceRecordForward
	SpaceRecordBackward
)

// EODStatus reports whether the backend believes the recorded end of data
// for a partition is trustworthy.
type EODStatus int

const (
	EODGood EODStatus = iota
	EODMissing
	EODUnknown
)

// FormatKind selects how many partitions Format creates.
type FormatKind int

const (
	FormatSinglePartition FormatKind = iota
	FormatDualPartition
)

// InquiryData is the subset of SCSI INQUIRY fields the core consumes.
type InquiryData struct {
	VendorID     string
	ProductID    string
	Revision     string
	SerialNumber string
}

// Params is what Open/load_tape discovers about a drive's operating
// envelope.
type Params struct {
	MaxBlockSize uint32
	WriteProtect bool
}

// KeyAlias is the 12-byte data-key alias (DKi) used by the encryption
// lifecycle (§4.7).
type KeyAlias [12]byte

// DataKey is the 32-byte opaque encryption key (§4.7).
type DataKey [32]byte

// EncryptionStatus is the nibble SPIN sps=0x21 returns describing the next
// block's encryption state.
type EncryptionStatus int

const (
	EncryptionStatusNotRead EncryptionStatus = iota
	EncryptionStatusNotLogicalBlock
	EncryptionStatusNotEncrypted
	EncryptionStatusUnsupportedAlgorithm
	EncryptionStatusSupportedAlgorithm
	EncryptionStatusOtherKey
)

// TapeAlert is a single active tape-alert flag as reported by LOG SENSE
// page 0x2E.
type TapeAlert struct {
	Flag     int
	Severity string
}

// Backend is the capability object every drive driver (real or emulated)
// implements. All operations return a *sense.Error on failure; the core
// never type-switches on a concrete backend, only on the returned error's
// Code (§4.1: "no inheritance, no v-table assumptions beyond the declared
// methods").
type Backend interface {
	Open(ctx context.Context, name string) error
	Close() error

	Inquiry(ctx context.Context) (InquiryData, error)
	InquiryPage(ctx context.Context, page byte) ([]byte, error)
	TestUnitReady(ctx context.Context) error

	Read(ctx context.Context, buf []byte, unusualSize bool) (n int, err error)
	Write(ctx context.Context, buf []byte) (n int, err error)
	WriteFilemark(ctx context.Context, count int, immed bool) error

	Locate(ctx context.Context, target Position) error
	Space(ctx context.Context, count int, kind SpaceKind) error
	ReadPosition(ctx context.Context) (Position, error)

	ReadAttribute(ctx context.Context, partition int, id uint16) ([]byte, error)
	WriteAttribute(ctx context.Context, partition int, id uint16, buf []byte) error

	ModeSense(ctx context.Context, page byte, pc byte, subpage byte) ([]byte, error)
	ModeSelect(ctx context.Context, buf []byte) error

	Format(ctx context.Context, kind FormatKind, volName, barcode string) error

	Load(ctx context.Context) error
	Unload(ctx context.Context) error

	PreventMediumRemoval(ctx context.Context) error
	AllowMediumRemoval(ctx context.Context) error

	ReserveUnit(ctx context.Context) error
	ReleaseUnit(ctx context.Context) error

	Erase(ctx context.Context, long bool) error

	SetKey(ctx context.Context, alias *KeyAlias, key *DataKey) error
	GetKeyAlias(ctx context.Context) (*KeyAlias, EncryptionStatus, error)

	GetEODStatus(ctx context.Context, partition int) (EODStatus, error)
	GetCartridgeHealth(ctx context.Context) (map[string]int64, error)
	GetTapeAlert(ctx context.Context) ([]TapeAlert, error)
	ClearTapeAlert(ctx context.Context, flags []int) error

	SetCompression(ctx context.Context, on bool) error
	SetDefault(ctx context.Context) error

	Params() Params
}

// BlockMaxSize is the largest block size any backend is required to
// advertise support for (§4.3: min(backend_max, 1 MiB)).
const BlockMaxSize = 1 << 20

// MaxUserBlockSize clamps a backend's advertised maximum to BlockMaxSize.
func MaxUserBlockSize(backendMax uint32) uint32 {
	if backendMax > BlockMaxSize {
		return BlockMaxSize
	}

	return backendMax
}
