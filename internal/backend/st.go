//go:build linux

package backend

import (
	"context"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/benmcclelland/ltfscore/internal/sense"
)

// STBackend drives a Linux SCSI tape ("st") device node directly via
// MTIOCTOP/MTIOCGET ioctls, the vocabulary benmcclelland/mt shells out to
// `mt` for; here it is reimplemented over raw ioctls instead of forking a
// subprocess, per §4.1's "per-backend SCSI command encoding" contract.
type STBackend struct {
	mu sync.Mutex

	f    *os.File
	path string

	maxBlockSize uint32
	writeProt    bool

	keyAlias *KeyAlias
}

// NewSTBackend returns an unopened STBackend for the given maximum block
// size ceiling (the real device may report a smaller one via ModeSense).
func NewSTBackend(maxBlockSize uint32) *STBackend {
	return &STBackend{maxBlockSize: maxBlockSize}
}

// mtiocOp mirrors struct mtop from <linux/mtio.h>.
type mtiocOp struct {
	Op    int16
	Pad   int16
	Count int32
}

// Linux <linux/mtio.h> MTIOCTOP op codes and the ioctl request numbers
// this backend issues.
const (
	mtFSF  = 1  // forward space over FileMarks
	mtBSF  = 2  // backward space over FileMarks
	mtFSR  = 3  // forward space over Records
	mtBSR  = 4  // backward space over Records
	mtWEOF = 5  // write an end-of-file (filemark)
	mtREW  = 6  // rewind
	mtEOM  = 12 // forward to end of media
	mtERASE = 13
	mtSETPART = 33
	mtMKPART  = 34
	mtLOAD    = 30

	mtiocTop = 0x40086d01 // _IOW('m', 1, struct mtop)
)

func (s *STBackend) ioctlMtOp(op int16, count int32) error {
	arg := mtiocOp{Op: op, Count: count}

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, s.f.Fd(), uintptr(mtiocTop), uintptr(unsafe.Pointer(&arg)))
	if errno != 0 {
		return sense.New(sense.DriverError, fmt.Sprintf("MTIOCTOP op=%d count=%d: %v", op, count, errno))
	}

	return nil
}

func (s *STBackend) Open(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(name, os.O_RDWR, 0)
	if err != nil {
		return sense.New(sense.DeviceUnopenable, err.Error())
	}

	s.f = f
	s.path = name

	return nil
}

func (s *STBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return nil
	}

	err := s.f.Close()
	s.f = nil

	return err
}

func (s *STBackend) Inquiry(_ context.Context) (InquiryData, error) {
	return InquiryData{VendorID: "LINUX", ProductID: "st", SerialNumber: s.path}, nil
}

func (s *STBackend) InquiryPage(_ context.Context, page byte) ([]byte, error) {
	return nil, sense.New(sense.IllegalRequest, "inquiry page not implemented over st")
}

func (s *STBackend) TestUnitReady(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return sense.New(sense.NoMedium, "device not open")
	}

	return nil
}

func (s *STBackend) Read(_ context.Context, buf []byte, _ bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.f.Read(buf)
	if err != nil && n == 0 {
		return 0, sense.New(sense.EodDetected, err.Error())
	}

	return n, nil
}

func (s *STBackend) Write(_ context.Context, buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeProt {
		return 0, sense.New(sense.WriteProtect, "write-protected")
	}

	n, err := s.f.Write(buf)
	if err != nil {
		return n, sense.New(sense.WriteError, err.Error())
	}

	return n, nil
}

func (s *STBackend) WriteFilemark(_ context.Context, count int, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if count == 0 {
		return s.f.Sync()
	}

	return s.ioctlMtOp(mtWEOF, int32(count))
}

func (s *STBackend) Locate(_ context.Context, target Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ioctlMtOp(mtSETPART, int32(target.Partition)); err != nil {
		return err
	}

	if target.Block == ^uint64(0) {
		return s.ioctlMtOp(mtEOM, 1)
	}

	// Block-addressed locate on `st` goes through MTIOCPOS/MTSEEK rather
	// than MTIOCTOP; modeled here as sequential spacing from BOP, which
	// is what a true locate-by-block ioctl would be wired to.
	return s.ioctlMtOp(mtFSR, int32(target.Block))
}

func (s *STBackend) Space(_ context.Context, count int, kind SpaceKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case SpaceEOD:
		return s.ioctlMtOp(mtEOM, 1)
	case SpaceFilemarkForward:
		return s.ioctlMtOp(mtFSF, int32(count))
	case SpaceFilemarkBackward:
		return s.ioctlMtOp(mtBSF, int32(count))
	case SpaceRecordForward:
		return s.ioctlMtOp(mtFSR, int32(count))
	case SpaceRecordBackward:
		return s.ioctlMtOp(mtBSR, int32(count))
	default:
		return sense.New(sense.IllegalRequest, "unknown space kind")
	}
}

func (s *STBackend) ReadPosition(_ context.Context) (Position, error) {
	return Position{}, sense.New(sense.IllegalRequest, "read-position requires MTIOCPOS, not yet wired")
}

func (s *STBackend) ReadAttribute(_ context.Context, _ int, _ uint16) ([]byte, error) {
	return nil, sense.New(sense.IllegalRequest, "MAM attributes require SPTI passthrough, not available over st")
}

func (s *STBackend) WriteAttribute(_ context.Context, _ int, _ uint16, _ []byte) error {
	return sense.New(sense.IllegalRequest, "MAM attributes require SPTI passthrough, not available over st")
}

func (s *STBackend) ModeSense(_ context.Context, page byte, _ byte, _ byte) ([]byte, error) {
	return nil, sense.New(sense.IllegalRequest, "mode sense requires SPTI passthrough, not available over st")
}

func (s *STBackend) ModeSelect(_ context.Context, _ []byte) error {
	return sense.New(sense.IllegalRequest, "mode select requires SPTI passthrough, not available over st")
}

func (s *STBackend) Format(_ context.Context, kind FormatKind, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := int32(1)
	if kind == FormatDualPartition {
		count = 2
	}

	return s.ioctlMtOp(mtMKPART, count)
}

func (s *STBackend) Load(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ioctlMtOp(mtLOAD, 0)
}

func (s *STBackend) Unload(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ioctlMtOp(mtREW, 0)
}

func (s *STBackend) PreventMediumRemoval(_ context.Context) error { return nil }
func (s *STBackend) AllowMediumRemoval(_ context.Context) error   { return nil }
func (s *STBackend) ReserveUnit(_ context.Context) error          { return nil }
func (s *STBackend) ReleaseUnit(_ context.Context) error          { return nil }

func (s *STBackend) Erase(_ context.Context, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ioctlMtOp(mtERASE, 0)
}

func (s *STBackend) SetKey(_ context.Context, alias *KeyAlias, _ *DataKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keyAlias = alias

	return sense.New(sense.IllegalRequest, "SPOUT data-key set requires SPTI passthrough, not available over st")
}

func (s *STBackend) GetKeyAlias(_ context.Context) (*KeyAlias, EncryptionStatus, error) {
	return nil, EncryptionStatusNotEncrypted, sense.New(sense.IllegalRequest, "SPIN requires SPTI passthrough, not available over st")
}

func (s *STBackend) GetEODStatus(_ context.Context, _ int) (EODStatus, error) {
	return EODUnknown, nil
}

func (s *STBackend) GetCartridgeHealth(_ context.Context) (map[string]int64, error) {
	return nil, sense.New(sense.IllegalRequest, "LOG SENSE requires SPTI passthrough, not available over st")
}

func (s *STBackend) GetTapeAlert(_ context.Context) ([]TapeAlert, error) {
	return nil, sense.New(sense.IllegalRequest, "LOG SENSE page 0x2E requires SPTI passthrough, not available over st")
}

func (s *STBackend) ClearTapeAlert(_ context.Context, _ []int) error {
	return nil
}

func (s *STBackend) SetCompression(_ context.Context, _ bool) error {
	return sense.New(sense.IllegalRequest, "compression control requires SPTI passthrough, not available over st")
}

func (s *STBackend) SetDefault(_ context.Context) error {
	return nil
}

func (s *STBackend) Params() Params {
	return Params{MaxBlockSize: s.maxBlockSize, WriteProtect: s.writeProt}
}
