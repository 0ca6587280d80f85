// Package device implements the stateful wrapper that sits between the
// tape backend trait (C1) and the rest of the core: position and
// append-position tracking, the write-protect/write-error/space-state
// machines, and the fencing that forces a re-validation after a fault
// (C4).
//
// Locking discipline is a single-writer-lock shape: dev.mu serializes
// all backend access (there is exactly one active backend operation at
// a time), and the space/writable/fence fields are read and written
// only while dev.mu is held.
package device

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/benmcclelland/ltfscore/internal/backend"
	"github.com/benmcclelland/ltfscore/internal/crc"
	"github.com/benmcclelland/ltfscore/internal/position"
	"github.com/benmcclelland/ltfscore/internal/sense"
)

// SpaceState is a partition's write-capacity state (§4.4).
type SpaceState int

const (
	Writable SpaceState = iota
	LessSpace
	NoSpace
)

// WritableState is the device-global writable state (§4.4); once it
// leaves OK it is terminal until the next unload.
type WritableState int

const (
	StateOK WritableState = iota
	StateWriteProtect
	StateWriteError
)

// passedEWAttributeID is the MAM attribute page recording whether a
// partition has ever hit early warning (§6 EXTERNAL INTERFACES: "0x1623
// Passed-EW state (1; signature-prefixed)").
const passedEWAttributeID = 0x1623

// passedEWSignature marks a passed-EW attribute page as written by this
// implementation, so a stale or foreign-vendor write under the same
// attribute ID is never mistaken for a real passed-EW latch.
var passedEWSignature = [4]byte{'L', 'T', 'F', 'S'}

// encodePassedEW builds the signature-prefixed payload for the
// passed-EW attribute: the 4-byte signature followed by the 1-byte
// state value (1 = passed early warning, 0 = cleared).
func encodePassedEW(state byte) []byte {
	return append(append([]byte{}, passedEWSignature[:]...), state)
}

// decodePassedEW reports whether buf is a signature-prefixed passed-EW
// payload written by this implementation, and if so its state value.
func decodePassedEW(buf []byte) (state byte, ok bool) {
	if len(buf) != len(passedEWSignature)+1 {
		return 0, false
	}

	if [4]byte(buf[:4]) != passedEWSignature {
		return 0, false
	}

	return buf[4], true
}

// Device wraps a Backend with the position, space, and write-protect
// bookkeeping the rest of the core depends on.
type Device struct {
	mu sync.Mutex

	backend backend.Backend
	codec   *crc.Codec
	pos     *position.Tracker
	log     *zap.Logger

	maxBlockSize uint32
	pews         uint64 // programmable-early-warning guard size, in bytes

	spaceState   [2]SpaceState
	writable     WritableState
	appendOnly   bool
	fenced       bool
	tapeAlert    []backend.TapeAlert
	cancelled    bool
}

// New wraps b with the given LBP codec and logger.
func New(b backend.Backend, codec *crc.Codec, log *zap.Logger) *Device {
	return &Device{
		backend: b,
		codec:   codec,
		pos:     position.NewTracker(b),
		log:     log,
	}
}

// Cancel sets the interrupt flag RecoverEODStatus polls between I/O
// calls, matching §4.4's "a global cancel flag must abort between I/O
// calls and return Interrupted".
func (d *Device) Cancel() {
	d.mu.Lock()
	d.cancelled = true
	d.mu.Unlock()
}

// LoadTape implements §4.4's load_tape: ready the unit, locate partition
// 0, discover device parameters, set the PEW guard, initialize
// per-partition space state, and reset append positions.
func (d *Device) LoadTape(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.backend.TestUnitReady(ctx); err != nil {
		return err
	}

	if err := d.backend.Locate(ctx, backend.Position{Partition: 0, Block: 0}); err != nil {
		return err
	}

	params := d.backend.Params()
	d.maxBlockSize = crc.MaxUserBlockSize(backend.MaxUserBlockSize(params.MaxBlockSize), true)

	// Fixed 10 MiB programmable-early-warning guard. The drive's own PEW
	// size is not queried, so it is not added to the guard.
	const tenMiB = 10 << 20
	d.pews = tenMiB

	d.writable = StateOK
	if params.WriteProtect {
		d.writable = StateWriteProtect
	}

	d.spaceState = [2]SpaceState{Writable, Writable}
	d.fenced = false
	d.cancelled = false

	for part := 0; part < 2; part++ {
		buf, err := d.backend.ReadAttribute(ctx, part, passedEWAttributeID)
		if err != nil {
			continue
		}

		if state, ok := decodePassedEW(buf); ok && state == 1 {
			d.spaceState[part] = NoSpace
		}
	}

	d.pos.Reset()

	// Clear any stale data key left from a previous mount.
	if err := d.backend.SetKey(ctx, nil, nil); err != nil {
		d.log.Warn("load_tape: failed clearing stale data key", zap.Error(err))
	}

	return nil
}

// SeekAppend locates to the cached append position for part, resolving
// via locate-to-EOD if unknown (§4.4 seek_append).
func (d *Device) SeekAppend(ctx context.Context, part int, unlockWrite bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.pos.SeekAppend(ctx, part); err != nil {
		return err
	}

	if d.appendOnly && unlockWrite {
		d.log.Debug("seek_append: append-only mode active, overwrite unlock requested at append position")
	}

	return nil
}

// Write implements §4.4's write gating: rejects writes while write-
// protected or write-errored, honors per-partition space state (bypassed
// for index writes via ignoreNospc), rejects oversize blocks, and
// updates space state on early-warning / programmable-early-warning.
func (d *Device) Write(ctx context.Context, part int, buf []byte, ignoreLess, ignoreNospc bool) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.writable == StateWriteProtect {
		return 0, sense.ErrWriteProtect
	}

	if d.writable == StateWriteError {
		return 0, sense.ErrWriteError
	}

	switch d.spaceState[part] {
	case NoSpace:
		if !ignoreNospc {
			return 0, sense.ErrNoSpace
		}
	case LessSpace:
		if !ignoreLess && !ignoreNospc {
			return 0, sense.ErrLessSpace
		}
	}

	if uint32(len(buf)) > d.maxBlockSize {
		return 0, sense.New(sense.IllegalRequest, "block exceeds max_block_size")
	}

	encoded := d.codec.Encode(buf)

	n, err := d.backend.Write(ctx, encoded)
	if err != nil {
		if senseErr, ok := err.(*sense.Error); ok {
			switch senseErr.Code {
			case sense.EarlyWarning:
				d.spaceState[part] = NoSpace
				if werr := d.backend.WriteAttribute(ctx, part, passedEWAttributeID, encodePassedEW(1)); werr != nil {
					d.log.Warn("write: failed to latch passed-EW attribute", zap.Error(werr))
				}
			case sense.ProgEarlyWarning:
				d.spaceState[part] = LessSpace
			case sense.WriteProtect, sense.LogicalWriteProtect:
				// not revalidatable against this mount
			default:
				d.writable = StateWriteError
			}
		}

		return n, err
	}

	pos, perr := d.backend.ReadPosition(ctx)
	if perr == nil {
		d.pos.Observe(part, pos.Block)

		if pos.EarlyWarning {
			d.spaceState[part] = NoSpace
		} else if pos.ProgrammableEarlyWarning {
			d.spaceState[part] = LessSpace
		}
	}

	return n, nil
}

// WriteFilemark applies the same gating as Write, special-casing
// count==0 as a flush (§4.4).
func (d *Device) WriteFilemark(ctx context.Context, part, count int, ignoreLess, ignoreNospc, immed bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if count != 0 {
		if d.writable == StateWriteProtect {
			return sense.ErrWriteProtect
		}

		if d.writable == StateWriteError {
			return sense.ErrWriteError
		}

		switch d.spaceState[part] {
		case NoSpace:
			if !ignoreNospc {
				return sense.ErrNoSpace
			}
		case LessSpace:
			if !ignoreLess && !ignoreNospc {
				return sense.ErrLessSpace
			}
		}
	}

	if err := d.backend.WriteFilemark(ctx, count, immed); err != nil {
		return err
	}

	if count != 0 {
		if pos, err := d.backend.ReadPosition(ctx); err == nil {
			d.pos.Observe(part, pos.Block)
		}
	}

	return nil
}

// Seek locates to target and updates space state from the resulting
// position, returning BadLocate if the drive landed on a different
// partition than requested (§4.4).
func (d *Device) Seek(ctx context.Context, target backend.Position) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.backend.Locate(ctx, target); err != nil {
		return err
	}

	pos, err := d.backend.ReadPosition(ctx)
	if err != nil {
		return err
	}

	if pos.Partition != target.Partition {
		return sense.ErrBadLocate
	}

	if pos.EarlyWarning {
		d.spaceState[pos.Partition] = NoSpace
	} else if pos.ProgrammableEarlyWarning {
		d.spaceState[pos.Partition] = LessSpace
	}

	return nil
}

// SeekEOD locates to EOD on part and records the reached block as the
// new append position (§4.4).
func (d *Device) SeekEOD(ctx context.Context, part int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.pos.SeekEOD(ctx, part)
}

// RecoverEODStatus implements §4.4's recover_eod_status: from the start
// of part, read forward (a filemark counts as a readable block) until
// EodDetected (already good) or a read-permanent error (the last
// readable block is the new EOD), then unload/load/locate one block
// before the failure and short-erase. Interruptible via Cancel.
func (d *Device) RecoverEODStatus(ctx context.Context, part int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf := make([]byte, d.maxBlockSize)

	if err := d.backend.Locate(ctx, backend.Position{Partition: part, Block: 0}); err != nil {
		return err
	}

	var lastGood uint64

	for {
		if d.cancelled {
			return sense.ErrInterrupted
		}

		_, err := d.backend.Read(ctx, buf, true)
		senseErr, ok := err.(*sense.Error)

		if err == nil || (ok && senseErr.Code == sense.FilemarkDetected) {
			lastGood++

			continue
		}

		if ok && senseErr.Code == sense.EodDetected {
			return nil
		}

		break
	}

	if d.cancelled {
		return sense.ErrInterrupted
	}

	if err := d.backend.Unload(ctx); err != nil {
		return err
	}

	if err := d.backend.Load(ctx); err != nil {
		return err
	}

	// Back off one block before the failing block before erasing.
	if lastGood > 0 {
		lastGood--
	}

	if err := d.backend.Locate(ctx, backend.Position{Partition: part, Block: lastGood}); err != nil {
		return err
	}

	if err := d.backend.Erase(ctx, false); err != nil {
		return err
	}

	d.pos.Observe(part, lastGood)

	return nil
}

// Format implements §4.4's format: load to BOP0, shape the partition
// layout via mode select, issue the backend format, clear the passed-EW
// attribute, and reset space state. indexPart is not used: the mode page
// is sent back with only the IDP bit set, so partition sizes and which
// partition holds the index are whatever the backend's format produces.
func (d *Device) Format(ctx context.Context, indexPart int, volName, barcode string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.backend.Load(ctx); err != nil {
		return err
	}

	mp, err := d.backend.ModeSense(ctx, 0x11, 0, 0)
	if err != nil {
		return err
	}

	mp = append([]byte(nil), mp...)
	if len(mp) > 0 {
		mp[0] |= 0x01 // IDP=1
	}

	if err := d.backend.ModeSelect(ctx, mp); err != nil {
		return err
	}

	kind := backend.FormatDualPartition

	if err := d.backend.Format(ctx, kind, volName, barcode); err != nil {
		return err
	}

	for part := 0; part < 2; part++ {
		if err := d.backend.WriteAttribute(ctx, part, passedEWAttributeID, encodePassedEW(0)); err != nil {
			d.log.Warn("format: failed clearing passed-EW attribute", zap.Int("partition", part), zap.Error(err))
		}
	}

	d.spaceState = [2]SpaceState{Writable, Writable}
	d.pos.Reset()

	_ = indexPart

	return nil
}

// EnableAppendOnlyMode implements §4.4's enable_append_only_mode.
func (d *Device) EnableAppendOnlyMode(ctx context.Context, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	mp, err := d.backend.ModeSense(ctx, 0x10, 0, 1)
	if err != nil {
		return err
	}

	mp = append([]byte(nil), mp...)

	reloaded := false

	if !on && d.appendOnly {
		if err := d.backend.Unload(ctx); err != nil {
			return err
		}
	} else if on {
		if err := d.backend.Load(ctx); err != nil {
			return err
		}

		reloaded = true
	}

	if len(mp) > 21 {
		if on {
			mp[21] = (mp[21] &^ 0x0F) | 0x10
		} else {
			mp[21] &^= 0x0F
		}
	}

	if err := d.backend.ModeSelect(ctx, mp); err != nil {
		return err
	}

	if !reloaded && !on {
		if err := d.backend.Load(ctx); err != nil {
			return err
		}
	}

	d.appendOnly = on

	return nil
}

// ForceReadOnly unconditionally latches write-protect (§4.4, also driven
// by the encryption lifecycle's mixed plaintext/ciphertext rule, §4.7).
func (d *Device) ForceReadOnly() {
	d.mu.Lock()
	d.writable = StateWriteProtect
	d.mu.Unlock()
}

// UpdatePosition re-reads position from the drive.
func (d *Device) UpdatePosition(ctx context.Context) (backend.Position, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.backend.ReadPosition(ctx)
}

// SpaceStateOf reports the current space state of a partition.
func (d *Device) SpaceStateOf(part int) SpaceState {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.spaceState[part]
}

// Writable reports the device-global writable state.
func (d *Device) Writable() WritableState {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.writable
}

// Fence marks the device as needing revalidation before further use,
// e.g. after an unexpected medium-may-have-changed sense.
func (d *Device) Fence() {
	d.mu.Lock()
	d.fenced = true
	d.mu.Unlock()
}

// Fenced reports whether the device is currently fenced.
func (d *Device) Fenced() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.fenced
}

// Unfence clears fencing after successful revalidation.
func (d *Device) Unfence() {
	d.mu.Lock()
	d.fenced = false
	d.mu.Unlock()
}
