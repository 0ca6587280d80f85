// Package position implements the append-position bookkeeping and
// filemark navigation helpers that turn a strictly sequential tape drive
// into a block-addressable store (C6).
package position

import (
	"context"

	"github.com/benmcclelland/ltfscore/internal/backend"
)

// Unknown is the sentinel append_pos value meaning "not yet resolved";
// the next write must locate to EOD first (§4.6).
const Unknown uint64 = 0

// Tracker holds the per-partition append-position cache above a Backend.
// It does not itself serialize access; callers (internal/device) hold
// the appropriate lock.
type Tracker struct {
	b          backend.Backend
	appendPos  [2]uint64
}

// NewTracker returns a Tracker with both append positions unknown.
func NewTracker(b backend.Backend) *Tracker {
	return &Tracker{b: b}
}

// Reset clears both append positions to Unknown, as load_tape does.
func (t *Tracker) Reset() {
	t.appendPos[0] = Unknown
	t.appendPos[1] = Unknown
}

// AppendPos returns the cached append position for a partition.
func (t *Tracker) AppendPos(part int) uint64 {
	return t.appendPos[part]
}

// Observe records the position reached by a successful write or
// write-filemark, per §4.6: "after every successful write or
// write_filemark, set append_pos[p] = position.block".
func (t *Tracker) Observe(part int, block uint64) {
	t.appendPos[part] = block
}

// SeekAppend locates to the cached append position for part, resolving
// it via locate-to-EOD first if it is still Unknown, and records the
// resolved block either way. If appendOnly && unlockWrite, the caller is
// expected to issue an allow-overwrite operation at the resulting
// position; that call is out of this package's scope (backend-specific).
func (t *Tracker) SeekAppend(ctx context.Context, part int) error {
	if t.appendPos[part] != Unknown {
		return t.b.Locate(ctx, backend.Position{Partition: part, Block: t.appendPos[part]})
	}

	return t.SeekEOD(ctx, part)
}

// SeekEOD locates to the end of data on part and caches the reached
// block as the new append position (§4.6 seek_eod).
func (t *Tracker) SeekEOD(ctx context.Context, part int) error {
	if err := t.b.Locate(ctx, backend.Position{Partition: part, Block: ^uint64(0)}); err != nil {
		return err
	}

	pos, err := t.b.ReadPosition(ctx)
	if err != nil {
		return err
	}

	t.appendPos[part] = pos.Block

	return nil
}

// LocateLastIndex implements §4.6's locate_last_index: seek_eod(p);
// space(-2, FM); space(+1, FM).
func (t *Tracker) LocateLastIndex(ctx context.Context, part int) error {
	if err := t.SeekEOD(ctx, part); err != nil {
		return err
	}

	if err := t.b.Space(ctx, 2, backend.SpaceFilemarkBackward); err != nil {
		return err
	}

	return t.b.Space(ctx, 1, backend.SpaceFilemarkForward)
}

// LocateFirstIndex implements locate_first_index: seek({p, 4}); space(+1, FM).
func (t *Tracker) LocateFirstIndex(ctx context.Context, part int) error {
	if err := t.b.Locate(ctx, backend.Position{Partition: part, Block: 4}); err != nil {
		return err
	}

	return t.b.Space(ctx, 1, backend.SpaceFilemarkForward)
}

// LocateNextIndex implements locate_next_index: space(+1, FM).
func (t *Tracker) LocateNextIndex(ctx context.Context) error {
	return t.b.Space(ctx, 1, backend.SpaceFilemarkForward)
}

// LocatePreviousIndex implements locate_previous_index: space(-4, FM);
// space(+1, FM).
func (t *Tracker) LocatePreviousIndex(ctx context.Context) error {
	if err := t.b.Space(ctx, 4, backend.SpaceFilemarkBackward); err != nil {
		return err
	}

	return t.b.Space(ctx, 1, backend.SpaceFilemarkForward)
}
