// Package lock implements the multi-reader/single-writer lock that
// protects the in-memory LTFS index from concurrent mutation (§4.2).
//
// The three-mutex shape and the acquire/release/downgrade orderings are
// carried over unchanged from the original C implementation
// (ltfs_locking.h): a writeExclusive mutex that serializes writers and
// gates new readers, a reading mutex that the first reader takes and the
// last reader releases, and a small readCount mutex that protects the
// reader tally. A long write (acquired via AcquireWriteLong, used for
// index commits) sets a flag that makes short-read acquisitions fail
// immediately instead of blocking.
package lock

import (
	"errors"
	"sync"
	"time"
)

// ErrLongLock is returned by AcquireReadShort when a long writer is
// active or about to become active, telling the caller to abandon the
// short-read attempt rather than block.
var ErrLongLock = errors.New("lock: long write lock held or pending")

// MRSW is a multi-reader/single-writer lock with a long-lock flag.
//
// Zero value is not usable; construct with New.
type MRSW struct {
	writeExclusive sync.Mutex
	reading        sync.Mutex
	readCountMu    sync.Mutex

	readCount uint32
	writer    bool
	longLock  bool
}

// New returns a ready-to-use MRSW lock.
func New() *MRSW {
	return &MRSW{}
}

// AcquireWrite blocks until an exclusive write lock is held.
func (m *MRSW) AcquireWrite() {
	m.writeExclusive.Lock()
	m.reading.Lock()
	m.writer = true
}

// AcquireWriteLong blocks until an exclusive write lock is held, and sets
// the long-lock flag so that concurrent AcquireReadShort callers fail
// immediately with ErrLongLock instead of polling. Used for index-commit
// style operations that must starve short readers (§4.2, §5).
func (m *MRSW) AcquireWriteLong() {
	m.writeExclusive.Lock()
	m.reading.Lock()
	m.writer = true
	m.longLock = true
}

// TryAcquireWrite attempts to acquire an exclusive write lock without
// blocking. Returns false if either the write-exclusive or reading mutex
// is currently held.
func (m *MRSW) TryAcquireWrite() bool {
	if !m.writeExclusive.TryLock() {
		return false
	}

	if !m.reading.TryLock() {
		m.writeExclusive.Unlock()

		return false
	}

	m.writer = true

	return true
}

// AcquireRead blocks until a shared read lock is held. Unaffected by the
// long-lock flag: it always eventually succeeds once the current writer
// releases.
func (m *MRSW) AcquireRead() {
	m.writeExclusive.Lock()
	m.longLock = false
	m.writeExclusive.Unlock()

	m.readCountMu.Lock()
	m.readCount++
	if m.readCount == 1 {
		m.reading.Lock()
	}
	m.readCountMu.Unlock()
}

// AcquireReadShort attempts to acquire a shared read lock, but gives up
// with ErrLongLock as soon as a long writer is active or pending instead
// of waiting for it to finish. Polls every second while the write-
// exclusive mutex is held by an ordinary (non-long) writer, matching the
// original implementation's busy-wait avoidance.
func (m *MRSW) AcquireReadShort() error {
	if m.longLock {
		return ErrLongLock
	}

	for {
		if m.writeExclusive.TryLock() {
			break
		}

		if m.longLock {
			return ErrLongLock
		}

		time.Sleep(time.Second)
	}
	m.writeExclusive.Unlock()

	m.readCountMu.Lock()
	m.readCount++
	if m.readCount == 1 {
		m.reading.Lock()
	}
	m.readCountMu.Unlock()

	return nil
}

// ReleaseRead releases a shared read lock previously acquired with
// AcquireRead or AcquireReadShort.
func (m *MRSW) ReleaseRead() {
	m.readCountMu.Lock()
	defer m.readCountMu.Unlock()

	if m.readCount == 0 {
		// Matches the original's defensive handling of an unbalanced
		// release (ltfsmsg(LTFS_ERR, "17186E")): clamp rather than
		// underflow the counter.
		return
	}

	m.readCount--
	if m.readCount == 0 {
		m.reading.Unlock()
	}
}

// ReleaseWrite releases an exclusive write lock previously acquired with
// AcquireWrite, AcquireWriteLong, or TryAcquireWrite.
func (m *MRSW) ReleaseWrite() {
	m.writer = false
	m.longLock = false
	m.reading.Unlock()
	m.writeExclusive.Unlock()
}

// Release releases whichever kind of lock is currently held by the
// calling goroutine. Mirrors the original's release_mrsw dispatch, which
// relies on the writer flag to tell write and read release apart. Most
// callers should prefer the explicit ReleaseRead/ReleaseWrite.
func (m *MRSW) Release() {
	if m.writer {
		m.ReleaseWrite()

		return
	}

	m.ReleaseRead()
}

// DowngradeWriteToRead converts a held write lock (long or short) into a
// read lock without ever fully releasing exclusivity: a reader that had
// already passed the write-exclusive mutex and is waiting on the reading
// mutex is let through before write-exclusive itself is released, matching
// writetoread_mrsw's ordering exactly:
//  1. clear writer/longLock so waiting short readers stop failing,
//  2. unlock reading (lets an in-flight first-reader proceed),
//  3. bump readCount under readCountMu (locking reading again if we are
//     the first reader to do so),
//  4. unlock writeExclusive last, admitting new readers and writers.
func (m *MRSW) DowngradeWriteToRead() {
	m.writer = false
	m.longLock = false

	m.reading.Unlock()

	m.readCountMu.Lock()
	m.readCount++
	if m.readCount == 1 {
		m.reading.Lock()
	}
	m.readCountMu.Unlock()

	m.writeExclusive.Unlock()
}
