// Package volume implements the §6 entry points consumed by the FUSE
// collaborator: a thin facade wiring the MRSW lock, the device wrapper,
// and the in-memory index arena together with the locking discipline
// §5 specifies (read-only ops take a read lock, mutating ops take a
// write lock, index commit takes a long write lock).
package volume

import (
	"context"
	"os"
	"time"

	"github.com/benmcclelland/ltfscore/internal/device"
	"github.com/benmcclelland/ltfscore/internal/index"
	"github.com/benmcclelland/ltfscore/internal/lock"
	"github.com/benmcclelland/ltfscore/internal/sense"
)

// Attr is the subset of POSIX metadata getattr/fgetattr report.
type Attr struct {
	Size     uint64
	IsDir    bool
	ReadOnly bool
	Mode     os.FileMode
	ModTime  time.Time
}

// Volume is one mounted LTFS cartridge: the index arena guarded by an
// MRSW lock, and the device wrapper beneath it.
type Volume struct {
	mu    *lock.MRSW
	arena *index.Arena
	dev   *device.Device

	readOnly bool
}

// New wires a freshly loaded Device to a fresh index arena.
func New(dev *device.Device) *Volume {
	return &Volume{
		mu:    lock.New(),
		arena: index.NewArena(),
		dev:   dev,
	}
}

// Mount loads the tape and makes the volume ready for filesystem
// operations.
func (v *Volume) Mount(ctx context.Context) error {
	v.mu.AcquireWrite()
	defer v.mu.ReleaseWrite()

	return v.dev.LoadTape(ctx)
}

// Umount is a no-op placeholder for symmetry with Mount; a real
// implementation would flush a pending index commit here.
func (v *Volume) Umount(context.Context) error {
	return nil
}

func attrOf(e *index.Entry) Attr {
	mode := os.FileMode(0644)
	if e.IsDir {
		mode = os.ModeDir | 0755
	}

	return Attr{Size: e.Size, IsDir: e.IsDir, ReadOnly: e.ReadOnly, Mode: mode}
}

// GetAttr is a read-only op: it takes a read lock (§5).
func (v *Volume) GetAttr(path string) (Attr, error) {
	v.mu.AcquireRead()
	defer v.mu.ReleaseRead()

	uid, ok := v.resolve(path)
	if !ok {
		return Attr{}, sense.New(sense.IndexCorrupted, "path not found: "+path)
	}

	return attrOf(v.arena.Get(uid)), nil
}

// resolve walks path components from root. Must be called with at least
// a read lock held.
func (v *Volume) resolve(path string) (index.UID, bool) {
	uid := v.arena.Root()
	if path == "" || path == "/" {
		return uid, true
	}

	cur := uid
	start := 0

	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			if i > start {
				next, ok := v.arena.Lookup(cur, path[start:i])
				if !ok {
					return 0, false
				}

				cur = next
			}

			start = i + 1
		}
	}

	return cur, true
}

// Create is a mutating op: it takes a write lock (§5).
func (v *Volume) Create(parentPath, name string) (index.UID, error) {
	v.mu.AcquireWrite()
	defer v.mu.ReleaseWrite()

	if v.readOnly {
		return 0, sense.ErrWriteProtect
	}

	parent, ok := v.resolve(parentPath)
	if !ok {
		return 0, sense.New(sense.IndexCorrupted, "parent not found: "+parentPath)
	}

	uid, ok := v.arena.Create(parent, name, false)
	if !ok {
		return 0, sense.New(sense.Internal, "create failed")
	}

	return uid, nil
}

// Mkdir is a mutating op: it takes a write lock.
func (v *Volume) Mkdir(parentPath, name string) (index.UID, error) {
	v.mu.AcquireWrite()
	defer v.mu.ReleaseWrite()

	if v.readOnly {
		return 0, sense.ErrWriteProtect
	}

	parent, ok := v.resolve(parentPath)
	if !ok {
		return 0, sense.New(sense.IndexCorrupted, "parent not found: "+parentPath)
	}

	uid, ok := v.arena.Create(parent, name, true)
	if !ok {
		return 0, sense.New(sense.Internal, "mkdir failed")
	}

	return uid, nil
}

// Unlink is a mutating op: it takes a write lock.
func (v *Volume) Unlink(path string) error {
	v.mu.AcquireWrite()
	defer v.mu.ReleaseWrite()

	if v.readOnly {
		return sense.ErrWriteProtect
	}

	uid, ok := v.resolve(path)
	if !ok {
		return sense.New(sense.IndexCorrupted, "path not found: "+path)
	}

	if !v.arena.Unlink(uid) {
		return sense.New(sense.Internal, "unlink failed")
	}

	return nil
}

// Rmdir is a mutating op: it takes a write lock. Fails if the directory
// is not empty.
func (v *Volume) Rmdir(path string) error {
	v.mu.AcquireWrite()
	defer v.mu.ReleaseWrite()

	if v.readOnly {
		return sense.ErrWriteProtect
	}

	uid, ok := v.resolve(path)
	if !ok {
		return sense.New(sense.IndexCorrupted, "path not found: "+path)
	}

	e := v.arena.Get(uid)
	if e == nil || !e.IsDir {
		return sense.New(sense.IllegalRequest, "not a directory: "+path)
	}

	if len(e.Children) > 0 {
		return sense.New(sense.IllegalRequest, "directory not empty: "+path)
	}

	if !v.arena.Unlink(uid) {
		return sense.New(sense.Internal, "rmdir failed")
	}

	return nil
}

// Rename is a mutating op: it takes a write lock.
func (v *Volume) Rename(fromPath, toParentPath, toName string) error {
	v.mu.AcquireWrite()
	defer v.mu.ReleaseWrite()

	if v.readOnly {
		return sense.ErrWriteProtect
	}

	uid, ok := v.resolve(fromPath)
	if !ok {
		return sense.New(sense.IndexCorrupted, "path not found: "+fromPath)
	}

	toParent, ok := v.resolve(toParentPath)
	if !ok {
		return sense.New(sense.IndexCorrupted, "destination parent not found: "+toParentPath)
	}

	if !v.arena.Rename(uid, toParent, toName) {
		return sense.New(sense.Internal, "rename failed")
	}

	return nil
}

// Readdir is a read-only op: it takes a read lock.
func (v *Volume) Readdir(path string) ([]string, error) {
	v.mu.AcquireRead()
	defer v.mu.ReleaseRead()

	uid, ok := v.resolve(path)
	if !ok {
		return nil, sense.New(sense.IndexCorrupted, "path not found: "+path)
	}

	e := v.arena.Get(uid)
	if e == nil || !e.IsDir {
		return nil, sense.New(sense.IllegalRequest, "not a directory: "+path)
	}

	names := make([]string, 0, len(e.Children))

	for _, c := range e.Children {
		if ce := v.arena.Get(c); ce != nil {
			names = append(names, ce.Name)
		}
	}

	return names, nil
}

// Chmod maps only the write bit onto the entry's read-only flag; chown
// is treated as a no-op by the caller (§6).
func (v *Volume) Chmod(path string, mode os.FileMode) error {
	v.mu.AcquireWrite()
	defer v.mu.ReleaseWrite()

	uid, ok := v.resolve(path)
	if !ok {
		return sense.New(sense.IndexCorrupted, "path not found: "+path)
	}

	e := v.arena.Get(uid)
	if e == nil {
		return sense.New(sense.Internal, "missing entry")
	}

	e.ReadOnly = mode&0200 == 0

	return nil
}

// Truncate sets an entry's size.
func (v *Volume) Truncate(path string, size uint64) error {
	v.mu.AcquireWrite()
	defer v.mu.ReleaseWrite()

	if v.readOnly {
		return sense.ErrWriteProtect
	}

	uid, ok := v.resolve(path)
	if !ok {
		return sense.New(sense.IndexCorrupted, "path not found: "+path)
	}

	e := v.arena.Get(uid)
	if e == nil {
		return sense.New(sense.Internal, "missing entry")
	}

	e.Size = size

	return nil
}

// CommitIndex takes the long write lock that fences short-read
// acquisitions during an index commit (§5) and runs fn under it — the XML
// serialization and MAM coherency-record write are out of this
// package's scope (external collaborators per §1).
func (v *Volume) CommitIndex(fn func() error) error {
	v.mu.AcquireWriteLong()
	defer v.mu.ReleaseWrite()

	return fn()
}
