package backend

import (
	"bytes"
	"encoding/gob"
	"fmt"

	fsys "github.com/benmcclelland/ltfscore/pkg/fs"
)

// gobRecord is record's exported mirror: gob skips unexported fields, so
// Save/LoadSnapshot convert through this shape rather than encoding
// record directly.
type gobRecord struct {
	Filemark bool
	Data     []byte
}

// snapshot is the on-disk, gob-encoded form of a FileBackend cartridge:
// every record of both partitions plus the MAM attribute pages, so a
// --dry-run session can persist a cartridge across process runs the way
// a real drive's media persists across unloads.
type snapshot struct {
	Partitions [2][]gobRecord
	Attrs      map[int]map[uint16][]byte
}

// SaveSnapshot writes the cartridge's full state to path via fsys,
// gob-encoded the way the ticket cache persists parsed summaries to disk.
func (f *FileBackend) SaveSnapshot(fsys fsys.FS, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := snapshot{Attrs: f.attrs}

	for i := range f.partitions {
		recs := make([]gobRecord, len(f.partitions[i].records))
		for j, r := range f.partitions[i].records {
			recs[j] = gobRecord{Filemark: r.filemark, Data: r.data}
		}

		snap.Partitions[i] = recs
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("encoding cartridge snapshot: %w", err)
	}

	return fsys.WriteFile(path, buf.Bytes(), 0o600)
}

// LoadSnapshot restores a cartridge previously written by SaveSnapshot,
// replacing this FileBackend's current partitions and attributes.
func (f *FileBackend) LoadSnapshot(fsys fsys.FS, path string) error {
	raw, err := fsys.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading cartridge snapshot: %w", err)
	}

	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&snap); err != nil {
		return fmt.Errorf("decoding cartridge snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.partitions {
		recs := make([]record, len(snap.Partitions[i]))
		for j, r := range snap.Partitions[i] {
			recs[j] = record{filemark: r.Filemark, data: r.Data}
		}

		f.partitions[i].records = recs
	}

	f.attrs = snap.Attrs
	f.pos = Position{}

	return nil
}

// DryRunState coordinates a FileBackend's on-disk snapshot across process
// invocations of mkltfs/ltfsck/ltfs run with --dry-run --state=path.
//
// A real drive refuses a second concurrent mount of the same cartridge;
// OpenDryRunState gives --dry-run the same one-device-one-wrapper guarantee
// by holding an exclusive flock on path+".lock" for the life of the state,
// so two dry-run sessions can never load and save the same snapshot file
// at once and silently clobber each other.
type DryRunState struct {
	path   string
	fsys   fsys.FS
	locker *fsys.Locker
	lock   *fsys.Lock
}

// OpenDryRunState acquires the lock for path and returns a DryRunState ready
// for Load/Save. The lock is released by Close.
func OpenDryRunState(path string) (*DryRunState, error) {
	real := fsys.NewReal()
	locker := fsys.NewLocker(real)

	lock, err := locker.Lock(path + ".lock")
	if err != nil {
		return nil, fmt.Errorf("locking dry-run state %q: %w", path, err)
	}

	return &DryRunState{path: path, fsys: real, locker: locker, lock: lock}, nil
}

// Load restores b from the snapshot at path, if one exists. A missing file
// is not an error: it means this is the cartridge's first dry-run session.
func (s *DryRunState) Load(b *FileBackend) error {
	exists, err := s.fsys.Exists(s.path)
	if err != nil {
		return fmt.Errorf("checking dry-run state %q: %w", s.path, err)
	}

	if !exists {
		return nil
	}

	return b.LoadSnapshot(s.fsys, s.path)
}

// Save writes b's current state to path.
func (s *DryRunState) Save(b *FileBackend) error {
	return b.SaveSnapshot(s.fsys, s.path)
}

// Close releases the lock taken by OpenDryRunState.
func (s *DryRunState) Close() error {
	return s.lock.Close()
}
