package diag

import (
	"bytes"
	"fmt"

	"github.com/natefinch/atomic"
)

// Dump writes a snapshot of the request-trace ring and completed-admin
// tail queue to path, atomically so a dump-on-error never leaves behind
// a half-written file for a concurrent reader (the same natefinch/atomic
// write-to-temp-then-rename idiom RecordDump uses for the manifest).
func (t *Tracer) Dump(path string) error {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "request-trace:%d\n", len(t.RequestSnapshot()))

	for _, rec := range t.RequestSnapshot() {
		enc := EncodeRecord(rec)
		buf.Write(enc[:])
	}

	fmt.Fprintf(&buf, "\ncompleted-admin:%d\n", len(t.CompletedAdminSnapshot()))

	for _, rec := range t.CompletedAdminSnapshot() {
		enc := EncodeRecord(rec)
		buf.Write(enc[:])
	}

	return atomic.WriteFile(path, &buf)
}
