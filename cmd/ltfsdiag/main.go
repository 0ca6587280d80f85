// Command ltfsdiag is an interactive inspector for the trace rings
// internal/diag maintains: it lets an operator feed in trace events (as
// a stand-in for the instrumented core emitting them live) and inspect
// or dump the resulting ring contents, mirroring cmd/sloty's REPL shape.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
