//go:build linux

package backend

// OpenReal returns a Backend driving the given Linux st device node.
func OpenReal(maxBlockSize uint32) Backend {
	return NewSTBackend(maxBlockSize)
}

// HaveRealBackend reports whether OpenReal drives an actual tape drive
// on this platform.
const HaveRealBackend = true
