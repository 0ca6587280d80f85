package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runMkltfs(t *testing.T, args ...string) (string, string, int) {
	t.Helper()

	var out, errOut bytes.Buffer

	fullArgs := append([]string{"mkltfs"}, args...)
	code := Run(nil, &out, &errOut, fullArgs, nil, nil)

	return out.String(), errOut.String(), code
}

func Test_Run_DryRunFormatsSuccessfully(t *testing.T) {
	t.Parallel()

	stdout, stderr, code := runMkltfs(t, "--dry-run", "--barcode", "VOL001", "--index-partition", "a")

	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "barcode=VOL001")
}

func Test_Run_MissingDeviceIsUsageError(t *testing.T) {
	t.Parallel()

	_, stderr, code := runMkltfs(t, "--barcode", "VOL001")

	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "--device")
}

func Test_Run_InvalidIndexPartitionIsUsageError(t *testing.T) {
	t.Parallel()

	_, stderr, code := runMkltfs(t, "--dry-run", "--barcode", "VOL001", "--index-partition", "z")

	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "--index-partition")
}

func Test_Run_DryRunWithStateWritesSnapshotFile(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "cartridge.state")

	stdout, stderr, code := runMkltfs(t, "--dry-run", "--barcode", "VOL001", "--state", statePath)

	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "barcode=VOL001")

	info, err := os.Stat(statePath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	_, err = os.Stat(statePath + ".lock")
	require.NoError(t, err)
}

func Test_Run_UnknownFlagIsUsageError(t *testing.T) {
	t.Parallel()

	_, stderr, code := runMkltfs(t, "--bogus")

	assert.Equal(t, 2, code)
	assert.True(t, strings.Contains(stderr, "error:"))
}
