package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func runLtfsck(t *testing.T, args ...string) (string, string, int) {
	t.Helper()

	var out, errOut bytes.Buffer

	fullArgs := append([]string{"ltfsck"}, args...)
	code := Run(nil, &out, &errOut, fullArgs, nil, nil)

	return out.String(), errOut.String(), code
}

func Test_Run_DryRunOnFreshlyLoadedCartridgeReportsMissingCoherency(t *testing.T) {
	t.Parallel()

	stdout, _, code := runLtfsck(t, "--dry-run")

	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "coherency records missing")
}

func Test_Run_MissingDeviceIsUsageError(t *testing.T) {
	t.Parallel()

	_, stderr, code := runLtfsck(t)

	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "--device")
}
