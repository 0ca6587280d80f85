package logging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/benmcclelland/ltfscore/internal/logging"
)

func newObservedLogger(level logging.Level) (*logging.Logger, *observer.ObservedLogs) {
	core, observed := observer.New(zap.DebugLevel)
	cat := logging.NewCatalog()
	cat.Register("11182E", logging.LevelErr, "barcode mismatch on partition %d")
	cat.Register("12058W", logging.LevelWarn, "unexpected coherency page id %#x")

	return logging.New(cat, zap.New(core), nil, level), observed
}

func Test_Logger_Msg_FormatsAndGatesOnThreshold(t *testing.T) {
	t.Parallel()

	l, observed := newObservedLogger(logging.LevelWarn)

	l.Msg("11182E", 1)
	l.Msg("12058W", 0x99)

	logs := observed.All()
	assert.Len(t, logs, 2)
	assert.Equal(t, "barcode mismatch on partition 1", logs[0].Message)
}

func Test_Logger_Msg_UnknownIDLogsFallback(t *testing.T) {
	t.Parallel()

	l, observed := newObservedLogger(logging.LevelTrace)

	l.Msg("99999Z")

	logs := observed.All()
	assert.Len(t, logs, 1)
	assert.Equal(t, "unknown message id", logs[0].Message)
}

func Test_Logger_Msg_BelowThresholdIsSuppressed(t *testing.T) {
	t.Parallel()

	l, observed := newObservedLogger(logging.LevelErr)

	l.Msg("12058W", 1)

	assert.Empty(t, observed.All())
}
