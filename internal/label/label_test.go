package label_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benmcclelland/ltfscore/internal/label"
	"github.com/benmcclelland/ltfscore/internal/sense"
)

func baseLabels() (label.Label, label.Label) {
	u := uuid.New()
	ft := time.Now()

	a := label.Label{
		Barcode:       "ABC123",
		VolUUID:       u,
		FormatTime:    ft,
		Blocksize:     524288,
		PartidDP:      'a',
		PartidIP:      'b',
		ThisPartition: 'b',
		Version:       1,
	}
	b := a
	b.ThisPartition = 'a'

	return a, b
}

func Test_Compare_MatchingLabelsSucceed(t *testing.T) {
	t.Parallel()

	a, b := baseLabels()
	assert.NoError(t, label.Compare(&a, &b))
}

func Test_Compare_BarcodeMismatch(t *testing.T) {
	t.Parallel()

	a, b := baseLabels()
	b.Barcode = "ZZZ999"

	err := label.Compare(&a, &b)
	require.Error(t, err)

	var senseErr *sense.Error
	require.ErrorAs(t, err, &senseErr)
	assert.Equal(t, sense.LabelMismatch, senseErr.Code)
}

func Test_Compare_SameThisPartitionIsMismatch(t *testing.T) {
	t.Parallel()

	a, b := baseLabels()
	b.ThisPartition = a.ThisPartition

	err := label.Compare(&a, &b)
	require.Error(t, err)
}

func Test_MakeAnsiLabel_Layout(t *testing.T) {
	t.Parallel()

	buf := label.MakeAnsiLabel("BC0001")

	assert.Equal(t, "VOL1", string(buf[0:4]))
	assert.Equal(t, "BC0001", string(buf[4:10]))
	assert.Equal(t, byte('L'), buf[10])
	assert.Equal(t, "LTFS", string(buf[24:28]))
	assert.Equal(t, byte('4'), buf[label.AnsiLabelSize-1])
}
