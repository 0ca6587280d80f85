package sense_test

import (
	"errors"
	"testing"

	"github.com/benmcclelland/ltfscore/internal/sense"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_FromTriplet_RecoveredErrorNeverPropagates(t *testing.T) {
	t.Parallel()

	code := sense.FromTriplet(sense.Triplet{Key: 0x01, ASC: 0x99, ASCQ: 0x99}, sense.FamilyLTO)
	assert.Equal(t, sense.NoSense, code)
}

func Test_FromTriplet_IsTotalAndDeterministic(t *testing.T) {
	t.Parallel()

	for key := 0; key < 16; key++ {
		for asc := 0; asc < 256; asc += 17 {
			t := sense.Triplet{Key: byte(key), ASC: byte(asc), ASCQ: 0x00}
			c1 := sense.FromTriplet(t, sense.FamilyLTO)
			c2 := sense.FromTriplet(t, sense.FamilyLTO)
			require.Equal(t, c1, c2, "mapping must be deterministic for %+v", t)
		}
	}
}

func Test_FromTriplet_CollapseRules(t *testing.T) {
	t.Parallel()

	assert.Equal(t, sense.Hardware, sense.FromTriplet(sense.Triplet{Key: 0x04, ASC: 0x40, ASCQ: 0x01}, sense.FamilyLTO))
	assert.Equal(t, sense.Hardware, sense.FromTriplet(sense.Triplet{Key: 0x04, ASC: 0x80, ASCQ: 0x01}, sense.FamilyLTO))
	assert.Equal(t, sense.AbortedCommand, sense.FromTriplet(sense.Triplet{Key: 0x0B, ASC: 0x41, ASCQ: 0x01}, sense.FamilyLTO))
}

func Test_Error_IsMatchesByCodeOnly(t *testing.T) {
	t.Parallel()

	err := sense.FromSense(sense.NoSpace, sense.Triplet{Key: 0x00, ASC: 0x00, ASCQ: 0x05}, "writing index")
	assert.True(t, errors.Is(err, sense.ErrNoSpace))
	assert.False(t, errors.Is(err, sense.ErrLessSpace))
}

func Test_ShouldDump_Classification(t *testing.T) {
	t.Parallel()

	assert.True(t, sense.ShouldDump(sense.Hardware, false))
	assert.True(t, sense.ShouldDump(sense.NoSense, true))
	assert.False(t, sense.ShouldDump(sense.NoSense, false))
	assert.False(t, sense.ShouldDump(sense.NoSpace, false))
}
