package crypto_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benmcclelland/ltfscore/internal/backend"
	"github.com/benmcclelland/ltfscore/internal/crypto"
)

func Test_ParseKeyfile_SingleValidPair(t *testing.T) {
	t.Parallel()

	// 32 bytes -> 64 hex chars, 12 bytes -> 24 hex chars.
	dk := strings.Repeat("11", 32)
	dki := strings.Repeat("22", 12)

	input := "DK=" + dk + "\nDKi=" + dki + "\n"

	pairs, err := crypto.ParseKeyfile(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, pairs, 1)

	assert.Equal(t, byte(0x11), pairs[0].Key[0])
	assert.Equal(t, byte(0x22), pairs[0].Alias[0])
}

func Test_ParseKeyfile_SkipsBlankLinesAndParsesMultiplePairs(t *testing.T) {
	t.Parallel()

	dk1 := strings.Repeat("11", 32)
	dki1 := strings.Repeat("22", 12)
	dk2 := strings.Repeat("33", 32)
	dki2 := strings.Repeat("44", 12)

	input := "DK=" + dk1 + "\n\nDKi=" + dki1 + "\nDK=" + dk2 + "\nDKi=" + dki2 + "\n"

	pairs, err := crypto.ParseKeyfile(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, pairs, 2)

	assert.Equal(t, byte(0x33), pairs[1].Key[0])
	assert.Equal(t, byte(0x44), pairs[1].Alias[0])
}

func Test_ParseKeyfile_NonMatchingLineIsParseError(t *testing.T) {
	t.Parallel()

	dk := strings.Repeat("11", 32)
	input := "DK=" + dk + "\nbogus line\n"

	_, err := crypto.ParseKeyfile(strings.NewReader(input))
	require.Error(t, err)

	var parseErr *crypto.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, 2, parseErr.Line)
}

func Test_ParseKeyfile_OutOfOrderTagIsParseError(t *testing.T) {
	t.Parallel()

	dki := strings.Repeat("22", 12)
	dk := strings.Repeat("11", 32)
	input := "DKi=" + dki + "\nDK=" + dk + "\n"

	_, err := crypto.ParseKeyfile(strings.NewReader(input))

	var parseErr *crypto.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, 1, parseErr.Line)
}

func Test_ParseKeyfile_DanglingDKWithNoDKiIsError(t *testing.T) {
	t.Parallel()

	dk := strings.Repeat("11", 32)
	input := "DK=" + dk + "\n"

	_, err := crypto.ParseKeyfile(strings.NewReader(input))
	require.Error(t, err)
}

func Test_ParseKeyfile_EmptyFileIsErrKeyfileEmpty(t *testing.T) {
	t.Parallel()

	_, err := crypto.ParseKeyfile(strings.NewReader(""))
	require.ErrorIs(t, err, crypto.ErrKeyfileEmpty)
}

func Test_ParseKeyfile_BadHexLengthIsError(t *testing.T) {
	t.Parallel()

	input := "DK=abcd\nDKi=" + strings.Repeat("22", 12) + "\n"

	_, err := crypto.ParseKeyfile(strings.NewReader(input))
	require.Error(t, err)
}

func Test_ResolveKey_NilAliasPicksFirstPair(t *testing.T) {
	t.Parallel()

	pairs := []crypto.KeyPair{
		{Key: backend.DataKey{1}, Alias: backend.KeyAlias{1}},
		{Key: backend.DataKey{2}, Alias: backend.KeyAlias{2}},
	}

	alias, key, err := crypto.ResolveKey(pairs, nil)
	require.NoError(t, err)
	assert.Equal(t, backend.KeyAlias{1}, *alias)
	assert.Equal(t, backend.DataKey{1}, *key)
}

func Test_ResolveKey_MatchesRequestedAlias(t *testing.T) {
	t.Parallel()

	pairs := []crypto.KeyPair{
		{Key: backend.DataKey{1}, Alias: backend.KeyAlias{1}},
		{Key: backend.DataKey{2}, Alias: backend.KeyAlias{2}},
	}

	want := backend.KeyAlias{2}

	alias, key, err := crypto.ResolveKey(pairs, &want)
	require.NoError(t, err)
	assert.Equal(t, backend.KeyAlias{2}, *alias)
	assert.Equal(t, backend.DataKey{2}, *key)
}

func Test_ResolveKey_UnknownAliasIsError(t *testing.T) {
	t.Parallel()

	pairs := []crypto.KeyPair{{Key: backend.DataKey{1}, Alias: backend.KeyAlias{1}}}
	want := backend.KeyAlias{9}

	_, _, err := crypto.ResolveKey(pairs, &want)
	require.ErrorIs(t, err, crypto.ErrAliasNotFound)
}
