package crypto

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/benmcclelland/ltfscore/internal/backend"
)

// ParseError reports a flat-file key-list line that does not match the
// tag strictly expected at its position (§9: "the reimplementation must
// treat a non-matching line as ParseError").
type ParseError struct {
	Line int
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("keyfile: line %d: expected %s tag, got %q", e.Line, wantTag(e.Line), e.Text)
}

func wantTag(line int) string {
	if line%2 == 1 {
		return "DK="
	}

	return "DKi="
}

// ErrKeyfileEmpty is returned when a key-list file contains no DK=/DKi=
// pairs at all.
var ErrKeyfileEmpty = errors.New("keyfile: no DK=/DKi= pairs found")

// KeyPair is one DK=/DKi= pair parsed from a flat-file key list.
type KeyPair struct {
	Key   backend.DataKey
	Alias backend.KeyAlias
}

// ParseKeyfile reads a flat-file key list in the source's "DK="/"DKi="
// alternating-line format: odd (1-based) non-blank lines must start
// with "DK=" and carry a 64-character hex-encoded data key, even
// non-blank lines must start with "DKi=" and carry a 24-character
// hex-encoded key alias. Blank lines are skipped and do not count
// toward the alternation. Any non-blank line that does not match the
// tag expected at its position returns a *ParseError, mirroring the
// source's convert_option behavior but making the malformed-file case
// an explicit error instead of undefined behavior.
func ParseKeyfile(r io.Reader) ([]KeyPair, error) {
	scanner := bufio.NewScanner(r)

	var pairs []KeyPair

	var pending *backend.DataKey

	n := 0

	for scanner.Scan() {
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}

		n++

		switch n % 2 {
		case 1:
			value, ok := strings.CutPrefix(text, "DK=")
			if !ok {
				return nil, &ParseError{Line: n, Text: text}
			}

			key, err := decodeHexFixed(value, len(backend.DataKey{}))
			if err != nil {
				return nil, fmt.Errorf("keyfile: line %d: %w", n, err)
			}

			dk := backend.DataKey(key)
			pending = &dk
		case 0:
			value, ok := strings.CutPrefix(text, "DKi=")
			if !ok {
				return nil, &ParseError{Line: n, Text: text}
			}

			alias, err := decodeHexFixed(value, len(backend.KeyAlias{}))
			if err != nil {
				return nil, fmt.Errorf("keyfile: line %d: %w", n, err)
			}

			pairs = append(pairs, KeyPair{Key: *pending, Alias: backend.KeyAlias(alias)})
			pending = nil
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("keyfile: %w", err)
	}

	if pending != nil {
		return nil, fmt.Errorf("keyfile: %w", &ParseError{Line: n, Text: "DK= with no matching DKi= line"})
	}

	if len(pairs) == 0 {
		return nil, ErrKeyfileEmpty
	}

	return pairs, nil
}

// ErrAliasNotFound is returned by ResolveKey when wantAlias does not
// match any pair parsed from the key file.
var ErrAliasNotFound = errors.New("keyfile: requested key alias not found")

// ResolveKey picks the data key to pass to Lifecycle.SetKey out of pairs
// parsed by ParseKeyfile. With wantAlias nil, the file's first pair is
// used (the common single-key-per-cartridge case); otherwise the pair
// whose alias matches wantAlias is used, or ErrAliasNotFound if none
// does.
func ResolveKey(pairs []KeyPair, wantAlias *backend.KeyAlias) (*backend.KeyAlias, *backend.DataKey, error) {
	if len(pairs) == 0 {
		return nil, nil, ErrKeyfileEmpty
	}

	if wantAlias == nil {
		return &pairs[0].Alias, &pairs[0].Key, nil
	}

	for i := range pairs {
		if pairs[i].Alias == *wantAlias {
			return &pairs[i].Alias, &pairs[i].Key, nil
		}
	}

	return nil, nil, fmt.Errorf("%w: %x", ErrAliasNotFound, *wantAlias)
}

func decodeHexFixed(s string, size int) ([]byte, error) {
	buf, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex value: %w", err)
	}

	if len(buf) != size {
		return nil, fmt.Errorf("expected %d bytes, got %d", size, len(buf))
	}

	return buf, nil
}
