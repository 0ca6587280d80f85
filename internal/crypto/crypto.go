// Package crypto implements the data-key lifecycle for encryption-
// capable drives: setting and clearing the tape data key via SPOUT-
// style requests, querying the next block's encryption status via
// SPIN, and forcing a cartridge read-only when encrypted and plaintext
// content would otherwise mix on one tape (C7).
package crypto

import (
	"context"

	"go.uber.org/zap"

	"github.com/benmcclelland/ltfscore/internal/backend"
)

// Lifecycle tracks whether a data key is currently set on the device and
// drives the SetKey/ClearKey/GetKeyAlias sequencing around it.
type Lifecycle struct {
	backend      backend.Backend
	log          *zap.Logger
	forceReadOnly func()

	isDataKeySet bool
}

// NewLifecycle returns a Lifecycle bound to b. forceReadOnly is called
// when a pre-existing, non-empty cartridge is about to have its first
// key set (§4.7 step 3).
func NewLifecycle(b backend.Backend, log *zap.Logger, forceReadOnly func()) *Lifecycle {
	return &Lifecycle{backend: b, log: log, forceReadOnly: forceReadOnly}
}

// IsDataKeySet reports whether a data key is currently latched.
func (l *Lifecycle) IsDataKeySet() bool {
	return l.isDataKeySet
}

// SetKey implements §4.7's set_key: read the current position, issue the
// SPOUT-equivalent request via the backend, force read-only if the
// cartridge already had content before this key was set, and latch
// is_data_key_set.
func (l *Lifecycle) SetKey(ctx context.Context, alias *backend.KeyAlias, key *backend.DataKey) error {
	pos, err := l.backend.ReadPosition(ctx)
	if err != nil {
		return err
	}

	if err := l.backend.SetKey(ctx, alias, key); err != nil {
		return err
	}

	if pos.Block != 0 {
		// A mix of encrypted and plaintext blocks on one tape is
		// incompatible with the drive's block-level encryption mode.
		l.forceReadOnly()
	}

	l.isDataKeySet = alias != nil

	return nil
}

// ClearKey implements §4.7's clear_key: a no-op SetKey(nil, nil) issued
// only if a key is currently set, to avoid logging spam.
func (l *Lifecycle) ClearKey(ctx context.Context) error {
	if !l.isDataKeySet {
		return nil
	}

	return l.SetKey(ctx, nil, nil)
}

// GetKeyAlias implements §4.7's get_key_alias: issue the SPIN-equivalent
// query and return the DKi the drive reports for the next block, if any.
func (l *Lifecycle) GetKeyAlias(ctx context.Context) (*backend.KeyAlias, backend.EncryptionStatus, error) {
	alias, status, err := l.backend.GetKeyAlias(ctx)
	if err != nil {
		return nil, status, err
	}

	switch status {
	case backend.EncryptionStatusSupportedAlgorithm,
		backend.EncryptionStatusUnsupportedAlgorithm,
		backend.EncryptionStatusOtherKey:
		return alias, status, nil
	default:
		return nil, status, nil
	}
}
