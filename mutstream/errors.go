package mutstream

import (
	"errors"

	"github.com/mutstream/mutstream-go/internal/types"
)

// NOTE: The error taxonomy lives in internal/types so every layer can report
// it; these aliases are the public surface. Callers match with errors.Is
// against the sentinels below.

type (
	CorruptionError     = types.CorruptionError
	StorageError        = types.StorageError
	SchemaMismatchError = types.SchemaMismatchError
)

var (
	// ErrCorruption matches any fragment sequence or stored segment that
	// violates the structural or ordering invariants.
	ErrCorruption = types.ErrCorruption

	// ErrStorage matches any backing store failure. Failures are reported
	// once and never retried here.
	ErrStorage = types.ErrStorage

	// ErrSchemaMismatch matches fragments or segments combined across
	// different schema instances.
	ErrSchemaMismatch = types.ErrSchemaMismatch

	// ErrNotForwarding is returned by FastForward on a reader that was not
	// constructed in forwarding mode.
	ErrNotForwarding = errors.New("reader was not constructed in forwarding mode")

	// ErrInvalidFastForward is returned by FastForward when no partition is
	// open; the forwarding window only applies within the current partition.
	ErrInvalidFastForward = errors.New("fast forward requires an open partition")
)
