package types

import (
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
)

var (
	ErrCorruption     = errors.New("data corruption detected")
	ErrStorage        = errors.New("storage error")
	ErrSchemaMismatch = errors.New("schema mismatch")
)

type CorruptionKind int

// String returns the kind as a string
func (k CorruptionKind) String() string {
	switch k {
	case KindOutOfOrderClustering:
		return "OutOfOrderClustering"
	case KindOutOfOrderPartition:
		return "OutOfOrderPartition"
	case KindDuplicatePartitionStart:
		return "DuplicatePartitionStart"
	case KindMisplacedStaticRow:
		return "MisplacedStaticRow"
	case KindMissingPartitionStart:
		return "MissingPartitionStart"
	case KindTruncatedPartition:
		return "TruncatedPartition"
	case KindBadChecksum:
		return "BadChecksum"
	case KindBadMagic:
		return "BadMagic"
	default:
		return "Unknown"
	}
}

// A list of all the possible kinds of corruption
const (
	KindOutOfOrderClustering CorruptionKind = iota
	KindOutOfOrderPartition
	KindDuplicatePartitionStart
	KindMisplacedStaticRow
	KindMissingPartitionStart
	KindTruncatedPartition
	KindBadChecksum
	KindBadMagic
)

// CorruptionError reports a fragment sequence or stored segment that violates
// the structural or ordering invariants. The producer that reports it makes no
// further progress.
type CorruptionError struct {
	Kind    CorruptionKind
	Message string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("corruption detected: kind=%s: %s", e.Kind, e.Message)
}

func (e *CorruptionError) Is(target error) bool {
	if target == ErrCorruption {
		return true
	}
	_, ok := target.(*CorruptionError)
	return ok
}

// Corruptf builds a CorruptionError from a format string.
func Corruptf(kind CorruptionKind, f string, args ...any) error {
	return &CorruptionError{Kind: kind, Message: fmt.Sprintf(f, args...)}
}

// StorageError reports a backing store failure. It is never retried here;
// retry policy belongs to the caller.
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: path=%s: %s", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool {
	if target == ErrStorage {
		return true
	}
	_, ok := target.(*StorageError)
	return ok
}

// SchemaMismatchError reports fragments or segments combined across
// different schema instances.
type SchemaMismatchError struct {
	Want ulid.ULID
	Got  ulid.ULID
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: want=%s got=%s", e.Want, e.Got)
}

func (e *SchemaMismatchError) Is(target error) bool {
	if target == ErrSchemaMismatch {
		return true
	}
	_, ok := target.(*SchemaMismatchError)
	return ok
}
