package core

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateKey is returned when staging an insert for a key that
	// already exists in the base snapshot or earlier in the same transaction.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrKeyNotFound is returned when staging an update or delete for a key
	// that does not exist.
	ErrKeyNotFound = errors.New("key not found")

	// ErrNotFound is returned by read paths when a key, commit or object is
	// missing.
	ErrNotFound = errors.New("not found")

	// ErrConcurrentModification is returned when the head pointer moved
	// between a transaction's base snapshot and its commit. Under correct
	// use of the write guard this is unreachable and indicates the guard
	// was bypassed.
	ErrConcurrentModification = errors.New("concurrent modification of head")

	// ErrStorageUnavailable is returned when a collection location exists,
	// is non-empty and is not a valid backing store.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrTxnClosed is returned when staging or committing on a transaction
	// that was already committed or discarded.
	ErrTxnClosed = errors.New("transaction closed")

	// ErrInvalidKey is returned when a document key is empty.
	ErrInvalidKey = errors.New("invalid key")

	// ErrBranchingHistory is returned by relative rollback when the walk
	// reaches a commit with more than one parent.
	ErrBranchingHistory = errors.New("branching history")
)

// SerializationError wraps a codec failure. It aborts the enclosing
// transaction; nothing is written.
type SerializationError struct {
	Codec string
	Key   string
	Err   error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("codec %s: key %q: %v", e.Codec, e.Key, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// IoError wraps a failure of the underlying object store. It is fatal to
// the operation and never retried automatically.
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }
