package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/tansudb/tansu/core"
	"github.com/tansudb/tansu/gs"
)

type opKind int

const (
	opInsert opKind = iota
	opUpdate
	opDelete
)

type stagedOp struct {
	kind   opKind
	key    string
	fields core.Fields
}

// Txn is an ordered batch of pending document mutations accumulated against
// a base snapshot. It holds the collection's write guard from Begin until
// Commit or Discard; commit is all-or-nothing.
type Txn struct {
	col     *Collection
	base    *Snapshot
	ops     []stagedOp
	pending map[string]int // key -> index of latest staged op
	release func()
	closed  bool
}

// Begin opens a write transaction against the current snapshot, blocking
// until no other write transaction is in flight on this collection. The
// wait is abandoned when ctx is cancelled.
func (c *Collection) Begin(ctx context.Context) (*Txn, error) {
	release, err := c.acquireWrite(ctx)
	if err != nil {
		return nil, err
	}

	base, err := c.Current()
	if err != nil {
		release()
		return nil, err
	}

	return &Txn{
		col:     c,
		base:    base,
		pending: make(map[string]int),
		release: release,
	}, nil
}

// Base returns the snapshot this transaction was opened against.
func (t *Txn) Base() *Snapshot { return t.base }

// Len returns the number of staged operations.
func (t *Txn) Len() int { return len(t.ops) }

// exists resolves key existence against the base snapshot merged with the
// operations already staged in this transaction.
func (t *Txn) exists(key string) (bool, error) {
	if idx, ok := t.pending[key]; ok {
		return t.ops[idx].kind != opDelete, nil
	}
	return t.base.has(key)
}

func (t *Txn) stage(op stagedOp) {
	t.pending[op.key] = len(t.ops)
	t.ops = append(t.ops, op)
}

// Insert stages a new document. It fails fast with ErrDuplicateKey when the
// key already exists; the transaction stays open and durable state is
// untouched.
func (t *Txn) Insert(key string, fields core.Fields) error {
	if t.closed {
		return core.ErrTxnClosed
	}
	if key == "" {
		return core.ErrInvalidKey
	}

	exists, err := t.exists(key)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %q", core.ErrDuplicateKey, key)
	}

	t.stage(stagedOp{kind: opInsert, key: key, fields: fields})
	return nil
}

// InsertNew stages a new document under a generated key and returns it.
func (t *Txn) InsertNew(fields core.Fields) (string, error) {
	key := core.NewKey()
	if err := t.Insert(key, fields); err != nil {
		return "", err
	}
	return key, nil
}

// Update stages a replacement payload for an existing document, failing
// fast with ErrKeyNotFound when the key does not exist.
func (t *Txn) Update(key string, fields core.Fields) error {
	if t.closed {
		return core.ErrTxnClosed
	}

	exists, err := t.exists(key)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %q", core.ErrKeyNotFound, key)
	}

	t.stage(stagedOp{kind: opUpdate, key: key, fields: fields})
	return nil
}

// Delete stages the removal of an existing document, failing fast with
// ErrKeyNotFound when the key does not exist.
func (t *Txn) Delete(key string) error {
	if t.closed {
		return core.ErrTxnClosed
	}

	exists, err := t.exists(key)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %q", core.ErrKeyNotFound, key)
	}

	t.stage(stagedOp{kind: opDelete, key: key})
	return nil
}

// Discard closes the transaction, releasing the write guard and leaving the
// current snapshot untouched. Safe to call on an already closed transaction.
func (t *Txn) Discard() {
	if t.closed {
		return
	}
	t.closed = true
	t.release()
	discardsTotal.Inc()
}

// Commit applies every staged operation as exactly one new commit and
// advances the current snapshot pointer to it. On any failure nothing
// becomes visible and the prior snapshot remains current; either way the
// transaction is closed and the write guard released. A transaction with no
// staged operations, or whose staged operations cancel out, commits as a
// no-op returning the base snapshot.
func (t *Txn) Commit(message string) (*Snapshot, error) {
	if t.closed {
		return nil, core.ErrTxnClosed
	}
	defer func() {
		t.closed = true
		t.release()
	}()

	if len(t.ops) == 0 {
		return t.base, nil
	}

	now := time.Now()
	if message == "" {
		message = fmt.Sprintf("update: %d operation(s)", len(t.ops))
	}

	// Encode every payload before writing anything, so a serialization
	// failure aborts the transaction with zero durable writes.
	type write struct {
		key  string
		data []byte
	}
	var writes []write
	var deletes []string

	for i, op := range t.ops {
		if t.pending[op.key] != i {
			continue // superseded by a later op on the same key
		}
		if op.kind == opDelete {
			deletes = append(deletes, op.key)
			continue
		}

		createdAt := now
		if prior, err := t.base.Get(op.key); err == nil {
			createdAt = prior.Meta.CreatedAt
		} else if !errors.Is(err, core.ErrNotFound) {
			return nil, err
		}

		env := envelope{
			Meta:   core.Metadata{CreatedAt: createdAt, UpdatedAt: now},
			Fields: op.fields,
		}
		data, err := t.col.codec.Encode(env)
		if err != nil {
			return nil, &core.SerializationError{Codec: t.col.codec.Name(), Key: op.key, Err: err}
		}
		writes = append(writes, write{key: op.key, data: data})
	}

	// Blobs written past this point that never get referenced are abandoned
	// as unreachable objects, not rolled back.
	changes := make([]gs.Change, 0, len(writes)+len(deletes))
	for _, w := range writes {
		blob, err := t.col.store.WriteBlob(w.data)
		if err != nil {
			return nil, err
		}
		path, err := docPath(w.key)
		if err != nil {
			return nil, err
		}
		changes = append(changes, gs.Change{Path: path, Blob: blob})
	}
	for _, key := range deletes {
		path, err := docPath(key)
		if err != nil {
			return nil, err
		}
		changes = append(changes, gs.Change{Path: path, Delete: true})
	}

	baseCommit, err := t.col.store.Commit(t.base.hash)
	if err != nil {
		return nil, err
	}
	newTree, err := t.col.store.ApplyChanges(baseCommit.TreeHash, changes)
	if err != nil {
		return nil, err
	}
	if newTree == baseCommit.TreeHash {
		// Staged operations cancelled out; nothing to record.
		return t.base, nil
	}

	commit, err := t.col.store.WriteCommit(newTree, []plumbing.Hash{t.base.hash}, t.col.identity, now, message)
	if err != nil {
		return nil, err
	}

	// The pointer must still equal the base snapshot. Under correct guard
	// use a mismatch is unreachable; it is surfaced, never retried.
	if err := t.col.store.CompareAndSetHead(gs.MainRef, t.base.hash, commit); err != nil {
		if errors.Is(err, core.ErrConcurrentModification) {
			conflictsTotal.Inc()
		}
		return nil, err
	}

	commitsTotal.Inc()
	return t.col.snapshot(commit), nil
}
