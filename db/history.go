package db

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/tansudb/tansu/core"
	"github.com/tansudb/tansu/gs"
)

// At returns the read-only snapshot addressed by a commit id, or
// ErrNotFound for an unknown or malformed id.
func (c *Collection) At(id string) (*Snapshot, error) {
	hash := plumbing.NewHash(id)
	if hash == plumbing.ZeroHash {
		return nil, fmt.Errorf("%w: commit %q", core.ErrNotFound, id)
	}
	if _, err := c.store.Commit(hash); err != nil {
		return nil, err
	}
	return c.snapshot(hash), nil
}

// History yields snapshots from the current one backward through parent
// links, terminating at the collection's root commit. The sequence is lazy
// and restartable; each iteration starts from the head current at that
// moment.
func (c *Collection) History() iter.Seq[*Snapshot] {
	return func(yield func(*Snapshot) bool) {
		head, err := c.store.Head(gs.MainRef)
		if err != nil || head == plumbing.ZeroHash {
			return
		}
		for hash := range c.store.WalkHistory(head) {
			if !yield(c.snapshot(hash)) {
				return
			}
		}
	}
}

// Rollback appends a new commit whose tree equals the target historical
// snapshot's tree. Existing commits are never rewritten; history stays
// append-only. Blocks like a write transaction.
func (c *Collection) Rollback(ctx context.Context, id string) (*Snapshot, error) {
	target, err := c.At(id)
	if err != nil {
		return nil, err
	}
	return c.revertTo(ctx, target, fmt.Sprintf("rollback to %s", id))
}

// RollbackN reverts the last n commits by appending a single commit whose
// tree equals the state n commits back. Fails with ErrBranchingHistory at a
// merge point; stops at the root commit when n exceeds the history length.
func (c *Collection) RollbackN(ctx context.Context, n int) (*Snapshot, error) {
	if n <= 0 {
		return c.Current()
	}

	head, err := c.Current()
	if err != nil {
		return nil, err
	}

	target := head.hash
	for i := 0; i < n; i++ {
		commit, err := c.store.Commit(target)
		if err != nil {
			return nil, err
		}
		if commit.NumParents() > 1 {
			return nil, fmt.Errorf("%w: commit %s", core.ErrBranchingHistory, target)
		}
		if commit.NumParents() == 0 {
			break
		}
		target = commit.ParentHashes[0]
	}

	return c.revertTo(ctx, c.snapshot(target), fmt.Sprintf("rollback %d commit(s)", n))
}

func (c *Collection) revertTo(ctx context.Context, target *Snapshot, message string) (*Snapshot, error) {
	release, err := c.acquireWrite(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	head, err := c.Current()
	if err != nil {
		return nil, err
	}

	targetCommit, err := c.store.Commit(target.hash)
	if err != nil {
		return nil, err
	}

	commit, err := c.store.WriteCommit(targetCommit.TreeHash, []plumbing.Hash{head.hash}, c.identity, time.Now(), message)
	if err != nil {
		return nil, err
	}
	if err := c.store.CompareAndSetHead(gs.MainRef, head.hash, commit); err != nil {
		return nil, err
	}

	rollbacksTotal.Inc()
	return c.snapshot(commit), nil
}
