// Package gs is the object store adapter: a thin contract over a
// git-compatible, content-addressed repository.
//
// It exposes exactly what the transactional engine needs from the
// substrate: durable writes of content blobs, hierarchical trees and
// immutable commit nodes with parent links, plus the current branch tip
// and a compare-and-swap primitive to advance it.
//
// All objects are written straight through the repository storer; there is
// no worktree and no index. Stores are either memory-backed (tests,
// ephemeral collections) or filesystem-backed with exclusive access.
package gs
