// Package tansu is an embedded, transactional document store that persists
// every collection as a commit history in a git-compatible object store.
// Every committed transaction is a commit; every commit is an immutable,
// queryable snapshot, so point-in-time reads, history walks, and rollbacks
// come for free.
//
// # Quick Start
//
// Open a collection backed by a directory and commit a document:
//
//	col, _ := tansu.Open("/var/lib/myapp/users", db.Options{Name: "users"})
//	defer col.Close()
//
//	txn, _ := col.Begin(ctx)
//	txn.Insert("user:alice", core.Fields{"name": "alice", "age": 31})
//	snap, _ := txn.Commit("add alice")
//
//	doc, _ := snap.Get("user:alice")
//
// Snapshots answer queries without blocking writers:
//
//	for key, doc := range snap.Find(db.Filter{KeyPrefix: "user:"}) {
//		...
//	}
//
// Historical states stay addressable:
//
//	old, _ := col.At(snap.ID())
//	col.Rollback(ctx, snap.ID())
package tansu

import "github.com/tansudb/tansu/db"

// Open opens the collection stored at dir, creating it if the directory is
// empty or absent.
func Open(dir string, opts db.Options) (*db.Collection, error) {
	return db.Open(dir, opts)
}

// OpenMemory creates an ephemeral in-memory collection, useful for tests.
func OpenMemory(opts db.Options) (*db.Collection, error) {
	return db.OpenMemory(opts)
}
