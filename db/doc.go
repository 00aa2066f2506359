// Package db implements the transactional document engine on top of the
// object store adapter.
//
// A Collection is an independently versioned container of documents backed
// by one repository. All writes go through a Transaction, which stages a
// batch of mutations against a base Snapshot and commits them atomically
// as exactly one new commit. Reads go through Snapshots, which are
// immutable, point-in-time views safe for concurrent use.
//
//	col, err := db.Open("/var/lib/app/users", db.Options{})
//	txn, err := col.Begin(ctx)
//	txn.Insert("jane", core.Fields{"age": 30})
//	snap, err := txn.Commit("add jane")
//
//	doc, err := snap.Get("jane")
//	for key, doc := range snap.Find(db.Filter{KeyPrefix: "ja"}) { ... }
//
// Exactly one write transaction may be in flight per collection; readers
// never block writers and writers never block readers.
package db
