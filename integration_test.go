package tansu

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tansudb/tansu/backup"
	"github.com/tansudb/tansu/core"
	"github.com/tansudb/tansu/db"
)

// TestFunc is the signature for test functions that work with any store
type TestFunc func(t *testing.T, col *db.Collection)

// runWithBothStores runs a test function with both memory and file storage
func runWithBothStores(t *testing.T, testFunc TestFunc) {
	identity := core.Identity{Name: "test", Email: "test@test.com"}

	t.Run("Memory", func(t *testing.T) {
		col, err := OpenMemory(db.Options{Name: "it", Identity: identity})
		if err != nil {
			t.Fatalf("Failed to open memory collection: %v", err)
		}
		testFunc(t, col)
	})

	t.Run("File", func(t *testing.T) {
		col, err := Open(filepath.Join(t.TempDir(), "it"), db.Options{Name: "it", Identity: identity})
		if err != nil {
			t.Fatalf("Failed to open file collection: %v", err)
		}
		defer col.Close()
		testFunc(t, col)
	})
}

func commitOne(t *testing.T, col *db.Collection, message string, stage func(txn *db.Txn) error) *db.Snapshot {
	t.Helper()
	txn, err := col.Begin(context.Background())
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	if err := stage(txn); err != nil {
		txn.Discard()
		t.Fatalf("Failed to stage: %v", err)
	}
	snap, err := txn.Commit(message)
	if err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}
	return snap
}

// TestIntegrationWorkflow walks a collection through its whole lifecycle:
// inserts, queries, updates, deletes, point-in-time reads and rollback.
func TestIntegrationWorkflow(t *testing.T) {
	runWithBothStores(t, func(t *testing.T, col *db.Collection) {
		ctx := context.Background()

		// Seed employees in one atomic transaction.
		seeded := commitOne(t, col, "seed employees", func(txn *db.Txn) error {
			for _, e := range []struct {
				key    string
				fields core.Fields
			}{
				{"emp:1", core.Fields{"name": "Alice", "department": "Engineering", "salary": 80000}},
				{"emp:2", core.Fields{"name": "Bob", "department": "Engineering", "salary": 75000}},
				{"emp:3", core.Fields{"name": "Charlie", "department": "Sales", "salary": 60000}},
				{"emp:4", core.Fields{"name": "Diana", "department": "Marketing", "salary": 65000}},
			} {
				if err := txn.Insert(e.key, e.fields); err != nil {
					return err
				}
			}
			return nil
		})

		if seeded.Count() != 4 {
			t.Fatalf("Expected 4 documents, got %d", seeded.Count())
		}

		// Query by field equality.
		docs, err := seeded.FindAll(db.Filter{Eq: map[string]any{"department": "Engineering"}})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(docs) != 2 {
			t.Errorf("Expected 2 engineers, got %d", len(docs))
		}

		// Query by range.
		docs, err = seeded.FindAll(db.Filter{Ranges: map[string]db.Range{"salary": {Min: 70000}}})
		if err != nil {
			t.Fatalf("Range query failed: %v", err)
		}
		if len(docs) != 2 {
			t.Errorf("Expected 2 documents with salary >= 70000, got %d", len(docs))
		}

		// Update and delete in one transaction.
		changed := commitOne(t, col, "promote alice, drop charlie", func(txn *db.Txn) error {
			if err := txn.Update("emp:1", core.Fields{"name": "Alice", "department": "Engineering", "salary": 95000}); err != nil {
				return err
			}
			return txn.Delete("emp:3")
		})

		doc, err := changed.Get("emp:1")
		if err != nil {
			t.Fatalf("Failed to get updated document: %v", err)
		}
		if doc.Fields["salary"] != float64(95000) {
			t.Errorf("Update not visible: %v", doc.Fields)
		}
		if _, err := changed.Get("emp:3"); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("Expected emp:3 gone, got %v", err)
		}

		// The seeded snapshot still shows the pre-change state.
		old, err := col.At(seeded.ID())
		if err != nil {
			t.Fatalf("Failed to resolve historical snapshot: %v", err)
		}
		if _, err := old.Get("emp:3"); err != nil {
			t.Errorf("Historical snapshot lost emp:3: %v", err)
		}

		// History: changed, seeded, root.
		var ids []string
		for snap := range col.History() {
			ids = append(ids, snap.ID())
		}
		if len(ids) != 3 || ids[0] != changed.ID() || ids[1] != seeded.ID() {
			t.Errorf("Unexpected history: %v", ids)
		}

		// Rollback restores the seeded state as a new head.
		reverted, err := col.Rollback(ctx, seeded.ID())
		if err != nil {
			t.Fatalf("Rollback failed: %v", err)
		}
		if reverted.Count() != 4 {
			t.Errorf("Expected 4 documents after rollback, got %d", reverted.Count())
		}
		doc, err = reverted.Get("emp:1")
		if err != nil {
			t.Fatalf("Failed to get after rollback: %v", err)
		}
		if doc.Fields["salary"] != float64(80000) {
			t.Errorf("Rollback did not restore salary: %v", doc.Fields)
		}
	})
}

// TestIntegrationWriterHandoff verifies the single-writer discipline: a
// second transaction blocks until the first commits and then builds on its
// result.
func TestIntegrationWriterHandoff(t *testing.T) {
	runWithBothStores(t, func(t *testing.T, col *db.Collection) {
		ctx := context.Background()

		first, err := col.Begin(ctx)
		if err != nil {
			t.Fatalf("Failed to begin first transaction: %v", err)
		}
		if err := first.Insert("a", core.Fields{"n": 1}); err != nil {
			t.Fatalf("Failed to insert: %v", err)
		}

		var second *db.Snapshot
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			txn, err := col.Begin(ctx)
			if err != nil {
				t.Errorf("Second Begin failed: %v", err)
				return
			}
			if _, err := txn.Base().Get("a"); err != nil {
				t.Errorf("Second writer does not see first commit: %v", err)
			}
			if err := txn.Insert("b", core.Fields{"n": 2}); err != nil {
				t.Errorf("Failed to insert: %v", err)
			}
			second, err = txn.Commit("")
			if err != nil {
				t.Errorf("Second commit failed: %v", err)
			}
		}()

		time.Sleep(20 * time.Millisecond)
		firstSnap, err := first.Commit("")
		if err != nil {
			t.Fatalf("First commit failed: %v", err)
		}
		wg.Wait()

		info, err := second.Info()
		if err != nil {
			t.Fatalf("Failed to read commit info: %v", err)
		}
		if info.Parent != firstSnap.ID() {
			t.Errorf("Second commit parent %s, expected %s", info.Parent, firstSnap.ID())
		}
		if second.Count() != 2 {
			t.Errorf("Expected both documents, got %d", second.Count())
		}
	})
}

// TestIntegrationBackupRestore exports a snapshot and restores it into a
// fresh collection.
func TestIntegrationBackupRestore(t *testing.T) {
	runWithBothStores(t, func(t *testing.T, col *db.Collection) {
		ctx := context.Background()

		snap := commitOne(t, col, "seed", func(txn *db.Txn) error {
			if err := txn.Insert("a", core.Fields{"n": 1}); err != nil {
				return err
			}
			return txn.Insert("b", core.Fields{"n": 2})
		})

		archive := filepath.Join(t.TempDir(), "snapshot.tar.gz")
		if err := backup.Export(ctx, snap, archive, nil); err != nil {
			t.Fatalf("Export failed: %v", err)
		}

		restored, err := OpenMemory(db.Options{Name: "restored"})
		if err != nil {
			t.Fatalf("Failed to open target collection: %v", err)
		}
		manifest, imported, err := backup.Import(ctx, restored, archive, nil)
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}
		if manifest.Documents != 2 || imported.Count() != 2 {
			t.Errorf("Expected 2 documents restored, got manifest=%d count=%d", manifest.Documents, imported.Count())
		}
	})
}

// TestIntegrationPersistenceAcrossReopen commits, closes, reopens from disk
// and checks data and history survive.
func TestIntegrationPersistenceAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "persist")

	col, err := Open(dir, db.Options{Name: "persist"})
	if err != nil {
		t.Fatalf("Failed to open: %v", err)
	}
	snap := commitOne(t, col, "first", func(txn *db.Txn) error {
		return txn.Insert("a", core.Fields{"n": 1})
	})
	col.Close()

	col, err = Open(dir, db.Options{})
	if err != nil {
		t.Fatalf("Failed to reopen: %v", err)
	}
	defer col.Close()

	if col.Name() != "persist" {
		t.Errorf("Collection name not restored, got %q", col.Name())
	}
	current, err := col.Current()
	if err != nil {
		t.Fatalf("Failed to get current snapshot: %v", err)
	}
	if current.ID() != snap.ID() {
		t.Errorf("Head moved across reopen: %s vs %s", current.ID(), snap.ID())
	}
	if _, err := current.Get("a"); err != nil {
		t.Errorf("Document lost across reopen: %v", err)
	}
}
