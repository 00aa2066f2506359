package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tansudb/tansu/codec"
	"github.com/tansudb/tansu/core"
)

func testCollection(t *testing.T) *Collection {
	t.Helper()
	col, err := OpenMemory(Options{Name: "test"})
	if err != nil {
		t.Fatalf("Failed to open collection: %v", err)
	}
	return col
}

func mustCommit(t *testing.T, col *Collection, stage func(*Txn)) *Snapshot {
	t.Helper()
	txn, err := col.Begin(context.Background())
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	stage(txn)
	snap, err := txn.Commit("")
	if err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}
	return snap
}

func TestOpenMemoryDefaults(t *testing.T) {
	col := testCollection(t)

	if col.Name() != "test" {
		t.Errorf("Expected name test, got %s", col.Name())
	}
	if col.Codec().Name() != "json" {
		t.Errorf("Expected default json codec, got %s", col.Codec().Name())
	}

	snap, err := col.Current()
	if err != nil {
		t.Fatalf("Failed to get current snapshot: %v", err)
	}
	if snap.Count() != 0 {
		t.Errorf("Expected empty collection, got %d documents", snap.Count())
	}
}

func TestOpenPersistsCodecChoice(t *testing.T) {
	dir := t.TempDir()

	col, err := Open(dir, Options{Codec: codec.YAML{}})
	if err != nil {
		t.Fatalf("Failed to create collection: %v", err)
	}
	col.Close()

	// Reopen without specifying a codec; the persisted choice wins.
	col, err = Open(dir, Options{})
	if err != nil {
		t.Fatalf("Failed to reopen collection: %v", err)
	}
	defer col.Close()

	if col.Codec().Name() != "yaml" {
		t.Errorf("Expected persisted yaml codec, got %s", col.Codec().Name())
	}
}

func TestOpenReturnsSameInstance(t *testing.T) {
	dir := t.TempDir()

	col1, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("Failed to open collection: %v", err)
	}
	defer col1.Close()

	col2, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("Failed to open collection again: %v", err)
	}
	if col1 != col2 {
		t.Error("Expected the same collection instance for the same location")
	}
}

func TestOpenRejectsForeignLocation(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "data.bin"), []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to seed directory: %v", err)
	}

	_, err := Open(dir, Options{})
	if !errors.Is(err, core.ErrStorageUnavailable) {
		t.Errorf("Expected ErrStorageUnavailable, got %v", err)
	}
}

func TestDataSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	col, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("Failed to open collection: %v", err)
	}
	mustCommit(t, col, func(txn *Txn) {
		txn.Insert("a", core.Fields{"v": 1})
	})
	col.Close()

	col, err = Open(dir, Options{})
	if err != nil {
		t.Fatalf("Failed to reopen collection: %v", err)
	}
	defer col.Close()

	snap, err := col.Current()
	if err != nil {
		t.Fatalf("Failed to get current snapshot: %v", err)
	}
	doc, err := snap.Get("a")
	if err != nil {
		t.Fatalf("Failed to get document after reopen: %v", err)
	}
	if doc.Fields["v"] != float64(1) {
		t.Errorf("Unexpected payload after reopen: %v", doc.Fields)
	}
}
