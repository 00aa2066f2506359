package backup

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tansudb/tansu/core"
	"github.com/tansudb/tansu/db"
)

func testCollection(t *testing.T) *db.Collection {
	t.Helper()
	col, err := db.OpenMemory(db.Options{Name: "backup-test"})
	if err != nil {
		t.Fatalf("Failed to open collection: %v", err)
	}
	return col
}

func seed(t *testing.T, col *db.Collection, docs map[string]core.Fields) *db.Snapshot {
	t.Helper()
	txn, err := col.Begin(context.Background())
	if err != nil {
		t.Fatalf("Failed to begin: %v", err)
	}
	for key, fields := range docs {
		if err := txn.Insert(key, fields); err != nil {
			t.Fatalf("Failed to insert %q: %v", key, err)
		}
	}
	snap, err := txn.Commit("seed")
	if err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}
	return snap
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := testCollection(t)
	snap := seed(t, src, map[string]core.Fields{
		"user:alice": {"name": "alice", "age": 31},
		"user:bob":   {"name": "bob", "age": 25},
		"group:ops":  {"name": "ops"},
	})

	dest := filepath.Join(t.TempDir(), "backup.tar.gz")
	if err := Export(ctx, snap, dest, nil); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	target := testCollection(t)
	manifest, imported, err := Import(ctx, target, dest, nil)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if manifest.Collection != "backup-test" {
		t.Errorf("Unexpected manifest collection: %q", manifest.Collection)
	}
	if manifest.Snapshot != snap.ID() {
		t.Errorf("Manifest snapshot %s, expected %s", manifest.Snapshot, snap.ID())
	}
	if manifest.Documents != 3 {
		t.Errorf("Expected 3 documents in manifest, got %d", manifest.Documents)
	}

	if imported.Count() != 3 {
		t.Fatalf("Expected 3 documents after import, got %d", imported.Count())
	}
	doc, err := imported.Get("user:alice")
	if err != nil {
		t.Fatalf("Failed to get imported document: %v", err)
	}
	if doc.Fields["name"] != "alice" || doc.Fields["age"] != float64(31) {
		t.Errorf("Unexpected imported payload: %v", doc.Fields)
	}
	if doc.Meta.CreatedAt.IsZero() {
		t.Error("Imported document lost creation timestamp")
	}
}

func TestImportUpsertsExistingKeys(t *testing.T) {
	ctx := context.Background()
	src := testCollection(t)
	snap := seed(t, src, map[string]core.Fields{
		"a": {"v": "archived"},
		"b": {"v": "new"},
	})

	dest := filepath.Join(t.TempDir(), "backup.tar.gz")
	if err := Export(ctx, snap, dest, nil); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	target := testCollection(t)
	seed(t, target, map[string]core.Fields{"a": {"v": "live"}})

	_, imported, err := Import(ctx, target, dest, nil)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	doc, err := imported.Get("a")
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if doc.Fields["v"] != "archived" {
		t.Errorf("Expected archive value to win, got %v", doc.Fields)
	}
	if _, err := imported.Get("b"); err != nil {
		t.Errorf("Missing inserted key after import: %v", err)
	}
}

func TestImportRejectsChecksumMismatch(t *testing.T) {
	manifest := Manifest{
		Collection: "x",
		Snapshot:   "deadbeef",
		CreatedAt:  time.Now(),
		Documents:  1,
		Checksums:  map[string]string{"docs/61": "0000"}, // wrong on purpose
	}
	manifestData, _ := json.Marshal(manifest)
	docData, _ := json.Marshal(archiveDoc{Key: "a", Fields: core.Fields{"n": 1}})

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range []struct {
		name string
		data []byte
	}{{manifestName, manifestData}, {"docs/61", docData}} {
		tw.WriteHeader(&tar.Header{Name: e.name, Mode: 0644, Size: int64(len(e.data))})
		tw.Write(e.data)
	}
	tw.Close()
	gz.Close()

	path := filepath.Join(t.TempDir(), "tampered.tar.gz")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write archive: %v", err)
	}

	target := testCollection(t)
	_, _, err := Import(context.Background(), target, path, nil)
	if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Errorf("Expected checksum mismatch error, got %v", err)
	}

	// Nothing staged from a rejected archive.
	snap, _ := target.Current()
	if snap.Count() != 0 {
		t.Errorf("Rejected import left %d documents behind", snap.Count())
	}
}

func TestImportMissingSource(t *testing.T) {
	target := testCollection(t)
	_, _, err := Import(context.Background(), target, filepath.Join(t.TempDir(), "absent.tar.gz"), nil)
	if err == nil {
		t.Error("Expected error for missing archive")
	}
}

func TestDetectScheme(t *testing.T) {
	cases := map[string]urlScheme{
		"s3://bucket/key":            schemeS3,
		"S3://bucket/key":            schemeS3,
		"https://host/archive":       schemeHTTPS,
		"http://host/archive":        schemeHTTP,
		"file:///tmp/a.tar.gz":       schemeFile,
		"/tmp/a.tar.gz":              schemeLocal,
		"relative/path/a.tar.gz":     schemeLocal,
		"backup-2024-01-01.tar.gz":   schemeLocal,
		"s3-lookalike/path/a.tar.gz": schemeLocal,
	}
	for input, want := range cases {
		if got := detectScheme(input); got != want {
			t.Errorf("detectScheme(%q) = %v, expected %v", input, got, want)
		}
	}
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := parseS3URL("s3://my-bucket/path/to/archive.tar.gz")
	if err != nil {
		t.Fatalf("parseS3URL failed: %v", err)
	}
	if bucket != "my-bucket" || key != "path/to/archive.tar.gz" {
		t.Errorf("Unexpected parse result: %q %q", bucket, key)
	}

	for _, bad := range []string{"s3://", "s3://bucket", "s3://bucket/"} {
		if _, _, err := parseS3URL(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}
