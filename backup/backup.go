// Package backup exports collection snapshots as portable archives and
// imports them back. Archives are tar.gz files written to a local path, an
// s3:// URL, or (import only) an http(s) URL.
//
// The archive format is independent of the collection codec: documents are
// stored as JSON entries, and a manifest carries a blake3 checksum per
// entry so imports detect corruption before staging anything.
package backup

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/tansudb/tansu/core"
	"github.com/tansudb/tansu/db"
	"lukechampine.com/blake3"
)

const (
	manifestName = "manifest.json"
	docDir       = "docs"
)

// Manifest describes an archive's origin and contents.
type Manifest struct {
	Collection string            `json:"collection"`
	Snapshot   string            `json:"snapshot"`
	CreatedAt  time.Time         `json:"created_at"`
	Documents  int               `json:"documents"`
	Checksums  map[string]string `json:"checksums"` // entry name -> blake3
}

type archiveDoc struct {
	Key    string        `json:"key"`
	Fields core.Fields   `json:"fields"`
	Meta   core.Metadata `json:"meta"`
}

func checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Export writes every document of the snapshot to dest. cfg may be nil for
// local destinations.
func Export(ctx context.Context, snap *db.Snapshot, dest string, cfg *S3Config) error {
	docs, err := snap.FindAll(db.All())
	if err != nil {
		return fmt.Errorf("failed to scan snapshot: %w", err)
	}

	manifest := Manifest{
		Collection: snap.Collection().Name(),
		Snapshot:   snap.ID(),
		CreatedAt:  time.Now(),
		Documents:  len(docs),
		Checksums:  make(map[string]string, len(docs)),
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	type entry struct {
		name string
		data []byte
	}
	entries := make([]entry, 0, len(docs))
	for _, doc := range docs {
		data, err := json.Marshal(archiveDoc{Key: doc.Key, Fields: doc.Fields, Meta: doc.Meta})
		if err != nil {
			return fmt.Errorf("failed to marshal document %q: %w", doc.Key, err)
		}
		name := path.Join(docDir, hex.EncodeToString([]byte(doc.Key)))
		manifest.Checksums[name] = checksum(data)
		entries = append(entries, entry{name: name, data: data})
	}

	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	write := func(name string, data []byte) error {
		hdr := &tar.Header{
			Name:    name,
			Mode:    0644,
			Size:    int64(len(data)),
			ModTime: manifest.CreatedAt,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("failed to write tar header for %s: %w", name, err)
		}
		if _, err := tw.Write(data); err != nil {
			return fmt.Errorf("failed to write tar entry %s: %w", name, err)
		}
		return nil
	}

	if err := write(manifestName, manifestData); err != nil {
		return err
	}
	for _, e := range entries {
		if err := write(e.name, e.data); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to finalize compression: %w", err)
	}

	return writeDest(ctx, dest, buf.Bytes(), cfg)
}

// Import reads an archive from src and applies its documents to the
// collection in one atomic transaction. Existing keys are updated, new
// keys inserted. Returns the manifest and the resulting snapshot.
func Import(ctx context.Context, col *db.Collection, src string, cfg *S3Config) (*Manifest, *db.Snapshot, error) {
	reader, err := openSrc(ctx, src, cfg)
	if err != nil {
		return nil, nil, err
	}
	defer reader.Close()

	gz, err := gzip.NewReader(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer gz.Close()

	var manifest *Manifest
	var docs []archiveDoc

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read archive: %w", err)
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read entry %s: %w", hdr.Name, err)
		}

		switch {
		case hdr.Name == manifestName:
			manifest = &Manifest{}
			if err := json.Unmarshal(data, manifest); err != nil {
				return nil, nil, fmt.Errorf("failed to parse manifest: %w", err)
			}
		case strings.HasPrefix(hdr.Name, docDir+"/"):
			if manifest == nil {
				return nil, nil, fmt.Errorf("archive entry %s precedes manifest", hdr.Name)
			}
			want, ok := manifest.Checksums[hdr.Name]
			if !ok || want != checksum(data) {
				return nil, nil, fmt.Errorf("checksum mismatch for entry %s", hdr.Name)
			}
			var doc archiveDoc
			if err := json.Unmarshal(data, &doc); err != nil {
				return nil, nil, fmt.Errorf("failed to parse entry %s: %w", hdr.Name, err)
			}
			docs = append(docs, doc)
		}
	}

	if manifest == nil {
		return nil, nil, fmt.Errorf("archive has no manifest")
	}
	if len(docs) != manifest.Documents {
		return nil, nil, fmt.Errorf("archive incomplete: manifest lists %d documents, found %d", manifest.Documents, len(docs))
	}

	txn, err := col.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}

	base := txn.Base()
	for _, doc := range docs {
		if _, err := base.Get(doc.Key); err == nil {
			err = txn.Update(doc.Key, doc.Fields)
		} else {
			err = txn.Insert(doc.Key, doc.Fields)
		}
		if err != nil {
			txn.Discard()
			return nil, nil, err
		}
	}

	snap, err := txn.Commit(fmt.Sprintf("import %d document(s) from %s", len(docs), src))
	if err != nil {
		return nil, nil, err
	}
	return manifest, snap, nil
}
