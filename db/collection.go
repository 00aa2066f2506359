package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/tansudb/tansu/codec"
	"github.com/tansudb/tansu/core"
	"github.com/tansudb/tansu/gs"
)

// Collection metadata lives in its own namespace inside the tree, always
// JSON-encoded so a reader can discover the document codec before decoding
// any document.
const (
	metaDir  = ".tansu"
	metaPath = ".tansu/collection.json"
)

// Options configures a collection at open time. The codec is only consulted
// when the collection is created; existing collections use the codec
// recorded in their metadata.
type Options struct {
	Name     string
	Codec    codec.Codec
	Identity core.Identity
}

// Collection is a named, independently versioned container of documents.
// It owns the write guard and the reference to the current snapshot
// pointer; at most one write transaction is in flight at any instant.
type Collection struct {
	name     string
	location string
	store    *gs.Store
	codec    codec.Codec
	identity core.Identity
	guard    chan struct{}
}

type collectionMeta struct {
	Name      string    `json:"name"`
	Codec     string    `json:"codec"`
	CreatedAt time.Time `json:"created_at"`
}

// Collections already open in this process, keyed by absolute location.
// Reusing the instance keeps the single-writer guard per backing store.
var openCollections = xsync.NewMapOf[string, *Collection]()

// Open opens the collection at dir, creating the backing store if absent.
// Opening the same location twice in one process returns the same
// Collection instance.
func Open(dir string, opts Options) (*Collection, error) {
	location, err := filepath.Abs(dir)
	if err != nil {
		return nil, &core.IoError{Op: "resolve location", Err: err}
	}

	if col, ok := openCollections.Load(location); ok {
		return col, nil
	}

	store, err := gs.Open(dir)
	if err != nil {
		return nil, err
	}

	if opts.Name == "" {
		opts.Name = filepath.Base(location)
	}
	col, err := newCollection(store, location, opts)
	if err != nil {
		return nil, err
	}

	actual, _ := openCollections.LoadOrStore(location, col)
	return actual, nil
}

// OpenMemory creates an ephemeral, memory-backed collection. Memory
// collections are not registered process-wide.
func OpenMemory(opts Options) (*Collection, error) {
	store, err := gs.OpenMemory()
	if err != nil {
		return nil, err
	}
	if opts.Name == "" {
		opts.Name = "memory"
	}
	return newCollection(store, "", opts)
}

func newCollection(store *gs.Store, location string, opts Options) (*Collection, error) {
	if opts.Codec == nil {
		opts.Codec = codec.JSON{}
	}
	if opts.Identity == (core.Identity{}) {
		opts.Identity = core.DefaultIdentity
	}

	col := &Collection{
		name:     opts.Name,
		location: location,
		store:    store,
		codec:    opts.Codec,
		identity: opts.Identity,
		guard:    make(chan struct{}, 1),
	}

	head, err := store.Head(gs.MainRef)
	if err != nil {
		return nil, err
	}
	if head == plumbing.ZeroHash {
		head, err = col.initialize()
		if err != nil {
			return nil, err
		}
	}

	meta, err := col.loadMeta(head)
	if err != nil {
		return nil, err
	}
	col.name = meta.Name
	col.codec, err = codec.ByName(meta.Codec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	return col, nil
}

// initialize writes the root commit carrying the collection metadata. If
// another opener races us here, the CAS loses and we adopt their root.
func (c *Collection) initialize() (plumbing.Hash, error) {
	now := time.Now()
	meta := collectionMeta{
		Name:      c.name,
		Codec:     c.codec.Name(),
		CreatedAt: now,
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return plumbing.ZeroHash, &core.SerializationError{Codec: "json", Key: metaPath, Err: err}
	}

	blob, err := c.store.WriteBlob(data)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	tree, err := c.store.ApplyChanges(plumbing.ZeroHash, []gs.Change{{Path: metaPath, Blob: blob}})
	if err != nil {
		return plumbing.ZeroHash, err
	}
	commit, err := c.store.WriteCommit(tree, nil, c.identity, now, "initialize collection")
	if err != nil {
		return plumbing.ZeroHash, err
	}

	err = c.store.CompareAndSetHead(gs.MainRef, plumbing.ZeroHash, commit)
	if errors.Is(err, core.ErrConcurrentModification) {
		return c.store.Head(gs.MainRef)
	}
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return commit, nil
}

func (c *Collection) loadMeta(head plumbing.Hash) (collectionMeta, error) {
	tree, err := c.store.TreeOf(head)
	if err != nil {
		return collectionMeta{}, err
	}

	file, err := tree.File(metaPath)
	if err != nil {
		return collectionMeta{}, fmt.Errorf("%w: missing collection metadata", core.ErrStorageUnavailable)
	}
	contents, err := file.Contents()
	if err != nil {
		return collectionMeta{}, &core.IoError{Op: "read collection metadata", Err: err}
	}

	var meta collectionMeta
	if err := json.Unmarshal([]byte(contents), &meta); err != nil {
		return collectionMeta{}, fmt.Errorf("%w: corrupt collection metadata: %v", core.ErrStorageUnavailable, err)
	}
	return meta, nil
}

// Name returns the collection name recorded in its metadata.
func (c *Collection) Name() string { return c.name }

// Codec returns the document codec this collection was created with.
func (c *Collection) Codec() codec.Codec { return c.codec }

// Current returns the snapshot the head pointer currently designates.
// It never blocks, regardless of in-flight writers.
func (c *Collection) Current() (*Snapshot, error) {
	head, err := c.store.Head(gs.MainRef)
	if err != nil {
		return nil, err
	}
	if head == plumbing.ZeroHash {
		return nil, fmt.Errorf("%w: collection has no commits", core.ErrStorageUnavailable)
	}
	return c.snapshot(head), nil
}

// Close removes the collection from the process-wide registry. The caller
// must not use the collection afterwards.
func (c *Collection) Close() {
	if c.location != "" {
		openCollections.Delete(c.location)
	}
}
