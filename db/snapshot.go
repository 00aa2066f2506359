package db

import (
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/tansudb/tansu/core"
)

// envelope is the persisted form of a document: the payload plus the
// engine-maintained metadata, encoded with the collection codec.
type envelope struct {
	Meta   core.Metadata `json:"meta" yaml:"meta"`
	Fields core.Fields   `json:"fields" yaml:"fields"`
}

// Snapshot is an immutable, fully materialized view of a collection at one
// commit. Snapshots are safe for concurrent use and their contents never
// change, regardless of later commits.
type Snapshot struct {
	col  *Collection
	hash plumbing.Hash

	once    sync.Once
	tree    *object.Tree
	treeErr error
}

func (c *Collection) snapshot(hash plumbing.Hash) *Snapshot {
	return &Snapshot{col: c, hash: hash}
}

// ID returns the commit identifier addressing this snapshot.
func (s *Snapshot) ID() string { return s.hash.String() }

// Collection returns the collection this snapshot belongs to.
func (s *Snapshot) Collection() *Collection { return s.col }

// CommitInfo describes the commit node behind a snapshot.
type CommitInfo struct {
	ID      string
	Parent  string
	Message string
	Author  string
	When    time.Time
}

// Info returns the transaction metadata recorded in the snapshot's commit.
func (s *Snapshot) Info() (CommitInfo, error) {
	commit, err := s.col.store.Commit(s.hash)
	if err != nil {
		return CommitInfo{}, err
	}
	info := CommitInfo{
		ID:      s.hash.String(),
		Message: strings.TrimSuffix(commit.Message, "\n"),
		Author:  fmt.Sprintf("%s <%s>", commit.Author.Name, commit.Author.Email),
		When:    commit.Committer.When,
	}
	if commit.NumParents() > 0 {
		info.Parent = commit.ParentHashes[0].String()
	}
	return info, nil
}

// Parent returns the snapshot this one was built from, or nil for the root.
func (s *Snapshot) Parent() (*Snapshot, error) {
	commit, err := s.col.store.Commit(s.hash)
	if err != nil {
		return nil, err
	}
	if commit.NumParents() == 0 {
		return nil, nil
	}
	return s.col.snapshot(commit.ParentHashes[0]), nil
}

func (s *Snapshot) rootTree() (*object.Tree, error) {
	s.once.Do(func() {
		s.tree, s.treeErr = s.col.store.TreeOf(s.hash)
	})
	return s.tree, s.treeErr
}

// Get resolves a single document by key, or ErrNotFound.
func (s *Snapshot) Get(key string) (core.Document, error) {
	lookupsTotal.Inc()

	path, err := docPath(key)
	if err != nil {
		return core.Document{}, err
	}
	tree, err := s.rootTree()
	if err != nil {
		return core.Document{}, err
	}

	file, err := tree.File(path)
	if err != nil {
		return core.Document{}, fmt.Errorf("%w: key %q", core.ErrNotFound, key)
	}
	contents, err := file.Contents()
	if err != nil {
		return core.Document{}, &core.IoError{Op: "read document blob", Err: err}
	}
	return s.decode(key, []byte(contents))
}

// has reports key existence without decoding the document.
func (s *Snapshot) has(key string) (bool, error) {
	path, err := docPath(key)
	if err != nil {
		return false, err
	}
	tree, err := s.rootTree()
	if err != nil {
		return false, err
	}
	if _, err := tree.File(path); err != nil {
		if errors.Is(err, object.ErrFileNotFound) || errors.Is(err, object.ErrDirectoryNotFound) {
			return false, nil
		}
		return false, &core.IoError{Op: "probe document", Err: err}
	}
	return true, nil
}

func (s *Snapshot) decode(key string, data []byte) (core.Document, error) {
	var env envelope
	if err := s.col.codec.Decode(data, &env); err != nil {
		return core.Document{}, &core.SerializationError{Codec: s.col.codec.Name(), Key: key, Err: err}
	}
	return core.Document{Key: key, Fields: env.Fields, Meta: env.Meta}, nil
}

// Find evaluates the filter against this snapshot and yields matching
// documents in key-byte order. The sequence is lazy and restartable;
// re-iterating re-scans the same immutable snapshot. Documents that fail
// to decode are skipped; use FindAll to surface such errors.
func (s *Snapshot) Find(filter Filter) iter.Seq2[string, core.Document] {
	return func(yield func(string, core.Document) bool) {
		s.scan(filter, func(doc core.Document, err error) bool {
			if err != nil {
				return true
			}
			return yield(doc.Key, doc)
		})
	}
}

// FindAll evaluates the filter and collects every match, failing on the
// first undecodable document.
func (s *Snapshot) FindAll(filter Filter) ([]core.Document, error) {
	var docs []core.Document
	var scanErr error
	s.scan(filter, func(doc core.Document, err error) bool {
		if err != nil {
			scanErr = err
			return false
		}
		docs = append(docs, doc)
		return true
	})
	return docs, scanErr
}

// Keys yields every document key in the snapshot in key-byte order.
func (s *Snapshot) Keys() iter.Seq[string] {
	return func(yield func(string) bool) {
		s.walkFiles("", func(key string, _ plumbing.Hash) bool {
			return yield(key)
		})
	}
}

// Count returns the number of documents in the snapshot.
func (s *Snapshot) Count() int {
	n := 0
	s.walkFiles("", func(string, plumbing.Hash) bool {
		n++
		return true
	})
	return n
}

// scan drives predicate evaluation. Key and key-prefix restrictions prune
// the walk to matching shard subtrees; everything else is a full scan with
// decode-and-test.
func (s *Snapshot) scan(filter Filter, visit func(core.Document, error) bool) {
	scansTotal.Inc()

	s.walkFiles(filter.KeyPrefix, func(key string, blob plumbing.Hash) bool {
		if !strings.HasPrefix(key, filter.KeyPrefix) {
			return true
		}
		data, err := s.col.store.ReadBlob(blob)
		if err != nil {
			return visit(core.Document{}, err)
		}
		doc, err := s.decode(key, data)
		if err != nil {
			return visit(core.Document{}, err)
		}
		if !filter.Matches(doc) {
			return true
		}
		return visit(doc, nil)
	})
}

// walkFiles visits every document file whose key could begin with prefix,
// in tree order. Shard directories not matching the prefix are skipped
// without being opened.
func (s *Snapshot) walkFiles(prefix string, visit func(key string, blob plumbing.Hash) bool) {
	tree, err := s.rootTree()
	if err != nil {
		return
	}

	hexPrefix := encodeKey(prefix)
	var d1, d2 string
	if len(hexPrefix) >= 2 {
		d1 = hexPrefix[:2]
	}
	if len(hexPrefix) >= 4 {
		d2 = hexPrefix[2:4]
	}

	for _, first := range tree.Entries {
		if first.Mode != filemode.Dir || !isShardName(first.Name) {
			continue
		}
		if d1 != "" && first.Name != d1 {
			continue
		}
		firstTree, err := s.col.store.Tree(first.Hash)
		if err != nil {
			continue
		}
		for _, second := range firstTree.Entries {
			if second.Mode != filemode.Dir || !isShardName(second.Name) {
				continue
			}
			if d2 != "" && second.Name != d2 && second.Name != shardPad {
				continue
			}
			secondTree, err := s.col.store.Tree(second.Hash)
			if err != nil {
				continue
			}
			for _, entry := range secondTree.Entries {
				if entry.Mode == filemode.Dir {
					continue
				}
				key, ok := decodeKey(entry.Name)
				if !ok {
					continue
				}
				if !visit(key, entry.Hash) {
					return
				}
			}
		}
	}
}
