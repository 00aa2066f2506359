package gs

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/tansudb/tansu/core"
)

// WriteBlob writes a content blob directly into the object store. Writing
// the same bytes twice yields the same hash.
func (s *Store) WriteBlob(data []byte) (plumbing.Hash, error) {
	obj := s.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))

	writer, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, &core.IoError{Op: "create blob writer", Err: err}
	}
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return plumbing.ZeroHash, &core.IoError{Op: "write blob", Err: err}
	}
	writer.Close()

	hash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, &core.IoError{Op: "store blob", Err: err}
	}
	return hash, nil
}

// ReadBlob returns the content of a blob, or ErrNotFound if the hash is
// unreachable.
func (s *Store) ReadBlob(hash plumbing.Hash) ([]byte, error) {
	blob, err := object.GetBlob(s.repo.Storer, hash)
	if err != nil {
		if err == plumbing.ErrObjectNotFound {
			return nil, fmt.Errorf("%w: blob %s", core.ErrNotFound, hash)
		}
		return nil, &core.IoError{Op: "get blob", Err: err}
	}

	reader, err := blob.Reader()
	if err != nil {
		return nil, &core.IoError{Op: "open blob reader", Err: err}
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, &core.IoError{Op: "read blob", Err: err}
	}
	return data, nil
}

// WriteTree writes a tree object from the given entries, sorted into git's
// canonical order.
func (s *Store) WriteTree(entries []object.TreeEntry) (plumbing.Hash, error) {
	// Git sorts directories as if their name carried a trailing slash.
	sort.Slice(entries, func(i, j int) bool {
		nameI := entries[i].Name
		nameJ := entries[j].Name
		if entries[i].Mode == filemode.Dir {
			nameI += "/"
		}
		if entries[j].Mode == filemode.Dir {
			nameJ += "/"
		}
		return nameI < nameJ
	})

	tree := &object.Tree{Entries: entries}

	obj := s.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, &core.IoError{Op: "encode tree", Err: err}
	}

	hash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, &core.IoError{Op: "store tree", Err: err}
	}
	return hash, nil
}

// WriteCommit writes an immutable commit node linking a tree state to its
// parents. A ZeroHash tree is materialized as an empty tree object.
func (s *Store) WriteCommit(tree plumbing.Hash, parents []plumbing.Hash, author core.Identity, when time.Time, message string) (plumbing.Hash, error) {
	if tree == plumbing.ZeroHash {
		var err error
		tree, err = s.WriteTree(nil)
		if err != nil {
			return plumbing.ZeroHash, err
		}
	}

	sig := object.Signature{
		Name:  author.Name,
		Email: author.Email,
		When:  when,
	}

	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     tree,
		ParentHashes: parents,
	}

	obj := s.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, &core.IoError{Op: "encode commit", Err: err}
	}

	hash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, &core.IoError{Op: "store commit", Err: err}
	}
	return hash, nil
}

// Commit resolves a commit node, or ErrNotFound for an unknown id.
func (s *Store) Commit(hash plumbing.Hash) (*object.Commit, error) {
	commit, err := s.repo.CommitObject(hash)
	if err != nil {
		if err == plumbing.ErrObjectNotFound {
			return nil, fmt.Errorf("%w: commit %s", core.ErrNotFound, hash)
		}
		return nil, &core.IoError{Op: "get commit", Err: err}
	}
	return commit, nil
}

// TreeOf returns the root tree of a commit.
func (s *Store) TreeOf(commitHash plumbing.Hash) (*object.Tree, error) {
	commit, err := s.Commit(commitHash)
	if err != nil {
		return nil, err
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, &core.IoError{Op: "get tree", Err: err}
	}
	return tree, nil
}
