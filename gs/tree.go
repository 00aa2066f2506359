package gs

import (
	"strings"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/tansudb/tansu/core"
)

// Change is a single edit to apply to a tree: set a blob at a path, or
// remove the entry at a path.
type Change struct {
	Path   string
	Blob   plumbing.Hash
	Delete bool
}

// Tree resolves a tree object by hash.
func (s *Store) Tree(hash plumbing.Hash) (*object.Tree, error) {
	tree, err := object.GetTree(s.repo.Storer, hash)
	if err != nil {
		return nil, &core.IoError{Op: "get tree", Err: err}
	}
	return tree, nil
}

// treeEntries reads all entries of a tree into a map keyed by name.
// ZeroHash reads as an empty tree.
func (s *Store) treeEntries(treeHash plumbing.Hash) (map[string]object.TreeEntry, error) {
	entries := make(map[string]object.TreeEntry)
	if treeHash == plumbing.ZeroHash {
		return entries, nil
	}

	tree, err := object.GetTree(s.repo.Storer, treeHash)
	if err != nil {
		return nil, &core.IoError{Op: "get tree", Err: err}
	}
	for _, entry := range tree.Entries {
		entries[entry.Name] = entry
	}
	return entries, nil
}

// ApplyChanges applies a batch of edits to the tree rooted at rootHash and
// returns the new root hash. Untouched entries are carried over by
// reference, so unchanged documents share their blobs and subtrees with
// prior history. Returns ZeroHash when the resulting tree is empty.
func (s *Store) ApplyChanges(rootHash plumbing.Hash, changes []Change) (plumbing.Hash, error) {
	if len(changes) == 0 {
		return rootHash, nil
	}

	// Group changes by their first path segment; leaf changes apply at this
	// level, the rest recurse one directory down.
	grouped := make(map[string][]Change)
	leaves := make([]Change, 0)

	for _, change := range changes {
		parts := strings.SplitN(change.Path, "/", 2)
		if len(parts) == 1 {
			leaves = append(leaves, change)
		} else {
			grouped[parts[0]] = append(grouped[parts[0]], Change{
				Path:   parts[1],
				Blob:   change.Blob,
				Delete: change.Delete,
			})
		}
	}

	entries, err := s.treeEntries(rootHash)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	for _, change := range leaves {
		if change.Delete {
			delete(entries, change.Path)
			continue
		}
		entries[change.Path] = object.TreeEntry{
			Name: change.Path,
			Mode: filemode.Regular,
			Hash: change.Blob,
		}
	}

	for dir, subChanges := range grouped {
		var subTree plumbing.Hash
		if existing, ok := entries[dir]; ok && existing.Mode == filemode.Dir {
			subTree = existing.Hash
		}

		newSubTree, err := s.ApplyChanges(subTree, subChanges)
		if err != nil {
			return plumbing.ZeroHash, err
		}

		if newSubTree == plumbing.ZeroHash {
			// Subtree emptied out, drop the directory entry.
			delete(entries, dir)
		} else {
			entries[dir] = object.TreeEntry{
				Name: dir,
				Mode: filemode.Dir,
				Hash: newSubTree,
			}
		}
	}

	if len(entries) == 0 {
		return plumbing.ZeroHash, nil
	}

	entrySlice := make([]object.TreeEntry, 0, len(entries))
	for _, entry := range entries {
		entrySlice = append(entrySlice, entry)
	}
	return s.WriteTree(entrySlice)
}
