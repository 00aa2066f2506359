package gs

import (
	"iter"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
)

// WalkHistory yields commits from the given id backward through first-parent
// links, newest first, terminating at the root commit. The sequence is lazy
// and restartable.
func (s *Store) WalkHistory(from plumbing.Hash) iter.Seq2[plumbing.Hash, *object.Commit] {
	return func(yield func(plumbing.Hash, *object.Commit) bool) {
		hash := from
		for hash != plumbing.ZeroHash {
			commit, err := s.Commit(hash)
			if err != nil {
				return
			}
			if !yield(hash, commit) {
				return
			}
			if commit.NumParents() == 0 {
				return
			}
			hash = commit.ParentHashes[0]
		}
	}
}
