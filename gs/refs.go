package gs

import (
	"errors"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/storage"
	"github.com/tansudb/tansu/core"
)

// Head returns the commit the reference points at, or ZeroHash for an
// unborn reference.
func (s *Store) Head(name plumbing.ReferenceName) (plumbing.Hash, error) {
	ref, err := s.repo.Storer.Reference(name)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return plumbing.ZeroHash, nil
		}
		return plumbing.ZeroHash, &core.IoError{Op: "read reference", Err: err}
	}
	return ref.Hash(), nil
}

// CompareAndSetHead advances the reference from old to new, failing with
// ErrConcurrentModification if the reference no longer equals old. An old
// of ZeroHash asserts the reference is unborn.
func (s *Store) CompareAndSetHead(name plumbing.ReferenceName, old, new plumbing.Hash) error {
	current, err := s.Head(name)
	if err != nil {
		return err
	}
	if current != old {
		return core.ErrConcurrentModification
	}

	ref := plumbing.NewHashReference(name, new)
	var oldRef *plumbing.Reference
	if old != plumbing.ZeroHash {
		oldRef = plumbing.NewHashReference(name, old)
	}

	if err := s.repo.Storer.CheckAndSetReference(ref, oldRef); err != nil {
		if errors.Is(err, storage.ErrReferenceHasChanged) {
			return core.ErrConcurrentModification
		}
		return &core.IoError{Op: "set reference", Err: err}
	}
	return nil
}
