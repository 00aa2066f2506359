package gs

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/cache"
	"github.com/go-git/go-git/v6/storage/filesystem"
	"github.com/go-git/go-git/v6/storage/memory"
	"github.com/tansudb/tansu/core"
)

// MainRef is the branch reference every collection commits to.
var MainRef = plumbing.NewBranchReferenceName("main")

// Store adapts a git repository to the object store contract consumed by
// the transactional engine.
type Store struct {
	repo *git.Repository
}

// OpenMemory creates a store backed entirely by memory. Used by tests and
// ephemeral collections.
func OpenMemory() (*Store, error) {
	repo, err := git.Init(memory.NewStorage())
	if err != nil {
		return nil, &core.IoError{Op: "init memory repository", Err: err}
	}
	s := &Store{repo: repo}
	if err := s.setHeadSymref(); err != nil {
		return nil, err
	}
	return s, nil
}

// Open opens the bare repository at dir, creating it if the directory is
// absent or empty. A non-empty directory that is not a valid repository
// fails with ErrStorageUnavailable.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &core.IoError{Op: "create store directory", Err: err}
	}

	fs := osfs.New(dir)
	storer := filesystem.NewStorageWithOptions(
		fs,
		cache.NewObjectLRUDefault(),
		filesystem.Options{ExclusiveAccess: true})

	repo, err := git.Open(storer, nil)
	if err == nil {
		return &Store{repo: repo}, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, &core.IoError{Op: "open repository", Err: err}
	}

	entries, readErr := os.ReadDir(dir)
	if readErr != nil {
		return nil, &core.IoError{Op: "read store directory", Err: readErr}
	}
	if len(entries) > 0 {
		return nil, fmt.Errorf("%w: %s is not a repository", core.ErrStorageUnavailable, dir)
	}

	repo, err = git.Init(storer)
	if err != nil {
		return nil, &core.IoError{Op: "init repository", Err: err}
	}
	s := &Store{repo: repo}
	if err := s.setHeadSymref(); err != nil {
		return nil, err
	}
	return s, nil
}

// setHeadSymref points HEAD at MainRef so external git tooling resolves the
// same branch the engine commits to.
func (s *Store) setHeadSymref() error {
	ref := plumbing.NewSymbolicReference(plumbing.HEAD, MainRef)
	if err := s.repo.Storer.SetReference(ref); err != nil {
		return &core.IoError{Op: "set HEAD", Err: err}
	}
	return nil
}
