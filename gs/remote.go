package gs

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing"
)

// AddRemote registers a named push target. Registering the same name twice
// is a no-op.
func (s *Store) AddRemote(name, url string) error {
	_, err := s.repo.CreateRemote(&config.RemoteConfig{
		Name: name,
		URLs: []string{url},
	})
	if errors.Is(err, git.ErrRemoteExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to add remote %q: %w", name, err)
	}
	return nil
}

// Remotes returns the names of all registered push targets.
func (s *Store) Remotes() ([]string, error) {
	remotes, err := s.repo.Remotes()
	if err != nil {
		return nil, fmt.Errorf("failed to list remotes: %w", err)
	}
	names := make([]string, len(remotes))
	for i, r := range remotes {
		names[i] = r.Config().Name
	}
	return names, nil
}

// PushBranch pushes the given branch reference to a remote. An up-to-date
// remote is not an error.
func (s *Store) PushBranch(ctx context.Context, remote string, ref plumbing.ReferenceName) error {
	refSpec := config.RefSpec(fmt.Sprintf("%s:%s", ref, ref))

	err := s.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remote,
		RefSpecs:   []config.RefSpec{refSpec},
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to push to %q: %w", remote, err)
	}
	return nil
}
