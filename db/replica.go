package db

import (
	"context"

	"github.com/tansudb/tansu/gs"
)

// AddReplica registers a push mirror for this collection. Replicas receive
// the main branch on Replicate; they take no part in commit ordering and
// provide no consensus.
func (c *Collection) AddReplica(name, url string) error {
	return c.store.AddRemote(name, url)
}

// Replicas returns the names of all registered push mirrors.
func (c *Collection) Replicas() ([]string, error) {
	return c.store.Remotes()
}

// Replicate pushes the main branch to every registered replica, returning
// the per-replica outcome. An up-to-date replica reports nil.
func (c *Collection) Replicate(ctx context.Context) (map[string]error, error) {
	names, err := c.store.Remotes()
	if err != nil {
		return nil, err
	}

	results := make(map[string]error, len(names))
	for _, name := range names {
		results[name] = c.store.PushBranch(ctx, name, gs.MainRef)
	}
	return results, nil
}
