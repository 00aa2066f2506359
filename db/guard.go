package db

import (
	"context"
	"sync"
)

// acquireWrite takes the collection's write guard, blocking until no other
// write transaction holds it. The wait is abandoned when ctx is cancelled.
// The returned release function is idempotent so every exit path of a
// transaction can call it safely.
func (c *Collection) acquireWrite(ctx context.Context) (func(), error) {
	select {
	case c.guard <- struct{}{}:
		var once sync.Once
		release := func() {
			once.Do(func() { <-c.guard })
		}
		return release, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
