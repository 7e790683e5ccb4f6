// Package jobs runs the periodic background work: polling the sports
// provider and ending stale screen-share sessions.
package jobs

import (
	"context"
	"time"

	"sportshub/pkg/distributed"
)

// exclusive runs fn under a cluster-wide lock when locks is set, so that
// only one instance does the work per tick. It reports whether fn ran.
func exclusive(ctx context.Context, locks *distributed.LockManager, key string, ttl time.Duration, fn func(context.Context) error) (bool, error) {
	if locks == nil {
		return true, fn(ctx)
	}
	return locks.RunExclusive(ctx, key, ttl, fn)
}
