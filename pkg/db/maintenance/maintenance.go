// Package maintenance runs the startup housekeeping of the database.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"cilaosgo/pkg/db"
)

// Result counts what a maintenance run removed.
type Result struct {
	CacheRemoved int64
	StateRemoved int64
}

// Run prunes routing responses older than cacheTTL and state entries past
// their expiry (admin sessions). Failures are logged, never fatal.
// It blocks until completion.
func Run(ctx context.Context, d *db.DB, cacheTTL time.Duration) Result {
	slog.Info("Starting database maintenance...")
	var res Result

	if ctx.Err() != nil {
		return res
	}

	if cacheTTL > 0 {
		n, err := d.PruneCache(cacheTTL)
		if err != nil {
			slog.Error("Cache pruning failed", "error", err)
		} else {
			res.CacheRemoved = n
			slog.Info("Cache pruning completed", "removed", n, "ttl", cacheTTL)
		}
	}

	n, err := d.PruneState(time.Now())
	if err != nil {
		slog.Error("State pruning failed", "error", err)
	} else {
		res.StateRemoved = n
		slog.Info("Expired state pruned", "removed", n)
	}

	return res
}
