package app

import (
	"context"
	"time"

	"departures.metraboard.org/internal/metrics"
)

// DefaultPurgeInterval is how often expired cache entries are dropped.
const DefaultPurgeInterval = 5 * time.Minute

// StartCacheMaintenance drops expired cache entries every interval until ctx
// is done. Entries are only removed, never refetched.
func (app *Application) StartCacheMaintenance(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPurgeInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				app.purgeCache()
			}
		}
	}()
}

func (app *Application) purgeCache() int {
	removed := app.Cache.Purge()
	metrics.CachePurged.Add(float64(removed))
	metrics.CacheEntries.Set(float64(app.Cache.Len()))
	if removed > 0 {
		app.Logger.Debug("purged expired cache entries", "removed", removed, "remaining", app.Cache.Len())
	}
	return removed
}
