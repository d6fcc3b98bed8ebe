package directory

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"courtyard/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const rosterCacheKey = "directory:roster"

// CachedDirectory wraps a Directory with a short-TTL Redis cache. Poll-driven
// clients re-reconcile on a timer, so an uncached directory would be hit once
// per client per interval; the TTL bounds roster staleness instead.
type CachedDirectory struct {
	inner Directory
	rdb   *redis.Client
	ttl   time.Duration
}

// NewCachedDirectory returns a caching wrapper around inner. A nil Redis
// client degrades to pass-through.
func NewCachedDirectory(inner Directory, rdb *redis.Client, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{inner: inner, rdb: rdb, ttl: ttl}
}

// Roster returns the cached roster, refreshing it from the inner directory on
// miss. Cache failures are logged and treated as misses.
func (d *CachedDirectory) Roster(ctx context.Context) ([]uint, error) {
	if d.rdb == nil {
		return d.inner.Roster(ctx)
	}

	raw, err := d.rdb.Get(ctx, rosterCacheKey).Bytes()
	if err == nil {
		var ids []uint
		if jsonErr := json.Unmarshal(raw, &ids); jsonErr == nil {
			return ids, nil
		}
		// Corrupt entry, fall through to a refresh.
	}

	ids, err := d.inner.Roster(ctx)
	if err != nil {
		return nil, err
	}

	if raw, jsonErr := json.Marshal(ids); jsonErr == nil {
		if setErr := d.rdb.Set(ctx, rosterCacheKey, raw, d.ttl).Err(); setErr != nil {
			middleware.Logger.WarnContext(ctx, "failed to cache roster",
				slog.String("error", setErr.Error()))
		}
	}

	return ids, nil
}

// Invalidate drops the cached roster, forcing the next call to refresh.
func (d *CachedDirectory) Invalidate(ctx context.Context) {
	if d.rdb == nil {
		return
	}
	if err := d.rdb.Del(ctx, rosterCacheKey).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to invalidate roster cache",
			slog.String("error", err.Error()))
	}
}
