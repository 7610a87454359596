package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/peerquote/internal/domain"
)

// CachingDirectory serves directory pages from a LocatorCache when it can
// and falls back to the wrapped Directory otherwise. Cache failures are
// logged and never fail a lookup.
type CachingDirectory struct {
	next   domain.Directory
	cache  domain.LocatorCache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachingDirectory wraps next with cache. A non-positive ttl disables
// caching and returns next unchanged.
func NewCachingDirectory(next domain.Directory, cache domain.LocatorCache, ttl time.Duration, logger *slog.Logger) domain.Directory {
	if cache == nil || ttl <= 0 {
		return next
	}
	return &CachingDirectory{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "directory_cache")),
	}
}

// GetLocators implements domain.Directory.
func (d *CachingDirectory) GetLocators(ctx context.Context, q domain.DirectoryQuery) (domain.LocatorPage, error) {
	key := q.CacheKey()

	page, err := d.cache.Get(ctx, key)
	switch {
	case err == nil:
		d.logger.DebugContext(ctx, "directory cache hit", slog.String("key", key))
		return page, nil
	case errors.Is(err, domain.ErrNotFound):
	default:
		d.logger.WarnContext(ctx, "directory cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}

	page, err = d.next.GetLocators(ctx, q)
	if err != nil {
		return domain.LocatorPage{}, err
	}

	if err := d.cache.Set(ctx, key, page, d.ttl); err != nil {
		d.logger.WarnContext(ctx, "directory cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
	return page, nil
}
