package effects

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

const sitemapCacheKey = "sitemap"

// SiteCacheInvalidator drops the cached sitemap and the cached listing pages
// affected by a batch of visibility changes.
type SiteCacheInvalidator struct {
	client *redis.Client
}

func NewSiteCacheInvalidator(client *redis.Client) *SiteCacheInvalidator {
	if client == nil {
		return nil
	}
	return &SiteCacheInvalidator{client: client}
}

func (s *SiteCacheInvalidator) Name() string { return "site_cache" }

func (s *SiteCacheInvalidator) InvalidateBatch(ctx context.Context, changes []StoreChange) error {
	if len(changes) == 0 {
		return nil
	}

	keys := []string{sitemapCacheKey}
	seen := map[string]struct{}{}
	for _, change := range changes {
		key := fmt.Sprintf("pages:%s:%s", change.Store.Category, change.Store.City)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	return s.client.Del(ctx, keys...).Err()
}
