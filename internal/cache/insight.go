package cache

import (
	"context"
	"fmt"
	"time"
)

// PlaceInsightCache stores the generated explanatory text shown for a place,
// keyed per (user, place), with a freshness TTL. Stale or missing entries
// simply miss; regeneration is the caller's concern.
type PlaceInsightCache struct {
	cache Cache
	ttl   time.Duration
}

// NewPlaceInsightCache creates the insight cache
func NewPlaceInsightCache(cache Cache, ttl time.Duration) *PlaceInsightCache {
	return &PlaceInsightCache{cache: cache, ttl: ttl}
}

func insightKey(userID, placeID string) string {
	return fmt.Sprintf("insight:%s:%s", userID, placeID)
}

// Get returns the cached text and whether it was present
func (c *PlaceInsightCache) Get(ctx context.Context, userID, placeID string) (string, bool, error) {
	text, err := c.cache.Get(ctx, insightKey(userID, placeID))
	if err != nil {
		return "", false, err
	}
	return text, text != "", nil
}

// Put stores the text with the configured freshness TTL
func (c *PlaceInsightCache) Put(ctx context.Context, userID, placeID, text string) error {
	return c.cache.Set(ctx, insightKey(userID, placeID), text, c.ttl)
}

// Invalidate drops the cached text for one (user, place) pair
func (c *PlaceInsightCache) Invalidate(ctx context.Context, userID, placeID string) error {
	return c.cache.Delete(ctx, insightKey(userID, placeID))
}
