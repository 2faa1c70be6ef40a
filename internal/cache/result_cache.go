package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"github.com/septafinder/backend-go/internal/config"
	"github.com/septafinder/backend-go/internal/models"
)

type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// Store is the shared, persistent layer behind the in-process LRU
type Store interface {
	Get(ctx context.Context, key string) (*models.StationResponse, error)
	Put(ctx context.Context, key string, result *models.StationResponse) error
	Ping(ctx context.Context) error
}

// LRUCacheEntry wraps the cached data with metadata
type LRUCacheEntry struct {
	Data      *models.StationResponse
	ExpiresAt time.Time
}

// ResultCache provides a two-layer cache of nearest-station results. Either layer
// may be disabled; with both disabled every lookup misses.
type ResultCache struct {
	lru         *lru.Cache[string, *LRUCacheEntry]
	store       Store
	ttl         time.Duration
	precision   int
	clock       clock
	generation  atomic.Pointer[string]
	lruHits     atomic.Uint64
	lruMisses   atomic.Uint64
	storeHits   atomic.Uint64
	storeMisses atomic.Uint64
	storeErrors atomic.Uint64
}

// NewResultCache creates the result cache. store may be nil.
func NewResultCache(cfg *config.CacheConfig, store Store) (*ResultCache, error) {
	c := &ResultCache{
		store:     store,
		ttl:       cfg.GetResultTTL(),
		precision: cfg.KeyPrecision,
		clock:     realClock{},
	}
	if c.ttl <= 0 {
		return nil, fmt.Errorf("result cache TTL must be positive, got %s", c.ttl)
	}

	if cfg.EnableLRUCache {
		l, err := lru.New[string, *LRUCacheEntry](cfg.ResultLRUSize)
		if err != nil {
			return nil, fmt.Errorf("creating LRU cache: %w", err)
		}
		c.lru = l
	}
	return c, nil
}

// Key derives the cache key with the configured precision. Once a generation
// is set it is appended, so entries written for another dataset never match.
func (c *ResultCache) Key(lat, lon float64) string {
	key := Key(lat, lon, c.precision)
	if gen := c.Generation(); gen != "" {
		key += "_" + gen
	}
	return key
}

// Generation is the dataset version keys are currently derived for
func (c *ResultCache) Generation() string {
	if gen := c.generation.Load(); gen != nil {
		return *gen
	}
	return ""
}

// Invalidate switches keys to generation and empties the LRU. Store entries
// under other generations are left to expire.
func (c *ResultCache) Invalidate(generation string) {
	previous := c.Generation()
	c.generation.Store(&generation)
	c.Clear()
	log.Info().Str("previous", previous).Str("generation", generation).Msg("Result cache invalidated")
}

// Get looks in the LRU, then the store. A miss is (nil, nil).
func (c *ResultCache) Get(ctx context.Context, key string) (*models.StationResponse, error) {
	if c.lru != nil {
		if entry, ok := c.lru.Get(key); ok {
			if c.clock.Now().Before(entry.ExpiresAt) {
				c.lruHits.Add(1)
				return copyResult(entry.Data), nil
			}
			// Entry expired, remove it
			c.lru.Remove(key)
		}
		c.lruMisses.Add(1)
	}

	if c.store == nil {
		return nil, nil
	}

	result, err := c.store.Get(ctx, key)
	if err != nil {
		c.storeErrors.Add(1)
		return nil, NewStoreUnavailableError("get", err)
	}
	if result == nil {
		c.storeMisses.Add(1)
		return nil, nil
	}

	c.storeHits.Add(1)
	c.addLRU(key, result)
	return copyResult(result), nil
}

// Put writes to both layers. The LRU is always updated, even if the store write fails.
func (c *ResultCache) Put(ctx context.Context, key string, result *models.StationResponse) error {
	if result == nil {
		return fmt.Errorf("refusing to cache nil result for %s", key)
	}
	c.addLRU(key, result)

	if c.store == nil {
		return nil
	}
	if err := c.store.Put(ctx, key, result); err != nil {
		c.storeErrors.Add(1)
		return NewStoreUnavailableError("put", err)
	}
	return nil
}

// Ping verifies the store at startup. Without a store there is nothing to check.
func (c *ResultCache) Ping(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	return c.store.Ping(ctx)
}

func (c *ResultCache) addLRU(key string, result *models.StationResponse) {
	if c.lru == nil {
		return
	}
	c.lru.Add(key, &LRUCacheEntry{
		Data:      copyResult(result),
		ExpiresAt: c.clock.Now().Add(c.ttl),
	})
}

// Stats returns statistics about cache hits and misses
func (c *ResultCache) Stats() map[string]uint64 {
	stats := map[string]uint64{
		"lru_hits":     c.lruHits.Load(),
		"lru_misses":   c.lruMisses.Load(),
		"store_hits":   c.storeHits.Load(),
		"store_misses": c.storeMisses.Load(),
		"store_errors": c.storeErrors.Load(),
	}
	if c.lru != nil {
		stats["lru_entries"] = uint64(c.lru.Len())
	}
	return stats
}

// Clear removes all entries from the LRU cache
func (c *ResultCache) Clear() {
	if c.lru != nil {
		c.lru.Purge()
		log.Debug().Msg("Result LRU cleared")
	}
}

// copyResult keeps callers from mutating cached values through shared slices and maps
func copyResult(r *models.StationResponse) *models.StationResponse {
	out := *r
	if r.GeoJSON.Geometry.Coordinates != nil {
		out.GeoJSON.Geometry.Coordinates = make([]float64, len(r.GeoJSON.Geometry.Coordinates))
		copy(out.GeoJSON.Geometry.Coordinates, r.GeoJSON.Geometry.Coordinates)
	}
	if r.GeoJSON.Properties != nil {
		out.GeoJSON.Properties = make(map[string]interface{}, len(r.GeoJSON.Properties))
		for k, v := range r.GeoJSON.Properties {
			out.GeoJSON.Properties[k] = v
		}
	}
	if r.WalkingDirections != nil {
		wd := *r.WalkingDirections
		if r.WalkingDirections.Steps != nil {
			wd.Steps = make([]models.DirectionStep, len(r.WalkingDirections.Steps))
			copy(wd.Steps, r.WalkingDirections.Steps)
		}
		out.WalkingDirections = &wd
	}
	return &out
}
