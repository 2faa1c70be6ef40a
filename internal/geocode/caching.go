package geocode

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"github.com/septafinder/backend-go/internal/models"
)

// CachingGeocoder remembers successful lookups for a while. Misses and failures
// always go to the wrapped geocoder.
type CachingGeocoder struct {
	next  Geocoder
	store *gocache.Cache
}

func NewCachingGeocoder(next Geocoder, ttl time.Duration) *CachingGeocoder {
	return &CachingGeocoder{
		next:  next,
		store: gocache.New(ttl, 2*ttl),
	}
}

func (c *CachingGeocoder) Geocode(ctx context.Context, address string) (models.Location, error) {
	key := normalize(address)
	if v, ok := c.store.Get(key); ok {
		log.Trace().Str("address", key).Msg("Geocode cache hit")
		return v.(models.Location), nil
	}

	loc, err := c.next.Geocode(ctx, address)
	if err != nil {
		return models.Location{}, err
	}
	c.store.SetDefault(key, loc)
	return loc, nil
}

// Len is the number of remembered addresses, including expired ones not yet purged
func (c *CachingGeocoder) Len() int {
	return c.store.ItemCount()
}

func normalize(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}
