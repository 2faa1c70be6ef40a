package finder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/septafinder/backend-go/internal/geocode"
	"github.com/septafinder/backend-go/internal/models"
	"github.com/septafinder/backend-go/internal/station"
)

// StationIndex answers nearest-station queries
type StationIndex interface {
	Nearest(lat, lon float64) (*station.Match, error)
}

// ServiceArea checks that a location is served
type ServiceArea interface {
	Check(lat, lon float64) (float64, error)
}

// DirectionsProvider returns walking directions, or an error when none are available
type DirectionsProvider interface {
	Walking(ctx context.Context, from, to models.Location) (*models.WalkingDirections, error)
}

// ResultCache memoizes results by resolved location
type ResultCache interface {
	Key(lat, lon float64) string
	Get(ctx context.Context, key string) (*models.StationResponse, error)
	Put(ctx context.Context, key string, result *models.StationResponse) error
}

// Resolver finds the nearest station for a request. It holds no per-request
// state and is safe for concurrent use.
type Resolver struct {
	geocoder   geocode.Geocoder
	index      StationIndex
	area       ServiceArea
	directions DirectionsProvider
	cache      ResultCache
}

func NewResolver(geocoder geocode.Geocoder, index StationIndex, area ServiceArea, directions DirectionsProvider, cache ResultCache) *Resolver {
	return &Resolver{
		geocoder:   geocoder,
		index:      index,
		area:       area,
		directions: directions,
		cache:      cache,
	}
}

// FindNearest runs the lookup pipeline: resolve the location, check the service
// area, consult the cache, and on a miss query the index, add walking
// directions and store the answer.
func (r *Resolver) FindNearest(ctx context.Context, in models.LocationInput) (*models.StationResponse, error) {
	loc, err := r.resolve(ctx, in)
	if err != nil {
		return nil, err
	}

	if _, err := r.area.Check(loc.Latitude, loc.Longitude); err != nil {
		return nil, err
	}

	key := r.cache.Key(loc.Latitude, loc.Longitude)
	cached, err := r.cache.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("looking up cached result: %w", err)
	}
	if cached != nil {
		log.Debug().Str("key", key).Msg("Returning cached result")
		return cached, nil
	}

	match, err := r.index.Nearest(loc.Latitude, loc.Longitude)
	if err != nil {
		return nil, fmt.Errorf("querying station index: %w", err)
	}

	result := &models.StationResponse{
		StationName: match.Station.Name,
		DistanceKm:  models.Round(match.DistanceKm, 2),
		GeoJSON:     match.Station.ToFeature(),
	}

	stationLoc := models.Location{Latitude: match.Station.Latitude, Longitude: match.Station.Longitude}
	walking, err := r.directions.Walking(ctx, loc, stationLoc)
	if err != nil {
		log.Warn().Err(err).Str("station", match.Station.Name).Msg("Walking directions unavailable")
	} else {
		result.WalkingDirections = walking
	}

	if err := r.cache.Put(ctx, key, result); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to cache result")
	}

	log.Info().
		Float64("lat", loc.Latitude).
		Float64("lon", loc.Longitude).
		Str("station", result.StationName).
		Float64("distance_km", result.DistanceKm).
		Bool("directions", result.WalkingDirections != nil).
		Msg("Resolved nearest station")
	return result, nil
}

func (r *Resolver) resolve(ctx context.Context, in models.LocationInput) (models.Location, error) {
	hasLat, hasLon := in.Latitude != nil, in.Longitude != nil
	if hasLat != hasLon {
		return models.Location{}, NewValidationError("Both latitude and longitude must be provided")
	}

	if hasLat {
		loc := models.Location{Latitude: *in.Latitude, Longitude: *in.Longitude}
		if err := loc.Validate(); err != nil {
			return models.Location{}, NewValidationError("%s", err.Error())
		}
		return loc, nil
	}

	address := strings.TrimSpace(in.Address)
	if address == "" {
		return models.Location{}, NewValidationError("Either address or coordinates must be provided")
	}

	loc, err := r.geocoder.Geocode(ctx, address)
	if errors.Is(err, geocode.ErrNotFound) {
		return models.Location{}, NewResolutionError(address, err)
	}
	if err != nil {
		return models.Location{}, err
	}
	return loc, nil
}
