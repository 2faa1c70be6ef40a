package finder

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/septafinder/backend-go/internal/cache"
	"github.com/septafinder/backend-go/internal/config"
	"github.com/septafinder/backend-go/internal/directions"
	"github.com/septafinder/backend-go/internal/geocode"
	"github.com/septafinder/backend-go/internal/models"
	"github.com/septafinder/backend-go/internal/servicearea"
	"github.com/septafinder/backend-go/internal/station"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cityHallAddress = "1400 John F Kennedy Blvd Philadelphia PA 19107"

type mockGeocoder struct {
	calls       int
	geocodeFunc func(ctx context.Context, address string) (models.Location, error)
}

func (m *mockGeocoder) Geocode(ctx context.Context, address string) (models.Location, error) {
	m.calls++
	if m.geocodeFunc != nil {
		return m.geocodeFunc(ctx, address)
	}
	return models.Location{}, geocode.ErrNotFound
}

type mockDirections struct {
	calls       int
	walkingFunc func(ctx context.Context, from, to models.Location) (*models.WalkingDirections, error)
}

func (m *mockDirections) Walking(ctx context.Context, from, to models.Location) (*models.WalkingDirections, error) {
	m.calls++
	if m.walkingFunc != nil {
		return m.walkingFunc(ctx, from, to)
	}
	return &models.WalkingDirections{
		Distance: 0.3,
		Duration: 4.2,
		Steps:    []models.DirectionStep{{Instruction: "continue", DistanceMeters: 300}},
	}, nil
}

type mockCache struct {
	getFunc func(ctx context.Context, key string) (*models.StationResponse, error)
	putFunc func(ctx context.Context, key string, result *models.StationResponse) error
}

func (m *mockCache) Key(lat, lon float64) string {
	return cache.Key(lat, lon, 4)
}

func (m *mockCache) Get(ctx context.Context, key string) (*models.StationResponse, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, key)
	}
	return nil, nil
}

func (m *mockCache) Put(ctx context.Context, key string, result *models.StationResponse) error {
	if m.putFunc != nil {
		return m.putFunc(ctx, key, result)
	}
	return nil
}

type fixture struct {
	resolver   *Resolver
	geocoder   *mockGeocoder
	directions *mockDirections
	cache      *cache.ResultCache
	index      *station.Index
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ix := station.NewIndex()
	require.NoError(t, ix.Load(context.Background(), station.FileSource{Path: "../station/testdata/stations.kml"}))

	cacheCfg := &config.CacheConfig{ResultLRUSize: 100, ResultTTLMinutes: 60, KeyPrecision: 4, EnableLRUCache: true}
	rc, err := cache.NewResultCache(cacheCfg, nil)
	require.NoError(t, err)

	f := &fixture{
		geocoder: &mockGeocoder{
			geocodeFunc: func(ctx context.Context, address string) (models.Location, error) {
				if address == cityHallAddress {
					return models.Location{Latitude: 39.9526, Longitude: -75.1652}, nil
				}
				return models.Location{}, geocode.ErrNotFound
			},
		},
		directions: &mockDirections{},
		cache:      rc,
		index:      ix,
	}
	f.resolver = NewResolver(f.geocoder, ix, servicearea.New(config.New().ServiceArea), f.directions, rc)
	return f
}

func coords(lat, lon float64) models.LocationInput {
	return models.LocationInput{Latitude: &lat, Longitude: &lon}
}

func TestFindNearestByAddress(t *testing.T) {
	f := newFixture(t)

	result, err := f.resolver.FindNearest(context.Background(), models.LocationInput{Address: cityHallAddress})
	require.NoError(t, err)

	assert.Equal(t, "Suburban Station", result.StationName)
	want := station.DistanceKm(39.9526, -75.1652, 39.9540, -75.1677)
	assert.Equal(t, models.Round(want, 2), result.DistanceKm)

	assert.Equal(t, models.FeatureType, result.GeoJSON.Type)
	assert.Equal(t, []float64{-75.1677, 39.9540}, result.GeoJSON.Geometry.Coordinates)
	assert.Equal(t, "Suburban Station", result.GeoJSON.Properties["Name"])
	require.NotNil(t, result.WalkingDirections)
	assert.Equal(t, 0.3, result.WalkingDirections.Distance)
	assert.Equal(t, 1, f.geocoder.calls)
}

func TestFindNearestByCoordinates(t *testing.T) {
	f := newFixture(t)

	var from, to models.Location
	f.directions.walkingFunc = func(ctx context.Context, a, b models.Location) (*models.WalkingDirections, error) {
		from, to = a, b
		return &models.WalkingDirections{Steps: []models.DirectionStep{}}, nil
	}

	result, err := f.resolver.FindNearest(context.Background(), coords(40.1000, -75.1500))
	require.NoError(t, err)
	assert.Equal(t, "Glenside", result.StationName)
	assert.Equal(t, models.Location{Latitude: 40.1000, Longitude: -75.1500}, from)
	assert.Equal(t, models.Location{Latitude: 40.1019, Longitude: -75.1535}, to)
	assert.Equal(t, 0, f.geocoder.calls)
}

func TestCoordinatesWinOverAddress(t *testing.T) {
	f := newFixture(t)

	in := coords(40.0430, -75.4830)
	in.Address = cityHallAddress
	result, err := f.resolver.FindNearest(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "Paoli", result.StationName)
	assert.Equal(t, 0.0, result.DistanceKm)
	assert.Equal(t, 0, f.geocoder.calls)
}

func TestFindNearestIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.resolver.FindNearest(ctx, coords(39.9526, -75.1652))
	require.NoError(t, err)
	second, err := f.resolver.FindNearest(ctx, coords(39.9526, -75.1652))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.directions.calls, "second call should be served from cache")
	assert.Equal(t, uint64(1), f.cache.Stats()["lru_hits"])
}

func TestNearbyGeocodesShareCacheEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.resolver.FindNearest(ctx, coords(39.95260001, -75.16520002))
	require.NoError(t, err)
	_, err = f.resolver.FindNearest(ctx, coords(39.95259999, -75.16519998))
	require.NoError(t, err)

	assert.Equal(t, 1, f.directions.calls)
}

func TestFindNearestValidation(t *testing.T) {
	lat := 39.95

	tests := []struct {
		name string
		in   models.LocationInput
	}{
		{name: "empty request", in: models.LocationInput{}},
		{name: "blank address", in: models.LocationInput{Address: "   "}},
		{name: "latitude only", in: models.LocationInput{Latitude: &lat}},
		{name: "longitude only", in: models.LocationInput{Longitude: &lat}},
		{name: "latitude out of range", in: coords(91, -75)},
		{name: "longitude out of range", in: coords(39.95, -181)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.resolver.FindNearest(context.Background(), tt.in)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.NotEmpty(t, vErr.Message)
			assert.Equal(t, 0, f.geocoder.calls)
		})
	}
}

func TestUnknownAddress(t *testing.T) {
	f := newFixture(t)

	_, err := f.resolver.FindNearest(context.Background(), models.LocationInput{Address: "zzzz not a place"})
	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "zzzz not a place", resErr.Address)
	assert.ErrorIs(t, err, geocode.ErrNotFound)
	assert.Equal(t, 0, f.directions.calls)
}

func TestGeocoderUnavailable(t *testing.T) {
	f := newFixture(t)
	f.geocoder.geocodeFunc = func(ctx context.Context, address string) (models.Location, error) {
		return models.Location{}, geocode.NewGeocodingError(address, "unexpected status 503", nil)
	}

	_, err := f.resolver.FindNearest(context.Background(), models.LocationInput{Address: cityHallAddress})
	var geoErr *geocode.GeocodingError
	require.ErrorAs(t, err, &geoErr)

	var resErr *ResolutionError
	assert.False(t, errors.As(err, &resErr))
}

func TestOutOfServiceArea(t *testing.T) {
	tests := []struct {
		name    string
		in      models.LocationInput
		minDist float64
	}{
		{name: "london", in: coords(51.5074, -0.1278), minDist: 5000},
		{name: "new york", in: coords(40.7128, -74.0060), minDist: 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.resolver.FindNearest(context.Background(), tt.in)

			var oos *servicearea.OutOfServiceAreaError
			require.ErrorAs(t, err, &oos)
			assert.Greater(t, oos.DistanceKm, tt.minDist)
			assert.InDelta(t, station.DistanceKm(39.9526, -75.1652, *tt.in.Latitude, *tt.in.Longitude), oos.DistanceKm, 1e-9)
			assert.Equal(t, 80.0, oos.MaxRadiusKm)
			assert.Equal(t, 0, f.directions.calls)
			assert.Equal(t, uint64(0), f.cache.Stats()["lru_misses"], "rejected before cache lookup")
		})
	}
}

func TestDirectionsFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.directions.walkingFunc = func(ctx context.Context, from, to models.Location) (*models.WalkingDirections, error) {
		return nil, fmt.Errorf("%w: routing service returned status 502", directions.ErrDirectionsUnavailable)
	}

	result, err := f.resolver.FindNearest(context.Background(), coords(39.9526, -75.1652))
	require.NoError(t, err)
	assert.Equal(t, "Suburban Station", result.StationName)
	assert.Nil(t, result.WalkingDirections)
}

func TestIndexNotLoaded(t *testing.T) {
	f := newFixture(t)
	f.index.Unload()

	_, err := f.resolver.FindNearest(context.Background(), coords(39.9526, -75.1652))
	assert.ErrorIs(t, err, station.ErrNotLoaded)
}

func TestCacheFailures(t *testing.T) {
	newResolver := func(c ResultCache) (*Resolver, *mockDirections) {
		f := newFixture(t)
		return NewResolver(f.geocoder, f.index, servicearea.New(config.New().ServiceArea), f.directions, c), f.directions
	}

	t.Run("lookup failure is fatal", func(t *testing.T) {
		r, d := newResolver(&mockCache{
			getFunc: func(ctx context.Context, key string) (*models.StationResponse, error) {
				return nil, cache.NewStoreUnavailableError("get", errors.New("timeout"))
			},
		})

		_, err := r.FindNearest(context.Background(), coords(39.9526, -75.1652))
		var storeErr *cache.StoreUnavailableError
		assert.ErrorAs(t, err, &storeErr)
		assert.Equal(t, 0, d.calls)
	})

	t.Run("store failure still returns result", func(t *testing.T) {
		var putKey string
		r, _ := newResolver(&mockCache{
			putFunc: func(ctx context.Context, key string, result *models.StationResponse) error {
				putKey = key
				return cache.NewStoreUnavailableError("put", errors.New("timeout"))
			},
		})

		result, err := r.FindNearest(context.Background(), coords(39.9526, -75.1652))
		require.NoError(t, err)
		assert.Equal(t, "Suburban Station", result.StationName)
		assert.Equal(t, "septa_nearest_station_39.9526_-75.1652", putKey)
	})
}

func TestNearestIsAlwaysALoadedStation(t *testing.T) {
	f := newFixture(t)

	for lat := 39.70; lat <= 40.30; lat += 0.05 {
		for lon := -75.60; lon <= -74.80; lon += 0.05 {
			result, err := f.resolver.FindNearest(context.Background(), coords(lat, lon))
			if err != nil {
				var oos *servicearea.OutOfServiceAreaError
				require.ErrorAs(t, err, &oos)
				continue
			}

			found := false
			for i := 0; i < f.index.Len(); i++ {
				st, err := f.index.Station(i)
				require.NoError(t, err)
				if st.Name != result.StationName {
					continue
				}
				found = true
				d := station.DistanceKm(lat, lon, st.Latitude, st.Longitude)
				assert.InDelta(t, d, result.DistanceKm, 0.005)
			}
			assert.True(t, found, "station %q not in dataset", result.StationName)
		}
	}
}
