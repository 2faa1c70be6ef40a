package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/septafinder/backend-go/internal/auth"
	"github.com/septafinder/backend-go/internal/cache"
	"github.com/septafinder/backend-go/internal/config"
	"github.com/septafinder/backend-go/internal/db"
	"github.com/septafinder/backend-go/internal/directions"
	"github.com/septafinder/backend-go/internal/finder"
	"github.com/septafinder/backend-go/internal/geocode"
	"github.com/septafinder/backend-go/internal/handler"
	"github.com/septafinder/backend-go/internal/servicearea"
	"github.com/septafinder/backend-go/internal/station"
	"github.com/septafinder/backend-go/pkg/http/client"
)

// Factory creates the clients for external systems
type Factory interface {
	NewUserStore(ctx context.Context, dsn string) (auth.UserStore, func(), error)
	NewDynamoClient(ctx context.Context) (cache.DynamoDBClient, error)
	NewS3Client(ctx context.Context) (station.S3Client, error)
}

// DefaultFactory connects to PostgreSQL and AWS
type DefaultFactory struct{}

func (DefaultFactory) NewUserStore(ctx context.Context, dsn string) (auth.UserStore, func(), error) {
	conn, err := db.Open(ctx, dsn, db.DefaultOptions)
	if err != nil {
		return nil, nil, err
	}
	return auth.NewGormUserStore(conn), func() { db.Close(conn) }, nil
}

func (DefaultFactory) NewDynamoClient(ctx context.Context) (cache.DynamoDBClient, error) {
	return cache.NewDynamoClient(ctx)
}

func (DefaultFactory) NewS3Client(ctx context.Context) (station.S3Client, error) {
	return station.NewS3Client(ctx)
}

// App is the assembled service: the station index and everything that
// answers requests against it.
type App struct {
	Index  *station.Index
	Source station.Source
	Cache  *cache.ResultCache
	Router *handler.Router

	cfg     *config.Config
	closers []func()
}

// New wires the service together and loads the station dataset. Any failure
// here is fatal for the process: a missing dataset, an unreachable cache
// table or database all stop startup.
func New(ctx context.Context, cfg *config.Config, cacheCfg *config.CacheConfig, factory Factory) (*App, error) {
	if factory == nil {
		factory = DefaultFactory{}
	}
	a := &App{cfg: cfg}

	var s3Client station.S3Client
	if station.IsS3Location(cfg.Stations) {
		c, err := factory.NewS3Client(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating S3 client: %w", err)
		}
		s3Client = c
	}
	src, err := station.NewSource(cfg.Stations, s3Client)
	if err != nil {
		return nil, err
	}
	a.Source = src

	a.Index = station.NewIndex()
	if err := a.Index.Load(ctx, src); err != nil {
		return nil, err
	}

	var store cache.Store
	if cacheCfg.EnableDynamoCache {
		dynamo, err := factory.NewDynamoClient(ctx)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("creating DynamoDB client: %w", err)
		}
		store = cache.NewDynamoResultCache(dynamo, cacheCfg.TableName, cacheCfg.GetResultTTL())
	}
	a.Cache, err = cache.NewResultCache(cacheCfg, store)
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := a.Cache.Ping(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("checking result cache: %w", err)
	}
	a.Cache.Invalidate(a.Index.Version())

	users, closeUsers, err := factory.NewUserStore(ctx, cfg.DatabaseURL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening user store: %w", err)
	}
	if closeUsers != nil {
		a.closers = append(a.closers, closeUsers)
	}

	tokens, err := auth.NewTokenIssuer(cfg.Auth.SecretKey, cfg.Auth.Algorithm, cfg.TokenTTL())
	if err != nil {
		a.Close()
		return nil, err
	}

	geocoder := geocode.NewCachingGeocoder(
		geocode.NewNominatim(newUpstreamClient(cfg, cfg.Nominatim)),
		cacheCfg.GetGeocodeTTL(),
	)
	walking := directions.NewOSRM(newUpstreamClient(cfg, cfg.OSRM))
	area := servicearea.New(cfg.ServiceArea)

	resolver := finder.NewResolver(geocoder, a.Index, area, walking, a.Cache)
	a.Router = handler.NewRouter(resolver, auth.NewService(users, tokens), a.Index, a.Cache)

	log.Info().
		Str("stations", src.Name()).
		Int("station_count", a.Index.Len()).
		Bool("dynamo_cache", store != nil).
		Msg("Service initialized")
	return a, nil
}

func newUpstreamClient(cfg *config.Config, baseURL string) *client.Client {
	return client.New(client.Options{
		BaseURL:    baseURL,
		Timeout:    cfg.HTTPTimeout,
		MaxRetries: cfg.MaxRetries,
		UserAgent:  cfg.UserAgent,
	})
}

// Handler is the router with CORS handling applied
func (a *App) Handler() http.Handler {
	return a.Router.Handler(a.cfg.CORSOrigins)
}

// Reload rebuilds the index from the configured source. Queries keep using
// the old index until the new one is ready, and keep using it if loading fails.
// A successful reload moves the result cache to the new dataset's generation.
func (a *App) Reload(ctx context.Context) error {
	if err := a.Index.Load(ctx, a.Source); err != nil {
		return err
	}
	a.Cache.Invalidate(a.Index.Version())
	return nil
}

// Close releases the index and external connections
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	if a.Index != nil {
		a.Index.Unload()
	}
}
