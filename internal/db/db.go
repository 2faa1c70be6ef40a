package db

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/septafinder/backend-go/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options controls how Open waits for the database
type Options struct {
	MaxAttempts int
	RetryDelay  time.Duration
}

// DefaultOptions waits about a minute, long enough for a database container to start
var DefaultOptions = Options{
	MaxAttempts: 30,
	RetryDelay:  2 * time.Second,
}

type dialFunc func(dsn string) (*gorm.DB, error)

// Open connects to PostgreSQL, retrying while the server comes up, and migrates
// the user table.
func Open(ctx context.Context, dsn string, opts Options) (*gorm.DB, error) {
	return open(ctx, dsn, opts, dialPostgres)
}

func dialPostgres(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
}

func open(ctx context.Context, dsn string, opts Options, dial dialFunc) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database URL is not set")
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	var (
		conn *gorm.DB
		err  error
	)
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		conn, err = dial(dsn)
		if err == nil {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", opts.MaxAttempts).Msg("Waiting for database")
		if attempt == opts.MaxAttempts {
			return nil, fmt.Errorf("connecting to database after %d attempt(s): %w", opts.MaxAttempts, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.RetryDelay):
		}
	}

	if err := conn.WithContext(ctx).AutoMigrate(&models.User{}); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	log.Info().Msg("Database connected")
	return conn, nil
}

// Close releases the underlying connection pool
func Close(conn *gorm.DB) {
	sqlDB, err := conn.DB()
	if err != nil {
		log.Warn().Err(err).Msg("Error getting database handle")
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing database")
	}
}
