package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ServiceAreaConfig describes the circle the finder answers queries in.
type ServiceAreaConfig struct {
	CenterLat   float64 `yaml:"centerLat" validate:"gte=-90,lte=90"`
	CenterLon   float64 `yaml:"centerLon" validate:"gte=-180,lte=180"`
	CenterName  string  `yaml:"centerName" validate:"required"`
	MaxRadiusKm float64 `yaml:"maxRadiusKm" validate:"gt=0"`
}

// AuthConfig holds the bearer token settings.
type AuthConfig struct {
	SecretKey               string `yaml:"-" validate:"required"`
	Algorithm               string `yaml:"algorithm" validate:"oneof=HS256 HS384 HS512"`
	AccessTokenExpireMinute int    `yaml:"accessTokenExpireMinutes" validate:"gt=0"`
}

type Config struct {
	Environment string            `yaml:"environment"`
	LogLevel    zerolog.Level     `yaml:"-"`
	Port        int               `yaml:"port" validate:"gt=0,lte=65535"`
	HTTPTimeout time.Duration     `yaml:"httpTimeout" validate:"gt=0"`
	MaxRetries  int               `yaml:"maxRetries" validate:"gte=1"`
	Stations    string            `yaml:"stationsSource" validate:"required"`
	Nominatim   string            `yaml:"nominatimBaseURL" validate:"required,url"`
	OSRM        string            `yaml:"osrmBaseURL" validate:"required,url"`
	UserAgent   string            `yaml:"userAgent" validate:"required"`
	DatabaseURL string            `yaml:"-"`
	CORSOrigins []string          `yaml:"corsOrigins" validate:"min=1"`
	ServiceArea ServiceAreaConfig `yaml:"serviceArea" validate:"required"`
	Auth        AuthConfig        `yaml:"auth"`
}

type Option func(*Config)

// WithEnvironment allows setting the environment
func WithEnvironment(env string) Option {
	return func(c *Config) {
		c.Environment = env
	}
}

// WithLogLevel allows setting the log level
func WithLogLevel(level string) Option {
	return func(c *Config) {
		parsedLevel, err := zerolog.ParseLevel(level)
		if err != nil {
			parsedLevel = zerolog.InfoLevel
		}
		c.LogLevel = parsedLevel
	}
}

// WithHTTPTimeout allows setting the timeout for outbound calls
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.HTTPTimeout = timeout
	}
}

func WithPort(port int) Option {
	return func(c *Config) {
		c.Port = port
	}
}

func WithMaxRetries(n int) Option {
	return func(c *Config) {
		c.MaxRetries = n
	}
}

// WithStationsSource sets the dataset location, a file path or an s3:// URL
func WithStationsSource(source string) Option {
	return func(c *Config) {
		c.Stations = source
	}
}

func WithNominatimBaseURL(u string) Option {
	return func(c *Config) {
		c.Nominatim = u
	}
}

func WithOSRMBaseURL(u string) Option {
	return func(c *Config) {
		c.OSRM = u
	}
}

func WithDatabaseURL(dsn string) Option {
	return func(c *Config) {
		c.DatabaseURL = dsn
	}
}

func WithServiceArea(area ServiceAreaConfig) Option {
	return func(c *Config) {
		c.ServiceArea = area
	}
}

// WithCORSOrigins sets the origins allowed to call the API. Nil keeps the default.
func WithCORSOrigins(origins []string) Option {
	return func(c *Config) {
		if len(origins) > 0 {
			c.CORSOrigins = origins
		}
	}
}

// WithAuth sets the token signing settings. Empty values keep the defaults.
func WithAuth(secret, algorithm string, expireMinutes int) Option {
	return func(c *Config) {
		if secret != "" {
			c.Auth.SecretKey = secret
		}
		if algorithm != "" {
			c.Auth.Algorithm = algorithm
		}
		if expireMinutes > 0 {
			c.Auth.AccessTokenExpireMinute = expireMinutes
		}
	}
}

// New creates a new configuration with default values
func New(opts ...Option) *Config {
	cfg := &Config{
		Environment: "production",
		LogLevel:    zerolog.InfoLevel,
		Port:        8080,
		HTTPTimeout: 10 * time.Second,
		MaxRetries:  1,
		Stations:    "data/SEPTARegionalRailStations2016/doc.kml",
		Nominatim:   "https://nominatim.openstreetmap.org",
		OSRM:        "http://router.project-osrm.org",
		UserAgent:   "SEPTA_Station_Finder_API",
		CORSOrigins: []string{"*"},
		ServiceArea: ServiceAreaConfig{
			CenterLat:   39.9526,
			CenterLon:   -75.1652,
			CenterName:  "Philadelphia, PA",
			MaxRadiusKm: 80,
		},
		Auth: AuthConfig{
			Algorithm:               "HS256",
			AccessTokenExpireMinute: 30,
		},
	}

	// Apply options
	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// InitializeLogging sets up logging based on the configuration
func (c *Config) InitializeLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(c.LogLevel)

	// Setup console logger for development environments
	if c.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "local" || c.Environment == "development"
}

// TokenTTL is the lifetime of issued access tokens
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.AccessTokenExpireMinute) * time.Minute
}

// Validate checks the assembled configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ApplyFile overlays values from a YAML file on top of c.
// Secrets are never read from the file.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// When CONFIG_FILE is set the file is applied first and the environment wins.
func LoadFromEnv() (*Config, error) {
	cfg := New()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
		log.Debug().Str("path", path).Msg("Applied config file")
	}

	opts := []Option{
		WithEnvironment(getEnvOrDefault("ENV", cfg.Environment)),
		WithLogLevel(getEnvOrDefault("LOG_LEVEL", cfg.LogLevel.String())),
		WithHTTPTimeout(getDurationEnvOrDefault("HTTP_TIMEOUT", cfg.HTTPTimeout)),
		WithPort(getIntEnvOrDefault("PORT", cfg.Port)),
		WithMaxRetries(getIntEnvOrDefault("MAX_RETRIES", cfg.MaxRetries)),
		WithStationsSource(getEnvOrDefault("STATIONS_SOURCE", cfg.Stations)),
		WithNominatimBaseURL(getEnvOrDefault("NOMINATIM_BASE_URL", cfg.Nominatim)),
		WithOSRMBaseURL(getEnvOrDefault("OSRM_BASE_URL", cfg.OSRM)),
		WithDatabaseURL(os.Getenv("DATABASE_URL")),
		WithCORSOrigins(getListEnv("CORS_ALLOWED_ORIGINS")),
		WithAuth(
			os.Getenv("SECRET_KEY"),
			os.Getenv("ALGORITHM"),
			getIntEnvOrDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 0),
		),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getListEnv splits a comma separated variable, dropping blank entries
func getListEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Warn().Str("key", key).Msg("Invalid integer value in environment variable, using default")
	}
	return defaultValue
}

func getDurationEnvOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
