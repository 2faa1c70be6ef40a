package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// CacheConfig holds all cache-related configuration
type CacheConfig struct {
	// Result cache, in-process layer
	ResultLRUSize int

	// Lifetime of a cached nearest-station result in both layers
	ResultTTLMinutes int

	// Decimal places kept when deriving a cache key from coordinates
	KeyPrecision int

	// DynamoDB settings
	TableName string

	// Geocode memoization
	GeocodeTTLMinutes int

	// General settings
	EnableLRUCache    bool
	EnableDynamoCache bool
}

const (
	// Default values
	defaultResultLRUSize     = 5000
	defaultResultTTLMinutes  = 24 * 60
	defaultKeyPrecision      = 4
	defaultTableName         = "septa-nearest-station-cache"
	defaultGeocodeTTLMinutes = 12 * 60
)

// GetCacheConfig returns the cache configuration from environment variables or defaults
func GetCacheConfig() *CacheConfig {
	config := &CacheConfig{
		ResultLRUSize:     getEnvInt("CACHE_RESULT_LRU_SIZE", defaultResultLRUSize),
		ResultTTLMinutes:  getEnvInt("CACHE_RESULT_TTL_MINUTES", defaultResultTTLMinutes),
		KeyPrecision:      getEnvInt("CACHE_KEY_PRECISION", defaultKeyPrecision),
		TableName:         getEnvString("CACHE_TABLE_NAME", defaultTableName),
		GeocodeTTLMinutes: getEnvInt("CACHE_GEOCODE_TTL_MINUTES", defaultGeocodeTTLMinutes),
		EnableLRUCache:    getEnvBool("CACHE_ENABLE_LRU", true),
		EnableDynamoCache: getEnvBool("CACHE_ENABLE_DYNAMO", true),
	}

	if config.KeyPrecision < 0 || config.KeyPrecision > 10 {
		log.Warn().Int("KeyPrecision", config.KeyPrecision).Msg("Cache key precision out of range, using default")
		config.KeyPrecision = defaultKeyPrecision
	}

	log.Debug().
		Int("ResultLRUSize", config.ResultLRUSize).
		Int("ResultTTLMinutes", config.ResultTTLMinutes).
		Int("KeyPrecision", config.KeyPrecision).
		Str("TableName", config.TableName).
		Int("GeocodeTTLMinutes", config.GeocodeTTLMinutes).
		Bool("EnableLRUCache", config.EnableLRUCache).
		Bool("EnableDynamoCache", config.EnableDynamoCache).
		Msg("Cache configuration loaded")

	return config
}

// Helper methods for the CacheConfig struct
func (c *CacheConfig) GetResultTTL() time.Duration {
	return time.Duration(c.ResultTTLMinutes) * time.Minute
}

func (c *CacheConfig) GetGeocodeTTL() time.Duration {
	return time.Duration(c.GeocodeTTLMinutes) * time.Minute
}

// Helper functions to get environment variables with defaults
func getEnvInt(key string, defaultVal int) int {
	if val, exists := os.LookupEnv(key); exists && val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
		log.Warn().Str("key", key).Msg("Invalid integer value in environment variable, using default")
	}
	return defaultVal
}

func getEnvString(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists && val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val, exists := os.LookupEnv(key); exists && val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}
