package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

var conf = mustLoad()

type Config struct {
	Configuration struct {
		// Catalog API
		MediaUserToken string `envconfig:"APPLE_META_TOKEN" default:""`
		BearerToken    string `envconfig:"APPLE_BEARER_TOKEN" default:""` // skips the token scrape when set
		Storefront     string `envconfig:"STOREFRONT" default:""`         // empty: ask the account's storefront
		Language       string `envconfig:"LANGUAGE" default:""`           // empty: storefront default language
		WebBaseURL     string `envconfig:"WEB_BASE_URL" default:"https://music.apple.com"`
		APIBaseURL     string `envconfig:"API_BASE_URL" default:"https://amp-api.music.apple.com"`

		RequestTimeoutSecs         int `envconfig:"REQUEST_TIMEOUT_SECS" default:"15"`
		CatalogRateLimitPerSecond  int `envconfig:"CATALOG_RATE_LIMIT_PER_SECOND" default:"5"`
		CatalogRateLimitBurst      int `envconfig:"CATALOG_RATE_LIMIT_BURST" default:"10"`
		CatalogMaxRetries          int `envconfig:"CATALOG_MAX_RETRIES" default:"3"`
		CircuitBreakerThreshold    int `envconfig:"CIRCUIT_BREAKER_THRESHOLD" default:"5"`      // Consecutive failures before circuit opens
		CircuitBreakerCooldownSecs int `envconfig:"CIRCUIT_BREAKER_COOLDOWN_SECS" default:"60"` // Seconds to wait before retrying

		// Export
		AlbumConcurrency int    `envconfig:"ALBUM_CONCURRENCY" default:"4"`
		OutputDir        string `envconfig:"OUTPUT_DIR" default:"."`
		CachePath        string `envconfig:"CACHE_PATH" default:""`
		CacheTTLHours    int    `envconfig:"CATALOG_CACHE_TTL_HOURS" default:"24"`
		StatsPath        string `envconfig:"STATS_PATH" default:""`

		// Server
		Port                string `envconfig:"PORT" default:"8080"`
		RateLimitPerSecond  int    `envconfig:"RATE_LIMIT_PER_SECOND" default:"2"`
		RateLimitBurstLimit int    `envconfig:"RATE_LIMIT_BURST_LIMIT" default:"5"`
		APIKey              string `envconfig:"API_KEY" default:""`
		CacheAccessToken    string `envconfig:"CACHE_ACCESS_TOKEN" default:""`

		LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	}

	FeatureFlags struct {
		CacheCompression bool `envconfig:"FF_CACHE_COMPRESSION" default:"true"`
		CatalogCache     bool `envconfig:"FF_CATALOG_CACHE" default:"false"`
	}
}

// RequestTimeout returns the per-request timeout for catalog calls
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Configuration.RequestTimeoutSecs) * time.Second
}

// CircuitBreakerCooldown returns how long the catalog breaker stays open
func (c Config) CircuitBreakerCooldown() time.Duration {
	return time.Duration(c.Configuration.CircuitBreakerCooldownSecs) * time.Second
}

// load loads the configuration from the environment.
func load() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Debugf("Error loading env config: %v", err)
	}

	cfg := Config{}
	err = envconfig.Process("", &cfg)
	return cfg, err
}

func mustLoad() Config {
	c, err := load()
	if err != nil {
		log.WithError(err).Warnf("Unable to load configuration")
	}

	return c
}

func Get() Config {
	return conf
}
