package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"uta-go/cache"
	"uta-go/circuitbreaker"
	"uta-go/logcolors"
	"uta-go/services/catalog"
	"uta-go/services/export"
	"uta-go/stats"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// services holds everything built from the configuration at startup
type services struct {
	catalog    export.Catalog
	client     *catalog.Client
	tokens     *catalog.TokenSource
	breaker    *circuitbreaker.CircuitBreaker
	cache      *cache.Store // nil unless FF_CATALOG_CACHE and CACHE_PATH are set
	statsStore *stats.Store // nil unless STATS_PATH is set
}

var svc *services

func newCatalogBreaker() *circuitbreaker.CircuitBreaker {
	return circuitbreaker.New(circuitbreaker.Config{
		Name:      "catalog",
		Threshold: conf.Configuration.CircuitBreakerThreshold,
		Cooldown:  conf.CircuitBreakerCooldown(),
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			prefix := logcolors.CircuitBreakerPrefix(name)
			switch to {
			case circuitbreaker.StateOpen:
				stats.Get().BreakerTrips.Add(1)
				log.Warnf("%s %s -> %s, pausing catalog requests for %v", prefix, from, to, conf.CircuitBreakerCooldown())
			case circuitbreaker.StateHalfOpen:
				log.Infof("%s %s -> %s, probing catalog", prefix, from, to)
			default:
				log.Infof("%s %s -> %s, catalog recovered", prefix, from, to)
			}
		},
	})
}

func openCatalogCache() (*cache.Store, error) {
	if !conf.FeatureFlags.CatalogCache || conf.Configuration.CachePath == "" {
		log.Debugf("%s Catalog cache disabled", logcolors.LogCacheInit)
		return nil, nil
	}

	store, err := cache.Open(conf.Configuration.CachePath, cache.Options{
		Compression: conf.FeatureFlags.CacheCompression,
		TTL:         time.Duration(conf.Configuration.CacheTTLHours) * time.Hour,
	})
	if err != nil {
		return nil, err
	}

	keys, kb := store.Stats()
	log.Infof("%s Catalog cache at %s (%d keys, %d KB)", logcolors.LogCacheInit, conf.Configuration.CachePath, keys, kb)
	return store, nil
}

func openStatsStore() (*stats.Store, error) {
	if conf.Configuration.StatsPath == "" {
		return nil, nil
	}

	store, err := stats.NewStore(conf.Configuration.StatsPath, stats.Get())
	if err != nil {
		return nil, err
	}
	if err := store.Load(); err != nil {
		log.Warnf("%s Failed to load saved stats: %v", logcolors.LogStats, err)
	}
	return store, nil
}

// setupServices wires the catalog client and its supporting stores, then
// bootstraps the client against the account
func setupServices(ctx context.Context) (*services, error) {
	c := conf.Configuration
	if c.MediaUserToken == "" {
		return nil, fmt.Errorf("APPLE_META_TOKEN is not set")
	}

	s := &services{breaker: newCatalogBreaker()}

	var err error
	if s.cache, err = openCatalogCache(); err != nil {
		return nil, fmt.Errorf("failed to open catalog cache: %w", err)
	}
	if s.statsStore, err = openStatsStore(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to open stats store: %w", err)
	}

	httpClient := &http.Client{Timeout: conf.RequestTimeout()}
	s.tokens = catalog.NewTokenSource(c.WebBaseURL, c.BearerToken, httpClient)
	s.client = catalog.New(catalog.Options{
		APIBaseURL:     c.APIBaseURL,
		MediaUserToken: c.MediaUserToken,
		Storefront:     c.Storefront,
		Language:       c.Language,
		Tokens:         s.tokens,
		HTTPClient:     httpClient,
		RateLimit:      rate.Limit(c.CatalogRateLimitPerSecond),
		RateBurst:      c.CatalogRateLimitBurst,
		MaxRetries:     c.CatalogMaxRetries,
		Breaker:        s.breaker,
		Cache:          s.cache,
		Stats:          stats.Get(),
	})
	s.catalog = s.client

	if err := s.client.Bootstrap(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *services) Close() {
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			log.Warnf("%s Failed to close cache: %v", logcolors.LogCache, err)
		}
	}
	if s.statsStore != nil {
		if err := s.statsStore.Close(); err != nil {
			log.Warnf("%s Failed to close stats store: %v", logcolors.LogStats, err)
		}
	}
}
