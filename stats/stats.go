package stats

import (
	"math"
	"sync/atomic"
	"time"
)

// Outcome is the per-track result of a conversion
type Outcome string

const (
	OutcomeWritten     Outcome = "written"
	OutcomeNoLyrics    Outcome = "no_lyrics"
	OutcomeUnsupported Outcome = "unsupported"
	OutcomeFailed      Outcome = "failed"
)

// Stats holds process-wide counters. All fields are safe for concurrent use.
type Stats struct {
	StartTime time.Time

	// Requests by endpoint
	TotalRequests   atomic.Int64
	ConvertRequests atomic.Int64
	LyricsRequests  atomic.Int64
	HealthRequests  atomic.Int64
	StatsRequests   atomic.Int64
	OtherRequests   atomic.Int64

	// Conversion outcomes
	Written     atomic.Int64
	NoLyrics    atomic.Int64
	Unsupported atomic.Int64
	Failed      atomic.Int64

	// Catalog API
	CatalogCalls      atomic.Int64
	CatalogRetries    atomic.Int64
	CatalogErrors     atomic.Int64
	CacheHits         atomic.Int64
	CacheMisses       atomic.Int64
	BreakerTrips      atomic.Int64
	RateLimitExceeded atomic.Int64

	// Response status codes
	Status2xx atomic.Int64
	Status4xx atomic.Int64
	Status5xx atomic.Int64

	// Response times in microseconds
	totalResponseTime atomic.Int64
	responseCount     atomic.Int64
	minResponseTime   atomic.Int64
	maxResponseTime   atomic.Int64
}

// New returns zeroed stats starting now
func New() *Stats {
	s := &Stats{StartTime: time.Now()}
	s.minResponseTime.Store(math.MaxInt64)
	return s
}

var global = New()

// Get returns the process-wide stats
func Get() *Stats {
	return global
}

// counters names every persisted counter; the names double as JSON keys
func (s *Stats) counters() map[string]*atomic.Int64 {
	return map[string]*atomic.Int64{
		"total_requests":      &s.TotalRequests,
		"convert_requests":    &s.ConvertRequests,
		"lyrics_requests":     &s.LyricsRequests,
		"health_requests":     &s.HealthRequests,
		"stats_requests":      &s.StatsRequests,
		"other_requests":      &s.OtherRequests,
		"written":             &s.Written,
		"no_lyrics":           &s.NoLyrics,
		"unsupported":         &s.Unsupported,
		"failed":              &s.Failed,
		"catalog_calls":       &s.CatalogCalls,
		"catalog_retries":     &s.CatalogRetries,
		"catalog_errors":      &s.CatalogErrors,
		"cache_hits":          &s.CacheHits,
		"cache_misses":        &s.CacheMisses,
		"breaker_trips":       &s.BreakerTrips,
		"rate_limit_exceeded": &s.RateLimitExceeded,
		"status_2xx":          &s.Status2xx,
		"status_4xx":          &s.Status4xx,
		"status_5xx":          &s.Status5xx,
		"total_response_time": &s.totalResponseTime,
		"response_count":      &s.responseCount,
	}
}

// RecordRequest counts a request to an endpoint
func (s *Stats) RecordRequest(endpoint string) {
	s.TotalRequests.Add(1)
	switch endpoint {
	case "/convert":
		s.ConvertRequests.Add(1)
	case "/lyrics":
		s.LyricsRequests.Add(1)
	case "/health":
		s.HealthRequests.Add(1)
	case "/stats":
		s.StatsRequests.Add(1)
	default:
		s.OtherRequests.Add(1)
	}
}

// RecordOutcome counts one converted (or skipped) track
func (s *Stats) RecordOutcome(o Outcome) {
	switch o {
	case OutcomeWritten:
		s.Written.Add(1)
	case OutcomeNoLyrics:
		s.NoLyrics.Add(1)
	case OutcomeUnsupported:
		s.Unsupported.Add(1)
	case OutcomeFailed:
		s.Failed.Add(1)
	}
}

// RecordCache counts a catalog cache lookup
func (s *Stats) RecordCache(hit bool) {
	if hit {
		s.CacheHits.Add(1)
	} else {
		s.CacheMisses.Add(1)
	}
}

// RecordStatusCode counts a response status class
func (s *Stats) RecordStatusCode(code int) {
	switch {
	case code >= 200 && code < 300:
		s.Status2xx.Add(1)
	case code >= 400 && code < 500:
		s.Status4xx.Add(1)
	case code >= 500:
		s.Status5xx.Add(1)
	}
}

// RecordResponseTime tracks min, max and mean response time
func (s *Stats) RecordResponseTime(d time.Duration) {
	us := d.Microseconds()
	s.totalResponseTime.Add(us)
	s.responseCount.Add(1)

	for {
		cur := s.minResponseTime.Load()
		if us >= cur || s.minResponseTime.CompareAndSwap(cur, us) {
			break
		}
	}
	for {
		cur := s.maxResponseTime.Load()
		if us <= cur || s.maxResponseTime.CompareAndSwap(cur, us) {
			break
		}
	}
}

// Uptime returns time since StartTime
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// CacheHitRate returns the catalog cache hit rate as a percentage
func (s *Stats) CacheHitRate() float64 {
	hits, misses := s.CacheHits.Load(), s.CacheMisses.Load()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses) * 100
}

// AvgResponseTime returns the mean response time
func (s *Stats) AvgResponseTime() time.Duration {
	count := s.responseCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(s.totalResponseTime.Load()/count) * time.Microsecond
}

// MinResponseTime returns the fastest response, 0 before any
func (s *Stats) MinResponseTime() time.Duration {
	min := s.minResponseTime.Load()
	if min == math.MaxInt64 {
		return 0
	}
	return time.Duration(min) * time.Microsecond
}

// MaxResponseTime returns the slowest response
func (s *Stats) MaxResponseTime() time.Duration {
	return time.Duration(s.maxResponseTime.Load()) * time.Microsecond
}

// Snapshot returns a point-in-time view for the /stats endpoint
func (s *Stats) Snapshot() map[string]interface{} {
	uptime := s.Uptime()

	return map[string]interface{}{
		"server": map[string]interface{}{
			"start_time":     s.StartTime.Format(time.RFC3339),
			"uptime":         uptime.Round(time.Second).String(),
			"uptime_seconds": int64(uptime.Seconds()),
		},
		"requests": map[string]interface{}{
			"total":   s.TotalRequests.Load(),
			"convert": s.ConvertRequests.Load(),
			"lyrics":  s.LyricsRequests.Load(),
			"health":  s.HealthRequests.Load(),
			"stats":   s.StatsRequests.Load(),
			"other":   s.OtherRequests.Load(),
		},
		"conversions": map[string]interface{}{
			string(OutcomeWritten):     s.Written.Load(),
			string(OutcomeNoLyrics):    s.NoLyrics.Load(),
			string(OutcomeUnsupported): s.Unsupported.Load(),
			string(OutcomeFailed):      s.Failed.Load(),
		},
		"catalog": map[string]interface{}{
			"calls":          s.CatalogCalls.Load(),
			"retries":        s.CatalogRetries.Load(),
			"errors":         s.CatalogErrors.Load(),
			"breaker_trips":  s.BreakerTrips.Load(),
			"cache_hits":     s.CacheHits.Load(),
			"cache_misses":   s.CacheMisses.Load(),
			"cache_hit_rate": s.CacheHitRate(),
		},
		"rate_limiting": map[string]interface{}{
			"exceeded": s.RateLimitExceeded.Load(),
		},
		"responses": map[string]interface{}{
			"2xx": s.Status2xx.Load(),
			"4xx": s.Status4xx.Load(),
			"5xx": s.Status5xx.Load(),
		},
		"response_times": map[string]interface{}{
			"avg": s.AvgResponseTime().String(),
			"min": s.MinResponseTime().String(),
			"max": s.MaxResponseTime().String(),
		},
	}
}
