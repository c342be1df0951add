package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"uta-go/cache"
	"uta-go/circuitbreaker"
	"uta-go/logcolors"
	"uta-go/stats"

	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"
)

const includeSongs = "album,lyrics,syllable-lyrics"

// Options configure a Client. Zero values fall back to the defaults noted.
type Options struct {
	APIBaseURL     string // required
	MediaUserToken string // required for lyrics
	Storefront     string // empty: read from /v1/me/storefront
	Language       string // empty: storefront default language

	Tokens     *TokenSource
	HTTPClient *http.Client

	RateLimit  rate.Limit // requests per second, 0 means unlimited
	RateBurst  int
	MaxRetries int           // extra attempts after a 429
	Backoff    time.Duration // linear backoff unit between 429 retries, default 1s

	Breaker *circuitbreaker.CircuitBreaker // optional
	Cache   *cache.Store                   // optional
	Stats   *stats.Stats                   // default stats.Get()
}

// Client talks to the catalog API on behalf of one account
type Client struct {
	apiBase        string
	mediaUserToken string
	tokens         *TokenSource
	http           *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	backoff        time.Duration
	breaker        *circuitbreaker.CircuitBreaker
	cache          *cache.Store
	stats          *stats.Stats

	mu         sync.RWMutex
	storefront string
	language   string
}

// New builds a client; call Bootstrap before fetching
func New(opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Tokens == nil {
		opts.Tokens = NewTokenSource("https://music.apple.com", "", opts.HTTPClient)
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.Stats == nil {
		opts.Stats = stats.Get()
	}

	limit, burst := opts.RateLimit, opts.RateBurst
	if limit <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		apiBase:        strings.TrimRight(opts.APIBaseURL, "/"),
		mediaUserToken: opts.MediaUserToken,
		tokens:         opts.Tokens,
		http:           opts.HTTPClient,
		limiter:        rate.NewLimiter(limit, burst),
		maxRetries:     opts.MaxRetries,
		backoff:        opts.Backoff,
		breaker:        opts.Breaker,
		cache:          opts.Cache,
		stats:          opts.Stats,
		storefront:     strings.ToLower(opts.Storefront),
		language:       opts.Language,
	}
}

// Storefront returns the region requests are made against
func (c *Client) Storefront() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.storefront
}

// Language returns the BCP 47 tag sent with requests
func (c *Client) Language() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.language
}

// normalizeLanguage canonicalizes a BCP 47 tag ("EN_us" -> "en-US")
func normalizeLanguage(tag string) (string, error) {
	t, err := language.Parse(strings.ReplaceAll(strings.TrimSpace(tag), "_", "-"))
	if err != nil {
		return "", fmt.Errorf("invalid language tag %q: %w", tag, err)
	}
	return t.String(), nil
}

// Bootstrap fetches a bearer token and, unless both were configured, the
// account's storefront and its default language
func (c *Client) Bootstrap(ctx context.Context) error {
	if c.mediaUserToken == "" {
		return fmt.Errorf("media user token is not set")
	}
	if _, err := c.tokens.Token(ctx); err != nil {
		return fmt.Errorf("failed to get bearer token: %w", err)
	}

	storefront, lang := c.Storefront(), c.Language()
	if storefront == "" || lang == "" {
		body, err := c.get(ctx, c.apiBase+"/v1/me/storefront", nil)
		if err != nil {
			return fmt.Errorf("failed to fetch storefront: %w", err)
		}

		var resp storefrontResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("failed to parse storefront: %w", err)
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("account has no storefront")
		}

		if storefront == "" {
			storefront = resp.Data[0].ID
		}
		if lang == "" {
			lang = resp.Data[0].Attributes.DefaultLanguageTag
		}
	}

	lang, err := normalizeLanguage(lang)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.storefront, c.language = strings.ToLower(storefront), lang
	c.mu.Unlock()

	log.Infof("%s Using storefront %s, language %s", logcolors.LogStorefront, storefront, lang)
	return nil
}

// Song fetches one song with its lyrics relationships
func (c *Client) Song(ctx context.Context, id string) (*Track, error) {
	body, err := c.catalog(ctx, "songs", id)
	if err != nil {
		return nil, err
	}

	var resp songResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse song %s: %w", id, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("song %s: %w", id, ErrNotFound)
	}

	t := resp.Data[0].track()
	return &t, nil
}

// Album fetches an album and every track's lyrics relationships
func (c *Client) Album(ctx context.Context, id string) (*Album, error) {
	body, err := c.catalog(ctx, "albums", id)
	if err != nil {
		return nil, err
	}

	var resp albumResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse album %s: %w", id, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("album %s: %w", id, ErrNotFound)
	}

	data := resp.Data[0]
	album := &Album{
		ID:     data.ID,
		Name:   data.Attributes.Name,
		Artist: data.Attributes.ArtistName,
	}
	for _, track := range data.Relationships.Tracks.Data {
		album.Tracks = append(album.Tracks, track.track())
	}
	return album, nil
}

// catalog fetches /v1/catalog/<sf>/<kind>/<id>, going through the cache
func (c *Client) catalog(ctx context.Context, kind, id string) ([]byte, error) {
	storefront, lang := c.Storefront(), c.Language()
	if storefront == "" {
		return nil, fmt.Errorf("client not bootstrapped: no storefront")
	}

	key := cache.Key(storefront, kind, id, lang)
	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			c.stats.RecordCache(true)
			log.Debugf("%s Hit for %s", logcolors.LogCacheCatalog, key)
			return []byte(cached), nil
		}
		c.stats.RecordCache(false)
	}

	query := url.Values{}
	query.Set("l", lang)
	query.Set("include[songs]", includeSongs)

	u := fmt.Sprintf("%s/v1/catalog/%s/%s/%s", c.apiBase, url.PathEscape(storefront), kind, url.PathEscape(id))
	log.Infof("%s Fetching %s %s", logcolors.LogCatalog, strings.TrimSuffix(kind, "s"), id)

	body, err := c.get(ctx, u, query)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(key, string(body)); err != nil {
			log.Warnf("%s Failed to cache %s: %v", logcolors.LogCacheCatalog, key, err)
		}
	}
	return body, nil
}

// get performs an authenticated GET. 429s are retried with linear backoff,
// a 401 triggers one token refresh, 5xx and transport errors count against
// the circuit breaker.
func (c *Client) get(ctx context.Context, u string, query url.Values) ([]byte, error) {
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	refreshed := false
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		status, header, body, err := c.attempt(ctx, u)
		if err != nil {
			if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
				log.Warnf("%s Request blocked, circuit is %s (retry in %v)",
					logcolors.LogCircuitBreaker, c.breaker.State(), c.breaker.TimeUntilRetry())
			}
			c.stats.CatalogErrors.Add(1)
			return nil, err
		}

		switch {
		case status == http.StatusOK:
			return body, nil

		case status == http.StatusTooManyRequests && attempt < c.maxRetries:
			wait := retryAfter(header, time.Duration(attempt+1)*c.backoff)
			log.Warnf("%s 429 from catalog, retrying in %v (attempt %d/%d)",
				logcolors.LogRetry, wait, attempt+1, c.maxRetries)
			c.stats.CatalogRetries.Add(1)
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue

		case status == http.StatusUnauthorized && !refreshed && c.tokens.Refreshable():
			log.Warnf("%s 401 from catalog, refreshing bearer token", logcolors.LogBearerToken)
			c.tokens.Invalidate()
			refreshed = true
			continue
		}

		if status == http.StatusTooManyRequests && c.breaker != nil {
			c.breaker.RecordFailure()
		}
		c.stats.CatalogErrors.Add(1)
		return nil, &APIError{Status: status, URL: u, Body: string(body)}
	}
}

// attempt sends one request through the breaker. Only transport errors and
// 5xx responses come back as errors.
func (c *Client) attempt(ctx context.Context, u string) (status int, header http.Header, body []byte, err error) {
	send := func(ctx context.Context) error {
		status, header, body, err = c.send(ctx, u)
		if err != nil {
			return err
		}
		if status >= 500 {
			return &APIError{Status: status, URL: u, Body: string(body)}
		}
		return nil
	}

	c.stats.CatalogCalls.Add(1)
	if c.breaker == nil {
		err = send(ctx)
	} else {
		err = c.breaker.Do(ctx, send)
	}
	return status, header, body, err
}

func (c *Client) send(ctx context.Context, u string) (int, http.Header, []byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to get bearer token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, nil, err
	}

	lang := c.Language()
	if lang == "" {
		lang = "en-US"
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("media-user-token", c.mediaUserToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", lang+",en;q=0.9")
	req.Header.Set("Origin", "https://music.apple.com")
	req.Header.Set("Referer", "https://music.apple.com/")
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		log.Errorf("%s Request failed: %v", logcolors.LogHTTP, err)
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	log.Debugf("%s %s -> %d (%d bytes)", logcolors.LogHTTP, req.URL.Path, resp.StatusCode, len(body))
	return resp.StatusCode, resp.Header, body, nil
}

// retryAfter honors a Retry-After header given in seconds, capped at a minute
func retryAfter(h http.Header, fallback time.Duration) time.Duration {
	if secs, err := strconv.Atoi(h.Get("Retry-After")); err == nil && secs >= 0 {
		return min(time.Duration(secs)*time.Second, time.Minute)
	}
	return fallback
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
