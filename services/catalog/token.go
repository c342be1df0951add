package catalog

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"uta-go/logcolors"

	log "github.com/sirupsen/logrus"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/110.0.0.0 Safari/537.36"

var (
	jsBundleRe = regexp.MustCompile(`/assets/index[\w~.-]*?\.js`)
	es256JWTRe = regexp.MustCompile(`"(eyJhbGciOiJFUzI1NiIsInR5cCI6IkpXVCIsImtpZCI6[^"]+)"`)
	anyJWTRe   = regexp.MustCompile(`"(eyJh[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+)"`)
)

// jwtClaims are the claims read from the developer token
type jwtClaims struct {
	Exp int64 `json:"exp"`
	Iat int64 `json:"iat"`
}

// TokenSource hands out the web player's developer token, scraping a fresh
// one from the web bundle when the cached token is missing or about to expire
type TokenSource struct {
	webBaseURL string
	httpClient *http.Client
	static     string

	// Refresh when less than this is left
	refreshThreshold time.Duration
	now              func() time.Time

	mu     sync.RWMutex
	token  string
	expiry time.Time
}

// NewTokenSource scrapes tokens from webBaseURL. A non-empty static token is
// returned as-is and never refreshed.
func NewTokenSource(webBaseURL, static string, httpClient *http.Client) *TokenSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &TokenSource{
		webBaseURL:       strings.TrimRight(webBaseURL, "/"),
		httpClient:       httpClient,
		static:           static,
		refreshThreshold: 5 * time.Minute,
		now:              time.Now,
	}
}

// Token returns a usable bearer token
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	if ts.static != "" {
		return ts.static, nil
	}

	ts.mu.RLock()
	if ts.token != "" && !ts.expiringSoon() {
		defer ts.mu.RUnlock()
		return ts.token, nil
	}
	ts.mu.RUnlock()

	return ts.refresh(ctx)
}

// Invalidate drops the cached token so the next call scrapes again
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.token = ""
	ts.expiry = time.Time{}
}

// Refreshable reports whether Invalidate can lead to a different token
func (ts *TokenSource) Refreshable() bool {
	return ts.static == ""
}

// Status returns the cached token's expiry for monitoring
func (ts *TokenSource) Status() (expiry time.Time, remaining time.Duration, needsRefresh bool) {
	if ts.static != "" {
		return time.Time{}, 0, false
	}

	ts.mu.RLock()
	defer ts.mu.RUnlock()
	if ts.expiry.IsZero() {
		return time.Time{}, 0, true
	}
	return ts.expiry, ts.expiry.Sub(ts.now()), ts.expiringSoon()
}

// expiringSoon must be called with mu held
func (ts *TokenSource) expiringSoon() bool {
	if ts.expiry.IsZero() {
		return true
	}
	return ts.now().Add(ts.refreshThreshold).After(ts.expiry)
}

func (ts *TokenSource) refresh(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	// another caller may have refreshed while we waited for the lock
	if ts.token != "" && !ts.expiringSoon() {
		return ts.token, nil
	}

	log.Infof("%s Refreshing bearer token...", logcolors.LogBearerToken)

	token, err := ts.scrape(ctx)
	if err != nil {
		return "", err
	}

	expiry, err := parseJWTExpiry(token)
	if err != nil {
		log.Warnf("%s Could not parse JWT expiry, using 1h default: %v", logcolors.LogBearerToken, err)
		expiry = ts.now().Add(time.Hour)
	}

	ts.token = token
	ts.expiry = expiry

	log.Infof("%s Bearer token refreshed, expires in %v (at %s)",
		logcolors.LogBearerToken, expiry.Sub(ts.now()).Round(time.Minute), expiry.Format(time.RFC3339))
	return token, nil
}

// StartMonitor refreshes the token in the background before it expires,
// until ctx is done
func (ts *TokenSource) StartMonitor(ctx context.Context, interval time.Duration) {
	if ts.static != "" {
		return
	}

	go func() {
		if _, err := ts.Token(ctx); err != nil {
			log.Errorf("%s Initial token fetch failed: %v", logcolors.LogBearerToken, err)
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ts.mu.RLock()
				needsRefresh := ts.expiringSoon()
				ts.mu.RUnlock()

				if needsRefresh {
					if _, err := ts.Token(ctx); err != nil {
						log.Errorf("%s Proactive token refresh failed: %v", logcolors.LogBearerToken, err)
					}
				}
			}
		}
	}()
}

func (ts *TokenSource) fetch(ctx context.Context, url, accept string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", accept)

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// scrape fetches the browse page, follows it to the main JS bundle and pulls
// the embedded developer token out of it
func (ts *TokenSource) scrape(ctx context.Context) (string, error) {
	html, err := ts.fetch(ctx, ts.webBaseURL+"/us/browse", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return "", fmt.Errorf("failed to fetch token source: %w", err)
	}

	jsPath := jsBundleRe.FindString(html)
	if jsPath == "" {
		return "", fmt.Errorf("could not find JS bundle path in HTML")
	}
	log.Debugf("%s Found JS bundle: %s", logcolors.LogBearerToken, jsPath)

	js, err := ts.fetch(ctx, ts.webBaseURL+jsPath, "*/*")
	if err != nil {
		return "", fmt.Errorf("failed to fetch JS bundle: %w", err)
	}

	for _, re := range []*regexp.Regexp{es256JWTRe, anyJWTRe} {
		if m := re.FindStringSubmatch(js); len(m) > 1 {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("could not extract JWT from JS bundle")
}

// parseJWTExpiry reads the exp claim without verifying the signature
func parseJWTExpiry(token string) (time.Time, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("invalid JWT format: expected 3 parts, got %d", len(parts))
	}

	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to decode JWT payload: %w", err)
	}

	var claims jwtClaims
	if err := json.Unmarshal(decoded, &claims); err != nil {
		return time.Time{}, fmt.Errorf("failed to parse JWT claims: %w", err)
	}
	if claims.Exp == 0 {
		return time.Time{}, fmt.Errorf("JWT has no exp claim")
	}

	return time.Unix(claims.Exp, 0), nil
}
