package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"uta-go/cache"
	"uta-go/circuitbreaker"
	"uta-go/services/catalog"

	"github.com/gorilla/mux"
)

const (
	lineTTML     = `<tt><body><div><p begin="00:01.200">Hello</p></div></body></tt>`
	syllableTTML = `<tt><body><div><p begin="1.000"><span begin="1.000">Hi</span></p></div></body></tt>`
	adminToken   = "admin-token"
)

type stubCatalog struct {
	song  *catalog.Track
	album *catalog.Album
	err   error
}

func (s *stubCatalog) Song(ctx context.Context, id string) (*catalog.Track, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.song, nil
}

func (s *stubCatalog) Album(ctx context.Context, id string) (*catalog.Album, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.album, nil
}

// setupTestEnvironment installs services backed by stub and returns a router
func setupTestEnvironment(t *testing.T, stub *stubCatalog) *mux.Router {
	t.Helper()

	prevSvc, prevConf := svc, conf
	t.Cleanup(func() {
		svc, conf = prevSvc, prevConf
	})

	conf.Configuration.CacheAccessToken = adminToken
	svc = &services{
		catalog: stub,
		breaker: circuitbreaker.New(circuitbreaker.Config{Name: "catalog", Threshold: 1, Cooldown: time.Minute}),
	}

	router := mux.NewRouter()
	setupRoutes(router)
	return router
}

func serve(router http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	return resp
}

func TestConvertHandler(t *testing.T) {
	router := setupTestEnvironment(t, &stubCatalog{})

	rec := serve(router, "POST", "/convert?format=lrc&artist=A&title=T", lineTTML, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("X-Lyrics-Format"); got != "lrc" {
		t.Errorf("Expected X-Lyrics-Format lrc, got %q", got)
	}

	var resp ConvertResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if resp.Lyrics != "[ar:A]\n[ti:T]\n[00:01.20]Hello\n" {
		t.Errorf("Unexpected lyrics: %q", resp.Lyrics)
	}
}

func TestConvertHandler_DefaultsToTTML(t *testing.T) {
	router := setupTestEnvironment(t, &stubCatalog{})

	rec := serve(router, "POST", "/convert", lineTTML, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp ConvertResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Format != "ttml" || !strings.Contains(resp.Lyrics, "Hello") {
		t.Errorf("Expected formatted TTML, got %+v", resp)
	}
}

func TestConvertHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		statusCode int
		errCode    string
	}{
		{"Unknown format", "POST", "/convert?format=srt", lineTTML, http.StatusBadRequest, "bad_request"},
		{"Missing title", "POST", "/convert?format=lrc&artist=A", lineTTML, http.StatusBadRequest, "bad_request"},
		{"Empty body", "POST", "/convert?format=lrc&artist=A&title=T", "   ", http.StatusBadRequest, "bad_request"},
		{"Malformed markup", "POST", "/convert?format=lrc&artist=A&title=T", "plain text", http.StatusUnprocessableEntity, "malformed_markup"},
		{"Syllable spans", "POST", "/convert?format=lrc&artist=A&title=T", syllableTTML, http.StatusUnprocessableEntity, "unsupported_feature"},
		{"Bad timestamp", "POST", "/convert?format=lrc&artist=A&title=T", `<tt><body><div><p begin="1.5s">x</p></div></body></tt>`, http.StatusUnprocessableEntity, "malformed_timestamp"},
		{"Too large", "POST", "/convert", strings.Repeat("a", maxConvertBody+1), http.StatusRequestEntityTooLarge, "body_too_large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestEnvironment(t, &stubCatalog{})

			rec := serve(router, tt.method, tt.target, tt.body, nil)
			if rec.Code != tt.statusCode {
				t.Fatalf("Expected status %d, got %d: %s", tt.statusCode, rec.Code, rec.Body.String())
			}
			if got := decodeError(t, rec); got.Error != tt.errCode {
				t.Errorf("Expected error %q, got %q", tt.errCode, got.Error)
			}
		})
	}
}

func TestConvertHandler_WrongMethod(t *testing.T) {
	router := setupTestEnvironment(t, &stubCatalog{})

	if rec := serve(router, "GET", "/convert", "", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestLyricsHandler_Song(t *testing.T) {
	stub := &stubCatalog{song: &catalog.Track{ID: "2", Name: "Song", Artist: "Artist", Album: "Album", Lyrics: lineTTML}}
	router := setupTestEnvironment(t, stub)

	rec := serve(router, "GET", "/lyrics?format=lrc&url="+
		"https%3A%2F%2Fmusic.apple.com%2Fus%2Falbum%2Fx%2F1%3Fi%3D2", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp LyricsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if resp.Kind != "song" || resp.ID != "2" || resp.Format != "lrc" {
		t.Errorf("Unexpected response header fields: %+v", resp)
	}
	if len(resp.Tracks) != 1 || resp.Tracks[0].Outcome != "written" {
		t.Fatalf("Expected one written track, got %+v", resp.Tracks)
	}
	if resp.Tracks[0].Lyrics != "[ar:Artist]\n[ti:Song]\n[00:01.20]Hello\n" {
		t.Errorf("Unexpected lyrics: %q", resp.Tracks[0].Lyrics)
	}
}

func TestLyricsHandler_Album(t *testing.T) {
	stub := &stubCatalog{album: &catalog.Album{
		ID:     "1",
		Name:   "Album",
		Artist: "Artist",
		Tracks: []catalog.Track{
			{ID: "a", Name: "One", Artist: "Artist", Lyrics: lineTTML},
			{ID: "b", Name: "Two", Artist: "Artist"},
			{ID: "c", Name: "Three", Artist: "Artist", SyllableLyrics: syllableTTML},
		},
	}}
	router := setupTestEnvironment(t, stub)

	rec := serve(router, "GET", "/lyrics?format=lrc&url=https://music.apple.com/us/album/x/1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp LyricsResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Kind != "album" || resp.Name != "Album" {
		t.Errorf("Unexpected album fields: %+v", resp)
	}

	expected := []string{"written", "no_lyrics", "no_lyrics"}
	if len(resp.Tracks) != len(expected) {
		t.Fatalf("Expected %d tracks, got %d", len(expected), len(resp.Tracks))
	}
	for i, want := range expected {
		if resp.Tracks[i].Outcome != want {
			t.Errorf("Track %d: expected %s, got %s", i, want, resp.Tracks[i].Outcome)
		}
	}
}

func TestLyricsHandler_Errors(t *testing.T) {
	songURL := "https://music.apple.com/us/song/x/2"

	tests := []struct {
		name       string
		stub       *stubCatalog
		query      string
		statusCode int
		errCode    string
	}{
		{"Missing url", &stubCatalog{}, "", http.StatusBadRequest, "bad_request"},
		{"Relative url", &stubCatalog{}, "url=/us/song/x/2", http.StatusBadRequest, "bad_request"},
		{"Bad format", &stubCatalog{}, "format=srt&url=" + songURL, http.StatusBadRequest, "bad_request"},
		{"Bad syllable", &stubCatalog{}, "syllable=maybe&url=" + songURL, http.StatusBadRequest, "bad_request"},
		{
			"No lyrics",
			&stubCatalog{song: &catalog.Track{Name: "Song", Lyrics: lineTTML}},
			"syllable=true&url=" + songURL,
			http.StatusNotFound, "no_lyrics",
		},
		{
			"Syllable to LRC",
			&stubCatalog{song: &catalog.Track{Name: "Song", Artist: "Artist", SyllableLyrics: syllableTTML}},
			"syllable=1&format=lrc&url=" + songURL,
			http.StatusUnprocessableEntity, "unsupported_feature",
		},
		{"Not in catalog", &stubCatalog{err: fmt.Errorf("song 2: %w", catalog.ErrNotFound)}, "url=" + songURL, http.StatusNotFound, "not_found"},
		{"Catalog rejects credentials", &stubCatalog{err: &catalog.APIError{Status: 401}}, "url=" + songURL, http.StatusBadGateway, "catalog_unauthorized"},
		{"Catalog rate limited", &stubCatalog{err: &catalog.APIError{Status: 429}}, "url=" + songURL, http.StatusServiceUnavailable, "catalog_rate_limited"},
		{"Timeout", &stubCatalog{err: context.DeadlineExceeded}, "url=" + songURL, http.StatusGatewayTimeout, "catalog_timeout"},
		{"Other", &stubCatalog{err: fmt.Errorf("boom")}, "url=" + songURL, http.StatusBadGateway, "catalog_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestEnvironment(t, tt.stub)

			rec := serve(router, "GET", "/lyrics?"+tt.query, "", nil)
			if rec.Code != tt.statusCode {
				t.Fatalf("Expected status %d, got %d: %s", tt.statusCode, rec.Code, rec.Body.String())
			}
			if got := decodeError(t, rec); got.Error != tt.errCode {
				t.Errorf("Expected error %q, got %q", tt.errCode, got.Error)
			}
		})
	}
}

func TestLyricsHandler_CircuitOpen(t *testing.T) {
	router := setupTestEnvironment(t, &stubCatalog{err: circuitbreaker.ErrCircuitOpen})
	svc.breaker.RecordFailure()

	rec := serve(router, "GET", "/lyrics?url=https://music.apple.com/us/song/x/2", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Expected Retry-After 60, got %q", got)
	}
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name        string
		trip        bool
		auth        string
		status      string
		wantDetails bool
	}{
		{"Healthy", false, "", "ok", false},
		{"Breaker open", true, "", "degraded", false},
		{"Authorized details", false, adminToken, "ok", true},
		{"Wrong token", false, "nope", "ok", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestEnvironment(t, &stubCatalog{})
			if tt.trip {
				svc.breaker.RecordFailure()
			}

			rec := serve(router, "GET", "/health", "", map[string]string{"Authorization": tt.auth})
			if rec.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d", rec.Code)
			}

			var health map[string]interface{}
			json.NewDecoder(rec.Body).Decode(&health)
			if health["status"] != tt.status {
				t.Errorf("Expected status %q, got %v", tt.status, health["status"])
			}
			if _, ok := health["circuit_breaker_failures"]; ok != tt.wantDetails {
				t.Errorf("Expected details %v, got %v", tt.wantDetails, ok)
			}
		})
	}
}

func TestAdminEndpoints_RequireToken(t *testing.T) {
	endpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/stats"},
		{"GET", "/circuit-breaker"},
		{"POST", "/circuit-breaker/reset"},
		{"GET", "/cache"},
		{"POST", "/cache/backup"},
		{"POST", "/cache/clear"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			router := setupTestEnvironment(t, &stubCatalog{})

			if rec := serve(router, ep.method, ep.path, "", nil); rec.Code != http.StatusUnauthorized {
				t.Errorf("Expected 401 without token, got %d", rec.Code)
			}

			// no configured token never matches an empty header
			conf.Configuration.CacheAccessToken = ""
			if rec := serve(router, ep.method, ep.path, "", map[string]string{"Authorization": ""}); rec.Code != http.StatusUnauthorized {
				t.Errorf("Expected 401 with no token configured, got %d", rec.Code)
			}
		})
	}
}

func TestStatsHandler(t *testing.T) {
	router := setupTestEnvironment(t, &stubCatalog{})

	rec := serve(router, "GET", "/stats", "", map[string]string{"Authorization": adminToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var snapshot map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&snapshot)
	for _, key := range []string{"requests", "conversions", "catalog", "circuit_breaker"} {
		if _, ok := snapshot[key]; !ok {
			t.Errorf("Expected %q in stats snapshot", key)
		}
	}
	if _, ok := snapshot["cache_storage"]; ok {
		t.Error("Expected no cache_storage while the cache is disabled")
	}
}

func TestCircuitBreakerEndpoints(t *testing.T) {
	router := setupTestEnvironment(t, &stubCatalog{})
	auth := map[string]string{"Authorization": adminToken}
	svc.breaker.RecordFailure()

	rec := serve(router, "GET", "/circuit-breaker", "", auth)
	var status map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&status)
	if status["state"] != "OPEN" {
		t.Errorf("Expected OPEN, got %v", status["state"])
	}

	if rec := serve(router, "POST", "/circuit-breaker/reset", "", auth); rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if svc.breaker.State() != circuitbreaker.StateClosed {
		t.Errorf("Expected CLOSED after reset, got %s", svc.breaker.State())
	}
}

func TestCacheEndpoints(t *testing.T) {
	router := setupTestEnvironment(t, &stubCatalog{})
	auth := map[string]string{"Authorization": adminToken}

	if rec := serve(router, "POST", "/cache/clear", "", auth); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 with cache disabled, got %d", rec.Code)
	}

	store, err := cache.Open(filepath.Join(t.TempDir(), "catalog.db"), cache.Options{})
	if err != nil {
		t.Fatalf("Failed to open cache: %v", err)
	}
	defer store.Close()
	svc.cache = store
	store.Set(cache.Key("us", "songs", "1", "en-US"), `{"data":[]}`)

	rec := serve(router, "GET", "/cache", "", auth)
	var cs CacheStatsResponse
	json.NewDecoder(rec.Body).Decode(&cs)
	if !cs.Enabled || cs.NumberOfKeys != 1 {
		t.Errorf("Expected enabled cache with 1 key, got %+v", cs)
	}

	rec = serve(router, "POST", "/cache/clear", "", auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var cleared map[string]string
	json.NewDecoder(rec.Body).Decode(&cleared)
	if _, err := os.Stat(cleared["backup_path"]); err != nil {
		t.Errorf("Expected backup at %q: %v", cleared["backup_path"], err)
	}
	if keys, _ := store.Stats(); keys != 0 {
		t.Errorf("Expected empty cache after clear, got %d keys", keys)
	}
}

func TestHelpHandler(t *testing.T) {
	router := setupTestEnvironment(t, &stubCatalog{})

	rec := serve(router, "GET", "/", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "/lyrics") {
		t.Errorf("Expected help listing /lyrics, got %d: %s", rec.Code, rec.Body.String())
	}
}
