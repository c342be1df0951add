package main

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"uta-go/circuitbreaker"
	"uta-go/logcolors"
	"uta-go/services/catalog"
	"uta-go/services/convert"
	"uta-go/services/export"
	"uta-go/services/lyricerr"
	"uta-go/stats"

	log "github.com/sirupsen/logrus"
)

const maxConvertBody = 5 << 20

// authorized reports whether the request carries CACHE_ACCESS_TOKEN.
// Admin endpoints stay closed while no token is configured.
func authorized(r *http.Request) bool {
	token := conf.Configuration.CacheAccessToken
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), []byte(token)) == 1
}

// errorCode turns a lyricerr kind into a snake_case API error code
func errorCode(kind lyricerr.Kind) string {
	return strings.ReplaceAll(kind.String(), " ", "_")
}

func writeConversionError(w http.ResponseWriter, r *http.Request, err error) {
	if kind, ok := lyricerr.KindOf(err); ok {
		Respond(w, r).Fail(http.StatusUnprocessableEntity, errorCode(kind), err.Error())
		return
	}
	log.Errorf("%s Unexpected conversion error: %v", logcolors.LogConvert, err)
	Respond(w, r).Fail(http.StatusInternalServerError, "internal_error", err.Error())
}

func writeCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		Respond(w, r).Fail(http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		retry := int(math.Ceil(svc.breaker.TimeUntilRetry().Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
		Respond(w, r).Fail(http.StatusServiceUnavailable, "catalog_unavailable", err.Error())
	case errors.Is(err, catalog.ErrRateLimited):
		Respond(w, r).Fail(http.StatusServiceUnavailable, "catalog_rate_limited", err.Error())
	case errors.Is(err, catalog.ErrUnauthorized):
		Respond(w, r).Fail(http.StatusBadGateway, "catalog_unauthorized", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		Respond(w, r).Fail(http.StatusGatewayTimeout, "catalog_timeout", err.Error())
	default:
		Respond(w, r).Fail(http.StatusBadGateway, "catalog_error", err.Error())
	}
}

// convertHandler converts a TTML request body.
// Query: format=ttml|lrc, artist, title.
func convertHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, err := convert.ParseMode(q.Get("format"))
	if err != nil {
		Respond(w, r).Fail(http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	if mode == convert.LineLyric && (q.Get("artist") == "" || q.Get("title") == "") {
		Respond(w, r).Fail(http.StatusBadRequest, "bad_request", "artist and title are required for lrc output")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxConvertBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Respond(w, r).Fail(http.StatusRequestEntityTooLarge, "body_too_large",
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		Respond(w, r).Fail(http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		Respond(w, r).Fail(http.StatusBadRequest, "bad_request", "request body must contain TTML")
		return
	}

	out, err := convert.Convert(string(body), q.Get("artist"), q.Get("title"), mode)
	stats.Get().RecordOutcome(export.OutcomeOf(err))
	if err != nil {
		log.Warnf("%s Conversion to %s failed: %v", logcolors.LogConvert, mode, err)
		writeConversionError(w, r, err)
		return
	}

	Respond(w, r).SetFormat(mode.String()).JSON(ConvertResponse{Format: mode.String(), Lyrics: out})
}

func renderTrack(t catalog.Track, mode convert.Mode, syllable bool) (TrackLyrics, error) {
	out, err := export.Render(t, mode, syllable)
	outcome := export.OutcomeOf(err)
	stats.Get().RecordOutcome(outcome)

	tl := TrackLyrics{
		ID:      t.ID,
		Name:    t.Name,
		Artist:  t.Artist,
		Album:   t.Album,
		Outcome: string(outcome),
		Lyrics:  out,
	}
	if err != nil {
		tl.Error = err.Error()
	}
	return tl, err
}

// lyricsHandler fetches lyrics for a catalog URL.
// Query: url, format=ttml|lrc, syllable=true|false.
func lyricsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	raw := q.Get("url")
	if raw == "" {
		Respond(w, r).Fail(http.StatusBadRequest, "bad_request", "url query parameter is required")
		return
	}
	target, err := catalog.ParseURL(raw)
	if err != nil {
		Respond(w, r).Fail(http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	mode, err := convert.ParseMode(q.Get("format"))
	if err != nil {
		Respond(w, r).Fail(http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	syllable := false
	if s := q.Get("syllable"); s != "" {
		if syllable, err = strconv.ParseBool(s); err != nil {
			Respond(w, r).Fail(http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid syllable value %q", s))
			return
		}
	}

	resp := LyricsResponse{
		Kind:     target.Kind.String(),
		ID:       target.ID,
		Format:   mode.String(),
		Syllable: syllable,
	}

	if target.Kind == catalog.KindSong {
		track, err := svc.catalog.Song(r.Context(), target.ID)
		if err != nil {
			log.Warnf("%s Song %s: %v", logcolors.LogCatalog, target.ID, err)
			writeCatalogError(w, r, err)
			return
		}

		tl, err := renderTrack(*track, mode, syllable)
		switch {
		case errors.Is(err, export.ErrNoLyrics):
			Respond(w, r).Fail(http.StatusNotFound, "no_lyrics", fmt.Sprintf("%s has no lyrics", track.Name))
			return
		case err != nil:
			writeConversionError(w, r, err)
			return
		}

		resp.Name, resp.Artist = track.Name, track.Artist
		resp.Tracks = []TrackLyrics{tl}
		Respond(w, r).SetFormat(mode.String()).JSON(resp)
		return
	}

	album, err := svc.catalog.Album(r.Context(), target.ID)
	if err != nil {
		log.Warnf("%s Album %s: %v", logcolors.LogCatalog, target.ID, err)
		writeCatalogError(w, r, err)
		return
	}

	resp.Name, resp.Artist = album.Name, album.Artist
	resp.Tracks = make([]TrackLyrics, 0, len(album.Tracks))
	for _, t := range album.Tracks {
		tl, _ := renderTrack(t, mode, syllable)
		resp.Tracks = append(resp.Tracks, tl)
	}
	Respond(w, r).SetFormat(mode.String()).JSON(resp)
}

func getStats(w http.ResponseWriter, r *http.Request) {
	if !authorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	snapshot := stats.Get().Snapshot()

	if svc.cache != nil {
		numKeys, sizeInKB := svc.cache.Stats()
		snapshot["cache_storage"] = map[string]interface{}{
			"keys":    numKeys,
			"size_kb": sizeInKB,
			"size_mb": float64(sizeInKB) / 1024,
		}
	}

	snapshot["circuit_breaker"] = map[string]interface{}{
		"state":            svc.breaker.State().String(),
		"failures":         svc.breaker.Failures(),
		"time_until_retry": svc.breaker.TimeUntilRetry().String(),
	}

	Respond(w, r).JSON(snapshot)
}

func getHealthStatus(w http.ResponseWriter, r *http.Request) {
	state := svc.breaker.State()

	health := map[string]interface{}{
		"status":          "ok",
		"circuit_breaker": state.String(),
	}
	if svc.client != nil {
		health["storefront"] = svc.client.Storefront()
		health["language"] = svc.client.Language()
	}

	if state == circuitbreaker.StateOpen {
		health["status"] = "degraded"
		health["circuit_breaker_retry_in"] = svc.breaker.TimeUntilRetry().String()
	}

	if authorized(r) {
		health["circuit_breaker_failures"] = svc.breaker.Failures()
		health["cache_enabled"] = svc.cache != nil

		if svc.tokens != nil {
			token := map[string]interface{}{"refreshable": svc.tokens.Refreshable()}
			if expiry, remaining, needsRefresh := svc.tokens.Status(); !expiry.IsZero() {
				token["expires"] = expiry.Format("2006-01-02 15:04:05")
				token["remaining"] = remaining.Round(time.Second).String()
				token["needs_refresh"] = needsRefresh
			}
			health["bearer_token"] = token
		}
	}

	Respond(w, r).JSON(health)
}

func getCircuitBreakerStatus(w http.ResponseWriter, r *http.Request) {
	if !authorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	Respond(w, r).JSON(map[string]interface{}{
		"name":             svc.breaker.Name(),
		"state":            svc.breaker.State().String(),
		"failures":         svc.breaker.Failures(),
		"time_until_retry": svc.breaker.TimeUntilRetry().String(),
		"config": map[string]interface{}{
			"threshold":    svc.breaker.Threshold(),
			"cooldown_sec": conf.Configuration.CircuitBreakerCooldownSecs,
		},
	})
}

func resetCircuitBreaker(w http.ResponseWriter, r *http.Request) {
	if !authorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	svc.breaker.Reset()
	log.Infof("%s Reset via API", logcolors.CircuitBreakerPrefix(svc.breaker.Name()))

	Respond(w, r).JSON(map[string]interface{}{
		"message": "Circuit breaker reset to CLOSED state",
	})
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(map[string]interface{}{
		"endpoints": map[string]string{
			"POST /convert?format=ttml|lrc&artist=&title=": "convert a TTML body",
			"GET /lyrics?url=&format=ttml|lrc&syllable=":   "fetch lyrics for a song or album URL",
			"GET /health":                                  "service health",
			"GET /stats":                                   "usage statistics (auth)",
			"GET /circuit-breaker":                         "catalog circuit breaker state (auth)",
			"POST /circuit-breaker/reset":                  "close the circuit breaker (auth)",
			"GET /cache":                                   "catalog cache statistics (auth)",
			"POST /cache/backup":                           "back up the catalog cache (auth)",
			"POST /cache/clear":                            "back up and clear the catalog cache (auth)",
		},
	})
}
