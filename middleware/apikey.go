package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"uta-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// publicPaths matches exact paths, or prefixes for entries ending in "*"
type publicPaths []string

func (p publicPaths) match(path string) bool {
	for _, pub := range p {
		if prefix, ok := strings.CutSuffix(pub, "*"); ok {
			if strings.HasPrefix(path, prefix) {
				return true
			}
		} else if path == pub {
			return true
		}
	}
	return false
}

func writeUnauthorized(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(body))
}

// APIKeyMiddleware requires a matching X-API-Key header on every path not
// listed in public. An empty apiKey turns the check off.
func APIKeyMiddleware(apiKey string, public []string) func(http.Handler) http.Handler {
	allowed := publicPaths(public)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" || allowed.match(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get("X-API-Key")
			switch {
			case provided == "":
				log.Warnf("%s Missing API key from %s for %s", logcolors.LogAPIKey, clientIP(r), r.URL.Path)
				writeUnauthorized(w, `{"error":"API key required","message":"Provide a valid API key via X-API-Key header"}`)
			case subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1:
				log.Warnf("%s Invalid API key from %s for %s", logcolors.LogAPIKey, clientIP(r), r.URL.Path)
				writeUnauthorized(w, `{"error":"Invalid API key","message":"The provided API key is not valid"}`)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
