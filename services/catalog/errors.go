package catalog

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is matched by a 404 APIError and by empty catalog results
	ErrNotFound = errors.New("not found in catalog")

	// ErrRateLimited is matched by a 429 APIError left after all retries
	ErrRateLimited = errors.New("rate limited by catalog")

	// ErrUnauthorized is matched by 401 and 403 responses
	ErrUnauthorized = errors.New("catalog rejected credentials")
)

// APIError is a non-200 response from the catalog API
type APIError struct {
	Status int
	URL    string
	Body   string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("catalog API returned status %d for %s: %s", e.Status, e.URL, body)
}

// Is maps status codes onto the package sentinels
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	}
	return false
}
