package main

import (
	"encoding/json"
	"net/http"

	"uta-go/middleware"
)

// APIResponse handles consistent header setting and JSON responses
type APIResponse struct {
	w      http.ResponseWriter
	r      *http.Request
	format string
}

// Respond creates a response helper for the request
func Respond(w http.ResponseWriter, r *http.Request) *APIResponse {
	return &APIResponse{w: w, r: r}
}

// SetFormat sets the X-Lyrics-Format header value
func (a *APIResponse) SetFormat(format string) *APIResponse {
	a.format = format
	return a
}

func (a *APIResponse) writeHeaders() {
	a.w.Header().Set("Content-Type", "application/json")

	if a.format != "" {
		a.w.Header().Set("X-Lyrics-Format", a.format)
	}
	if a.w.Header().Get(middleware.RequestIDHeader) == "" {
		if id := middleware.RequestID(a.r.Context()); id != "" {
			a.w.Header().Set(middleware.RequestIDHeader, id)
		}
	}
}

// JSON writes headers and encodes data as JSON (200 OK)
func (a *APIResponse) JSON(data interface{}) error {
	a.writeHeaders()
	return json.NewEncoder(a.w).Encode(data)
}

// Error writes headers, sets status code, and encodes error response
func (a *APIResponse) Error(statusCode int, data interface{}) error {
	a.writeHeaders()
	a.w.WriteHeader(statusCode)
	return json.NewEncoder(a.w).Encode(data)
}

// Fail writes an ErrorResponse tagged with the request id
func (a *APIResponse) Fail(statusCode int, code, message string) error {
	return a.Error(statusCode, ErrorResponse{
		Error:     code,
		Message:   message,
		RequestID: middleware.RequestID(a.r.Context()),
	})
}
