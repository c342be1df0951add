package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"uta-go/middleware"
)

func TestAPIResponse_SetFormat(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		expected string
	}{
		{"TTML", "ttml", "ttml"},
		{"LRC", "lrc", "lrc"},
		{"Unset", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest("GET", "/test", nil)

			Respond(w, r).SetFormat(tt.format).JSON(map[string]string{"test": "data"})

			if got := w.Header().Get("X-Lyrics-Format"); got != tt.expected {
				t.Errorf("X-Lyrics-Format = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIResponse_ContentType(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/test", nil)

	Respond(w, r).JSON(map[string]string{"test": "data"})

	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want %q", got, "application/json")
	}
}

func TestAPIResponse_Error(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/test", nil)

	Respond(w, r).SetFormat("lrc").Error(http.StatusNotFound, map[string]string{"error": "not found"})

	if w.Code != http.StatusNotFound {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusNotFound)
	}
	if got := w.Header().Get("X-Lyrics-Format"); got != "lrc" {
		t.Errorf("X-Lyrics-Format = %q, want %q", got, "lrc")
	}

	var resp map[string]string
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["error"] != "not found" {
		t.Errorf("error = %q, want %q", resp["error"], "not found")
	}
}

func TestAPIResponse_JSONBody(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/test", nil)

	Respond(w, r).JSON(ConvertResponse{Format: "lrc", Lyrics: "[00:01.00]Hi\n"})

	var resp ConvertResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if resp.Format != "lrc" || resp.Lyrics != "[00:01.00]Hi\n" {
		t.Errorf("Unexpected body: %+v", resp)
	}
}

func TestAPIResponse_FailCarriesRequestID(t *testing.T) {
	handler := middleware.LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Respond(w, r).Fail(http.StatusBadRequest, "bad_request", "missing url")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/lyrics", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusBadRequest)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if resp.Error != "bad_request" || resp.Message != "missing url" {
		t.Errorf("Unexpected error body: %+v", resp)
	}
	if resp.RequestID == "" || resp.RequestID != w.Header().Get(middleware.RequestIDHeader) {
		t.Errorf("request_id = %q, want header value %q", resp.RequestID, w.Header().Get(middleware.RequestIDHeader))
	}
}

func TestAPIResponse_FailWithoutMiddleware(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/test", nil)

	Respond(w, r).Fail(http.StatusInternalServerError, "internal_error", "")

	var resp map[string]interface{}
	json.NewDecoder(w.Body).Decode(&resp)
	if _, ok := resp["request_id"]; ok {
		t.Error("Expected no request_id without the logging middleware")
	}
	if _, ok := resp["message"]; ok {
		t.Error("Expected empty message to be omitted")
	}
}
