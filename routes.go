package main

import (
	"net/http"

	"github.com/gorilla/mux"
)

// setupRoutes configures all HTTP routes for the API
func setupRoutes(router *mux.Router) {
	// Lyrics
	router.HandleFunc("/convert", convertHandler).Methods(http.MethodPost)
	router.HandleFunc("/lyrics", lyricsHandler).Methods(http.MethodGet)

	// Cache management endpoints
	router.HandleFunc("/cache", getCacheStats).Methods(http.MethodGet)
	router.HandleFunc("/cache/backup", backupCache).Methods(http.MethodPost)
	router.HandleFunc("/cache/clear", clearCache).Methods(http.MethodPost)

	// Health and stats endpoints
	router.HandleFunc("/health", getHealthStatus).Methods(http.MethodGet)
	router.HandleFunc("/stats", getStats).Methods(http.MethodGet)

	// Circuit breaker endpoints
	router.HandleFunc("/circuit-breaker", getCircuitBreakerStatus).Methods(http.MethodGet)
	router.HandleFunc("/circuit-breaker/reset", resetCircuitBreaker).Methods(http.MethodPost)

	router.HandleFunc("/", helpHandler).Methods(http.MethodGet)
}
