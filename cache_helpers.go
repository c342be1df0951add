package main

import (
	"fmt"
	"net/http"

	"uta-go/logcolors"
	"uta-go/stats"

	log "github.com/sirupsen/logrus"
)

// requireCache answers 404 when the catalog cache is turned off
func requireCache(w http.ResponseWriter, r *http.Request) bool {
	if svc.cache == nil {
		Respond(w, r).Fail(http.StatusNotFound, "cache_disabled", "set FF_CATALOG_CACHE and CACHE_PATH to enable the catalog cache")
		return false
	}
	return true
}

func getCacheStats(w http.ResponseWriter, r *http.Request) {
	if !authorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	s := stats.Get()
	resp := CacheStatsResponse{
		Enabled: svc.cache != nil,
		Performance: CachePerformance{
			Hits:    s.CacheHits.Load(),
			Misses:  s.CacheMisses.Load(),
			HitRate: s.CacheHitRate(),
		},
	}
	if svc.cache != nil {
		resp.NumberOfKeys, resp.SizeInKB = svc.cache.Stats()
		resp.SizeInMB = float64(resp.SizeInKB) / 1024
	}

	Respond(w, r).JSON(resp)
}

func backupCache(w http.ResponseWriter, r *http.Request) {
	if !authorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !requireCache(w, r) {
		return
	}

	backupPath, err := svc.cache.Backup()
	if err != nil {
		log.Errorf("%s Failed to create backup: %v", logcolors.LogCacheBackup, err)
		Respond(w, r).Fail(http.StatusInternalServerError, "backup_failed", fmt.Sprintf("Failed to create backup: %v", err))
		return
	}

	log.Infof("%s Backup created successfully at: %s", logcolors.LogCacheBackup, backupPath)
	Respond(w, r).JSON(map[string]interface{}{
		"message":     "Backup created successfully",
		"backup_path": backupPath,
	})
}

func clearCache(w http.ResponseWriter, r *http.Request) {
	if !authorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !requireCache(w, r) {
		return
	}

	backupPath, err := svc.cache.BackupAndClear()
	if err != nil {
		log.Errorf("%s Failed to backup and clear cache: %v", logcolors.LogCacheClear, err)
		Respond(w, r).Fail(http.StatusInternalServerError, "clear_failed", fmt.Sprintf("Failed to backup and clear cache: %v", err))
		return
	}

	log.Infof("%s Cache cleared successfully, backup at: %s", logcolors.LogCacheClear, backupPath)
	Respond(w, r).JSON(map[string]interface{}{
		"message":     "Cache cleared successfully",
		"backup_path": backupPath,
	})
}
