package main

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ConvertResponse is returned by POST /convert
type ConvertResponse struct {
	Format string `json:"format"`
	Lyrics string `json:"lyrics"`
}

// TrackLyrics is one track of a /lyrics response
type TrackLyrics struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Artist  string `json:"artist"`
	Album   string `json:"album,omitempty"`
	Outcome string `json:"outcome"`
	Lyrics  string `json:"lyrics,omitempty"`
	Error   string `json:"error,omitempty"`
}

// LyricsResponse is returned by GET /lyrics
type LyricsResponse struct {
	Kind     string        `json:"kind"`
	ID       string        `json:"id"`
	Name     string        `json:"name,omitempty"`
	Artist   string        `json:"artist,omitempty"`
	Format   string        `json:"format"`
	Syllable bool          `json:"syllable"`
	Tracks   []TrackLyrics `json:"tracks"`
}

// CachePerformance contains cache hit/miss statistics
type CachePerformance struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate_percent"`
}

// CacheStatsResponse is the response format for GET /cache
type CacheStatsResponse struct {
	Enabled      bool             `json:"enabled"`
	NumberOfKeys int              `json:"number_of_keys"`
	SizeInKB     int              `json:"size_kb"`
	SizeInMB     float64          `json:"size_mb"`
	Performance  CachePerformance `json:"performance"`
}
