package logcolors

// ANSI color codes for log prefixes
const (
	Reset  = "\033[0m"
	Green  = "\033[32m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"
	Red    = "\033[31m"
	Yellow = "\033[33m"

	// Bright variants for per-track coloring
	BrightGreen   = "\033[92m"
	BrightBlue    = "\033[94m"
	BrightMagenta = "\033[95m"
	BrightCyan    = "\033[96m"
	BrightRed     = "\033[91m"
)

// Cache-related log prefixes
const (
	LogCacheInit    = Blue + "[Cache:Init]" + Reset
	LogCache        = Blue + "[Cache]" + Reset
	LogCacheBackup  = Blue + "[Cache:Backup]" + Reset
	LogCacheClear   = Blue + "[Cache:Clear]" + Reset
	LogCacheCatalog = Green + "[Cache:Catalog]" + Reset
)

// Rate limiting log prefixes
const (
	LogRateLimit = Purple + "[RateLimit]" + Reset
	LogAPIKey    = Purple + "[APIKey]" + Reset
)

// CircuitBreakerPrefix returns a colored circuit breaker prefix with the given name
func CircuitBreakerPrefix(name string) string {
	return Purple + "[CircuitBreaker:" + name + "]" + Reset
}

// trackColors rotate across album tracks so interleaved log lines stay readable
var trackColors = []string{
	Green, Blue, Purple, Cyan, Red,
	BrightGreen, BrightBlue, BrightMagenta, BrightCyan, BrightRed,
}

// Track returns a colored track name for log messages.
// Same name always gets the same color.
func Track(name string) string {
	hash := 0
	for _, c := range name {
		hash += int(c)
	}
	color := trackColors[hash%len(trackColors)]
	return color + name + Reset
}

// Server/Init log prefixes
const (
	LogServer = Green + "[Server]" + Reset
	LogConfig = Cyan + "[Config]" + Reset
	LogStats  = Blue + "[Stats]" + Reset
)

// Catalog client log prefixes
const (
	LogRequest        = Purple + "[Request]" + Reset
	LogHTTP           = Cyan + "[HTTP]" + Reset
	LogCatalog        = Blue + "[Catalog]" + Reset
	LogStorefront     = Cyan + "[Storefront]" + Reset
	LogBearerToken    = Cyan + "[Bearer Token]" + Reset
	LogRetry          = Purple + "[Retry]" + Reset
	LogCircuitBreaker = Purple + "[CircuitBreaker]" + Reset
)

// Conversion log prefixes
const (
	LogTTMLParser = Cyan + "[TTML Parser]" + Reset
	LogLRC        = Green + "[LRC]" + Reset
	LogConvert    = Blue + "[Convert]" + Reset
	LogExport     = Green + "[Export]" + Reset
	LogSuccess    = Green + "[Success]" + Reset
)
