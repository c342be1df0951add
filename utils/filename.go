package utils

import (
	"regexp"
	"strings"
)

// characters rejected by at least one of the common filesystems
var forbiddenNames = regexp.MustCompile(`[/\\<>:"|?*\x00-\x1f]`)

// SanitizeFileName replaces characters that cannot appear in a file or
// directory name with "_". Leading and trailing dots and spaces are trimmed
// so the result never names "." or "..".
func SanitizeFileName(name string) string {
	name = forbiddenNames.ReplaceAllString(name, "_")
	name = strings.Trim(name, " .")
	if name == "" {
		return "_"
	}
	return name
}

// TrackFileName builds "<name> - <artist><ext>" with both parts sanitized
func TrackFileName(name, artist, ext string) string {
	return SanitizeFileName(name+" - "+artist) + ext
}
