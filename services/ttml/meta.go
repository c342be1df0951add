package ttml

import "strings"

// Language returns the root xml:lang value, defaulting to "en"
func Language(doc *Document) string {
	if lang, ok := doc.Attr(doc.Root(), "xml:lang"); ok && lang != "" {
		return lang
	}
	return "en"
}

// TimingMode returns the lowercased timing declared on the root element
// ("line", "word" or "none"). The itunes-prefixed attribute wins over the
// plain one; absent timing means line.
func TimingMode(doc *Document) string {
	for _, name := range []string{"itunes:timing", "timing"} {
		if timing, ok := doc.Attr(doc.Root(), name); ok && timing != "" {
			return strings.ToLower(timing)
		}
	}
	return "line"
}
