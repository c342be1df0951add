package lrc

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"uta-go/services/lyricerr"
)

// timestampLayout is one accepted TTML begin layout. Submatch indexes of
// fields the layout lacks are zero.
type timestampLayout struct {
	name    string
	pattern *regexp.Regexp
	hours   int
	minutes int
	seconds int
	millis  int
}

// Layouts are tried in order: the narrower minutes-optional form first, then
// the hours-optional superset. Both are anchored so trailing garbage fails.
var timestampLayouts = []timestampLayout{
	{
		name:    "[MM:]SS.fff",
		pattern: regexp.MustCompile(`^(?:(\d+):)?(\d{1,2})\.(\d{3})$`),
		minutes: 1,
		seconds: 2,
		millis:  3,
	},
	{
		name:    "[HH:][MM:]SS.fff",
		pattern: regexp.MustCompile(`^(?:(\d+):)?(?:(\d+):)?(\d{1,2})\.(\d{3})$`),
		hours:   1,
		minutes: 2,
		seconds: 3,
		millis:  4,
	},
}

func (l timestampLayout) parse(src string) (time.Duration, bool) {
	m := l.pattern.FindStringSubmatch(src)
	if m == nil {
		return 0, false
	}

	field := func(idx int) (uint64, bool) {
		if idx == 0 || m[idx] == "" {
			return 0, true
		}
		v, err := strconv.ParseUint(m[idx], 10, 32)
		return v, err == nil
	}

	var total time.Duration
	for _, part := range []struct {
		idx  int
		unit time.Duration
	}{
		{l.hours, time.Hour},
		{l.minutes, time.Minute},
		{l.seconds, time.Second},
		{l.millis, time.Millisecond},
	} {
		v, ok := field(part.idx)
		if !ok || v > uint64(math.MaxInt64/part.unit) {
			return 0, false
		}
		term := time.Duration(v) * part.unit
		if total > math.MaxInt64-term {
			return 0, false
		}
		total += term
	}
	return total, true
}

// ParseTimestamp parses a TTML begin value ("SS.fff", "MM:SS.fff" or
// "HH:MM:SS.fff") into a duration with millisecond precision. Values past
// the range of time.Duration are malformed.
func ParseTimestamp(src string) (time.Duration, error) {
	for _, layout := range timestampLayouts {
		if d, ok := layout.parse(src); ok {
			return d, nil
		}
	}
	return 0, lyricerr.Timestamp(src)
}

// FormatTimestamp renders d as an LRC "MM:SS.cc" timestamp. Hours fold into
// the minutes field, which grows past two digits when needed; the fraction
// is truncated to centiseconds.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := d / time.Minute
	seconds := (d % time.Minute) / time.Second
	centis := (d % time.Second) / (10 * time.Millisecond)
	return fmt.Sprintf("%02d:%02d.%02d", minutes, seconds, centis)
}

// TranslateTimestamp converts a TTML begin value straight into LRC form
func TranslateTimestamp(src string) (string, error) {
	d, err := ParseTimestamp(src)
	if err != nil {
		return "", err
	}
	return FormatTimestamp(d), nil
}
