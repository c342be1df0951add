package convert

import (
	"fmt"
	"strings"

	"uta-go/logcolors"
	"uta-go/services/lrc"
	"uta-go/services/ttml"

	log "github.com/sirupsen/logrus"
)

// Mode selects the output format of a conversion
type Mode int

const (
	// RawXML re-serializes the TTML as pretty-printed XML
	RawXML Mode = iota
	// LineLyric synthesizes a line-synced LRC document
	LineLyric
)

func (m Mode) String() string {
	switch m {
	case RawXML:
		return "ttml"
	case LineLyric:
		return "lrc"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Extension returns the file extension, dot included, for output of this mode
func (m Mode) Extension() string {
	if m == LineLyric {
		return ".lrc"
	}
	return ".ttml"
}

// ParseMode accepts "ttml"/"xml" and "lrc"/"line", case-insensitively.
// An empty string means RawXML.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ttml", "xml":
		return RawXML, nil
	case "lrc", "line":
		return LineLyric, nil
	default:
		return RawXML, fmt.Errorf("unknown output format %q", s)
	}
}

// Convert turns raw TTML into the output text of the given mode. Artist and
// title are only used by LineLyric. It holds no state and is safe for
// concurrent use.
func Convert(raw, artist, title string, mode Mode) (string, error) {
	doc, err := ttml.Parse(raw)
	if err != nil {
		return "", err
	}

	switch mode {
	case RawXML:
		out := ttml.Format(doc)
		log.Debugf("%s Formatted %d nodes (%s timing, lang %s)", logcolors.LogConvert, doc.Len(), ttml.TimingMode(doc), ttml.Language(doc))
		return out, nil
	case LineLyric:
		lyrics, err := lrc.Synthesize(doc, artist, title)
		if err != nil {
			return "", err
		}
		return lyrics.String(), nil
	default:
		return "", fmt.Errorf("unknown conversion mode %d", int(mode))
	}
}
