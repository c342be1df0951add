package lrc

import (
	"uta-go/logcolors"
	"uta-go/services/lyricerr"
	"uta-go/services/ttml"

	log "github.com/sirupsen/logrus"
)

// Synthesize builds a line-synced lyric document from parsed line-level
// TTML. Paragraphs are taken from each division of the body in document
// order; any <span> inside a paragraph means syllable timing, which is
// rejected outright. The first failure aborts the whole document.
func Synthesize(doc *ttml.Document, artist, title string) (*Document, error) {
	body, ok := doc.Find(ttml.DocumentNode, "body")
	if !ok {
		return nil, lyricerr.Structure("missing body")
	}

	out, err := NewDocument(artist, title)
	if err != nil {
		return nil, err
	}

	for _, div := range doc.FindAll(body, "div") {
		// paragraphs of nested divisions are reached through the outermost one
		if doc.HasAncestor(div, body, "div") {
			continue
		}

		for _, p := range doc.FindAll(div, "p") {
			if _, nested := doc.Find(p, "span"); nested {
				return nil, lyricerr.Unsupported("syllable lyrics")
			}

			begin, ok := doc.Attr(p, "begin")
			if !ok {
				return nil, lyricerr.Structure("missing begin attribute")
			}

			text, ok := doc.FirstText(p)
			if !ok {
				return nil, lyricerr.Structure("missing text content")
			}

			at, err := ParseTimestamp(begin)
			if err != nil {
				return nil, err
			}

			if err := out.AddLine(at, text); err != nil {
				return nil, err
			}
		}
	}

	log.Debugf("%s Synthesized %d lines for %s - %s", logcolors.LogLRC, len(out.Lines), title, artist)
	return out, nil
}
