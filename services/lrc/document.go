package lrc

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"uta-go/services/lyricerr"
)

// Metadata keys written ahead of the timed lines
const (
	KeyArtist = "ar"
	KeyTitle  = "ti"
)

var metadataKeyRe = regexp.MustCompile(`^[a-z]{2,}$`)

// TimedLine is one lyric line and the moment it starts
type TimedLine struct {
	Time time.Duration
	Text string
}

// Tag is a bracketed metadata entry such as [ar:Artist]
type Tag struct {
	Key   string
	Value string
}

// Document is a line-synchronized lyric file: metadata tags followed by
// timed lines in insertion order
type Document struct {
	Tags  []Tag
	Lines []TimedLine
}

// NewDocument creates a document carrying artist and title metadata
func NewDocument(artist, title string) (*Document, error) {
	doc := &Document{}
	if err := doc.AddTag(KeyArtist, artist); err != nil {
		return nil, err
	}
	if err := doc.AddTag(KeyTitle, title); err != nil {
		return nil, err
	}
	return doc, nil
}

// AddTag appends a metadata entry. Keys are lowercase letters; values must be
// non-empty and fit on one line inside the brackets.
func (d *Document) AddTag(key, value string) error {
	if !metadataKeyRe.MatchString(key) {
		return lyricerr.Validation(fmt.Sprintf("malformed metadata key %q", key))
	}
	if strings.TrimSpace(value) == "" {
		return lyricerr.Validation(fmt.Sprintf("empty metadata value for %q", key))
	}
	if strings.ContainsAny(value, "]\r\n") {
		return lyricerr.Validation(fmt.Sprintf("metadata value for %q contains ']' or a line break", key))
	}
	d.Tags = append(d.Tags, Tag{Key: key, Value: value})
	return nil
}

// AddLine appends a timed line. Each line is one row of the file, so text
// containing a line break is rejected.
func (d *Document) AddLine(at time.Duration, text string) error {
	if at < 0 {
		return lyricerr.Validation(fmt.Sprintf("negative timestamp %v", at))
	}
	if strings.ContainsAny(text, "\r\n") {
		return lyricerr.Validation(fmt.Sprintf("line at %s contains a line break", FormatTimestamp(at)))
	}
	d.Lines = append(d.Lines, TimedLine{Time: at, Text: text})
	return nil
}

// Tag returns the value of a metadata entry
func (d *Document) Tag(key string) (string, bool) {
	for _, t := range d.Tags {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

// String renders the document in LRC form, every row newline-terminated
func (d *Document) String() string {
	var b strings.Builder
	for _, t := range d.Tags {
		b.WriteString("[" + t.Key + ":" + t.Value + "]\n")
	}
	for _, l := range d.Lines {
		b.WriteString("[" + FormatTimestamp(l.Time) + "]" + l.Text + "\n")
	}
	return b.String()
}
