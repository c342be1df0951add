package lrc

import (
	"errors"
	"testing"
	"time"

	"uta-go/services/lyricerr"
)

func TestNewDocument(t *testing.T) {
	tests := []struct {
		name        string
		artist      string
		title       string
		expectError bool
	}{
		{"Plain metadata", "Artist", "Title", false},
		{"Unicode metadata", "坂本龍一", "Merry Christmas Mr. Lawrence", false},
		{"Parentheses are fine", "A", "Song (Live)", false},
		{"Empty artist", "", "Title", true},
		{"Blank title", "Artist", "   ", true},
		{"Closing bracket", "Artist", "Song ]", true},
		{"Newline in artist", "Art\nist", "Title", true},
		{"Carriage return in title", "Artist", "Ti\rtle", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := NewDocument(tt.artist, tt.title)
			if tt.expectError {
				if !errors.Is(err, lyricerr.ErrValidation) {
					t.Errorf("Expected ValidationError, got %v", err)
				}
				if doc != nil {
					t.Errorf("Expected nil document on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if v, _ := doc.Tag(KeyArtist); v != tt.artist {
				t.Errorf("Expected artist %q, got %q", tt.artist, v)
			}
			if v, _ := doc.Tag(KeyTitle); v != tt.title {
				t.Errorf("Expected title %q, got %q", tt.title, v)
			}
		})
	}
}

func TestDocument_AddTag(t *testing.T) {
	tests := []struct {
		name        string
		key         string
		value       string
		expectError bool
	}{
		{"Album tag", "al", "Album", false},
		{"Long key", "length", "3:30", false},
		{"Single letter key", "a", "x", true},
		{"Uppercase key", "AR", "x", true},
		{"Key with colon", "a:b", "x", true},
		{"Empty value", "al", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &Document{}
			err := doc.AddTag(tt.key, tt.value)
			if tt.expectError {
				if !errors.Is(err, lyricerr.ErrValidation) {
					t.Errorf("Expected ValidationError, got %v", err)
				}
				if len(doc.Tags) != 0 {
					t.Errorf("Expected rejected tag not to be stored")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if v, ok := doc.Tag(tt.key); !ok || v != tt.value {
				t.Errorf("Expected %q stored under %q, got %q", tt.value, tt.key, v)
			}
		})
	}
}

func TestDocument_AddLine(t *testing.T) {
	doc := &Document{}

	if err := doc.AddLine(-time.Millisecond, "too early"); !errors.Is(err, lyricerr.ErrValidation) {
		t.Errorf("Expected ValidationError for negative time, got %v", err)
	}

	tests := []struct {
		name        string
		text        string
		expectError bool
	}{
		{"Plain text", "plain", false},
		{"Empty text", "", false},
		{"Surrounding spaces", "  spaced  ", false},
		{"Newline", "two\nlines", true},
		{"CRLF", "crlf\r\nbreak", true},
		{"Trailing carriage return", "end\r", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(doc.Lines)
			err := doc.AddLine(time.Second, tt.text)
			if tt.expectError {
				if !errors.Is(err, lyricerr.ErrValidation) {
					t.Errorf("Expected ValidationError for %q, got %v", tt.text, err)
				}
				if len(doc.Lines) != before {
					t.Errorf("Expected rejected line not to be stored")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error for %q: %v", tt.text, err)
			}
			if got := doc.Lines[len(doc.Lines)-1].Text; got != tt.text {
				t.Errorf("Expected %q, got %q", tt.text, got)
			}
		})
	}
}

func TestDocument_String(t *testing.T) {
	doc, err := NewDocument("Artist", "Title")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := doc.AddTag("al", "Album"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	lines := []TimedLine{
		{Time: 2*time.Minute + 3*time.Second + 450*time.Millisecond, Text: "later"},
		{Time: 500 * time.Millisecond, Text: "earlier"},
		{Time: 0, Text: ""},
	}
	for _, l := range lines {
		if err := doc.AddLine(l.Time, l.Text); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	expected := "[ar:Artist]\n[ti:Title]\n[al:Album]\n[02:03.45]later\n[00:00.50]earlier\n[00:00.00]\n"
	if got := doc.String(); got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}

func TestDocument_TagMissing(t *testing.T) {
	doc := &Document{}
	if _, ok := doc.Tag(KeyArtist); ok {
		t.Error("Expected missing tag on empty document")
	}
	if got := doc.String(); got != "" {
		t.Errorf("Expected empty rendering, got %q", got)
	}
}
