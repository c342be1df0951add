package catalog

import (
	"fmt"
	"net/url"
	"strings"
)

// Kind says whether a URL points at a song or an album
type Kind int

const (
	KindAlbum Kind = iota
	KindSong
)

func (k Kind) String() string {
	if k == KindSong {
		return "song"
	}
	return "album"
}

// Target is what a music.apple.com URL refers to
type Target struct {
	Kind       Kind
	ID         string
	Storefront string // two-letter region from the path, may be empty
}

// ParseURL resolves a catalog URL. An "i" query parameter names a song on
// an album page; /song/ paths name a song; anything else is an album whose
// id is the last path segment.
func ParseURL(raw string) (Target, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Target{}, fmt.Errorf("failed to parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Target{}, fmt.Errorf("not an absolute url: %q", raw)
	}

	var segments []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) == 0 {
		return Target{}, fmt.Errorf("no path segments in %q", raw)
	}

	t := Target{Kind: KindAlbum, ID: segments[len(segments)-1]}
	if len(segments[0]) == 2 {
		t.Storefront = strings.ToLower(segments[0])
	}

	if id := u.Query().Get("i"); id != "" {
		t.Kind, t.ID = KindSong, id
	} else {
		for _, s := range segments {
			if s == "song" {
				t.Kind = KindSong
				break
			}
		}
	}

	if t.ID == "" {
		return Target{}, fmt.Errorf("no catalog id in %q", raw)
	}
	return t, nil
}
