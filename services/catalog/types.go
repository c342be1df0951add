package catalog

// =============================================================================
// API RESPONSE STRUCTURES
// =============================================================================

type storefrontResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Name                  string   `json:"name"`
			DefaultLanguageTag    string   `json:"defaultLanguageTag"`
			SupportedLanguageTags []string `json:"supportedLanguageTags"`
		} `json:"attributes"`
	} `json:"data"`
}

type lyricsRelationship struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			TTML string `json:"ttml"`
		} `json:"attributes"`
	} `json:"data"`
}

func (l lyricsRelationship) ttml() string {
	if len(l.Data) == 0 {
		return ""
	}
	return l.Data[0].Attributes.TTML
}

type songData struct {
	ID         string `json:"id"`
	Attributes struct {
		Name       string `json:"name"`
		ArtistName string `json:"artistName"`
		AlbumName  string `json:"albumName"`
	} `json:"attributes"`
	Relationships struct {
		Lyrics         lyricsRelationship `json:"lyrics"`
		SyllableLyrics lyricsRelationship `json:"syllable-lyrics"`
	} `json:"relationships"`
}

type songResponse struct {
	Data []songData `json:"data"`
}

type albumResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Name       string `json:"name"`
			ArtistName string `json:"artistName"`
		} `json:"attributes"`
		Relationships struct {
			Tracks struct {
				Data []songData `json:"data"`
			} `json:"tracks"`
		} `json:"relationships"`
	} `json:"data"`
}

// =============================================================================
// DOMAIN TYPES
// =============================================================================

// Track is one song with whatever lyrics the catalog returned for it
type Track struct {
	ID             string
	Name           string
	Artist         string
	Album          string
	Lyrics         string // line-timed TTML
	SyllableLyrics string // word-timed TTML
}

// TTML returns the requested lyrics flavour and whether the catalog had it
func (t Track) TTML(syllable bool) (string, bool) {
	raw := t.Lyrics
	if syllable {
		raw = t.SyllableLyrics
	}
	return raw, raw != ""
}

// Album is an album and its tracks in catalog order
type Album struct {
	ID     string
	Name   string
	Artist string
	Tracks []Track
}

func (d songData) track() Track {
	return Track{
		ID:             d.ID,
		Name:           d.Attributes.Name,
		Artist:         d.Attributes.ArtistName,
		Album:          d.Attributes.AlbumName,
		Lyrics:         d.Relationships.Lyrics.ttml(),
		SyllableLyrics: d.Relationships.SyllableLyrics.ttml(),
	}
}
