package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"uta-go/logcolors"
	"uta-go/services/catalog"
	"uta-go/services/convert"
	"uta-go/services/lyricerr"
	"uta-go/stats"
	"uta-go/utils"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrNoLyrics is returned by Render when the catalog has no lyrics of the
// requested flavour for a track
var ErrNoLyrics = errors.New("no lyrics")

// Catalog is the part of the catalog client the exporter needs
type Catalog interface {
	Song(ctx context.Context, id string) (*catalog.Track, error)
	Album(ctx context.Context, id string) (*catalog.Album, error)
}

// Options control what gets written and where
type Options struct {
	Mode        convert.Mode
	Syllable    bool   // use the syllable-lyrics relationship
	OutputDir   string // default "."
	Concurrency int    // tracks converted at once, default 4
	Stats       *stats.Stats
}

// Result is the outcome of one track
type Result struct {
	Track   catalog.Track
	Path    string // set when Outcome is written
	Outcome stats.Outcome
	Err     error
}

// Exporter writes lyrics files for songs and albums
type Exporter struct {
	catalog Catalog
	opts    Options
}

func New(c Catalog, opts Options) *Exporter {
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Stats == nil {
		opts.Stats = stats.Get()
	}
	return &Exporter{catalog: c, opts: opts}
}

// Render converts a track's lyrics to the given mode
func Render(t catalog.Track, mode convert.Mode, syllable bool) (string, error) {
	raw, ok := t.TTML(syllable)
	if !ok {
		return "", ErrNoLyrics
	}
	return convert.Convert(raw, t.Artist, t.Name, mode)
}

// OutcomeOf classifies a Render error
func OutcomeOf(err error) stats.Outcome {
	switch {
	case err == nil:
		return stats.OutcomeWritten
	case errors.Is(err, ErrNoLyrics):
		return stats.OutcomeNoLyrics
	case errors.Is(err, lyricerr.ErrUnsupportedFeature):
		return stats.OutcomeUnsupported
	default:
		return stats.OutcomeFailed
	}
}

// Song writes one song's lyrics into the output directory
func (e *Exporter) Song(ctx context.Context, id string) (Result, error) {
	track, err := e.catalog.Song(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch song %s: %w", id, err)
	}
	if err := os.MkdirAll(e.opts.OutputDir, 0755); err != nil {
		return Result{}, fmt.Errorf("failed to create output directory: %w", err)
	}
	return e.exportTrack(e.opts.OutputDir, utils.TrackFileName(track.Name, track.Artist, e.opts.Mode.Extension()), *track)
}

// Album writes every track of an album into "<album> - <artist>" under the
// output directory. Results come back in track order. Tracks without usable
// lyrics are reported, not fatal; a failed write stops the batch.
func (e *Exporter) Album(ctx context.Context, id string) ([]Result, error) {
	album, err := e.catalog.Album(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch album %s: %w", id, err)
	}

	dir := filepath.Join(e.opts.OutputDir, utils.SanitizeFileName(album.Name+" - "+album.Artist))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create album directory: %w", err)
	}
	log.Infof("%s Exporting %d tracks of %s to %s", logcolors.LogExport, len(album.Tracks), logcolors.Track(album.Name), dir)

	files := albumFileNames(album.Tracks, e.opts.Mode.Extension())
	results := make([]Result, len(album.Tracks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)

	for i, track := range album.Tracks {
		i, track := i, track
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = Result{Track: track, Outcome: stats.OutcomeFailed, Err: err}
				return err
			}
			res, err := e.exportTrack(dir, files[i], track)
			results[i] = res
			return err
		})
	}

	return results, g.Wait()
}

// albumFileNames names every track's file. A track whose name is already
// taken on the album, compared case-insensitively, gets its 1-based position
// appended: "Intro - Band (7).lrc".
func albumFileNames(tracks []catalog.Track, ext string) []string {
	files := make([]string, len(tracks))
	taken := make(map[string]bool, len(tracks))

	for i, t := range tracks {
		base := utils.TrackFileName(t.Name, t.Artist, ext)
		file := base
		for n := i + 1; taken[strings.ToLower(file)]; n++ {
			file = utils.SanitizeFileName(fmt.Sprintf("%s - %s (%d)", t.Name, t.Artist, n)) + ext
		}
		if file != base {
			log.Warnf("%s Duplicate track name %s, writing %s", logcolors.LogExport, logcolors.Track(t.Name), file)
		}
		taken[strings.ToLower(file)] = true
		files[i] = file
	}
	return files
}

func (e *Exporter) exportTrack(dir, file string, track catalog.Track) (Result, error) {
	res := Result{Track: track}
	name := logcolors.Track(track.Name)

	text, err := Render(track, e.opts.Mode, e.opts.Syllable)
	res.Outcome, res.Err = OutcomeOf(err), err

	switch res.Outcome {
	case stats.OutcomeNoLyrics:
		log.Warnf("%s %s has no lyrics", logcolors.LogExport, name)
	case stats.OutcomeUnsupported:
		log.Warnf("%s %s skipped: %v", logcolors.LogExport, name, err)
	case stats.OutcomeFailed:
		log.Errorf("%s %s failed to convert: %v", logcolors.LogExport, name, err)
	}
	if err != nil {
		e.opts.Stats.RecordOutcome(res.Outcome)
		return res, nil
	}

	path := filepath.Join(dir, file)
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		res.Outcome, res.Err = stats.OutcomeFailed, err
		e.opts.Stats.RecordOutcome(res.Outcome)
		return res, fmt.Errorf("failed to write %s: %w", path, err)
	}

	res.Path = path
	e.opts.Stats.RecordOutcome(res.Outcome)
	log.Infof("%s %s %s", logcolors.LogSuccess, name, path)
	return res, nil
}

// Summarize counts results by outcome
func Summarize(results []Result) map[stats.Outcome]int {
	counts := make(map[stats.Outcome]int)
	for _, r := range results {
		counts[r.Outcome]++
	}
	return counts
}
