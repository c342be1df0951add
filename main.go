package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"uta-go/config"
	"uta-go/logcolors"
	"uta-go/middleware"
	"uta-go/services/catalog"
	"uta-go/services/convert"
	"uta-go/services/export"
	"uta-go/stats"

	"github.com/alexflint/go-arg"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var conf = config.Get()

type serveCmd struct {
	Port string `arg:"-p,--port" help:"port to listen on [default: $PORT or 8080]"`
}

type cliArgs struct {
	URL      string    `arg:"-u,--url" help:"song or album URL from music.apple.com"`
	Syllable bool      `arg:"-s,--syllable" help:"use the syllable-synced lyrics"`
	LRC      bool      `arg:"-l,--lrc" help:"write line-synced LRC instead of TTML"`
	Output   string    `arg:"-o,--output" help:"output directory [default: $OUTPUT_DIR or .]"`
	Serve    *serveCmd `arg:"subcommand:serve" help:"run the HTTP API"`
}

func (cliArgs) Description() string {
	return "uta fetches time-synced lyrics from the Apple Music catalog and saves them as TTML or LRC"
}

func init() {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	level, err := log.ParseLevel(conf.Configuration.LogLevel)
	if err != nil {
		log.Warnf("%s Invalid LOG_LEVEL %q, using info", logcolors.LogConfig, conf.Configuration.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func main() {
	var args cliArgs
	p := arg.MustParse(&args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if args.Serve != nil {
		log.SetFormatter(&log.JSONFormatter{})
		if err := runServer(ctx, args.Serve); err != nil {
			log.Fatalf("%s %v", logcolors.LogServer, err)
		}
		return
	}

	if args.URL == "" {
		p.Fail("--url is required")
	}
	if err := runExport(ctx, args); err != nil {
		log.Errorf("%s %v", logcolors.LogExport, err)
		os.Exit(1)
	}
}

func runExport(ctx context.Context, args cliArgs) error {
	target, err := catalog.ParseURL(args.URL)
	if err != nil {
		return err
	}

	s, err := setupServices(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	mode := convert.RawXML
	if args.LRC {
		mode = convert.LineLyric
	}
	outDir := conf.Configuration.OutputDir
	if args.Output != "" {
		outDir = args.Output
	}

	exp := export.New(s.catalog, export.Options{
		Mode:        mode,
		Syllable:    args.Syllable,
		OutputDir:   outDir,
		Concurrency: conf.Configuration.AlbumConcurrency,
		Stats:       stats.Get(),
	})

	var results []export.Result
	switch target.Kind {
	case catalog.KindSong:
		res, err := exp.Song(ctx, target.ID)
		if err != nil {
			return err
		}
		results = append(results, res)
	default:
		results, err = exp.Album(ctx, target.ID)
		if err != nil {
			return err
		}
	}

	counts := export.Summarize(results)
	log.Infof("%s Done: %d written, %d without lyrics, %d unsupported, %d failed",
		logcolors.LogExport,
		counts[stats.OutcomeWritten], counts[stats.OutcomeNoLyrics],
		counts[stats.OutcomeUnsupported], counts[stats.OutcomeFailed])

	if n := counts[stats.OutcomeFailed]; n > 0 {
		return fmt.Errorf("%d track(s) failed to convert", n)
	}
	return nil
}

func runServer(ctx context.Context, cmd *serveCmd) error {
	s, err := setupServices(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	svc = s

	if s.statsStore != nil {
		s.statsStore.StartAutoSave(5 * time.Minute)
	}
	s.tokens.StartMonitor(ctx, time.Minute)

	port := conf.Configuration.Port
	if cmd.Port != "" {
		port = cmd.Port
	}

	router := mux.NewRouter()
	setupRoutes(router)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "X-API-Key", "Authorization"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-Lyrics-Format"},
	})

	limiter := middleware.NewIPRateLimiter(rate.Limit(conf.Configuration.RateLimitPerSecond), conf.Configuration.RateLimitBurstLimit)

	handler := middleware.APIKeyMiddleware(conf.Configuration.APIKey, []string{"/", "/health"})(router)
	handler = middleware.RateLimitMiddleware(limiter, conf.Configuration.APIKey, stats.Get())(handler)
	handler = c.Handler(handler)
	handler = middleware.LoggingMiddleware(handler)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("%s Listening on port %s (storefront %s)", logcolors.LogServer, port, s.client.Storefront())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Infof("%s Shutting down...", logcolors.LogServer)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
