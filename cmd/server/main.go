package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/labstack/echo/v4"
	"github.com/oklog/run"
	"github.com/sirupsen/logrus"

	"github.com/zodakzach/youtube-history-metrics/internal/api"
	"github.com/zodakzach/youtube-history-metrics/internal/config"
	"github.com/zodakzach/youtube-history-metrics/internal/logging"
	"github.com/zodakzach/youtube-history-metrics/internal/metrics"
	"github.com/zodakzach/youtube-history-metrics/internal/session"
	"github.com/zodakzach/youtube-history-metrics/internal/storage"
	"github.com/zodakzach/youtube-history-metrics/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const defaultConfigName = "YouTubeHistoryMetrics.config"

// Run loads the configuration and serves until a signal arrives or the server fails.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	app := kingpin.New("ythm-server", "YouTube History Metrics upload server.")
	app.Version(Version)
	app.UsageWriter(stderr)
	app.ErrorWriter(stderr)

	// Get the executable's directory for config resolution
	defaultConfig := defaultConfigName
	if exePath, err := os.Executable(); err == nil {
		defaultConfig = filepath.Join(filepath.Dir(exePath), defaultConfigName)
	}

	var (
		configPath string
		debug      bool
	)
	app.Flag("config", "Path to the XML or YAML configuration file.").Envar("YTHM_CONFIG").Default(defaultConfig).StringVar(&configPath)
	app.Flag("debug", "Enable debug logging.").BoolVar(&debug)

	if _, err := app.Parse(args[1:]); err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	logger := logging.New(logging.Options{
		Out:     stderr,
		Level:   cfg.Advanced.LogLevel,
		Format:  cfg.Advanced.LogFormat,
		Debug:   debug,
		Version: Version,
	})

	// Initialize storage
	maxStaged, err := cfg.MaxStagedBytes()
	if err != nil {
		return err
	}
	fileStore, err := storage.NewLocalStore(cfg.GetStagingDir(), maxStaged)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	if n, err := fileStore.PurgeOrphans(); err != nil {
		logger.WithError(err).Warnf("Failed to purge staging directory")
	} else if n > 0 {
		logger.Infof("Removed %d staged files left from a previous run", n)
	}

	// Metrics
	uploadMetrics := metrics.NewUploadMetrics("ythm-server")
	var metricsHandler http.Handler
	if cfg.Advanced.EnableMetrics {
		metricsHandler = uploadMetrics.Handler()
	}

	// Initialize session manager
	sessionMgr := session.NewManager(fileStore, session.Options{
		Endpoint:    cfg.Upload.Endpoint,
		MaxSessions: cfg.Session.MaxSessions,
		Logger:      logger,
		Recorder:    uploadMetrics,
		Gauge:       uploadMetrics,
	})
	defer sessionMgr.Close()

	e, err := newEcho(cfg, sessionMgr, metricsHandler, logger)
	if err != nil {
		return err
	}

	// Configure server with settings from config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      e,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(stdout, cfg, configPath)

	var g run.Group

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				logger.Infof("Termination signal received")
				return nil
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// HTTP server.
	{
		g.Add(
			func() error {
				logger.Infof("Listening on %s", s.Addr)
				if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			},
			func(_ error) {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := s.Shutdown(shutdownCtx); err != nil {
					logger.WithError(err).Warnf("Server shutdown failed")
				}
			},
		)
	}

	// Background session cleanup.
	{
		interval := time.Duration(cfg.Session.CleanupIntervalMinutes) * time.Minute
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		ticker := time.NewTicker(interval)
		done := make(chan struct{})
		maxAge := time.Duration(cfg.Session.TimeoutMinutes) * time.Minute

		g.Add(
			func() error {
				for {
					select {
					case <-ticker.C:
						if n := sessionMgr.CleanupOldSessions(maxAge); n > 0 {
							logger.Debugf("Cleaned up %d idle sessions", n)
						}
					case <-done:
						return nil
					}
				}
			},
			func(_ error) {
				ticker.Stop()
				close(done)
			},
		)
	}

	return g.Run()
}

// newEcho wires middleware, pages, API routes and static assets.
func newEcho(cfg *config.AppConfig, sessions *session.Manager, metricsHandler http.Handler, logger *logrus.Entry) (*echo.Echo, error) {
	renderer, err := web.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer

	origins := api.SplitOrigins(cfg.Server.AllowOrigins)

	api.SetupMiddleware(e, api.MiddlewareOptions{
		RequestLogging:   cfg.Advanced.EnableRequestLogging,
		Compression:      cfg.Advanced.EnableCompression,
		CompressionLevel: cfg.Advanced.CompressionLevel,
		BodyLimit:        cfg.Server.BodyLimit,
		EnableCORS:       cfg.Server.EnableCORS,
		AllowOrigins:     origins,
		Logger:           logger,
	})

	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Sessions: sessions,
		Metrics:  metricsHandler,
		View: web.ViewOptions{
			Accept: cfg.Upload.AcceptedTypes,
			Links: web.Links{
				Dashboard:    cfg.Upload.DashboardURL,
				Instructions: cfg.Upload.InstructionURL,
			},
		},
		Endpoint:     cfg.Upload.Endpoint,
		CookieName:   cfg.Session.CookieName,
		CookieSecure: cfg.Session.CookieSecure,
		RelayCookies: cfg.Upload.RelayCookies,
		AllowOrigins: origins,
		Version:      Version,
		Logger:       logger,
	}))

	if err := web.RegisterStaticRoutes(e); err != nil {
		return nil, fmt.Errorf("failed to register static routes: %w", err)
	}

	return e, nil
}

func printBanner(w io.Writer, cfg *config.AppConfig, configPath string) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║           YouTube History Metrics Upload Server           ║\n")
	fmt.Fprintf(w, "╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║  Version:    %-45s║\n", Version)
	fmt.Fprintf(w, "║  Build Time: %-45s║\n", BuildTime)
	fmt.Fprintf(w, "╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║  Config:    %-46s║\n", configPath)
	fmt.Fprintf(w, "║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Fprintf(w, "║  Backend:   %-46s║\n", cfg.Upload.Endpoint)
	fmt.Fprintf(w, "║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Fprintf(w, "║  Staging:   %-46s║\n", cfg.GetStagingDir())
	fmt.Fprintf(w, "╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
}

func main() {
	if err := Run(context.Background(), os.Args, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
