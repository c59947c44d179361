package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"github.com/sirupsen/logrus"

	"github.com/zodakzach/youtube-history-metrics/internal/logging"
	"github.com/zodakzach/youtube-history-metrics/internal/termview"
	"github.com/zodakzach/youtube-history-metrics/internal/upload"
)

// Version is the application version (set via ldflags).
var Version = "dev"

const (
	loggerTypeDefault = "default"
	loggerTypeJSON    = "json"
)

type config struct {
	Endpoint   string
	File       string
	Debug      bool
	NoColor    bool
	Compact    bool
	LoggerType string
}

// Run runs the main application.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	app := kingpin.New("ythm-upload", "Upload a YouTube watch-history export to the ingestion backend.")
	app.Version(Version)
	app.UsageWriter(stderr)
	app.ErrorWriter(stderr)
	app.Terminate(nil)

	cfg := config{}
	app.Flag("endpoint", "Ingestion backend load URL.").Envar("BACKEND_URL").Default(upload.DefaultEndpoint).StringVar(&cfg.Endpoint)
	app.Flag("debug", "Enable debug mode.").BoolVar(&cfg.Debug)
	app.Flag("no-color", "Disable colors.").BoolVar(&cfg.NoColor)
	app.Flag("compact", "Hide the step descriptions.").BoolVar(&cfg.Compact)
	app.Flag("logger", "Selects the logger type.").Default(loggerTypeDefault).EnumVar(&cfg.LoggerType, loggerTypeDefault, loggerTypeJSON)
	app.Arg("file", "watch-history.json from Google Takeout.").Required().StringVar(&cfg.File)

	if _, err := app.Parse(args[1:]); err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}

	logger := logging.New(logging.Options{
		Out:     stderr,
		Level:   "warn",
		Format:  cfg.LoggerType,
		Debug:   cfg.Debug,
		NoColor: cfg.NoColor,
		Version: Version,
	})
	logger.Debugf("Debug level is enabled")

	var g run.Group

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				logger.Debugf("Termination signal received")
				return nil
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// Upload.
	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				return uploadFile(ctx, cfg, stdout, logger)
			},
			func(_ error) {
				cancel()
			},
		)
	}

	return g.Run()
}

// uploadFile selects and submits the file, printing every snapshot.
func uploadFile(ctx context.Context, cfg config, stdout io.Writer, logger logrus.FieldLogger) error {
	file, err := upload.FileFromPath(cfg.File)
	if err != nil {
		return err
	}

	client, err := upload.NewClient(cfg.Endpoint)
	if err != nil {
		return err
	}

	controller := upload.NewController(client, upload.WithLogger(logger))
	defer controller.Close()

	view := termview.New(stdout, termview.Options{NoColor: cfg.NoColor, Compact: cfg.Compact})
	updates, unsubscribe := controller.Subscribe(8)

	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for snap := range updates {
			fmt.Fprintln(stdout, view.Render(snap))
		}
	}()

	controller.SelectFile(file)
	err = controller.Submit(ctx)

	unsubscribe()
	<-printed

	if err != nil {
		return fmt.Errorf("upload of %q failed: %w", file.Name(), err)
	}
	return nil
}

func main() {
	ctx := context.Background()
	err := Run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
