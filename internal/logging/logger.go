// Package logging builds the logrus logger shared by the server and the CLI.
package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options selects the logger's output and shape.
type Options struct {
	Out     io.Writer
	Level   string
	Format  string // "text" or "json"
	Debug   bool
	NoColor bool
	Version string
}

// New returns an entry carrying the version field.
func New(opts Options) *logrus.Entry {
	logger := logrus.New()
	if opts.Out != nil {
		logger.Out = opts.Out
	}

	logger.SetLevel(ParseLevel(opts.Level))
	if opts.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	switch strings.ToLower(opts.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			DisableColors: opts.NoColor,
		})
	}

	entry := logrus.NewEntry(logger)
	if opts.Version != "" {
		entry = entry.WithField("version", opts.Version)
	}
	return entry
}

// ParseLevel maps a config string to a logrus level, defaulting to info.
func ParseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
