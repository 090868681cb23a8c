// Package logging builds the logrus logger used across asciiplay.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tmpim/asciiplay/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// File additionally receives every entry when set.
	File string
	// Output defaults to stderr.
	Output io.Writer
}

// New constructs a logger using the provided options. The returned closer
// releases the log file, if any.
func New(opts Options) (*logrus.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	logger := logrus.New()
	logger.SetLevel(level)

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("ensure log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(out, f)
		closer = f
	}
	logger.SetOutput(out)

	return logger, closer, nil
}

// NewFromConfig creates a logger from the [logging] section writing to out,
// or stderr when out is nil. A non-empty levelOverride takes precedence over
// the configured level.
func NewFromConfig(cfg *config.Config, levelOverride string, out io.Writer) (*logrus.Logger, io.Closer, error) {
	if cfg == nil {
		return New(Options{Level: levelOverride, Format: "text", Output: out})
	}

	level := cfg.Logging.Level
	if levelOverride != "" {
		level = levelOverride
	}

	return New(Options{
		Level:  level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
		Output: out,
	})
}

// ParseLevel parses a level name, defaulting to info when empty.
func ParseLevel(value string) (logrus.Level, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return logrus.InfoLevel, nil
	}
	level, err := logrus.ParseLevel(value)
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("log level: %w", err)
	}
	return level, nil
}

// Discard returns a logger that drops every entry.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
