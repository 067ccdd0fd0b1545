package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/getsentry/sentry-go"
	slogsentry "github.com/getsentry/sentry-go/slog"
	"github.com/hashicorp/go-multierror"
	"github.com/owenthereal/webterm/internal/version"
	slogmulti "github.com/samber/slog-multi"
)

const (
	sentryFlushTimeout = 2 * time.Second
)

// Logger wraps slog.Logger with the cleanup of the sinks it writes to.
type Logger struct {
	*slog.Logger
	cleanupFuncs []func() error
}

// Close flushes and closes every sink, reporting all that failed.
func (l *Logger) Close() error {
	var result error
	for _, cleanup := range l.cleanupFuncs {
		if err := cleanup(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

// With returns a new logger with additional attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:       l.Logger.With(args...),
		cleanupFuncs: l.cleanupFuncs,
	}
}

// Option configures a logger
type Option func(*config) error

type config struct {
	level        slog.Level
	attrs        []any
	outputs      []io.Writer
	handlers     []slog.Handler
	cleanupFuncs []func() error
}

// New creates a JSON logger. Without an output option it writes to stderr.
func New(opts ...Option) (*Logger, error) {
	cfg := &config{
		level: slog.LevelInfo,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.outputs) == 0 {
		cfg.outputs = []io.Writer{os.Stderr}
	}

	cfg.handlers = append(cfg.handlers, slog.NewJSONHandler(io.MultiWriter(cfg.outputs...), &slog.HandlerOptions{Level: cfg.level}))

	return &Logger{
		Logger:       slog.New(slogmulti.Fanout(cfg.handlers...)).With(cfg.attrs...),
		cleanupFuncs: cfg.cleanupFuncs,
	}, nil
}

// Must wraps New and panics on error
func Must(opts ...Option) *Logger {
	logger, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return logger
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return Must(Output(io.Discard))
}

// Level sets the log level
func Level(level slog.Level) Option {
	return func(c *config) error {
		c.level = level
		return nil
	}
}

// Attrs adds key/value pairs to every record, e.g. the tmux session served.
func Attrs(args ...any) Option {
	return func(c *config) error {
		c.attrs = append(c.attrs, args...)
		return nil
	}
}

// Debug sets debug level
func Debug() Option {
	return Level(slog.LevelDebug)
}

// Console logs to stderr
func Console() Option {
	return Output(os.Stderr)
}

// Output logs to w
func Output(w io.Writer) Option {
	return func(c *config) error {
		c.outputs = append(c.outputs, w)
		return nil
	}
}

// File logs to a file (path is required)
func File(path string) Option {
	return func(c *config) error {
		if path == "" {
			return fmt.Errorf("log file path is required")
		}

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", path, err)
		}

		c.outputs = append(c.outputs, file)
		c.cleanupFuncs = append(c.cleanupFuncs, file.Close)
		return nil
	}
}

// Sentry reports error-level records to Sentry. An empty dsn is a no-op.
func Sentry(dsn string) Option {
	return func(c *config) error {
		if dsn == "" {
			return nil
		}

		sentryHandler, cleanup, err := newSentryHandler(dsn)
		if err != nil {
			return err
		}
		c.handlers = append(c.handlers, sentryHandler)
		c.cleanupFuncs = append(c.cleanupFuncs, cleanup)
		return nil
	}
}

func newSentryHandler(dsn string) (slog.Handler, func() error, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      "production",
		Release:          version.ServerHeader(),
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, nil, err
	}

	handler := slogsentry.Option{
		Level: slog.LevelError,
	}.NewSentryHandler(context.Background())

	cleanup := func() error {
		ok := sentry.Flush(sentryFlushTimeout)
		if !ok {
			return fmt.Errorf("sentry flush timeout")
		}
		return nil
	}

	return handler, cleanup, nil
}
