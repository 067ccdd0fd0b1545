package context

import (
	"context"
	"log/slog"

	"github.com/owenthereal/webterm/internal/logging"
)

type contextKey string

const (
	loggerKey contextKey = "logger"
	connIDKey contextKey = "conn_id"
)

func WithLogger(ctx context.Context, logger *logging.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// Logger returns the logger stored in ctx, or nil.
func Logger(ctx context.Context) *logging.Logger {
	if logger, ok := ctx.Value(loggerKey).(*logging.Logger); ok {
		return logger
	}
	return nil
}

// WithConnID tags ctx with the id of the websocket connection it serves.
func WithConnID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, connIDKey, id)
}

// ConnID returns the connection id stored in ctx, or "".
func ConnID(ctx context.Context) string {
	id, _ := ctx.Value(connIDKey).(string)
	return id
}

// ConnLogger returns base annotated with the connection id of ctx. A nil base
// discards.
func ConnLogger(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.New(slog.DiscardHandler)
	}

	if id := ConnID(ctx); id != "" {
		return base.With(string(connIDKey), id)
	}
	return base
}
