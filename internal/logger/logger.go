// Package logger provides structured logging setup for dartbridge.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/codika/dartbridge/internal/config"
)

// Async handler sizing. The buffer absorbs diagnostics bursts when the
// daemon reports a large workspace.
const (
	asyncBufferSize = 2048
	asyncWorkers    = 2
)

// New creates a *slog.Logger from the given Logging config. Output is JSON
// to stdout with a "service" attribute on every record. The returned Closer
// flushes pending records in async mode and is a no-op otherwise.
func New(cfg config.Logging) (*slog.Logger, Closer) {
	level := parseLevel(cfg.Level)

	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	closer := Closer(nopCloser{})
	if cfg.Async {
		async := NewAsyncHandler(handler, asyncBufferSize, asyncWorkers)
		handler = async
		closer = async
	}

	return slog.New(handler).With("service", cfg.Service), closer
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
