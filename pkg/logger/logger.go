// Package logger builds the slog loggers used by the CLI and server.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/phsym/console-slog"
	slogmulti "github.com/samber/slog-multi"

	"github.com/soundprediction/noirgraph/pkg/telemetry"
)

// Config selects the console format and the optional error sink.
type Config struct {
	Level string
	// Format is "console" (colored), "text" or "json".
	Format string
	// TelemetryPath, when set, also writes error records to Parquet files.
	TelemetryPath string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// NewDefaultLogger returns a colored console logger on stderr.
func NewDefaultLogger(level slog.Level) *slog.Logger {
	return slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{Level: level}))
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything else
// is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// New builds a logger from cfg. The returned close function flushes the
// telemetry sink and must be called before the process exits.
func New(cfg Config) (*slog.Logger, func() error, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	level := ParseLevel(cfg.Level)

	var handler slog.Handler
	switch cfg.Format {
	case "", "console":
		handler = console.NewHandler(out, &console.HandlerOptions{Level: level, AddSource: level == slog.LevelDebug})
	case "text":
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	case "json":
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	closer := func() error { return nil }
	if cfg.TelemetryPath != "" {
		sink, err := telemetry.NewParquetHandler(cfg.TelemetryPath, slog.LevelError)
		if err != nil {
			return nil, nil, err
		}
		handler = slogmulti.Fanout(handler, sink)
		closer = sink.Close
	}

	return slog.New(handler), closer, nil
}
