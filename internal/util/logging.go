package util

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
)

type loggerContextKey struct{}

// InitLogger configures the global slog logger with JSON output and level.
// Accepts levels: debug, info, warn, error. Defaults to info on unknown input.
// When logsDir is set, records are also written to a daily rotated file
// named after the service. The returned func flushes and closes that file.
func InitLogger(level, service, logsDir string) (*slog.Logger, func()) {
	var out io.Writer = os.Stdout
	cleanup := func() {}

	if dir := strings.TrimSpace(logsDir); dir != "" {
		name := strings.TrimSpace(service)
		if name == "" {
			name = "signalreach"
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Warn("log dir unavailable, logging to stdout only", "dir", dir, "err", err)
		} else {
			rl, err := rotatelogs.New(
				filepath.Join(dir, name+".%Y%m%d.log"),
				rotatelogs.WithLinkName(filepath.Join(dir, name+".log")),
				rotatelogs.WithMaxAge(7*24*time.Hour),
				rotatelogs.WithRotationTime(24*time.Hour),
			)
			if err != nil {
				slog.Warn("log rotation unavailable, logging to stdout only", "dir", dir, "err", err)
			} else {
				out = io.MultiWriter(os.Stdout, rl)
				cleanup = func() { _ = rl.Close() }
			}
		}
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level:     ParseLogLevel(level),
		AddSource: true,
	})
	logger := slog.New(handler)
	if service = strings.TrimSpace(service); service != "" {
		logger = logger.With("service", service)
	}
	slog.SetDefault(logger)
	return logger, cleanup
}

// ParseLogLevel maps a textual level to slog.Level.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// Fatal logs at error level and terminates the process.
func Fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}

// ContextWithLogger stores logger in ctx.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

// LoggerFromContext returns the request-scoped logger, or the default one.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerContextKey{}).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	return slog.Default()
}
