// Package logging provides the process slog logger and request-scoped
// logging attributes.
//
// LOG_FORMAT selects text or json output (TTY detection decides when unset),
// LOG_LEVEL selects debug, info, warn or error.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ContextKey is the type for logging values stored on a context.
type ContextKey string

const (
	// UserIDKey carries the authenticated user ID.
	UserIDKey ContextKey = "log_user_id"
	// ExecutionIDKey carries the execution attempt ID.
	ExecutionIDKey ContextKey = "log_execution_id"
	// SweepKey carries the name of the running background sweep.
	SweepKey ContextKey = "log_sweep"
)

// New creates the configured logger writing to stdout.
func New() *slog.Logger {
	logFormat := os.Getenv("LOG_FORMAT")
	useText := logFormat == "text" || (logFormat == "" && isatty(os.Stdout))
	return NewWithWriter(os.Stdout, useText, parseLogLevel(os.Getenv("LOG_LEVEL")))
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(w io.Writer, text bool, level slog.Level) *slog.Logger {
	wd, _ := os.Getwd()

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				if src, ok := a.Value.Any().(*slog.Source); ok {
					if rel, err := filepath.Rel(wd, src.File); err == nil {
						src.File = rel
					} else {
						src.File = filepath.Base(src.File)
					}
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if text {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
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

// SetDefault creates a new logger and installs it as the slog default.
func SetDefault() *slog.Logger {
	logger := New()
	slog.SetDefault(logger)
	return logger
}

func isatty(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// WithUserID returns a context carrying the user ID for log enrichment.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithExecutionID returns a context carrying the execution ID for log enrichment.
func WithExecutionID(ctx context.Context, executionID string) context.Context {
	return context.WithValue(ctx, ExecutionIDKey, executionID)
}

// WithSweep returns a context carrying the sweep name for log enrichment.
func WithSweep(ctx context.Context, sweep string) context.Context {
	return context.WithValue(ctx, SweepKey, sweep)
}

// GetUserID returns the user ID stored on ctx, or "".
func GetUserID(ctx context.Context) string {
	return stringValue(ctx, UserIDKey)
}

// GetExecutionID returns the execution ID stored on ctx, or "".
func GetExecutionID(ctx context.Context) string {
	return stringValue(ctx, ExecutionIDKey)
}

func stringValue(ctx context.Context, key ContextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// FromContext returns logger enriched with any IDs found on ctx.
// The logger is returned unchanged when ctx carries none.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if ctx == nil {
		return logger
	}

	var attrs []any
	if v := stringValue(ctx, UserIDKey); v != "" {
		attrs = append(attrs, "user_id", v)
	}
	if v := stringValue(ctx, ExecutionIDKey); v != "" {
		attrs = append(attrs, "execution_id", v)
	}
	if v := stringValue(ctx, SweepKey); v != "" {
		attrs = append(attrs, "sweep", v)
	}
	if len(attrs) == 0 {
		return logger
	}
	return logger.With(attrs...)
}
