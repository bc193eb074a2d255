// Package trace carries per-task correlation data (batch run ID and company
// name) in a context.Context and derives loggers from it, so concurrent
// resolutions never share mutable logging state.
package trace

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ctxKey int

const (
	runIDKey ctxKey = iota
	companyKey
	loggerKey
)

// WithRunID returns a context tagged with the batch run ID.
func WithRunID(ctx context.Context, runID uuid.UUID) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID returns the run ID stored in ctx, or uuid.Nil.
func RunID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(runIDKey).(uuid.UUID)
	return id
}

// WithCompany returns a context tagged with the company being processed.
func WithCompany(ctx context.Context, company string) context.Context {
	return context.WithValue(ctx, companyKey, company)
}

// Company returns the company stored in ctx, or "".
func Company(ctx context.Context) string {
	c, _ := ctx.Value(companyKey).(string)
	return c
}

// WithLogger returns a context carrying logger as the base logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// Logger returns the base logger from ctx (slog.Default when none is set)
// enriched with the run ID and company found in ctx.
func Logger(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(loggerKey).(*slog.Logger)
	if !ok || logger == nil {
		logger = slog.Default()
	}
	if id := RunID(ctx); id != uuid.Nil {
		logger = logger.With("run_id", id.String())
	}
	if company := Company(ctx); company != "" {
		logger = logger.With("company", company)
	}
	return logger
}

// ParseLevel maps a config level name to a slog.Level. Unknown names are
// an error; the empty string means info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// Setup builds the process logger. Records go to stderr and, when logDir is
// set, also to logDir/log_YYYYMMDD_HHMM.log. The returned closer flushes and
// closes the log file.
func Setup(level string, logDir string) (*slog.Logger, io.Closer, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
		name := fmt.Sprintf("log_%s.log", time.Now().Format("20060102_1504"))
		f, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = io.MultiWriter(os.Stderr, f)
		closer = f
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}))
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
