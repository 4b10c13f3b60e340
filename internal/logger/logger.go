// Package logger configures the process-wide slog logger.
package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// AttrKeyRunID tags every record with the id of the current run.
const AttrKeyRunID = "run_id"

// Config represents logger configuration.
type Config struct {
	Debug     bool
	Format    string // "text" or "json"
	Version   string
	AddSource bool
}

// Level returns debug when Debug is set and warn otherwise, so a normal run
// only prints problems.
func (c Config) Level() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// IsJSON reports whether records are written as JSON.
func (c Config) IsJSON() bool {
	return strings.EqualFold(c.Format, FormatJSON)
}

// New builds a logger writing to w.
func New(cfg Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level(),
		AddSource: cfg.AddSource,
	}

	var h slog.Handler
	if cfg.IsJSON() {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	l := slog.New(h)
	if cfg.Version != "" {
		l = l.With("version", cfg.Version)
	}
	return l
}

// Init builds a logger and installs it as the slog default.
func Init(cfg Config, w io.Writer) *slog.Logger {
	l := New(cfg, w)
	slog.SetDefault(l)
	return l
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

type ctxKey string

const runIDKey ctxKey = "runID"

// WithRunID returns a context carrying id.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run id, if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey).(string)
	return id, ok && id != ""
}

// FromContext returns base (or the default logger when base is nil) with
// the run id attached when ctx carries one.
func FromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	if id, ok := RunIDFromContext(ctx); ok {
		return base.With(AttrKeyRunID, id)
	}
	return base
}
