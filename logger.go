package taggo

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with taggo-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithDocument adds a document field to the logger.
func (l *Logger) WithDocument(doc string) *Logger {
	return &Logger{
		Logger: l.Logger.With("document", doc),
	}
}

// WithTag adds a tag field to the logger.
func (l *Logger) WithTag(tag string) *Logger {
	return &Logger{
		Logger: l.Logger.With("tag", tag),
	}
}

// WithOp adds an operation field to the logger.
func (l *Logger) WithOp(op string) *Logger {
	return &Logger{
		Logger: l.Logger.With("op", op),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogLoad logs an incremental load.
func (l *Logger) LogLoad(ctx context.Context, stats LoadStats, err error) {
	if err != nil {
		l.ErrorContext(ctx, "incremental load failed",
			"records", stats.Records,
			"malformed", stats.Malformed,
			"dropped", stats.Dropped,
			"offset", stats.Offset,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "incremental load completed",
			"records", stats.Records,
			"malformed", stats.Malformed,
			"dropped", stats.Dropped,
			"offset", stats.Offset,
		)
	}
}

// LogQuery logs a query operation.
func (l *Logger) LogQuery(ctx context.Context, op string, tags, results int) {
	l.DebugContext(ctx, "query completed",
		"op", op,
		"tags", tags,
		"results", results,
	)
}

// LogTagsFor logs a tag lookup.
func (l *Logger) LogTagsFor(ctx context.Context, doc string, results int) {
	l.DebugContext(ctx, "tag lookup completed",
		"document", doc,
		"results", results,
	)
}

// LogSnapshotSave logs a snapshot save.
func (l *Logger) LogSnapshotSave(ctx context.Context, documents, tags uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot save failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"documents", documents,
			"tags", tags,
		)
	}
}

// LogSnapshotLoad logs a snapshot load.
func (l *Logger) LogSnapshotLoad(ctx context.Context, documents, tags uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot load failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot loaded",
			"documents", documents,
			"tags", tags,
		)
	}
}
