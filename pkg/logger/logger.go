// Package logger provides context-aware structured logging on top of
// logrus. A logger entry can be attached to a context so that fields set by
// callers (request id, skill id, state) follow the flow into libraries.
package logger

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	// G retrieves the logger for a context. It is the name used at call sites.
	G = GetLogger
	// L is the process-wide fallback entry.
	L = logrus.NewEntry(newLogger())
)

type loggerKey struct{}

// Config controls the global logger.
type Config struct {
	Level  string
	Format string
	Output io.Writer
}

// Configure applies cfg to the global logger. Empty fields keep the
// current setting.
func Configure(cfg Config) error {
	if cfg.Level != "" {
		level, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return errors.Wrapf(err, "invalid log level %q", cfg.Level)
		}
		L.Logger.SetLevel(level)
	}
	if cfg.Format != "" {
		if err := setFormat(L.Logger, cfg.Format); err != nil {
			return err
		}
	}
	if cfg.Output != nil {
		L.Logger.SetOutput(cfg.Output)
	}
	return nil
}

// WithLogger stores entry in ctx.
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, entry.WithContext(ctx))
}

// WithField is shorthand for attaching a single field to the context logger.
func WithField(ctx context.Context, key string, value any) context.Context {
	return WithLogger(ctx, GetLogger(ctx).WithField(key, value))
}

// GetLogger returns the entry stored in ctx, or L bound to ctx.
func GetLogger(ctx context.Context) *logrus.Entry {
	if entry, ok := ctx.Value(loggerKey{}).(*logrus.Entry); ok {
		return entry
	}
	return L.WithContext(ctx)
}

func newLogger() *logrus.Logger {
	l := logrus.New()
	_ = setFormat(l, "text")
	return l
}

func setFormat(l *logrus.Logger, format string) error {
	switch format {
	case "json":
		l.Formatter = &logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "logLevel",
				logrus.FieldKeyMsg:   "message",
			},
			TimestampFormat: time.RFC3339Nano,
		}
	case "text", "fmt":
		l.Formatter = &logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
			FullTimestamp:   true,
		}
	default:
		return errors.Errorf("unsupported log format %q, expected text or json", format)
	}
	return nil
}
