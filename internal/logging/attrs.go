package logging

import (
	"log/slog"
	"time"
)

// Shared field names so log queries stay stable across packages.
const (
	FieldComponent = "component"
	FieldDataID    = "dataID"
	FieldSession   = "session"
	FieldPeer      = "peer"
	FieldChannel   = "channel"
	FieldSource    = "source"
	FieldEventType = "eventType"
)

type Attr = slog.Attr

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Float64(key string, value float64) Attr { return slog.Float64(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

// Error returns the canonical error attribute, tolerating nil errors.
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// WithComponent tags a logger with the owning component name.
func WithComponent(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	return logger.With(String(FieldComponent, name))
}
