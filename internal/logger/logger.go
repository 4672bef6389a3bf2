// Package logger builds the process slog.Logger and provides attribute
// helpers shared by the relay.
//
// Helpers return an empty slog.Attr for zero inputs, so calls such as
// log.Warn("send failed", logger.Error(err)) need no nil checks.
package logger

import (
	"io"
	"log/slog"
	"strings"
	"time"
)

// New returns a logger writing to w. format is "json" or "text"; level is
// one of debug, info, warn or error. Unknown values fall back to text and
// info.
func New(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps a level name to its slog.Level.
func ParseLevel(level string) slog.Level {
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

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Error creates an attribute for a single error under the key "error".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component creates an attribute for component names.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Channel creates an attribute for a channel name.
func Channel(name string) slog.Attr {
	return slog.String("channel", name)
}

// Author creates an attribute for a registered author name.
func Author(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("author", name)
}

// Client creates an attribute for a remote address.
func Client(addr string) slog.Attr {
	return slog.String("client", addr)
}

// ConnID creates an attribute for a connection identifier.
func ConnID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("conn_id", id)
}

// Kind creates an attribute for a message kind.
func Kind(kind string) slog.Attr {
	return slog.String("kind", kind)
}

// Reason creates an attribute for a refusal reason.
func Reason(reason string) slog.Attr {
	return slog.String("reason", reason)
}

// Count creates a generic counter attribute.
func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// Duration creates an attribute for a duration.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}
