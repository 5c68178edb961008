package logger

import (
	"log/slog"
	"time"
)

// Attribute helpers return an empty Attr for zero inputs, so calls like
// log.Info("msg", logger.Error(err)) need no nil checks.

// Error attaches err under "error".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Duration attaches a configured duration.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Elapsed attaches the time since start.
func Elapsed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}

// RequestID attaches the request correlation id.
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// SessionID logs a session identifier in masked form.
// Full identifiers are bearer credentials and never reach the logs.
func SessionID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("session_id", MaskSessionID(id))
}

// UserID attaches a user id. Zero means anonymous and is omitted.
func UserID(id int64) slog.Attr {
	if id == 0 {
		return slog.Attr{}
	}
	return slog.Int64("user_id", id)
}

// MaskSessionID keeps the first 8 characters of a session identifier.
func MaskSessionID(id string) string {
	const visible = 8
	if len(id) <= visible {
		return "****"
	}
	return id[:visible] + "…"
}

// ClientIP attaches the resolved client address.
func ClientIP(ip string) slog.Attr {
	if ip == "" {
		return slog.Attr{}
	}
	return slog.String("client_ip", ip)
}

// UserAgent attaches the client user agent.
func UserAgent(ua string) slog.Attr {
	if ua == "" {
		return slog.Attr{}
	}
	return slog.String("user_agent", ua)
}

func Method(method string) slog.Attr { return slog.String("method", method) }

func Path(path string) slog.Attr { return slog.String("path", path) }

func StatusCode(code int) slog.Attr { return slog.Int("status_code", code) }

// Component names the subsystem emitting the record.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event names an audit or lifecycle event.
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Action names an administrative action.
func Action(action string) slog.Attr {
	return slog.String("action", action)
}

// Count attaches a counter under key.
func Count(key string, n int64) slog.Attr {
	return slog.Int64(key, n)
}

// Version attaches the build version.
func Version(v string) slog.Attr {
	return slog.String("version", v)
}
