package logger

import (
	"slices"
	"strings"
)

// Level names as written to the level field.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
	LevelFatal = "FATAL"
)

// outcomes is the vocabulary of the outcome field. Other values are dropped.
var outcomes = []string{
	"ok", "fail", "cancelled", "rate_limited", "ignored", "rejected", "conflict",
}

func levelName(level string) string {
	switch l := strings.ToUpper(strings.TrimSpace(level)); l {
	case "":
		return LevelInfo
	case "WARNING":
		return LevelWarn
	default:
		return l
	}
}

func statusName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func outcomeName(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	return s, slices.Contains(outcomes, s)
}

// defaultKeyOrder lists the keys written first, in order. Remaining keys
// follow alphabetically.
var defaultKeyOrder = []string{
	// envelope
	"ts", "level", "component", "event", "status",
	// update
	"rid", "rid_full", "ts_unix_nano", "update_id", "user_id", "chat_id",
	"chat_type", "handler", "cb_key", "outcome", "duration_ms", "messages", "kb",
	// funnel
	"state", "expect", "input", "action", "admin_id", "payment_id", "course",
	"amount", "coupon", "step", "attempts", "count", "payload", "username",
	// infrastructure
	"mode", "listen", "public_url", "driver", "db", "host", "port", "path",
	// failure
	"reason", "cleared", "err", "err_code", "cause", "ref", "backoff_ms",
}
