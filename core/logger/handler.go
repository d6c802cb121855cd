package logger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler writes flat records: groups become dotted keys and
// durations become integer milliseconds.
type structuredHandler struct {
	cfg    handlerConfig
	prefix string
	preset []slog.Attr
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errors.New("logger: writer not initialized")
	}
	f := make(fields, 16)
	ts := r.Time.UTC()
	f["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	f["level"] = levelName(r.Level.String())
	if h.cfg.format == formatJSON {
		f["ts_unix_nano"] = ts.UnixNano()
	}
	for _, a := range h.preset {
		f.add("", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		f.add(h.prefix, a)
		return true
	})
	f.fromContext(ctx)
	f.finish(r.Message, h.cfg.format == formatJSON)

	var line []byte
	if h.cfg.format == formatJSON {
		var err error
		if line, err = encodeJSON(f, h.cfg.keyOrder); err != nil {
			return err
		}
	} else {
		line = encodeKV(f, h.cfg.keyOrder)
	}
	return h.cfg.writer.Write(append(line, '\n'))
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.preset = make([]slog.Attr, 0, len(h.preset)+len(attrs))
	next.preset = append(next.preset, h.preset...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + "." + a.Key
		}
		next.preset = append(next.preset, a)
	}
	return &next
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = joinKey(h.prefix, name)
	return &next
}

// fields is one record being assembled.
type fields map[string]any

func (f fields) add(prefix string, a slog.Attr) {
	key := joinKey(prefix, a.Key)
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			f.add(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if k, val, ok := flatValue(key, v); ok {
		f[k] = val
	}
}

// fromContext fills the update fields the record did not set itself.
func (f fields) fromContext(ctx context.Context) {
	m := metaFrom(ctx)
	f.setDefault("rid", m.rid, m.rid != "")
	f.setDefault("user_id", m.userID, m.userID != 0)
	f.setDefault("update_id", m.updateID, m.updateID != 0)
	f.setDefault("chat_id", m.chatID, m.chatID != 0)
	f.setDefault("handler", m.handler, m.handler != "")
}

func (f fields) setDefault(key string, v any, present bool) {
	if !present {
		return
	}
	if _, ok := f[key]; !ok {
		f[key] = v
	}
}

func (f fields) str(key string) string {
	switch v := f[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// finish applies the envelope rules: compact rid, event and component
// defaults, controlled status and outcome values, no empty strings.
func (f fields) finish(msg string, keepFullRID bool) {
	if rid := f.str("rid"); rid != "" {
		if short := CompactRID(rid); short != rid {
			if _, ok := f["rid_full"]; keepFullRID && !ok {
				f["rid_full"] = rid
			}
			f["rid"] = short
		}
	}
	if f.str("event") == "" {
		f["event"] = cmp.Or(msg, "unknown")
	}
	if f.str("component") == "" {
		f["component"] = "app"
	}
	if s := f.str("status"); s != "" {
		f["status"] = statusName(s)
	}
	if o := f.str("outcome"); o != "" {
		if name, ok := outcomeName(o); ok {
			f["outcome"] = name
		} else {
			delete(f, "outcome")
		}
	}
	for k, v := range f {
		if s, ok := v.(string); ok && s == "" {
			delete(f, k)
		}
	}
}

func flatValue(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return msKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return "", nil, false
	case error:
		return key, x.Error(), true
	case time.Duration:
		return msKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, strings.TrimSpace(fmt.Sprint(x)), true
	}
}

// msKey puts the millisecond unit into a duration key.
func msKey(key string) string {
	switch {
	case key == "duration", strings.HasSuffix(key, "_duration"):
		return key + "_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	default:
		return key + "_ms"
	}
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	default:
		return prefix + "." + key
	}
}
