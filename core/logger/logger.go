// Package logger is the structured logging layer: one line per event with a
// component, an event name and a status, enriched from the update context.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/coachbot/core/buildinfo"
	coreconfig "github.com/m3rciful/coachbot/core/config"
)

var (
	initOnce sync.Once
	closeMu  sync.Mutex
	closed   bool

	sink    *asyncWriter
	files   []io.Closer
	level   slog.LevelVar
	sampler = newRatioSampler(1, 50)
	trace   bool

	// L is the base logger. It stays nil until InitLogger runs; every helper in
	// this package tolerates that so packages can be tested without a logger.
	L *slog.Logger
)

// options is the logging setup derived from config.
type options struct {
	profile  string
	format   logFormat
	level    slog.Level
	keyOrder []string
	num, den int
	file     string
}

func resolveOptions(cfg *coreconfig.Config) options {
	o := options{
		profile:  "prod",
		format:   formatJSON,
		level:    slog.LevelInfo,
		keyOrder: append([]string(nil), defaultKeyOrder...),
		num:      1,
		den:      50,
	}
	if cfg == nil {
		o.profile = ""
		return o
	}
	lc := cfg.Logging
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		o.profile = p
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		o.format = formatKV
	case "json":
	default:
		if o.profile == "debug" || o.profile == "dev" {
			o.format = formatKV
		}
	}
	switch strings.ToLower(strings.TrimSpace(lc.Level)) {
	case "debug":
		o.level = slog.LevelDebug
	case "warn", "warning":
		o.level = slog.LevelWarn
	case "error":
		o.level = slog.LevelError
	}
	if order := splitList(lc.KeysOrder); len(order) > 0 && !(len(order) == 1 && order[0] == "default") {
		o.keyOrder = order
	}
	if spec := strings.TrimSpace(lc.DebugSample); spec != "" {
		switch num, den := parseRatioSpec(spec); {
		case num == 0 && den == 0:
			o.num, o.den = 0, 0
		case num > 0 && den > 0:
			o.num, o.den = num, den
		}
	}
	if dir, name := strings.TrimSpace(lc.Dir), strings.TrimSpace(lc.BotFile); dir != "" && name != "" {
		o.file = filepath.Join(dir, name)
	}
	return o
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// openFile opens the optional log file. Failures are reported on stderr and
// logging continues on stdout only.
func openFile(path string) io.WriteCloser {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "logger: create log dir: %v\n", err)
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: open log file: %v\n", err)
		return nil
	}
	return f
}

// InitLogger configures the global structured logger. Only the first call has
// an effect.
func InitLogger(cfg *coreconfig.Config) error {
	initOnce.Do(func() {
		o := resolveOptions(cfg)
		level.Set(o.level)
		sampler.Set(o.num, o.den)
		trace = isTruthy(os.Getenv("TRACE")) || isTruthy(os.Getenv("LOG_TRACE"))

		outs := []io.Writer{os.Stdout}
		if f := openFile(o.file); f != nil {
			outs = append(outs, f)
			files = append(files, f)
		}
		sink = newAsyncWriter(outs, 64<<10)

		L = slog.New(newStructuredHandler(handlerConfig{
			level:    &level,
			writer:   sink,
			format:   o.format,
			keyOrder: o.keyOrder,
		}))
		slog.SetDefault(L)

		L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
			slog.String("component", "app"),
			slog.String("event", "startup"),
			slog.String("go_version", runtime.Version()),
			slog.String("build_version", buildinfo.Version),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("build_time", buildinfo.Date),
			slog.String("cfg_profile", o.profile),
		)
	})
	return nil
}

// Shutdown flushes buffered output and closes the log file. It is safe to
// call more than once.
func Shutdown() error {
	closeMu.Lock()
	defer closeMu.Unlock()
	if closed {
		return nil
	}
	closed = true

	var errs []error
	if sink != nil {
		errs = append(errs, sink.Flush(), sink.Close())
	}
	for _, c := range files {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// Background returns context.Background().
func Background() context.Context {
	return context.Background()
}

// LogEvent writes one record with a leading event attribute. A nil logger
// falls back to the one in ctx.
func LogEvent(ctx context.Context, log *slog.Logger, lvl slog.Level, event string, attrs ...slog.Attr) {
	if log == nil {
		if log = FromContext(ctx); log == nil {
			return
		}
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	log.LogAttrs(ctx, lvl, "", attrs...)
}

// Component returns L scoped to name, or nil before InitLogger.
func Component(name string) *slog.Logger {
	if L == nil {
		return nil
	}
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

func event(ctx context.Context, component string, lvl slog.Level, name string, attrs ...slog.Attr) {
	log := Component(component)
	if log == nil {
		if log = FromContext(ctx); log != nil && component != "" {
			log = log.With("component", component)
		}
	}
	LogEvent(ctx, log, lvl, name, attrs...)
}

// Debug logs a debug event for component.
func Debug(ctx context.Context, component, name string, attrs ...slog.Attr) {
	event(ctx, component, slog.LevelDebug, name, attrs...)
}

// Info logs an info event for component.
func Info(ctx context.Context, component, name string, attrs ...slog.Attr) {
	event(ctx, component, slog.LevelInfo, name, attrs...)
}

// Warn logs a warning event for component.
func Warn(ctx context.Context, component, name string, attrs ...slog.Attr) {
	event(ctx, component, slog.LevelWarn, name, attrs...)
}

// Error logs an error event for component.
func Error(ctx context.Context, component, name string, attrs ...slog.Attr) {
	event(ctx, component, slog.LevelError, name, attrs...)
}

// Err is the err attribute. A nil error yields an empty value that is pruned.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("err", "")
	}
	return slog.String("err", SanitizeLimit(err.Error(), 512))
}

// ShouldSampleDebug reports whether a high-volume debug event should be
// written. TRACE=1 lets every event through.
func ShouldSampleDebug() bool {
	return trace || sampler.Allow()
}
