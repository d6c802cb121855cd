// Package sender performs outbound Telegram calls with bounded retries.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/m3rciful/coachbot/core/logger"
	"github.com/m3rciful/coachbot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// Options controls retries of a single call.
type Options struct {
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent on one call including retries.
	MaxDuration time.Duration
}

// Dispatcher runs outbound calls in the caller's goroutine so that replies to
// one user keep their order, retrying transient network failures.
type Dispatcher struct {
	opts Options
	errs atomic.Uint64
}

// NewDispatcher returns a Dispatcher, filling zero options with defaults.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 500 * time.Millisecond
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}
	return &Dispatcher{opts: opts}
}

// ErrorCount returns the number of calls that failed for good.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Do runs call, retrying transient failures until MaxRetries or MaxDuration
// or ctx runs out. Telegram API errors are returned at once.
func (d *Dispatcher) Do(ctx context.Context, action, endpoint string, call func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deadline, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = call(); err == nil {
			if attempt > 1 {
				logger.Info(ctx, "tg.sender", "send.retry.success",
					slog.String("action", action),
					slog.String("endpoint", endpoint),
					slog.Int("attempts", attempt),
					slog.Duration("duration", logger.Took(start)),
				)
			}
			return nil
		}
		if !netutil.ShouldRetry(err) || attempt == attempts {
			break
		}
		timer := time.NewTimer(d.opts.RetryBackoff * time.Duration(attempt))
		select {
		case <-deadline.Done():
			timer.Stop()
			err = errors.Join(err, deadline.Err())
			attempt = attempts
		case <-timer.C:
		}
	}
	d.errs.Add(1)
	logger.Warn(ctx, "tg.sender", "send.fail",
		slog.String("status", "error"),
		slog.String("action", action),
		slog.String("endpoint", endpoint),
		slog.String("reason", classifyError(err)),
		slog.String("err", Redact(err)),
		slog.Duration("duration", logger.Took(start)),
	)
	return err
}

// Redact returns the error text with bot tokens removed.
func Redact(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}

// Blocked reports whether err means the user blocked the bot or never
// started it, so the message can never be delivered.
func Blocked(err error) bool {
	return errors.Is(err, tele.ErrBlockedByUser) ||
		errors.Is(err, tele.ErrUserIsDeactivated) ||
		errors.Is(err, tele.ErrChatNotFound)
}

func classifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case Blocked(err):
		return "blocked"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}
	var floodErr tele.FloodError
	if errors.As(err, &floodErr) {
		return "http_429"
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code >= http.StatusInternalServerError {
			return "http_5xx"
		}
		return "http_4xx"
	}
	return "unknown"
}
