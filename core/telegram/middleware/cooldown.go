package middleware

import (
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/m3rciful/coachbot/core/logger"
	tghelpers "github.com/m3rciful/coachbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// CooldownOptions configures the duplicate-action cooldown.
type CooldownOptions struct {
	Interval time.Duration
	// Exclude lists update kinds ("callback", "message") that bypass the cooldown.
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

type actionKey struct {
	userID int64
	action string
}

type cooldown struct {
	interval time.Duration

	mu    sync.Mutex
	seen  map[actionKey]time.Time
	sweep time.Time
}

func newCooldown(interval time.Duration) *cooldown {
	return &cooldown{interval: interval, seen: make(map[actionKey]time.Time)}
}

// allow records the action and reports whether it is outside the window of
// the previous identical action from the same user.
func (cd *cooldown) allow(userID int64, action string, now time.Time) bool {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	if now.Sub(cd.sweep) > 10*cd.interval {
		for k, ts := range cd.seen {
			if now.Sub(ts) >= cd.interval {
				delete(cd.seen, k)
			}
		}
		cd.sweep = now
	}
	k := actionKey{userID: userID, action: action}
	if last, ok := cd.seen[k]; ok && now.Sub(last) < cd.interval {
		return false
	}
	cd.seen[k] = now
	return true
}

// updateAction returns the update kind and the action a repeat is matched on.
func updateAction(upd tele.Update) (kind, action string) {
	switch {
	case upd.Callback != nil:
		return "callback", "cb:" + upd.Callback.Data
	case upd.Message != nil:
		m := upd.Message
		switch {
		case m.Text != "":
			return "message", "text:" + strings.TrimSpace(m.Text)
		case m.Photo != nil:
			return "message", "photo:" + m.Photo.UniqueID
		case m.Document != nil:
			return "message", "doc:" + m.Document.UniqueID
		}
		return "message", ""
	}
	return "other", ""
}

// CooldownMiddleware drops an update when the same user repeats the same
// action (identical callback data, text or file) within the interval.
func CooldownMiddleware(opts CooldownOptions) tele.MiddlewareFunc {
	cd := newCooldown(opts.Interval)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind, action := updateAction(c.Update())
			if _, skip := opts.Exclude[kind]; skip || action == "" {
				return next(c)
			}
			if cd.allow(user.ID, action, time.Now()) {
				return next(c)
			}
			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.cooldown",
				slog.String("status", "rejected"),
				slog.Int64("user_id", user.ID),
				slog.String("input", kind),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
