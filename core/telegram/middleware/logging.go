package middleware

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/coachbot/core/logger"
	tghelpers "github.com/m3rciful/coachbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// seenUpdates remembers recently logged update ids; the logger middleware
// wraps both the global chain and individual routes.
type seenUpdates struct {
	mu      sync.Mutex
	ids     map[int]time.Time
	keepFor time.Duration
}

var recent = &seenUpdates{ids: make(map[int]time.Time), keepFor: 10 * time.Second}

func (s *seenUpdates) firstTime(updateID int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ts := range s.ids {
		if now.Sub(ts) > s.keepFor {
			delete(s.ids, id)
		}
	}
	if _, ok := s.ids[updateID]; ok {
		return false
	}
	s.ids[updateID] = now
	return true
}

// LoggerMiddleware sets the request id and update metadata on the context and
// logs one sampled debug line per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		var chatID, userID int64
		if chat := c.Chat(); chat != nil {
			chatID = chat.ID
		}
		user := c.Sender()
		if user != nil {
			userID = user.ID
		}
		rid := logger.BuildRID(upd.ID, chatID, userID)
		c.Set("rid", rid)

		ctx := logger.WithRID(logger.Background(), rid)
		ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
		ctx = logger.WithLogger(ctx, logger.Component("tg"))
		tghelpers.StoreContext(c, ctx)

		if logger.ShouldSampleDebug() && recent.firstTime(upd.ID, time.Now()) {
			attrs := []slog.Attr{
				slog.String("status", "ok"),
				slog.Int("update_id", upd.ID),
				slog.Int64("user_id", userID),
			}
			if user != nil && user.Username != "" {
				attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
			}
			kind, _ := updateAction(upd)
			attrs = append(attrs, slog.String("input", kind))
			switch {
			case upd.Callback != nil:
				key, payload := splitCallback(upd.Callback)
				attrs = append(attrs,
					slog.String("cb_key", logger.SanitizeLimit(key, 128)),
					slog.String("payload", logger.SanitizeLimit(payload, 256)),
				)
			case upd.Message != nil && upd.Message.Text != "":
				attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(upd.Message.Text, 256)))
			}
			logger.Debug(ctx, "tg", "update.received", attrs...)
		}
		return next(c)
	}
}

func splitCallback(cb *tele.Callback) (string, string) {
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	key, payload, _ := strings.Cut(strings.TrimPrefix(cb.Data, "\f"), "|")
	return strings.TrimSpace(key), payload
}
