package middleware

import (
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/coachbot/core/logger"
	tghelpers "github.com/m3rciful/coachbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RecoverMiddleware turns a handler panic into a logged error so one bad
// update cannot take the lane or the bot down.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(tghelpers.BuildContext(c), "tg", "tg.panic",
					slog.String("status", "panic"),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				err = nil
			}
		}()
		return next(c)
	}
}
