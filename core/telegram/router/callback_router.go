package router

import (
	"log/slog"
	"time"

	tg "github.com/m3rciful/coachbot/core/telegram"
	"github.com/m3rciful/coachbot/core/telegram/callbacks"
	"github.com/m3rciful/coachbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackRoute routes every callback through the registry by its key.
// Keys listed in adminKeys are limited to administrators.
func CallbackRoute(reg *tg.Registry, admin middleware.AdminOptions, adminKeys ...string) tg.Route {
	restricted := make(map[string]struct{}, len(adminKeys))
	for _, k := range adminKeys {
		restricted[k] = struct{}{}
	}
	gate := middleware.AdminOnlyMiddleware(admin)

	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Callback() == nil {
			return nil
		}
		key := callbacks.CallbackKey(c)
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		h, ok := reg.GetCallback(key)
		if !ok {
			extras = append(extras, slog.String("reason", "not_found"))
			h = reg.CallbackNotFound()
		} else if _, adminOnly := restricted[key]; adminOnly {
			h = gate(h)
		}
		return handleWithSummary(c, name, start, func() error {
			return h(c)
		}, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
