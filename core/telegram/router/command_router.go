package router

import (
	"context"
	"log/slog"

	"github.com/m3rciful/coachbot/core/logger"
	tg "github.com/m3rciful/coachbot/core/telegram"
	"github.com/m3rciful/coachbot/core/telegram/middleware"
)

// CommandRoutes wraps each registered command with recovery, logging and,
// for admin-only commands, the admin check.
func CommandRoutes(reg *tg.Registry, admin middleware.AdminOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	gate := middleware.AdminOnlyMiddleware(admin)
	routes := make([]tg.Route, 0, len(reg.Commands()))
	for name, def := range reg.Commands() {
		h := def.Handler
		if def.AdminOnly {
			h = gate(h)
			// Labels resolve through LookupCommand; keep the gate there too.
			def.Handler = h
			reg.Commands()[name] = def
		}
		routes = append(routes, tg.Route{
			Endpoint: name,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(summarized("command."+normalizeHandlerName(name), h))),
		})
	}
	logger.Info(context.Background(), "tg.wire", "complete",
		slog.String("status", "ok"),
		slog.Int("count", len(routes)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}
