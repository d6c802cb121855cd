package router

import (
	"time"

	tg "github.com/m3rciful/coachbot/core/telegram"
	"github.com/m3rciful/coachbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MessageKind classifies a non-command message.
type MessageKind string

const (
	KindText       MessageKind = "text"
	KindPhoto      MessageKind = "photo"
	KindDocument   MessageKind = "document"
	KindOtherMedia MessageKind = "other_media"
)

// MessageHandler receives every message that is not a command or a
// keyboard label.
type MessageHandler func(c tele.Context, kind MessageKind) error

var otherMedia = []string{
	tele.OnSticker,
	tele.OnVoice,
	tele.OnVideo,
	tele.OnVideoNote,
	tele.OnAnimation,
	tele.OnAudio,
	tele.OnLocation,
	tele.OnContact,
}

// MessageRoutes routes plain messages. Text matching a registered keyboard
// label runs that command; everything else goes to handle with its kind.
func MessageRoutes(reg *tg.Registry, handle MessageHandler) []tg.Route {
	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}
	byKind := func(kind MessageKind) tele.HandlerFunc {
		name := "message." + string(kind)
		return wrap(func(c tele.Context) error {
			return handleWithSummary(c, name, time.Now(), func() error {
				return handle(c, kind)
			})
		})
	}

	text := wrap(func(c tele.Context) error {
		start := time.Now()
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
				return handleWithSummary(c, "button."+normalizeHandlerName(key), start, func() error {
					return cmd.Handler(c)
				})
			}
		}
		return handleWithSummary(c, "message.text", start, func() error {
			return handle(c, KindText)
		})
	})

	routes := []tg.Route{
		{Endpoint: tele.OnText, Handler: text},
		{Endpoint: tele.OnPhoto, Handler: byKind(KindPhoto)},
		{Endpoint: tele.OnDocument, Handler: byKind(KindDocument)},
	}
	other := byKind(KindOtherMedia)
	for _, endpoint := range otherMedia {
		routes = append(routes, tg.Route{Endpoint: endpoint, Handler: other})
	}
	return routes
}
