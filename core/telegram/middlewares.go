package telegram

import (
	"time"

	coreconfig "github.com/m3rciful/coachbot/core/config"
	"github.com/m3rciful/coachbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares builds the shared chain: per-user lanes, panic recovery,
// the duplicate-action cooldown, request logging and reply counters.
// A nil seq handles updates on the dispatch goroutine.
func DefaultMiddlewares(cfg *coreconfig.Config, seq *middleware.Sequencer, onLimited tele.HandlerFunc) []Middleware {
	var mws []Middleware
	if seq != nil {
		mws = append(mws, Middleware{Name: "sequencer", Use: seq.Middleware})
	}
	mws = append(mws, Middleware{Name: "recover", Use: middleware.RecoverMiddleware})

	if cfg != nil && cfg.RateLimit.IntervalMS > 0 {
		exclude := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
		for _, kind := range cfg.RateLimit.ExcludeUpdates {
			exclude[kind] = struct{}{}
		}
		mws = append(mws, Middleware{
			Name: "cooldown",
			Use: middleware.CooldownMiddleware(middleware.CooldownOptions{
				Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
				Exclude:   exclude,
				OnLimited: onLimited,
			}),
		})
	}

	return append(mws,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	)
}
