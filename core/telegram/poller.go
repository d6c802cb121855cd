package telegram

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/coachbot/core/config"

	tele "gopkg.in/telebot.v4"
)

const defaultPollTimeout = 10 * time.Second

// PollTimeout returns the configured long-poll timeout.
func PollTimeout(cfg *coreconfig.Config) time.Duration {
	if cfg == nil || cfg.Telegram.LongPollTimeoutSeconds <= 0 {
		return defaultPollTimeout
	}
	return time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second
}

// BuildPoller returns the webhook or long poller selected by the run mode.
func BuildPoller(cfg *coreconfig.Config) tele.Poller {
	if strings.EqualFold(cfg.Telegram.RunMode, coreconfig.RunModeWebhook) {
		return &tele.Webhook{
			Listen:   fmt.Sprintf("%s:%d", cfg.Webhook.Listen, cfg.Webhook.Port),
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}
	return &tele.LongPoller{Timeout: PollTimeout(cfg)}
}
