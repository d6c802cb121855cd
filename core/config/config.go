package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings that are common for all bots.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for cooldown exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for cooldown exclusions.
	UpdateMessage = "message"
)

// DefaultCooldownMS absorbs duplicate taps on the same button.
const DefaultCooldownMS = 500

// RateLimitConfig holds settings for the duplicate-action cooldown.
// An update is dropped when the same user repeats the same action
// (identical callback data or identical text) within IntervalMS.
// ExcludeUpdates accepts update types that bypass the cooldown:
// - "callback": Telegram callback button presses
// - "message": standard messages
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ReadInto decodes the YAML file at path into dst, then applies an optional
// .env file and the process environment on top. Real environment variables
// win over .env values.
func ReadInto(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if err := envconfig.Process("", dst); err != nil {
		return fmt.Errorf("apply env: %w", err)
	}
	return nil
}

// Normalize validates the core settings and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return errors.New("telegram token is required")
	}
	if err := normalizeRunMode(cfg); err != nil {
		return err
	}
	return normalizeCooldown(&cfg.RateLimit)
}

func normalizeRunMode(cfg *Config) error {
	mode := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	switch mode {
	case "", "polling", RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return errors.New("telegram.longpoll_timeout_seconds must be >= 0")
		}
		cfg.Telegram.RunMode = RunModeLongpoll
	case RunModeWebhook:
		wh := cfg.Webhook
		switch {
		case strings.TrimSpace(wh.URL) == "":
			return errors.New("webhook.url is required in webhook mode")
		case strings.TrimSpace(wh.Listen) == "":
			return errors.New("webhook.listen is required in webhook mode")
		case wh.Port <= 0:
			return errors.New("webhook.port must be > 0 in webhook mode")
		}
		cfg.Telegram.RunMode = RunModeWebhook
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	return nil
}

func normalizeCooldown(rl *RateLimitConfig) error {
	if rl.IntervalMS < 0 {
		return errors.New("rate_limit.interval_ms must be >= 0")
	}
	if rl.IntervalMS == 0 {
		rl.IntervalMS = DefaultCooldownMS
	}
	kept := rl.ExcludeUpdates[:0]
	for _, v := range rl.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if !slices.Contains([]string{UpdateCallback, UpdateMessage}, key) {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message", v)
		}
		kept = append(kept, key)
	}
	rl.ExcludeUpdates = kept
	return nil
}
