package main

import (
	"context"
	"log"

	"github.com/m3rciful/coachbot/core/cmd"
	"github.com/m3rciful/coachbot/internal/bot"
	"github.com/m3rciful/coachbot/internal/config"
)

func main() {
	err := cmd.Run(cmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(ctx context.Context, cfg cmd.ConfigCarrier) (cmd.TelegramApp, error) {
			return bot.Bootstrap(ctx, cfg.(*config.Config))
		},
	})
	if err != nil {
		log.Fatalf("coachbot: %v", err)
	}
}
