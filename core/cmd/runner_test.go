package cmd

import (
	"context"
	"errors"
	"testing"

	coreconfig "github.com/m3rciful/coachbot/core/config"
	coretelegram "github.com/m3rciful/coachbot/core/telegram"
)

type carrier struct{ cfg *coreconfig.Config }

func (c carrier) CoreConfig() *coreconfig.Config { return c.cfg }

type app struct{ started, stopped *bool }

func (a app) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{
		OnStart: func(context.Context, coretelegram.Runtime) error { *a.started = true; return nil },
		OnStop:  func(context.Context, coretelegram.Runtime) error { *a.stopped = true; return nil },
	}, nil
}

func TestRunWiresHooks(t *testing.T) {
	t.Setenv("COACHBOT_TEST_CONFIG", "from-env.yaml")
	var loaded string
	var started, stopped, loggerClosed bool
	err := Run(Options{
		ConfigEnvVar:      "COACHBOT_TEST_CONFIG",
		DefaultConfigPath: "default.yaml",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			loaded = path
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap: func(context.Context, ConfigCarrier) (TelegramApp, error) {
			return app{started: &started, stopped: &stopped}, nil
		},
		ShutdownLogger: func() error { loggerClosed = true; return nil },
		RunTelegram: func(ctx context.Context, ro coretelegram.RunOptions) error {
			if err := ro.OnStart(ctx, coretelegram.Runtime{}); err != nil {
				return err
			}
			return ro.OnStop(ctx, coretelegram.Runtime{})
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if loaded != "from-env.yaml" {
		t.Fatalf("config path = %q", loaded)
	}
	if !started || !stopped || !loggerClosed {
		t.Fatalf("hooks: started=%v stopped=%v logger=%v", started, stopped, loggerClosed)
	}
}

func TestRunFailures(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	boom := errors.New("boom")
	load := func(string) (ConfigCarrier, error) { return carrier{cfg: &coreconfig.Config{}}, nil }

	if err := Run(Options{}); err == nil {
		t.Fatal("missing LoadConfig accepted")
	}
	if err := Run(Options{LoadConfig: load, Bootstrap: func(context.Context, ConfigCarrier) (TelegramApp, error) {
		return nil, boom
	}}); err == nil {
		t.Fatal("missing config path accepted")
	}
	err := Run(Options{
		DefaultConfigPath: "x.yaml",
		LoadConfig:        load,
		ShutdownLogger:    func() error { return nil },
		Bootstrap: func(context.Context, ConfigCarrier) (TelegramApp, error) {
			return nil, boom
		},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("bootstrap error = %v", err)
	}
}
