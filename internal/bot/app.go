package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/coachbot/core/bootstrap"
	coredatabase "github.com/m3rciful/coachbot/core/database"
	"github.com/m3rciful/coachbot/core/logger"
	tg "github.com/m3rciful/coachbot/core/telegram"
	"github.com/m3rciful/coachbot/core/telegram/middleware"
	"github.com/m3rciful/coachbot/core/telegram/router"
	tgsender "github.com/m3rciful/coachbot/core/telegram/sender"
	"github.com/m3rciful/coachbot/internal/approval"
	"github.com/m3rciful/coachbot/internal/config"
	"github.com/m3rciful/coachbot/internal/notify"
	"github.com/m3rciful/coachbot/internal/payment"
	"github.com/m3rciful/coachbot/internal/questionnaire"
	"github.com/m3rciful/coachbot/internal/session"
	"github.com/m3rciful/coachbot/internal/storage"
	"github.com/m3rciful/coachbot/internal/workflow"
)

// laneDepth is how many updates one user may queue before dispatch blocks.
const laneDepth = 32

// App is the assembled bot ready to run.
type App struct {
	cfg    *config.Config
	docs   storage.Store
	sender notify.Sender
	bot    *Bot
	seq    *middleware.Sequencer
}

// Bootstrap initializes logging and storage and wires every service.
func Bootstrap(ctx context.Context, cfg *config.Config) (*App, error) {
	var db *coredatabase.Config
	if cfg.UsesSQL() {
		db = &cfg.Database
	}
	res, err := bootstrap.Run(ctx, bootstrap.Options{Config: cfg.CoreConfig(), Database: db})
	if err != nil {
		return nil, err
	}

	var docs storage.Store
	if res.DB != nil {
		docs = storage.NewSQLStore(res.DB)
	} else {
		fs, err := storage.NewFileStore(cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("file storage: %w", err)
		}
		docs = fs
	}

	app, err := Assemble(cfg, docs, &Sender{})
	if err != nil {
		return nil, errors.Join(err, docs.Close())
	}
	logger.Info(ctx, "app", "wired",
		slog.String("status", "ok"),
		slog.String("storage", cfg.Storage.Driver),
		slog.Int("count", len(cfg.Courses)),
	)
	return app, nil
}

// Assemble builds the services over docs. A *Sender is bound to the bot
// when the runtime starts.
func Assemble(cfg *config.Config, docs storage.Store, sender notify.Sender) (*App, error) {
	bank := questionnaire.DefaultBank()
	if cfg.Workflow.QuestionsFile != "" {
		var err error
		if bank, err = questionnaire.LoadBank(cfg.Workflow.QuestionsFile); err != nil {
			return nil, err
		}
	}
	cat, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}

	admins := NewAdmins(cfg.Admins.IDs, cfg.Admins.SuperAdmin)
	ledger := payment.NewLedger(docs)
	sessions := session.NewStore(docs, ledger)
	stepper := questionnaire.NewStepper(docs, bank)
	notifier := notify.New(sender, admins, cfg.AdminNotifyTimeout())
	view := NewPresenter(cat, bank, cfg.Payment)

	machine := workflow.New(workflow.Deps{
		Docs:      docs,
		Sessions:  sessions,
		Ledger:    ledger,
		Stepper:   stepper,
		Catalog:   cat,
		Notifier:  notifier,
		Presenter: view,
		Cap:       cfg.ReceiptCap(),
	})
	coord := approval.New(approval.Deps{
		Sessions: sessions,
		Ledger:   ledger,
		Stepper:  stepper,
		Catalog:  cat,
		Notifier: notifier,
		Prompts:  view,
	})
	b := New(Deps{
		Machine:     machine,
		Coordinator: coord,
		Notifier:    notifier,
		Sender:      sender,
		Admins:      admins,
		Presenter:   view,
	})
	return &App{cfg: cfg, docs: docs, sender: sender, bot: b, seq: middleware.NewSequencer(laneDepth)}, nil
}

// TelegramRunOptions registers the handlers and describes the runtime.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()
	reg := tg.NewRegistry()
	if err := a.bot.Register(reg); err != nil {
		return tg.RunOptions{}, fmt.Errorf("register handlers: %w", err)
	}
	admin := middleware.AdminOptions{Admins: a.bot.admins, OnReject: a.bot.OnAdminReject}

	routes := router.CommandRoutes(reg, admin)
	routes = append(routes, router.CallbackRoute(reg, admin, AdminCallbacks()...))
	routes = append(routes, router.MessageRoutes(reg, a.bot.OnMessage)...)

	return tg.RunOptions{
		Config:   core,
		Registry: reg,
		DispatcherOptions: tgsender.Options{
			MaxRetries:   3,
			RetryBackoff: 500 * time.Millisecond,
			MaxDuration:  15 * time.Second,
		},
		Middlewares: tg.DefaultMiddlewares(core, a.seq, a.bot.OnLimited),
		Routes:      routes,
		OnStart: func(_ context.Context, rt tg.Runtime) error {
			if s, ok := a.sender.(*Sender); ok {
				s.Bind(rt.Bot, rt.Dispatcher)
			}
			return nil
		},
		OnStop: func(ctx context.Context, _ tg.Runtime) error {
			a.seq.Wait()
			if err := a.docs.Close(); err != nil {
				logger.Warn(ctx, "app", "storage.close", slog.String("status", "error"), logger.Err(err))
				return err
			}
			return nil
		},
	}, nil
}
