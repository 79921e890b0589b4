package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	appconfig "github.com/Promitpolok/ai-image-telegram-bot/app/config"
	"github.com/Promitpolok/ai-image-telegram-bot/app/flows"
	"github.com/Promitpolok/ai-image-telegram-bot/app/inference"
	"github.com/Promitpolok/ai-image-telegram-bot/app/session"
	"github.com/Promitpolok/ai-image-telegram-bot/app/storage"
	"github.com/Promitpolok/ai-image-telegram-bot/core/buildinfo"
	"github.com/Promitpolok/ai-image-telegram-bot/core/database"
	"github.com/Promitpolok/ai-image-telegram-bot/core/logger"
	coretelegram "github.com/Promitpolok/ai-image-telegram-bot/core/telegram"
	"github.com/Promitpolok/ai-image-telegram-bot/core/telegram/router"
)

// App wires configuration, persistence, inference, and the Telegram
// runtime together.
type App struct {
	Config   *appconfig.Config
	DB       *sqlx.DB
	Sessions *session.Store
	Flows    *flows.Manager

	startedAt time.Time
}

// New initializes infrastructure in dependency order: logger first,
// then optional persistence, then the domain services.
func New(cfg *appconfig.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}

	if err := logger.InitLogger(&cfg.Core); err != nil {
		return nil, fmt.Errorf("app: logger init failed: %w", err)
	}

	logger.L.With("component", "app").Info("starting",
		slog.String("event", "start"),
		slog.String("version", buildinfo.Version),
		slog.String("commit", buildinfo.Commit),
	)

	var db *sqlx.DB
	if cfg.Database.Enabled() {
		var err error
		db, err = database.Connect(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("app: database initialization failed: %w", err)
		}
		if err := database.RunMigrations(cfg.Database); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("app: migrations failed: %w", err)
		}
	} else {
		logger.L.With("component", "app").Info("persistence disabled",
			slog.String("event", "db.skip"),
		)
	}

	sessions := session.NewStore()
	mgr := flows.NewManager(flows.Deps{
		Config:   cfg,
		Sessions: sessions,
		Client:   inference.NewClient(cfg.HuggingFace),
		Store:    storage.New(db),
	})

	return &App{
		Config:    cfg,
		DB:        db,
		Sessions:  sessions,
		Flows:     mgr,
		startedAt: time.Now(),
	}, nil
}

// TelegramRunOptions assembles registry, middleware, and routes for the
// bot runtime.
func (a *App) TelegramRunOptions() coretelegram.RunOptions {
	reg := coretelegram.NewRegistry()
	a.Flows.Register(reg)

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID:       a.Config.Core.Telegram.AdminID,
		OnAdminReject: flows.AdminReject,
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.MessageRoutes(a.Flows, reg, router.MessageOptions{
		UnknownImage: flows.UnexpectedImage,
	})...)

	return coretelegram.RunOptions{
		Config:      &a.Config.Core,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(&a.Config.Core, nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			logger.L.With("component", "app").Info("app ready",
				slog.String("event", "ready"),
				slog.Duration("startup_duration", logger.RoundMS(time.Since(a.startedAt))),
			)
			return nil
		},
		OnStop: func(ctx context.Context, rt coretelegram.Runtime) error {
			logger.L.With("component", "app").Info("shutting down...",
				slog.String("event", "shutdown"),
			)
			if a.DB != nil {
				return a.DB.Close()
			}
			return nil
		},
	}
}
