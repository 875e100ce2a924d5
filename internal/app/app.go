package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	coreconfig "github.com/filegate/filegate/core/config"
	coredatabase "github.com/filegate/filegate/core/database"
	"github.com/filegate/filegate/core/logger"
	coretelegram "github.com/filegate/filegate/core/telegram"
	tghelpers "github.com/filegate/filegate/core/telegram/helpers"
	"github.com/filegate/filegate/core/telegram/router"
	tgsender "github.com/filegate/filegate/core/telegram/sender"
	"github.com/filegate/filegate/internal/drive"
	"github.com/filegate/filegate/internal/history"
	"github.com/filegate/filegate/internal/ingest"
	"github.com/filegate/filegate/internal/publisher"
	"github.com/filegate/filegate/internal/shortener"
	"github.com/filegate/filegate/internal/upload"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// App owns the file-gate bot: the upload wizard engine, its session store,
// and the optional history database.
type App struct {
	cfg *coreconfig.Config

	store    upload.Store
	recorder *history.Recorder
	db       *sqlx.DB

	// engine is assembled in OnStart once the bot handle exists; handlers
	// only run after that point.
	engine *upload.Engine
}

// New builds the application from configuration: session store backend,
// shortener and drive clients, and the history database when configured.
func New(cfg *coreconfig.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}

	a := &App{cfg: cfg}

	store, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}
	a.store = store

	if cfg.Database.Enabled() {
		db, err := coredatabase.Connect(HistoryDBConfig(cfg))
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("app: history database: %w", err)
		}
		a.db = db
		a.recorder = history.NewRecorder(db)
	} else {
		logger.Info(logger.Background(), "history", "history.disabled")
	}

	return a, nil
}

func buildStore(cfg *coreconfig.Config) (upload.Store, error) {
	switch cfg.Session.Backend {
	case coreconfig.SessionBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store, err := upload.NewRedisStore(context.Background(), client, cfg.Session.TTL)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("app: session store: %w", err)
		}
		logger.Info(logger.Background(), "store", "store.ready",
			slog.String("backend", "redis"),
			slog.Duration("ttl", cfg.Session.TTL),
		)
		return store, nil
	default:
		logger.Info(logger.Background(), "store", "store.ready",
			slog.String("backend", "memory"),
			slog.Duration("ttl", cfg.Session.TTL),
		)
		return upload.NewMemoryStore(cfg.Session.TTL, cfg.Session.SweepInterval), nil
	}
}

// CoreConfig exposes the embedded core configuration.
func (a *App) CoreConfig() *coreconfig.Config { return a.cfg }

// HistoryDBConfig maps the database section of the loaded configuration onto
// core/database.Config. The two structs are kept separate so core/config
// does not import other core packages.
func HistoryDBConfig(cfg *coreconfig.Config) coredatabase.Config {
	return coredatabase.Config{
		Host:           cfg.Database.Host,
		Port:           cfg.Database.Port,
		User:           cfg.Database.User,
		Password:       cfg.Database.Password,
		Name:           cfg.Database.Name,
		SSLMode:        cfg.Database.SSLMode,
		MaxConnections: cfg.Database.MaxConnections,
	}
}

// TelegramRunOptions assembles middlewares, routes and lifecycle hooks for
// the bot runtime.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	a.registerCommands(reg)
	a.registerCallbacks(reg)

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Telegram.AdminID,
		OnAdminReject: func(c tele.Context) error {
			return tghelpers.SendText(c, "This command is restricted.")
		},
	})
	routes = append(routes, router.TextRoutes(a, reg, router.TextOptions{
		UnknownFile: a.handleFile,
	})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))

	opts := coretelegram.RunOptions{
		Config:      a.cfg,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg, nil),
		Routes:      routes,
		DispatcherOptions: tgsender.Options{
			MaxRetries: 2,
		},
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			a.buildEngine(rt.Bot, rt.Dispatcher)
			return nil
		},
		OnStop: func(ctx context.Context, rt coretelegram.Runtime) error {
			return a.Close()
		},
	}
	return opts, nil
}

// buildEngine wires the wizard engine against the live bot handle.
func (a *App) buildEngine(bot *tele.Bot, disp *tgsender.Dispatcher) {
	var short upload.Shortener
	if c := shortener.New(a.cfg.Shortener); c != nil {
		short = c
	}

	var blob ingest.BlobStore
	if c := drive.New(a.cfg.Drive); c != nil {
		blob = c
	}

	var rec upload.Recorder
	if a.recorder != nil {
		rec = a.recorder
	}

	a.engine = upload.NewEngine(upload.Options{
		Store:     a.store,
		Ingestor:  ingest.NewAdapter(&botFileSource{bot: bot}, blob),
		Shortener: short,
		Publisher: publisher.New(bot, a.cfg.Channel.ID, a.cfg.Channel.FileOpenerBot),
		Recorder:  rec,
		Replier:   &botReplier{bot: bot, disp: disp},
	})

	logger.Info(logger.Background(), "app", "engine.ready",
		slog.Bool("shortener", short != nil),
		slog.Bool("drive", blob != nil),
		slog.Bool("history", rec != nil),
	)
}

// Close releases the session store and database.
func (a *App) Close() error {
	var firstErr error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			firstErr = err
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
