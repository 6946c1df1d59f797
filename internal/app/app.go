// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/postwatch-io/postwatch/internal/api"
	"github.com/postwatch-io/postwatch/internal/auth"
	"github.com/postwatch-io/postwatch/internal/checker/facebook"
	"github.com/postwatch-io/postwatch/internal/clock/system"
	"github.com/postwatch-io/postwatch/internal/config"
	"github.com/postwatch-io/postwatch/internal/id/uuid"
	"github.com/postwatch-io/postwatch/internal/logging"
	"github.com/postwatch-io/postwatch/internal/metrics"
	"github.com/postwatch-io/postwatch/internal/monitor"
	"github.com/postwatch-io/postwatch/internal/notify"
	"github.com/postwatch-io/postwatch/internal/scheduler"
	"github.com/postwatch-io/postwatch/internal/store/memory"
	"github.com/postwatch-io/postwatch/internal/store/postgres"
)

// store is the union of the persistence interfaces plus shutdown.
type store interface {
	monitor.UserStore
	monitor.PostStore
	Close()
}

// App holds all the shared, long-lived services for the application. It is
// initialized once at startup and passed to the command that needs it.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	store     store
	scheduler *scheduler.Scheduler
	handler   http.Handler
}

// New creates and initializes an App from the loaded configuration. It is
// the central point for service initialization and fails fast if any
// critical service cannot be brought up.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	metrics.Init()

	st, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	clk := system.New()
	authMgr := auth.New(st, clk, auth.Config{
		Secret:     cfg.Auth.Secret,
		AccessTTL:  cfg.AccessTTL(),
		RefreshTTL: cfg.RefreshTTL(),
		BcryptCost: cfg.Auth.BcryptCost,
	})
	checker := facebook.New(facebook.Config{
		AccessToken: cfg.Facebook.AccessToken,
		BaseURL:     cfg.Facebook.BaseURL,
		Timeout:     cfg.CheckTimeout(),
	}, logger.Named("checker"))
	notifier := notify.New(cfg.WebhookTimeout(), logger.Named("notify"))

	sched := scheduler.New(st, st, checker, notifier, clk,
		cfg.MonitorInterval(), logger.Named("scheduler"))

	srv := api.NewServer(st, st, authMgr, checker, notifier,
		uuid.NewUUIDGenerator(), clk, logger.Named("api"))

	return &App{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		scheduler: sched,
		handler:   srv.Handler(),
	}, nil
}

func newStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store, error) {
	switch cfg.Store.Provider {
	case "postgres":
		logger.Info("using postgres store")
		if err := postgres.RunMigrations(ctx, cfg.DB.DSN); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		st, err := postgres.NewStore(ctx, postgres.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize postgres store: %w", err)
		}
		return st, nil
	case "memory":
		logger.Info("using in-memory store, data will not survive restarts")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store provider: %s", cfg.Store.Provider)
	}
}

// Logger returns the shared zap logger instance.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Scheduler returns the periodic monitor scheduler.
func (a *App) Scheduler() *scheduler.Scheduler {
	return a.scheduler
}

// Handler returns the fully routed HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Addr returns the listen address from configuration.
func (a *App) Addr() string {
	return fmt.Sprintf(":%d", a.cfg.Server.Port)
}

// Close gracefully shuts down all services in the App container.
func (a *App) Close() {
	a.logger.Info("shutting down application services")
	a.scheduler.Stop()
	a.store.Close()

	// Best effort; logging itself may be the thing failing here.
	_ = a.logger.Sync()
}
