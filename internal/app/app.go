package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cloudyy74/user-directory/internal/config"
	"github.com/cloudyy74/user-directory/internal/data"
	router "github.com/cloudyy74/user-directory/internal/http"
	"github.com/cloudyy74/user-directory/internal/metrics"
	"github.com/cloudyy74/user-directory/internal/service"
	"github.com/cloudyy74/user-directory/internal/storage"
	"github.com/cloudyy74/user-directory/pkg/postgres"
)

const (
	defaultAddr     = "localhost:8080"
	dbStatsInterval = 30 * time.Second
)

type App struct {
	httpServer  *http.Server
	addr        string
	database    *postgres.Postgres
	stopMetrics context.CancelFunc
	log         *slog.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.DBURL == "" {
		return nil, errors.New("database url cannot be empty")
	}

	database, err := postgres.New(ctx, cfg.DBURL, log,
		postgres.WithMaxPoolSize(cfg.DBPool.MaxSize),
		postgres.WithConnAttempts(cfg.DBPool.ConnAttempts),
		postgres.WithConnTimeout(cfg.DBPool.ConnTimeout),
		postgres.WithConnMaxLifetime(cfg.DBPool.ConnMaxLifetime),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	if cfg.Migrations.Auto {
		if err := data.Migrate(database.DB, data.DirectionUp); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		version, _, err := data.Version(database.DB)
		if err != nil {
			log.Warn("failed to read schema version", slog.Any("error", err))
		} else {
			log.Info("schema is up to date", slog.Uint64("version", uint64(version)))
		}
	}

	m := metrics.New()
	mux, err := newMux(database, m, log)
	if err != nil {
		database.Close()
		return nil, err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.Timeout,
		ReadTimeout:       cfg.Timeout,
		WriteTimeout:      cfg.Timeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	statsCtx, stopMetrics := context.WithCancel(context.Background())
	go m.CollectDBStats(statsCtx, database.DB, dbStatsInterval, log)

	return &App{
		httpServer:  httpServer,
		addr:        cfg.Addr,
		database:    database,
		stopMetrics: stopMetrics,
		log:         log,
	}, nil
}

func newMux(database *postgres.Postgres, m *metrics.Metrics, log *slog.Logger) (*http.ServeMux, error) {
	profileStorage, err := storage.NewProfileStorage(database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile storage: %w", err)
	}
	userStorage, err := storage.NewUserStorage(database, profileStorage, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create user storage: %w", err)
	}
	teamStorage, err := storage.NewTeamStorage(database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create team storage: %w", err)
	}
	txManager, err := storage.NewTxManager(database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create tx manager: %w", err)
	}

	userService, err := service.NewUserService(userStorage, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create user service: %w", err)
	}
	orgService, err := service.NewOrganizationService(txManager, userStorage, teamStorage, profileStorage, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create organization service: %w", err)
	}

	mux := http.NewServeMux()
	if err := router.SetupRouter(mux, userService, orgService, m, log); err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}
	return mux, nil
}

func (a *App) Run() error {
	a.log.Info("starting http server", slog.String("addr", a.addr))
	return a.httpServer.ListenAndServe()
}

func (a *App) MustRun() {
	if err := a.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.log.Error("failed to run http server", slog.Any("error", err))
		panic(err)
	}
}

func (a *App) Close(ctx context.Context) {
	a.stopMetrics()
	a.log.Info("trying to shutdown server")
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.log.Warn("failed to close http server", slog.Any("error", err))
	}
	a.database.Close()
}
