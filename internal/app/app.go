// Package app initializes and holds long-lived application services, acting
// as the dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jobsight/jobsight/internal/archive"
	"github.com/jobsight/jobsight/internal/clock/system"
	"github.com/jobsight/jobsight/internal/config"
	"github.com/jobsight/jobsight/internal/hash/sha256"
	"github.com/jobsight/jobsight/internal/logging"
	"github.com/jobsight/jobsight/internal/metrics"
	"github.com/jobsight/jobsight/internal/pipeline"
	"github.com/jobsight/jobsight/internal/storage/memory"
	"github.com/jobsight/jobsight/internal/storage/postgres"
	redisstore "github.com/jobsight/jobsight/internal/storage/redis"
)

// App holds the shared, long-lived services for the pipeline. It is built
// once at startup and passed to the commands that need it.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Vacancies pipeline.VacancyStore
	Runs      pipeline.RunStore
	Delivered pipeline.DeliveredStore
	Archive   pipeline.Archive
	Clock     pipeline.Clock
	Hasher    pipeline.Hasher

	closers []func()
}

// New builds the container from configuration, failing fast if any critical
// service cannot be initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	metrics.Init()

	a := &App{
		Config: cfg,
		Logger: logger,
		Clock:  system.New(),
		Hasher: sha256.New(),
	}

	if err := a.initStorage(ctx); err != nil {
		return nil, err
	}
	if err := a.initDelivered(ctx); err != nil {
		return nil, err
	}
	if err := a.initArchive(); err != nil {
		return nil, err
	}

	logger.Info("application services initialized",
		zap.String("storage", cfg.Storage.Provider),
		zap.String("delivered", cfg.Delivery.DeliveredProvider),
		zap.String("archive", cfg.Archive.Provider),
		zap.Int("sources", len(cfg.Sources)),
	)
	return a, nil
}

func (a *App) initStorage(ctx context.Context) error {
	switch a.Config.Storage.Provider {
	case "postgres":
		pgCfg := postgres.Config{
			DSN:      a.Config.Storage.Postgres.DSN,
			MaxConns: a.Config.Storage.Postgres.MaxConns,
			MinConns: a.Config.Storage.Postgres.MinConns,
		}
		vacancies, err := postgres.NewVacancyStore(ctx, pgCfg)
		if err != nil {
			return fmt.Errorf("init postgres vacancy store: %w", err)
		}
		runs, err := postgres.NewRunStore(ctx, pgCfg)
		if err != nil {
			vacancies.Close()
			return fmt.Errorf("init postgres run store: %w", err)
		}
		a.Vacancies = vacancies
		a.Runs = runs
		a.closers = append(a.closers, vacancies.Close, runs.Close)
	default:
		a.Vacancies = memory.NewVacancyStore()
		a.Runs = memory.NewRunStore()
	}
	return nil
}

func (a *App) initDelivered(ctx context.Context) error {
	switch a.Config.Delivery.DeliveredProvider {
	case "redis":
		store, err := redisstore.NewDeliveredStore(ctx, redisstore.Config{
			Addr:     a.Config.Delivery.Redis.Addr,
			Password: a.Config.Delivery.Redis.Password,
			DB:       a.Config.Delivery.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("init redis delivered store: %w", err)
		}
		a.Delivered = store
		a.closers = append(a.closers, func() { _ = store.Close() })
	default:
		a.Delivered = memory.NewDeliveredStore()
	}
	return nil
}

func (a *App) initArchive() error {
	switch a.Config.Archive.Provider {
	case "fs":
		fs, err := archive.NewFS(archive.Config{BaseDir: a.Config.Archive.BaseDir})
		if err != nil {
			return fmt.Errorf("init fs archive: %w", err)
		}
		a.Archive = fs
	default:
		a.Archive = archive.Noop{}
	}
	return nil
}

// Close releases all held resources.
func (a *App) Close() {
	for _, closeFn := range a.closers {
		closeFn()
	}
	_ = a.Logger.Sync()
}
