package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	app "github.com/mohammadpnp/site-import/internal/application/siteimport"
	"github.com/mohammadpnp/site-import/internal/config"
	domain "github.com/mohammadpnp/site-import/internal/domain/siteimport"
	"github.com/mohammadpnp/site-import/internal/infrastructure/migrations"
	"github.com/mohammadpnp/site-import/internal/infrastructure/platform/umami"
	"github.com/mohammadpnp/site-import/internal/infrastructure/repository"
)

// Container holds the opened stores and the application services built on
// top of them. Both the API process and importctl use it.
type Container struct {
	Config config.Config
	Logger *slog.Logger

	DB         *gorm.DB
	ClickHouse *sql.DB
	umamiPool  *pgxpool.Pool

	Quota      *app.QuotaManager
	Jobs       *app.JobManager
	EventStore *repository.EventStoreRepository
	Adapters   *app.AdapterRegistry
	Executor   *app.ImportExecutor

	ListImports  app.ListSiteImports
	StartImport  app.StartSiteImport
	DeleteImport app.DeleteSiteImport
}

func NewContainer(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{Config: cfg, Logger: logger}

	db, err := gorm.Open(postgres.Open(cfg.Database.URL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	c.DB = db

	c.ClickHouse, err = openClickHouse(ctx, cfg.ClickHouse)
	if err != nil {
		c.Close()
		return nil, err
	}

	if cfg.Umami.DatabaseURL != "" {
		c.umamiPool, err = pgxpool.New(ctx, cfg.Umami.DatabaseURL)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create umami pgx pool: %w", err)
		}
		c.Adapters = app.NewAdapterRegistry(umami.NewAdapter(c.umamiPool, umami.Config{
			PageSize: cfg.Umami.PageSize,
			Logger:   logger.With("platform", domain.PlatformUmami),
		}))
	} else {
		logger.Warn("UMAMI_DATABASE_URL not set, umami imports are unavailable")
		c.Adapters = app.NewAdapterRegistry()
	}

	c.Quota = app.NewQuotaManager(app.QuotaManagerConfig{Logger: logger})
	c.Jobs = app.NewJobManager(repository.NewImportJobRepository(db), time.Now, logger)
	c.EventStore = repository.NewEventStoreRepository(c.ClickHouse)

	c.Executor = app.NewImportExecutor(c.Jobs, c.Adapters, c.EventStore, c.Quota, app.ImportExecutorConfig{
		Workers:      cfg.Import.Workers,
		BatchSize:    cfg.Import.BatchSize,
		PollInterval: cfg.PollInterval(),
		DedupeWindow: cfg.Import.DedupeWindow,
		FetchRetry: app.RetryPolicy{
			MaxRetries:      cfg.Import.FetchRetries,
			InitialInterval: cfg.RetryInitialInterval(),
		},
		WriteRetry: app.RetryPolicy{
			MaxRetries:      cfg.Import.WriteRetries,
			InitialInterval: cfg.RetryInitialInterval(),
		},
		Logger: logger,
	})

	c.ListImports = app.NewListSiteImports(c.Jobs)
	c.StartImport = app.NewStartSiteImport(app.StartSiteImportDeps{
		Sites:           repository.NewSiteRepository(db),
		Quota:           c.Quota,
		Jobs:            c.Jobs,
		Adapters:        c.Adapters,
		Notifier:        c.Executor,
		DefaultPlatform: domain.Platform(cfg.Import.DefaultPlatform),
		Logger:          logger,
	})
	c.DeleteImport = app.NewDeletionCoordinator(c.Jobs, c.EventStore, c.Quota, logger)

	return c, nil
}

func openClickHouse(ctx context.Context, cfg config.ClickHouseConfig) (*sql.DB, error) {
	db := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 10 * time.Second,
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	})
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect clickhouse: %w", err)
	}
	return db, nil
}

// Migrate applies the PostgreSQL and ClickHouse migrations.
func (c *Container) Migrate(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql db: %w", err)
	}
	if err := migrations.Up(ctx, migrations.TargetPostgres, sqlDB, c.Logger); err != nil {
		return err
	}
	return migrations.Up(ctx, migrations.TargetClickHouse, c.ClickHouse, c.Logger)
}

// Recover fails jobs interrupted by a previous process and rebuilds the
// quota state from the jobs that are still active.
func (c *Container) Recover(ctx context.Context) error {
	active, err := c.Jobs.Recover(ctx)
	if err != nil {
		return err
	}
	c.Quota.Rebuild(active)
	return nil
}

func (c *Container) Close() {
	if c.umamiPool != nil {
		c.umamiPool.Close()
	}
	if c.ClickHouse != nil {
		if err := c.ClickHouse.Close(); err != nil {
			c.Logger.Error("failed to close clickhouse", "error", err)
		}
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				c.Logger.Error("failed to close database", "error", err)
			}
		}
	}
}
