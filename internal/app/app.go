// Package app wires configuration, logging, storage, the catalog source and
// the ingestion orchestrator for the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ramonehamilton/mtg-catalog/internal/catalog"
	"github.com/ramonehamilton/mtg-catalog/internal/collection"
	"github.com/ramonehamilton/mtg-catalog/internal/config"
	"github.com/ramonehamilton/mtg-catalog/internal/ingest"
	"github.com/ramonehamilton/mtg-catalog/internal/logging"
	"github.com/ramonehamilton/mtg-catalog/internal/metrics"
	"github.com/ramonehamilton/mtg-catalog/internal/scryfall"
	"github.com/ramonehamilton/mtg-catalog/internal/storage"
	"github.com/ramonehamilton/mtg-catalog/internal/storage/repository"
	"github.com/ramonehamilton/mtg-catalog/internal/version"
)

// App holds the long-lived components shared by the binaries.
type App struct {
	Config     *config.Config
	ConfigPath string
	Logger     *zap.Logger

	// Level controls Logger when it was built from config.
	Level zap.AtomicLevel

	DB           *storage.DB
	Registry     *prometheus.Registry
	Orchestrator *ingest.Orchestrator
}

// Options adjusts New.
type Options struct {
	// EnvFile is loaded into the environment before the config. A missing
	// file is ignored.
	EnvFile string

	// ConfigPath is the TOML config file.
	ConfigPath string

	// Source replaces the Scryfall client.
	Source catalog.Source

	// Logger replaces the logger built from config.
	Logger *zap.Logger
}

// New loads the configuration and opens every component. Close releases them.
func New(opts Options) (*App, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, level := opts.Logger, zap.NewAtomicLevel()
	if logger == nil {
		if logger, level, err = logging.NewWithLevel(cfg.Log); err != nil {
			return nil, err
		}
	}

	dbConfig := storage.DefaultConfig(cfg.Database.Path)
	dbConfig.MaxOpenConns = cfg.Database.MaxOpenConns
	dbConfig.AutoMigrate = cfg.Database.AutoMigrate
	dbConfig.LogQueries = cfg.Database.LogQueries
	if d := config.Duration(cfg.Database.BusyTimeout); d > 0 {
		dbConfig.BusyTimeout = d
	}

	db, err := storage.Open(dbConfig)
	if err != nil {
		return nil, err
	}

	source := opts.Source
	if source == nil {
		source = scryfall.NewClient(scryfall.Config{
			BaseURL:    cfg.Scryfall.BaseURL,
			UserAgent:  cfg.Scryfall.UserAgent,
			RateLimit:  config.Duration(cfg.Scryfall.RateLimit),
			Timeout:    config.Duration(cfg.Scryfall.Timeout),
			MaxRetries: cfg.Scryfall.MaxRetries,
			Logger:     logger,
		})
	}

	registry := metrics.NewRegistry()
	conn := db.Conn()
	orchestrator, err := ingest.NewOrchestrator(ingest.Config{
		Source:           source,
		Sets:             repository.NewSetRepository(conn),
		Cards:            repository.NewCardRepository(conn),
		Prices:           repository.NewPriceRepository(conn),
		Logger:           logger,
		Metrics:          metrics.NewIngestMetrics(registry),
		BatchSize:        cfg.Ingest.BatchSize,
		BackfillUnpriced: cfg.Ingest.BackfillUnpriced,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("application initialized",
		zap.String("version", version.GetVersion()),
		zap.String("database", cfg.Database.Path),
		zap.String("source", cfg.Scryfall.BaseURL))

	return &App{
		Config:       cfg,
		ConfigPath:   opts.ConfigPath,
		Logger:       logger,
		Level:        level,
		DB:           db,
		Registry:     registry,
		Orchestrator: orchestrator,
	}, nil
}

// CollectionService builds the query service, fetching unknown sets through
// the orchestrator.
func (a *App) CollectionService() (*collection.Service, error) {
	return collection.NewService(collection.Config{
		DB:     a.DB,
		Loader: a.Orchestrator,
		Logger: a.Logger,
	})
}

// Scheduler builds the in-process refresh scheduler from the ingest config.
func (a *App) Scheduler(onComplete func(kind string, err error)) *ingest.Scheduler {
	return ingest.NewScheduler(a.Orchestrator, ingest.SchedulerConfig{
		CheckInterval: config.Duration(a.Config.Ingest.CheckInterval),
		RefreshHour:   a.Config.Ingest.RefreshHour,
		WeeklyDay:     time.Weekday(a.Config.Ingest.WeeklyDay),
		Logger:        a.Logger,
		OnRunComplete: onComplete,
	})
}

// WatchLogLevel applies log level edits of the config file until ctx is
// done. It returns at once when there is no config file.
func (a *App) WatchLogLevel(ctx context.Context) error {
	if a.ConfigPath == "" {
		return nil
	}
	if _, err := os.Stat(a.ConfigPath); err != nil {
		return nil
	}

	w, err := logging.NewLevelWatcher(a.ConfigPath, a.Level, a.Logger)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// Close releases the database and flushes the logger.
func (a *App) Close() error {
	err := a.DB.Close()
	_ = a.Logger.Sync()
	return err
}
