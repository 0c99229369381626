// Package main runs catalog ingestion and schema migrations from the command line.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ramonehamilton/mtg-catalog/internal/app"
	"github.com/ramonehamilton/mtg-catalog/internal/config"
	"github.com/ramonehamilton/mtg-catalog/internal/storage"
	"github.com/ramonehamilton/mtg-catalog/internal/version"
)

const usage = `catalog-sync - keep the local MTG catalog in sync

usage:
  catalog-sync [flags] -run <task>
  catalog-sync [flags] migrate up|down|version
  catalog-sync [flags] migrate steps|force <n>

tasks:
  meta      fetch set metadata
  cards     fetch the cards of every known set
  set       fetch one set with its cards (requires -set)
  prices    fetch today's prices
  backfill  re-request prices for cards missing them
  daily     meta, prices and backfill
  weekly    meta and all cards
  snapshot  copy the database into the backups directory (-name optional)
  snapshots list the snapshots in the backups directory

flags:
`

var (
	showVer    = flag.Bool("version", false, "Print the version and exit")
	configPath = flag.String("config", "config.toml", "Config file path")
	envFile    = flag.String("env", ".env", "Environment file loaded before the config")
	task       = flag.String("run", "", "Task to run")
	setCode    = flag.String("set", "", "Set code for -run set")
	snapName   = flag.String("name", "", "Snapshot name for -run snapshot")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVer {
		fmt.Println(version.GetVersion())
		return
	}

	if flag.Arg(0) == "migrate" {
		if err := migrate(flag.Arg(1), flag.Arg(2)); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *task == "" {
		flag.Usage()
		os.Exit(2)
	}

	a, err := app.New(app.Options{EnvFile: *envFile, ConfigPath: *configPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, a, *task, *setCode, *snapName)
	stop()

	if err != nil {
		a.Logger.Error("task failed", zap.String("task", *task), zap.Error(err))
	} else {
		a.Logger.Info("task finished", zap.String("task", *task))
	}
	if closeErr := a.Close(); closeErr != nil {
		fmt.Fprintf(os.Stderr, "close: %v\n", closeErr)
	}
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, task, code, name string) error {
	o := a.Orchestrator
	backups := storage.DefaultSnapshotDir(a.Config.Database.Path)

	switch task {
	case "meta":
		_, err := o.IngestAllSetMeta(ctx)
		return err
	case "cards":
		_, err := o.IngestAllSetCards(ctx)
		return err
	case "set":
		if code == "" {
			return fmt.Errorf("-set is required for -run set")
		}
		_, err := o.IngestSet(ctx, code)
		return err
	case "prices":
		_, err := o.IngestTodayPrices(ctx)
		return err
	case "backfill":
		_, err := o.FillMissingPrices(ctx)
		return err
	case "daily":
		return o.RunDaily(ctx)
	case "weekly":
		return o.RunWeekly(ctx)
	case "snapshot":
		info, err := a.DB.Snapshot(ctx, backups, name)
		if err != nil {
			return err
		}
		a.Logger.Info("snapshot written",
			zap.String("path", info.Path),
			zap.Int("sets", info.Sets),
			zap.Int("cards", info.Cards),
			zap.String("sha256", info.Checksum))
		return nil
	case "snapshots":
		snapshots, err := storage.ListSnapshots(ctx, backups)
		if err != nil {
			return err
		}
		for _, s := range snapshots {
			fmt.Printf("%s\t%s\t%d bytes\t%d sets\t%d cards\n",
				s.Name, s.ModTime.UTC().Format(time.RFC3339), s.Size, s.Sets, s.Cards)
		}
		return nil
	default:
		return fmt.Errorf("unknown task %q", task)
	}
}

// migrate runs schema migrations without opening the rest of the application.
func migrate(direction, arg string) error {
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}

	mgr, err := storage.NewMigrationManager(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer func() { _ = mgr.Close() }()

	switch direction {
	case "up":
		return mgr.Up()
	case "down":
		return mgr.Down()
	case "steps", "force":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("%s needs a number, got %q", direction, arg)
		}
		if direction == "steps" {
			return mgr.Steps(n)
		}
		return mgr.Force(n)
	case "version":
		v, dirty, err := mgr.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty: %v)\n", v, dirty)
		return nil
	default:
		return fmt.Errorf("unknown direction %q (want up, down, steps, force or version)", direction)
	}
}
