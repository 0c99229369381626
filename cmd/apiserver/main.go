// Package main runs the catalog REST API, optionally with the in-process
// refresh scheduler.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ramonehamilton/mtg-catalog/internal/api"
	"github.com/ramonehamilton/mtg-catalog/internal/app"
	"github.com/ramonehamilton/mtg-catalog/internal/config"
	"github.com/ramonehamilton/mtg-catalog/internal/version"
)

var (
	showVer    = flag.Bool("version", false, "Print the version and exit")
	configPath = flag.String("config", "config.toml", "Config file path")
	envFile    = flag.String("env", ".env", "Environment file loaded before the config")
	port       = flag.Int("port", 0, "API server port (overrides config)")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Println(version.GetVersion())
		return
	}

	a, err := app.New(app.Options{EnvFile: *envFile, ConfigPath: *configPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "close: %v\n", err)
		}
	}()

	if err := serve(a); err != nil {
		a.Logger.Error("API server failed", zap.Error(err))
	}
}

func serve(a *app.App) error {
	cfg := a.Config
	if *port > 0 {
		cfg.Server.Port = *port
	}

	service, err := a.CollectionService()
	if err != nil {
		return err
	}

	server := api.NewServer(&api.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: config.Duration(cfg.Server.RequestTimeout),
		Registry:       a.Registry,
		Logger:         a.Logger,
	}, service)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := a.WatchLogLevel(ctx); err != nil {
			a.Logger.Warn("log level reload disabled", zap.Error(err))
		}
	}()

	if cfg.Ingest.Schedule {
		scheduler := a.Scheduler(func(kind string, err error) {
			if err == nil {
				a.Logger.Info("scheduled run finished", zap.String("kind", kind))
			}
		})
		if err := scheduler.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := scheduler.Stop(); err != nil {
				a.Logger.Warn("failed to stop scheduler", zap.Error(err))
			}
		}()
	}

	if err := server.Start(); err != nil {
		return err
	}
	a.Logger.Info("API server running", zap.Int("port", server.Port()), zap.Bool("scheduler", cfg.Ingest.Schedule))

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return server.Shutdown(shutdownCtx)
}
