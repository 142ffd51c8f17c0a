// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app wires the subsystems together: the object store, the
// configuration, the cron scheduler, the config watcher, and the HTTP
// listener set.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/wingedpig/burrow/internal/api"
	"github.com/wingedpig/burrow/internal/config"
	"github.com/wingedpig/burrow/internal/cron"
	"github.com/wingedpig/burrow/internal/db"
	"github.com/wingedpig/burrow/internal/regtoken"
	"github.com/wingedpig/burrow/internal/uia"
	"github.com/wingedpig/burrow/internal/user"
	"github.com/wingedpig/burrow/internal/util"
)

// Cron cadence: the scheduler ticks every minute and garbage-collects
// abandoned auth sessions every half hour.
const (
	cronTick        = time.Minute
	uiaCleanupEvery = 30 * time.Minute
)

// Options holds the command-line configuration.
type Options struct {
	DataDir    string
	ConfigFile string // optional config import applied at startup
	Verbose    bool
	Version    string
}

// App is the main application container.
type App struct {
	mu     sync.Mutex
	opts   Options
	db     *db.Db
	config *config.Config
	logs   *logManager
}

// New opens the store, bootstraps the configuration if the database is
// empty, and prepares the logger.
func New(opts Options) (*App, error) {
	if opts.DataDir == "" {
		return nil, fmt.Errorf("no data directory specified")
	}

	d, err := db.Open(opts.DataDir, config.DefaultMaxCache)
	if err != nil {
		return nil, err
	}

	app := &App{opts: opts, db: d, logs: newLogManager(opts.DataDir, opts.Verbose)}

	if opts.ConfigFile != "" {
		if err := config.ImportFile(d, opts.ConfigFile); err != nil {
			return nil, err
		}
		slog.Info("imported configuration", "file", opts.ConfigFile)
	}

	if !config.Exists(d) {
		if err := app.bootstrap(); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(d)
	if err != nil {
		return nil, err
	}
	app.apply(cfg)

	return app, nil
}

// bootstrap writes the default configuration and mints the single-use
// administrator registration token. The token value is logged exactly
// once.
func (a *App) bootstrap() error {
	slog.Warn("no configuration exists in the opened database")
	slog.Warn("a default configuration and a single-use registration token")
	slog.Warn("granting all privileges will be created so an admin user can")
	slog.Warn("be registered to configure this server")

	if err := config.CreateDefault(a.db, "localhost"); err != nil {
		return fmt.Errorf("create default configuration: %w", err)
	}

	token := util.RandomString(32)
	if _, err := regtoken.Create(a.db, token, "", 0, 1, user.PrivAll); err != nil {
		return fmt.Errorf("create admin registration token: %w", err)
	}

	slog.Warn("admin registration token", "token", token)
	return nil
}

// apply re-applies the live-applicable settings from a validated config.
// It may be called concurrently from the admin API and the watcher.
func (a *App) apply(cfg *config.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs.Apply(cfg.Log)
	a.db.SetMaxCache(cfg.MaxCache)
	a.config = cfg
}

// Run serves until a termination signal arrives, then shuts down
// gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := a.config

	if cfg.PidFile != "" {
		if err := os.WriteFile(cfg.PidFile, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
			return fmt.Errorf("write pid file: %w", err)
		}
		defer os.Remove(cfg.PidFile)
	}

	scheduler := cron.New(cronTick)
	scheduler.Every(uiaCleanupEvery, func() {
		removed, err := uia.Cleanup(a.db)
		if err != nil {
			slog.Error("uia session cleanup failed", "error", err)
			return
		}
		if removed > 0 {
			slog.Debug("cleaned up abandoned auth sessions", "removed", removed)
		}
	})
	scheduler.Start()
	defer scheduler.Stop()

	// Pick up out-of-process edits to the stored config record.
	watcher, err := config.Watch(a.opts.DataDir, func() {
		cfg, err := config.Load(a.db)
		if err != nil {
			slog.Error("ignoring invalid configuration change", "error", err)
			return
		}
		slog.Info("configuration changed on disk, re-applying live settings")
		a.apply(cfg)
	})
	if err != nil {
		slog.Warn("config watcher unavailable", "error", err)
	} else {
		defer watcher.Close()
	}

	router := api.NewRouter(api.Dependencies{
		Db:          a.db,
		Version:     a.opts.Version,
		ApplyConfig: a.apply,
	})
	server := api.NewServer(cfg.Listen, router)

	// Bind before dropping privileges so privileged ports work.
	if err := server.Listen(); err != nil {
		return err
	}
	if cfg.RunAs != nil {
		if err := dropPrivileges(cfg.RunAs); err != nil {
			return err
		}
	}

	err = server.Serve(ctx)
	a.db.Close()

	if err != nil {
		return err
	}
	slog.Info("shutdown complete")
	return nil
}
