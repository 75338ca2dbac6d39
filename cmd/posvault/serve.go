// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/tomtom215/posvault/internal/api"
	"github.com/tomtom215/posvault/internal/config"
	"github.com/tomtom215/posvault/internal/logging"
	"github.com/tomtom215/posvault/internal/scheduler"
	"github.com/tomtom215/posvault/internal/service"
	"github.com/tomtom215/posvault/internal/store"
	"github.com/tomtom215/posvault/internal/supervisor"
	"github.com/tomtom215/posvault/internal/supervisor/services"
)

func runServe(ctx context.Context, args []string, _ io.Writer) error {
	var common commonFlags
	fs := newFlagSet("serve", &common)
	if help, err := parseFlags(fs, args); help || err != nil {
		return err
	}

	cfg, err := loadConfig(common)
	if err != nil {
		return err
	}
	logging.Info().
		Str("data_dir", cfg.Storage.DataDir).
		Str("backup_dir", cfg.Storage.BackupPath()).
		Str("task_id", cfg.Scheduler.TaskID).
		Msg("Starting PosVault with supervisor tree")

	db, err := store.Open(cfg.Storage.StorePath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	host := scheduler.NewTickerHost(cfg.Scheduler.TickResolution, logging.Logger())
	svc, err := service.Build(cfg, db, host, logging.Logger())
	if err != nil {
		return err
	}

	// Re-register the task if a schedule survived the last shutdown.
	resumed, err := svc.Scheduler().Resume()
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to resume backup schedule")
	} else if resumed {
		logging.Info().Msg("Backup schedule resumed")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}
	tree.AddSchedulerService(host)
	tree.AddAPIService(services.NewHTTPServerService(newHTTPServer(cfg, svc), cfg.Server.ShutdownTimeout, logging.Logger()))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor tree: %w", err)
	}
	logging.Info().Msg("PosVault stopped")
	return nil
}

// newHTTPServer builds the API server from cfg.Server.
func newHTTPServer(cfg *config.Config, svc *service.Service) *http.Server {
	router := api.NewRouter(api.NewHandler(svc), api.RouterConfig{
		RateLimitRequests: cfg.Server.RateLimitReqs,
		RateLimitWindow:   cfg.Server.RateLimitWindow,
	})
	return &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		// Backups and restores run inside the request.
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  time.Minute,
	}
}
