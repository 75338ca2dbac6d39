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
	"strconv"

	"github.com/tomtom215/posvault/internal/backup"
	"github.com/tomtom215/posvault/internal/cloud"
	"github.com/tomtom215/posvault/internal/config"
	"github.com/tomtom215/posvault/internal/logging"
	"github.com/tomtom215/posvault/internal/scheduler"
	"github.com/tomtom215/posvault/internal/service"
	"github.com/tomtom215/posvault/internal/store"
)

// openService opens the store for a one-shot command. The closer must run
// before the process exits so badger flushes.
func openService(cfg *config.Config) (*service.Service, func(), error) {
	db, err := store.Open(cfg.Storage.StorePath())
	if err != nil {
		return nil, nil, err
	}
	svc, err := service.Build(cfg, db, scheduler.NopHost{}, logging.Logger())
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	closer := func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}
	return svc, closer, nil
}

func runTrigger(ctx context.Context, args []string, stdout io.Writer) error {
	var common commonFlags
	var serverURL string
	fs := newFlagSet("trigger", &common)
	fs.StringVar(&serverURL, "server", "", "forward to this API base URL instead of opening the store")
	if help, err := parseFlags(fs, args); help || err != nil {
		return err
	}

	cfg, err := loadConfig(common)
	if err != nil {
		return err
	}

	var res scheduler.TriggerResult
	if serverURL != "" {
		res, err = forwardTrigger(ctx, http.DefaultClient, serverURL)
	} else {
		res, err = triggerLocal(ctx, cfg)
		if errors.Is(err, store.ErrLocked) {
			logging.Info().Msg("Store is held by a running server, forwarding trigger")
			res, err = forwardTrigger(ctx, http.DefaultClient, localServerURL(cfg))
		}
	}
	if err != nil {
		return err
	}
	if err := printJSON(stdout, res); err != nil {
		return err
	}
	if res.Outcome == scheduler.OutcomeFailed {
		return fmt.Errorf("scheduled backup failed: %s", res.Error)
	}
	return nil
}

func triggerLocal(ctx context.Context, cfg *config.Config) (scheduler.TriggerResult, error) {
	svc, closeStore, err := openService(cfg)
	if err != nil {
		return scheduler.TriggerResult{}, err
	}
	defer closeStore()
	return svc.TriggerScheduled(ctx), nil
}

// localServerURL is the API base URL of a server started with cfg. A
// wildcard bind address is reached over loopback.
func localServerURL(cfg *config.Config) string {
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port))
}

func runBackup(ctx context.Context, args []string, stdout io.Writer) error {
	var common commonFlags
	var (
		provider string
		encrypt  bool
		retain   int
	)
	fs := newFlagSet("backup", &common)
	fs.StringVar(&provider, "provider", "", "override the policy's provider (local, gdrive, dropbox, s3)")
	fs.BoolVar(&encrypt, "encrypt", true, "override the policy's encryption setting")
	fs.IntVar(&retain, "retain", 0, "override the policy's retain count")
	if help, err := parseFlags(fs, args); help || err != nil {
		return err
	}

	cfg, err := loadConfig(common)
	if err != nil {
		return err
	}
	svc, closeStore, err := openService(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	policy, err := svc.GetConfig()
	if err != nil {
		return err
	}
	if fs.Changed("provider") {
		p, err := cloud.ParseProvider(provider)
		if err != nil {
			return err
		}
		policy.CloudProvider = p
	}
	if fs.Changed("encrypt") {
		policy.Encrypt = encrypt
	}
	if fs.Changed("retain") {
		policy.RetainCount = retain
	}

	res := svc.CreateBackup(ctx, &policy)
	if err := printJSON(stdout, res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("backup failed: %s", res.Error)
	}
	return nil
}

func runRestore(ctx context.Context, args []string, stdout io.Writer) error {
	var common commonFlags
	var (
		password   string
		verifyOnly bool
	)
	fs := newFlagSet("restore", &common)
	fs.StringVar(&password, "password", "", "backup password (default: the stored one)")
	fs.BoolVar(&verifyOnly, "verify", false, "only verify the backup")
	if help, err := parseFlags(fs, args); help || err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: restore takes exactly one backup id", errUsage)
	}
	id := fs.Arg(0)

	cfg, err := loadConfig(common)
	if err != nil {
		return err
	}
	svc, closeStore, err := openService(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if verifyOnly {
		res, err := svc.VerifyBackupFile(ctx, id, password)
		if err != nil {
			return err
		}
		if err := printJSON(stdout, res); err != nil {
			return err
		}
		if !res.IsValid {
			return fmt.Errorf("backup %s failed verification", id)
		}
		return nil
	}

	out := svc.RestoreFromBackup(ctx, id, password)
	if err := printJSON(stdout, out); err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("restore failed: %s", out.Error)
	}
	return nil
}

func runList(_ context.Context, args []string, stdout io.Writer) error {
	var common commonFlags
	var history bool
	fs := newFlagSet("list", &common)
	fs.BoolVar(&history, "history", false, "print the history ledger instead of local files")
	if help, err := parseFlags(fs, args); help || err != nil {
		return err
	}

	cfg, err := loadConfig(common)
	if err != nil {
		return err
	}
	svc, closeStore, err := openService(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if history {
		entries, err := svc.GetHistory()
		if err != nil {
			return err
		}
		return printJSON(stdout, entries)
	}
	files, err := svc.GetLocalBackups()
	if err != nil {
		return err
	}
	if files == nil {
		files = []backup.BackupFile{}
	}
	return printJSON(stdout, files)
}
