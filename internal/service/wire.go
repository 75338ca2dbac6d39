// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package service

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tomtom215/posvault/internal/backup"
	"github.com/tomtom215/posvault/internal/cloud"
	"github.com/tomtom215/posvault/internal/config"
	"github.com/tomtom215/posvault/internal/crypt"
	"github.com/tomtom215/posvault/internal/scheduler"
	"github.com/tomtom215/posvault/internal/store"
)

// Build wires a Service from process configuration over an open store.
// host receives the scheduler's task registration; nil ignores it.
func Build(cfg *config.Config, db *store.DB, host scheduler.TaskHost, logger zerolog.Logger) (*Service, error) {
	vault, err := store.NewVault(db, cfg.Vault.MasterKey)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{}
	creds := cloud.NewCredentialStore(vault, nil)
	hub := cloud.NewHub(creds, map[cloud.Provider]cloud.Adapter{
		cloud.ProviderGDrive:  cloud.NewDriveAdapter(httpClient, cfg.Cloud.GDrive.APIBase, cfg.Cloud.GDrive.UploadBase),
		cloud.ProviderDropbox: cloud.NewDropboxAdapter(httpClient, cfg.Cloud.Dropbox.APIBase, cfg.Cloud.Dropbox.ContentBase),
		cloud.ProviderS3:      cloud.NewS3Adapter(nil, cfg.Cloud.S3.Endpoint),
	}, cloud.HubConfig{
		RequestTimeout:    cfg.Cloud.RequestTimeout,
		RequestsPerSecond: cfg.Cloud.RequestsPerSecond,
		Burst:             cfg.Cloud.Burst,
	}, logger)

	snaps := backup.NewSnapshotStore(cfg.Storage.BackupPath(), db, backup.StoreOptions{
		StaleAfter: cfg.Scheduler.StaleAfter,
		Logger:     logger,
	})
	deps := backup.Deps{
		Store:   snaps,
		KV:      db,
		Secrets: vault,
		Engine:  crypt.New(),
		Remote:  hub,
		Device: backup.Device{
			Platform:   cfg.Device.Platform,
			OSVersion:  cfg.Device.OSVersion,
			AppVersion: cfg.Device.AppVersion,
			Make:       cfg.Device.Make,
			Model:      cfg.Device.Model,
		},
		Logger: logger,
	}
	orch := backup.NewOrchestrator(deps)

	sched := scheduler.New(db, orch, host, scheduler.Options{
		TaskID:       cfg.Scheduler.TaskID,
		PollInterval: cfg.Scheduler.PollInterval,
		Location:     loc,
		Logger:       logger,
	})

	return New(Deps{
		KV:        db,
		Store:     snaps,
		Backups:   orch,
		Restorer:  backup.NewRestorer(deps),
		Scheduler: sched,
		Hub:       hub,
		ExportDir: cfg.Storage.ExportPath(),
		Logger:    logger,
	}), nil
}
