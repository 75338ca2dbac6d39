// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

// Package service is the caller-facing surface of PosVault. It composes the
// snapshot store, orchestrators, scheduler and cloud hub, and is shared by the
// HTTP API and the command line.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/posvault/internal/backup"
	"github.com/tomtom215/posvault/internal/cloud"
	"github.com/tomtom215/posvault/internal/scheduler"
)

// Deps are the components a Service composes.
type Deps struct {
	KV        backup.KV
	Store     *backup.SnapshotStore
	Backups   *backup.Orchestrator
	Restorer  *backup.Restorer
	Scheduler *scheduler.Scheduler
	Hub       *cloud.Hub
	ExportDir string
	Logger    zerolog.Logger
}

// Service implements the backup API.
type Service struct {
	kv        backup.KV
	store     *backup.SnapshotStore
	backups   *backup.Orchestrator
	restorer  *backup.Restorer
	sched     *scheduler.Scheduler
	hub       *cloud.Hub
	exportDir string
	logger    zerolog.Logger
}

// New creates a Service.
//
//nolint:gocritic // Deps is a one-shot constructor argument
func New(d Deps) *Service {
	return &Service{
		kv:        d.KV,
		store:     d.Store,
		backups:   d.Backups,
		restorer:  d.Restorer,
		sched:     d.Scheduler,
		hub:       d.Hub,
		exportDir: d.ExportDir,
		logger:    d.Logger.With().Str("component", "service").Logger(),
	}
}

// Scheduler exposes the scheduler for host wiring.
func (s *Service) Scheduler() *scheduler.Scheduler {
	return s.sched
}

// OperationResult reports the outcome of an operation that has no payload.
type OperationResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func operation(err error) OperationResult {
	if err != nil {
		return OperationResult{Error: err.Error()}
	}
	return OperationResult{Success: true}
}

// GetConfig returns the persisted backup policy.
func (s *Service) GetConfig() (backup.Config, error) {
	return backup.LoadConfig(s.kv)
}

// CreateBackup runs a manual backup. A nil cfg uses the persisted policy.
func (s *Service) CreateBackup(ctx context.Context, cfg *backup.Config) backup.Result {
	policy, err := s.policy(cfg)
	if err != nil {
		return backup.Result{Error: err.Error()}
	}
	return s.backups.CreateBackup(ctx, policy, backup.TriggerManual, 0)
}

func (s *Service) policy(cfg *backup.Config) (backup.Config, error) {
	if cfg != nil {
		return *cfg, nil
	}
	return backup.LoadConfig(s.kv)
}

// GetLocalBackups lists local backup files, newest first.
func (s *Service) GetLocalBackups() ([]backup.BackupFile, error) {
	return s.store.ReadAll()
}

// GetHistory returns the history ledger, newest first.
func (s *Service) GetHistory() ([]backup.HistoryEntry, error) {
	return s.store.GetHistory()
}

// DeleteBackup removes a backup locally, from its cloud provider and from
// history. Remote failures are logged; the local copy and row still go.
func (s *Service) DeleteBackup(ctx context.Context, id string) OperationResult {
	return operation(s.deleteBackup(ctx, id))
}

func (s *Service) deleteBackup(ctx context.Context, id string) error {
	entry, inHistory, err := s.store.HistoryEntryFor(id)
	if err != nil {
		return err
	}
	if inHistory && entry.Status == backup.StatusInProgress {
		return fmt.Errorf("%w: %s is still running", backup.ErrBackupInProgress, id)
	}
	if inHistory && entry.CloudPath != "" && s.hub != nil {
		if err := s.hub.Delete(ctx, entry.Provider, entry.CloudPath); err != nil {
			s.logger.Warn().Err(err).Str("backup_id", id).Msg("failed to delete remote copy")
		}
	}
	removed, err := s.store.Delete(id)
	if err != nil {
		return err
	}
	if _, err := s.store.RemoveHistory(id); err != nil {
		return err
	}
	if !removed && !inHistory {
		return fmt.Errorf("%w: %s", backup.ErrBackupNotFound, id)
	}
	s.logger.Info().Str("backup_id", id).Msg("backup deleted")
	return nil
}

// ExportResult carries the exported file path.
type ExportResult struct {
	Success bool   `json:"success"`
	Path    string `json:"path,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ExportBackup copies a local backup into the export directory.
func (s *Service) ExportBackup(id string) ExportResult {
	path, err := s.store.Export(id, s.exportDir)
	if err != nil {
		return ExportResult{Error: err.Error()}
	}
	s.logger.Info().Str("backup_id", id).Str("path", path).Msg("backup exported")
	return ExportResult{Success: true, Path: path}
}

// RestoreFromBackup restores a backup. An empty password uses the stored one.
func (s *Service) RestoreFromBackup(ctx context.Context, id, password string) backup.RestoreOutcome {
	return s.restorer.Restore(ctx, id, password)
}

// VerifyBackupFile checks a backup's structure and checksum.
func (s *Service) VerifyBackupFile(ctx context.Context, id, password string) (backup.VerificationResult, error) {
	return s.restorer.VerifyBackup(ctx, id, password)
}

// ShouldAutoRestore reports whether a fresh install has backups to restore.
func (s *Service) ShouldAutoRestore() (bool, error) {
	return s.restorer.ShouldAutoRestore()
}

// ScheduleBackup persists cfg and schedules or stops automatic backups.
//
//nolint:gocritic // Config is a small value type
func (s *Service) ScheduleBackup(cfg backup.Config) (scheduler.ScheduleState, error) {
	return s.sched.Schedule(cfg)
}

// StopBackup disables automatic backups.
func (s *Service) StopBackup() error {
	cfg, err := backup.LoadConfig(s.kv)
	if err != nil {
		return err
	}
	cfg.Enabled = false
	_, err = s.sched.Schedule(cfg)
	return err
}

// ScheduleStatus summarises automatic backups.
type ScheduleStatus struct {
	Scheduled  bool                     `json:"scheduled"`
	State      *scheduler.ScheduleState `json:"state,omitempty"`
	Config     backup.Config            `json:"config"`
	LastBackup *backup.HistoryEntry     `json:"lastBackup,omitempty"`
	InProgress bool                     `json:"inProgress"`
}

// GetScheduleStatus returns the schedule, policy and latest history row.
func (s *Service) GetScheduleStatus() (ScheduleStatus, error) {
	var st ScheduleStatus
	state, ok, err := s.sched.Status()
	if err != nil {
		return st, err
	}
	if ok {
		st.Scheduled = true
		st.State = &state
	}
	if st.Config, err = backup.LoadConfig(s.kv); err != nil {
		return st, err
	}
	history, err := s.store.GetHistory()
	if err != nil {
		return st, err
	}
	if len(history) > 0 {
		st.LastBackup = &history[0]
	}
	st.InProgress, err = s.store.InProgress()
	return st, err
}

// TriggerScheduled serves one scheduled trigger fire.
func (s *Service) TriggerScheduled(ctx context.Context) scheduler.TriggerResult {
	return s.sched.HandleTrigger(ctx, s.sched.TaskID())
}

// ErrCloudUnavailable is returned when no cloud hub is configured.
var ErrCloudUnavailable = errors.New("cloud transport is not configured")

// SaveCloudCredentials validates and stores provider credentials.
func (s *Service) SaveCloudCredentials(creds cloud.Credentials) OperationResult {
	if s.hub == nil {
		return operation(ErrCloudUnavailable)
	}
	if err := s.hub.Credentials().Save(creds); err != nil {
		return operation(err)
	}
	s.logger.Info().Str("provider", string(creds.Provider())).Msg("cloud credentials saved")
	return operation(nil)
}

// RemoveCloudCredentials deletes stored credentials for p.
func (s *Service) RemoveCloudCredentials(p cloud.Provider) OperationResult {
	if s.hub == nil {
		return operation(ErrCloudUnavailable)
	}
	if !p.IsRemote() {
		return operation(cloud.ErrLocalProvider)
	}
	return operation(s.hub.Credentials().Remove(p))
}

// TestCloudConnection reports whether p is reachable with stored credentials.
func (s *Service) TestCloudConnection(ctx context.Context, p cloud.Provider) bool {
	if s.hub == nil {
		return !p.IsRemote()
	}
	return s.hub.TestConnection(ctx, p)
}

// ListCloudBackups returns remote locators for p; failures yield none.
func (s *Service) ListCloudBackups(ctx context.Context, p cloud.Provider) []string {
	if s.hub == nil {
		return []string{}
	}
	return s.hub.List(ctx, p)
}
