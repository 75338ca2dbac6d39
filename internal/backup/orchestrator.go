// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

/*
orchestrator.go - Backup Orchestration

One CreateBackup call walks these steps strictly in order:

 1. Claim     append an in_progress history row (fails if a run is active)
 2. Collect   settings, optional auth presence flags, optional POS working set
 3. Seal      optional; zstd then AES-256-GCM under the vault backup password
 4. Write     backup_<id>.json[.enc] in the backup directory
 5. Upload    optional; failure is recorded but does not fail the attempt
 6. Record    update the history row to completed or failed
 7. Retain    keep the newest RetainCount backups

Any failure before step 6 marks the row failed and removes the local file
if one was written. Callers receive a Result with an Error string instead of
a Go error.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/posvault/internal/crypt"
	"github.com/tomtom215/posvault/internal/logging"
	"github.com/tomtom215/posvault/internal/metrics"
)

// Deps are the collaborators shared by Orchestrator and Restorer.
type Deps struct {
	Store   *SnapshotStore
	KV      KV
	Secrets Secrets
	Engine  *crypt.Engine

	// Remote may be nil when no cloud provider is configured.
	Remote Remote
	Device Device
	Now    func() time.Time
	Logger zerolog.Logger

	// MaxPayloadSize overrides the payload size guard; zero means
	// MaxPayloadSize.
	MaxPayloadSize int
}

// Orchestrator creates backups.
type Orchestrator struct {
	store   *SnapshotStore
	kv      KV
	secrets Secrets
	engine  *crypt.Engine
	remote  Remote
	device  Device
	now     func() time.Time
	logger  zerolog.Logger
	maxSize int
}

// NewOrchestrator creates an Orchestrator.
//
//nolint:gocritic // Deps is a one-shot constructor argument
func NewOrchestrator(d Deps) *Orchestrator {
	o := &Orchestrator{
		store:   d.Store,
		kv:      d.KV,
		secrets: d.Secrets,
		engine:  d.Engine,
		remote:  d.Remote,
		device:  d.Device,
		now:     d.Now,
		logger:  d.Logger.With().Str("component", "backup").Logger(),
		maxSize: d.MaxPayloadSize,
	}
	if o.maxSize <= 0 {
		o.maxSize = MaxPayloadSize
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.engine == nil {
		o.engine = crypt.New()
	}
	return o
}

// generatePassword returns a random backup password.
func generatePassword() string {
	return uuid.NewString() + uuid.NewString()
}

// attempt carries the state of one run between steps.
type attempt struct {
	cfg       Config
	entry     HistoryEntry
	localPath string
	result    Result
}

// CreateBackup runs one backup attempt. cycle is the scheduled run time a
// scheduled attempt serves and is ignored for manual runs.
//
//nolint:gocritic // Config is a small value type
func (o *Orchestrator) CreateBackup(ctx context.Context, cfg Config, trigger Trigger, cycle int64) Result {
	start := time.Now()
	ctx = logging.ContextWithNewCorrelationID(ctx)
	log := o.logger.With().Str("trigger", string(trigger)).Str("correlation_id", logging.CorrelationIDFromContext(ctx)).Logger()

	finish := func(r Result, status string) Result {
		r.DurationMillis = time.Since(start).Milliseconds()
		metrics.RecordBackup(string(trigger), status, time.Since(start), r.SizeBytes)
		return r
	}

	if err := cfg.Validate(); err != nil {
		return finish(Result{Error: err.Error()}, "failed")
	}

	entry, err := o.store.ClaimRun(trigger, cycle)
	if errors.Is(err, ErrBackupInProgress) {
		log.Info().Msg("backup skipped, another run is in progress")
		return finish(Result{Error: err.Error(), Skipped: true}, "skipped")
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to claim backup run")
		return finish(Result{Error: err.Error()}, "failed")
	}
	entry.Provider = cfg.CloudProvider
	entry.Encrypted = cfg.Encrypt

	a := &attempt{cfg: cfg, entry: entry}
	a.result = Result{BackupID: entry.ID, Encrypted: cfg.Encrypt}
	log = log.With().Str("backup_id", entry.ID).Logger()

	if err := o.run(ctx, a, log); err != nil {
		o.fail(ctx, a, err, log)
		return finish(a.result, "failed")
	}
	a.result.Success = true
	log.Info().Int64("size_bytes", a.result.SizeBytes).Str("cloud_path", a.result.CloudPath).Msg("backup completed")
	return finish(a.result, "completed")
}

func (o *Orchestrator) run(ctx context.Context, a *attempt, log zerolog.Logger) error {
	payload, err := o.collect(a.cfg)
	if err != nil {
		return err
	}
	if payload.IsEmpty() {
		return ErrEmptyPayload
	}
	raw, err := encodePayload(payload)
	if err != nil {
		return err
	}
	if len(raw) > o.maxSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrBackupTooLarge, len(raw), o.maxSize)
	}

	meta := Metadata{
		ID:            a.entry.ID,
		CreatedAt:     a.entry.CreatedAt,
		SizeBytes:     int64(len(raw)),
		Encrypted:     a.cfg.Encrypt,
		Provider:      a.cfg.CloudProvider,
		FormatVersion: FormatVersion,
		Checksum:      crypt.Checksum(raw),
		Device:        o.device,
	}

	var blob []byte
	if a.cfg.Encrypt {
		password, err := o.backupPassword()
		if err != nil {
			return err
		}
		if blob, err = encodeSealed(o.engine, meta, raw, password); err != nil {
			return err
		}
	} else if blob, err = encodePlain(meta, raw); err != nil {
		return err
	}

	path, err := o.store.Write(a.entry.ID, blob, a.cfg.Encrypt)
	if err != nil {
		return err
	}
	a.localPath = path
	a.result.LocalPath = path
	a.result.SizeBytes = int64(len(blob))

	if a.cfg.CloudProvider.IsRemote() {
		o.upload(ctx, a, blob, log)
	}

	a.entry.Status = StatusCompleted
	a.entry.SizeBytes = a.result.SizeBytes
	a.entry.LocalPath = a.result.LocalPath
	a.entry.CloudPath = a.result.CloudPath
	if len(a.result.Warnings) > 0 {
		a.entry.ErrorMessage = a.result.Warnings[0]
	}
	if err := o.store.UpdateHistory(a.entry); err != nil {
		return fmt.Errorf("record history: %w", err)
	}

	if _, err := o.store.EnforceRetention(ctx, a.cfg.RetainCount, o.remote); err != nil {
		log.Warn().Err(err).Msg("retention enforcement failed")
		a.result.Warnings = append(a.result.Warnings, "retention: "+err.Error())
	}
	return nil
}

// upload pushes blob to the configured provider. Failures become warnings.
func (o *Orchestrator) upload(ctx context.Context, a *attempt, blob []byte, log zerolog.Logger) {
	if o.remote == nil {
		a.result.Warnings = append(a.result.Warnings, "cloud upload skipped: no cloud transport configured")
		return
	}
	cloudPath, err := o.remote.Upload(ctx, a.cfg.CloudProvider, blob, filepath.Base(a.localPath))
	if err != nil {
		log.Warn().Err(err).Str("provider", string(a.cfg.CloudProvider)).Msg("cloud upload failed, keeping local copy")
		a.result.Warnings = append(a.result.Warnings, "cloud upload failed: "+err.Error())
		return
	}
	a.result.CloudPath = cloudPath

	if !a.cfg.IncludeLocalCopy {
		if _, err := o.store.Delete(a.entry.ID); err != nil {
			log.Warn().Err(err).Msg("failed to drop local copy after upload")
			return
		}
		a.result.LocalPath = ""
	}
}

// fail records a failed attempt and removes any copy it wrote.
func (o *Orchestrator) fail(ctx context.Context, a *attempt, cause error, log zerolog.Logger) {
	log.Error().Err(cause).Msg("backup failed")
	if a.result.CloudPath != "" && o.remote != nil {
		if err := o.remote.Delete(ctx, a.cfg.CloudProvider, a.result.CloudPath); err != nil {
			log.Warn().Err(err).Msg("failed to remove uploaded copy of failed backup")
		}
	}
	if a.localPath != "" {
		if _, err := o.store.Delete(a.entry.ID); err != nil {
			log.Warn().Err(err).Msg("failed to remove partial backup file")
		}
	}
	a.entry.Status = StatusFailed
	a.entry.ErrorMessage = cause.Error()
	a.entry.LocalPath = ""
	a.entry.CloudPath = ""
	if err := o.store.UpdateHistory(a.entry); err != nil {
		log.Error().Err(err).Msg("failed to record failed backup")
	}
	a.result.Success = false
	a.result.Error = cause.Error()
	a.result.LocalPath = ""
	a.result.CloudPath = ""
}
