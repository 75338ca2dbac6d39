// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/posvault/internal/backup"
	"github.com/tomtom215/posvault/internal/cloud"
	"github.com/tomtom215/posvault/internal/scheduler"
	"github.com/tomtom215/posvault/internal/service"
)

// Backend is the caller-facing surface served over HTTP. *service.Service
// implements it.
type Backend interface {
	GetConfig() (backup.Config, error)
	CreateBackup(ctx context.Context, cfg *backup.Config) backup.Result
	GetLocalBackups() ([]backup.BackupFile, error)
	GetHistory() ([]backup.HistoryEntry, error)
	DeleteBackup(ctx context.Context, id string) service.OperationResult
	ExportBackup(id string) service.ExportResult
	RestoreFromBackup(ctx context.Context, id, password string) backup.RestoreOutcome
	VerifyBackupFile(ctx context.Context, id, password string) (backup.VerificationResult, error)
	ShouldAutoRestore() (bool, error)
	ScheduleBackup(cfg backup.Config) (scheduler.ScheduleState, error)
	StopBackup() error
	GetScheduleStatus() (service.ScheduleStatus, error)
	TriggerScheduled(ctx context.Context) scheduler.TriggerResult
	SaveCloudCredentials(creds cloud.Credentials) service.OperationResult
	RemoveCloudCredentials(p cloud.Provider) service.OperationResult
	TestCloudConnection(ctx context.Context, p cloud.Provider) bool
	ListCloudBackups(ctx context.Context, p cloud.Provider) []string
}

var _ Backend = (*service.Service)(nil)

// Handler serves the backup endpoints.
type Handler struct {
	backend Backend
}

// NewHandler creates a Handler over backend.
func NewHandler(backend Backend) *Handler {
	return &Handler{backend: backend}
}

// passwordRequest is the optional body of restore and verify.
type passwordRequest struct {
	Password string `json:"password,omitempty"`
}

// autoRestoreResponse answers GET /restore/auto.
type autoRestoreResponse struct {
	ShouldRestore bool `json:"shouldRestore"`
}

// connectionResponse answers POST /cloud/{provider}/test.
type connectionResponse struct {
	Provider  cloud.Provider `json:"provider"`
	Connected bool           `json:"connected"`
}

// cloudBackupsResponse answers GET /cloud/{provider}/backups.
type cloudBackupsResponse struct {
	Provider cloud.Provider `json:"provider"`
	Backups  []string       `json:"backups"`
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	respondData(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ListBackups returns local backup files, newest first.
func (h *Handler) ListBackups(w http.ResponseWriter, _ *http.Request) {
	files, err := h.backend.GetLocalBackups()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, files)
}

// History returns the history ledger, newest first.
func (h *Handler) History(w http.ResponseWriter, _ *http.Request) {
	entries, err := h.backend.GetHistory()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, entries)
}

// CreateBackup runs a manual backup. An empty body uses the stored policy.
func (h *Handler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	var cfg backup.Config
	present, ok := decodeBody(w, r, &cfg)
	if !ok {
		return
	}
	var policy *backup.Config
	if present {
		policy = &cfg
	}

	res := h.backend.CreateBackup(r.Context(), policy)
	switch {
	case res.Success:
		respondData(w, http.StatusCreated, res)
	case res.Skipped:
		respondFailure(w, http.StatusConflict, "BACKUP_IN_PROGRESS", res.Error, res)
	default:
		respondFailure(w, http.StatusUnprocessableEntity, "BACKUP_FAILED", res.Error, res)
	}
}

// DeleteBackup removes a backup locally, remotely and from history.
func (h *Handler) DeleteBackup(w http.ResponseWriter, r *http.Request) {
	res := h.backend.DeleteBackup(r.Context(), chi.URLParam(r, "id"))
	if !res.Success {
		respondFailure(w, http.StatusUnprocessableEntity, "DELETE_FAILED", res.Error, res)
		return
	}
	respondData(w, http.StatusOK, res)
}

// ExportBackup copies a backup into the export directory.
func (h *Handler) ExportBackup(w http.ResponseWriter, r *http.Request) {
	res := h.backend.ExportBackup(chi.URLParam(r, "id"))
	if !res.Success {
		respondFailure(w, http.StatusUnprocessableEntity, "EXPORT_FAILED", res.Error, res)
		return
	}
	respondData(w, http.StatusOK, res)
}

// RestoreBackup restores a backup into the device stores.
func (h *Handler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if _, ok := decodeBody(w, r, &req); !ok {
		return
	}
	out := h.backend.RestoreFromBackup(r.Context(), chi.URLParam(r, "id"), req.Password)
	if !out.Success {
		respondFailure(w, http.StatusUnprocessableEntity, "RESTORE_FAILED", out.Error, out)
		return
	}
	respondData(w, http.StatusOK, out)
}

// VerifyBackup checks a backup's structure and checksum without restoring.
func (h *Handler) VerifyBackup(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if _, ok := decodeBody(w, r, &req); !ok {
		return
	}
	res, err := h.backend.VerifyBackupFile(r.Context(), chi.URLParam(r, "id"), req.Password)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, res)
}

// AutoRestore reports whether a fresh install should offer a restore.
func (h *Handler) AutoRestore(w http.ResponseWriter, _ *http.Request) {
	should, err := h.backend.ShouldAutoRestore()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, autoRestoreResponse{ShouldRestore: should})
}

// GetConfig returns the persisted backup policy.
func (h *Handler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	cfg, err := h.backend.GetConfig()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, cfg)
}

// ScheduleStatus returns the schedule, policy and latest history row.
func (h *Handler) ScheduleStatus(w http.ResponseWriter, _ *http.Request) {
	st, err := h.backend.GetScheduleStatus()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, st)
}

// Schedule persists a policy and schedules or stops automatic backups.
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	var cfg backup.Config
	present, ok := decodeBody(w, r, &cfg)
	if !ok {
		return
	}
	if !present {
		respondError(w, http.StatusBadRequest, "MISSING_BODY", "A backup config is required", nil)
		return
	}
	state, err := h.backend.ScheduleBackup(cfg)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if !cfg.Enabled {
		respondData(w, http.StatusOK, map[string]bool{"scheduled": false})
		return
	}
	respondData(w, http.StatusOK, state)
}

// StopSchedule disables automatic backups.
func (h *Handler) StopSchedule(w http.ResponseWriter, _ *http.Request) {
	if err := h.backend.StopBackup(); err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]bool{"scheduled": false})
}

// TriggerSchedule serves one scheduled trigger fire, as the headless entry
// point does when the store is held by this server.
func (h *Handler) TriggerSchedule(w http.ResponseWriter, r *http.Request) {
	res := h.backend.TriggerScheduled(r.Context())
	if res.Outcome == scheduler.OutcomeFailed {
		respondFailure(w, http.StatusUnprocessableEntity, "TRIGGER_FAILED", res.Error, res)
		return
	}
	respondData(w, http.StatusOK, res)
}

// providerParam parses {provider}, writing a 400 when it is unknown.
func providerParam(w http.ResponseWriter, r *http.Request) (cloud.Provider, bool) {
	p, err := cloud.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		respondServiceError(w, err)
		return "", false
	}
	return p, true
}

// SaveCredentials stores the credential variant of {provider}.
func (h *Handler) SaveCredentials(w http.ResponseWriter, r *http.Request) {
	p, ok := providerParam(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	creds, err := cloud.DecodeCredentials(p, body)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	res := h.backend.SaveCloudCredentials(creds)
	if !res.Success {
		respondFailure(w, http.StatusBadRequest, "INVALID_CREDENTIALS", res.Error, res)
		return
	}
	respondData(w, http.StatusOK, res)
}

// RemoveCredentials deletes stored credentials of {provider}.
func (h *Handler) RemoveCredentials(w http.ResponseWriter, r *http.Request) {
	p, ok := providerParam(w, r)
	if !ok {
		return
	}
	res := h.backend.RemoveCloudCredentials(p)
	if !res.Success {
		respondFailure(w, http.StatusUnprocessableEntity, "REMOVE_FAILED", res.Error, res)
		return
	}
	respondData(w, http.StatusOK, res)
}

// TestConnection reports whether {provider} is reachable.
func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	p, ok := providerParam(w, r)
	if !ok {
		return
	}
	respondData(w, http.StatusOK, connectionResponse{
		Provider:  p,
		Connected: h.backend.TestCloudConnection(r.Context(), p),
	})
}

// CloudBackups lists remote locators stored at {provider}.
func (h *Handler) CloudBackups(w http.ResponseWriter, r *http.Request) {
	p, ok := providerParam(w, r)
	if !ok {
		return
	}
	respondData(w, http.StatusOK, cloudBackupsResponse{
		Provider: p,
		Backups:  h.backend.ListCloudBackups(r.Context(), p),
	})
}
