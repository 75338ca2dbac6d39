// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package backup

import (
	"errors"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/posvault/internal/cloud"
)

// FormatVersion is written into every snapshot's metadata and custom data.
const FormatVersion = "2.0"

// MaxPayloadSize bounds the serialized payload before sealing.
const MaxPayloadSize = 100 << 20

var (
	// ErrBackupTooLarge is returned when the payload exceeds MaxPayloadSize.
	ErrBackupTooLarge = errors.New("backup payload too large")

	// ErrBackupNotFound is returned when no blob or cloud copy exists for an id.
	ErrBackupNotFound = errors.New("backup not found")

	// ErrPasswordRequired is returned when a sealed blob has no usable password.
	ErrPasswordRequired = errors.New("password required for encrypted backup")

	// ErrChecksumMismatch is returned when the payload digest does not match.
	ErrChecksumMismatch = errors.New("backup checksum mismatch")

	// ErrBackupInProgress is returned when another run holds the claim.
	ErrBackupInProgress = errors.New("a backup is already in progress")

	// ErrEmptyPayload is returned when no category has any data.
	ErrEmptyPayload = errors.New("backup payload is empty")
)

// Trigger records what started a backup.
type Trigger string

// Triggers.
const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
)

// Status is the lifecycle state of a history row.
type Status string

// Statuses.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Device describes the device that produced a snapshot.
type Device struct {
	Platform   string `json:"platform"`
	OSVersion  string `json:"osVersion"`
	AppVersion string `json:"appVersion"`
	Make       string `json:"make,omitempty"`
	Model      string `json:"model,omitempty"`
}

// Metadata is the clear-text header of a snapshot. Immutable once written.
type Metadata struct {
	ID            string         `json:"id"`
	CreatedAt     int64          `json:"createdAt"`
	SizeBytes     int64          `json:"sizeBytes"`
	Encrypted     bool           `json:"encrypted"`
	Provider      cloud.Provider `json:"provider"`
	FormatVersion string         `json:"formatVersion"`
	Checksum      string         `json:"checksum,omitempty"`
	Device        Device         `json:"deviceDescriptor"`
}

// CreatedTime returns CreatedAt as a time.Time.
func (m Metadata) CreatedTime() time.Time {
	return time.UnixMilli(m.CreatedAt)
}

// AuthData holds the signed-in username and presence flags only. Raw token
// values are never part of a snapshot.
type AuthData struct {
	Username        string `json:"username,omitempty"`
	HasAccessToken  bool   `json:"hasAccessToken"`
	HasRefreshToken bool   `json:"hasRefreshToken"`
}

// CustomData is a free-form diagnostic envelope.
type CustomData struct {
	FormatVersion string `json:"formatVersion"`
	Platform      string `json:"platform"`
	Make          string `json:"make,omitempty"`
	Model         string `json:"model,omitempty"`
}

// Payload is the backed-up application state.
type Payload struct {
	Settings   json.RawMessage   `json:"settings"`
	AuthData   *AuthData         `json:"authData,omitempty"`
	PosData    map[string]string `json:"posData,omitempty"`
	CustomData CustomData        `json:"customData"`
}

// hasSettings reports whether the settings blob carries any value.
func (p *Payload) hasSettings() bool {
	switch s := string(p.Settings); s {
	case "", "null", "{}":
		return false
	default:
		return true
	}
}

// hasAuthData reports whether auth data carries anything worth restoring.
func (p *Payload) hasAuthData() bool {
	return p.AuthData != nil && (p.AuthData.Username != "" || p.AuthData.HasAccessToken || p.AuthData.HasRefreshToken)
}

// IsEmpty reports whether none of settings, auth data or POS data is set.
func (p *Payload) IsEmpty() bool {
	return !p.hasSettings() && !p.hasAuthData() && len(p.PosData) == 0
}

// HistoryEntry is one row of the history ledger.
type HistoryEntry struct {
	ID           string         `json:"id"`
	CreatedAt    int64          `json:"createdAt"`
	UpdatedAt    int64          `json:"updatedAt"`
	Trigger      Trigger        `json:"trigger"`
	Status       Status         `json:"status"`
	SizeBytes    int64          `json:"sizeBytes"`
	Provider     cloud.Provider `json:"provider"`
	Encrypted    bool           `json:"encrypted"`
	LocalPath    string         `json:"localPath,omitempty"`
	CloudPath    string         `json:"cloudPath,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`

	// Cycle is the scheduled run time (epoch millis) a scheduled attempt serves.
	Cycle int64 `json:"cycle,omitempty"`
}

// BackupFile is one local blob as seen by a directory listing.
type BackupFile struct {
	Metadata Metadata `json:"metadata"`
	Name     string   `json:"name"`
	Path     string   `json:"path"`
	Size     int64    `json:"size"`

	// Degraded is set when the metadata was rebuilt from the file name and
	// modification time because the document could not be parsed.
	Degraded bool `json:"degraded,omitempty"`
}

// Result is the outcome of one backup attempt.
type Result struct {
	Success        bool     `json:"success"`
	BackupID       string   `json:"backupId,omitempty"`
	LocalPath      string   `json:"localPath,omitempty"`
	CloudPath      string   `json:"cloudPath,omitempty"`
	SizeBytes      int64    `json:"sizeBytes,omitempty"`
	Encrypted      bool     `json:"encrypted"`
	Error          string   `json:"error,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
	Skipped        bool     `json:"skipped,omitempty"`
	DurationMillis int64    `json:"durationMillis"`
}

// RestoredFields reports which categories were written back.
type RestoredFields struct {
	Settings bool `json:"settings"`
	AuthData bool `json:"authData"`
	PosData  bool `json:"posData"`
}

// RestoreOutcome is the outcome of one restore attempt.
type RestoreOutcome struct {
	Success        bool           `json:"success"`
	SnapshotID     string         `json:"snapshotId"`
	RestoredData   RestoredFields `json:"restoredData"`
	Error          string         `json:"error,omitempty"`
	DurationMillis int64          `json:"durationMillis"`
}

// VerificationResult is the outcome of verifying one snapshot.
type VerificationResult struct {
	IsValid        bool     `json:"isValid"`
	ChecksumMatch  bool     `json:"checksumMatch"`
	StructureValid bool     `json:"structureValid"`
	Errors         []string `json:"errors"`
}
