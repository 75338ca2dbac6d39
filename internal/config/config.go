// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package config

import (
	"path/filepath"
	"time"
)

// Config is the complete process configuration.
type Config struct {
	Storage   StorageConfig   `koanf:"storage"`
	Vault     VaultConfig     `koanf:"vault"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Cloud     CloudConfig     `koanf:"cloud"`
	Device    DeviceConfig    `koanf:"device"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// StorageConfig locates the local store and backup files.
type StorageConfig struct {
	// DataDir holds the BadgerDB store.
	DataDir string `koanf:"data_dir" validate:"required"`

	// BackupDir holds backup blobs. Default: <data_dir>/backups
	BackupDir string `koanf:"backup_dir"`

	// ExportDir receives exported copies. Default: <data_dir>/exports
	ExportDir string `koanf:"export_dir"`
}

// BackupPath returns BackupDir or its default.
func (s StorageConfig) BackupPath() string {
	if s.BackupDir != "" {
		return s.BackupDir
	}
	return filepath.Join(s.DataDir, "backups")
}

// ExportPath returns ExportDir or its default.
func (s StorageConfig) ExportPath() string {
	if s.ExportDir != "" {
		return s.ExportDir
	}
	return filepath.Join(s.DataDir, "exports")
}

// StorePath returns the BadgerDB directory.
func (s StorageConfig) StorePath() string {
	return filepath.Join(s.DataDir, "store")
}

// VaultConfig protects vault entries at rest.
type VaultConfig struct {
	MasterKey string `koanf:"master_key" validate:"required,min=16"`
}

// SchedulerConfig tunes background scheduling.
type SchedulerConfig struct {
	TaskID string `koanf:"task_id" validate:"required"`

	// PollInterval is how often the host fires the task. Minimum 15m.
	PollInterval time.Duration `koanf:"poll_interval"`

	// StaleAfter is the age at which an in-progress run counts as abandoned.
	StaleAfter time.Duration `koanf:"stale_after"`

	// Timezone names the IANA zone schedule times are read in. Empty means
	// the host's local zone.
	Timezone string `koanf:"timezone"`

	// TickResolution is how often the in-process host checks for due tasks.
	TickResolution time.Duration `koanf:"tick_resolution"`
}

// Location resolves Timezone.
func (s SchedulerConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

// CloudConfig tunes the cloud transport.
type CloudConfig struct {
	RequestTimeout    time.Duration `koanf:"request_timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"min=0"`
	Burst             int           `koanf:"burst" validate:"min=0"`

	GDrive  GDriveConfig  `koanf:"gdrive"`
	Dropbox DropboxConfig `koanf:"dropbox"`
	S3      S3Config      `koanf:"s3"`
}

// GDriveConfig overrides the Drive endpoints.
type GDriveConfig struct {
	APIBase    string `koanf:"api_base" validate:"omitempty,url"`
	UploadBase string `koanf:"upload_base" validate:"omitempty,url"`
}

// DropboxConfig overrides the Dropbox endpoints.
type DropboxConfig struct {
	APIBase     string `koanf:"api_base" validate:"omitempty,url"`
	ContentBase string `koanf:"content_base" validate:"omitempty,url"`
}

// S3Config sets a default S3-compatible endpoint (MinIO, R2) used when the
// stored credentials carry none.
type S3Config struct {
	Endpoint string `koanf:"endpoint" validate:"omitempty,url"`
}

// DeviceConfig describes this terminal in backup metadata.
type DeviceConfig struct {
	Platform   string `koanf:"platform" validate:"required"`
	OSVersion  string `koanf:"os_version"`
	AppVersion string `koanf:"app_version"`
	Make       string `koanf:"make"`
	Model      string `koanf:"model"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// RateLimitReqs requests per RateLimitWindow per client IP; 0 disables.
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`

	// Format is json or console.
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller adds file:line to each entry.
	Caller bool `koanf:"caller"`
}

// defaultConfig returns the defaults loaded before any file or environment.
func defaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir: "/data/posvault",
		},
		Scheduler: SchedulerConfig{
			TaskID:         "posvault-scheduled-backup",
			PollInterval:   15 * time.Minute,
			StaleAfter:     2 * time.Hour,
			TickResolution: time.Minute,
		},
		Cloud: CloudConfig{
			RequestTimeout:    60 * time.Second,
			RequestsPerSecond: 5,
			Burst:             2,
		},
		Device: DeviceConfig{
			Platform: "linux",
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8330,
			Timeout:         2 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
			RateLimitReqs:   120,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
