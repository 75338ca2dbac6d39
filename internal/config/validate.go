// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/tomtom215/posvault/internal/validation"
)

// minPollInterval mirrors the shortest interval background hosts honour.
const minPollInterval = 15 * time.Minute

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	return c.validateServer()
}

func (c *Config) validateStorage() error {
	backups := filepath.Clean(c.Storage.BackupPath())
	if backups == filepath.Clean(c.Storage.ExportPath()) {
		return fmt.Errorf("storage.export_dir must differ from storage.backup_dir")
	}
	if backups == filepath.Clean(c.Storage.StorePath()) {
		return fmt.Errorf("storage.backup_dir must not be the store directory")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.PollInterval < minPollInterval {
		return fmt.Errorf("scheduler.poll_interval must be at least %s, got %s", minPollInterval, c.Scheduler.PollInterval)
	}
	if c.Scheduler.StaleAfter <= 0 {
		return fmt.Errorf("scheduler.stale_after must be positive")
	}
	if c.Scheduler.TickResolution <= 0 {
		return fmt.Errorf("scheduler.tick_resolution must be positive")
	}
	if _, err := c.Scheduler.Location(); err != nil {
		return fmt.Errorf("scheduler.timezone is invalid: %w", err)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.RateLimitReqs > 0 && c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("server.rate_limit_window must be positive when rate limiting is enabled")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}
	return nil
}
