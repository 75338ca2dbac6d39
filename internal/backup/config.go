// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package backup

import (
	"errors"
	"fmt"

	"github.com/tomtom215/posvault/internal/cloud"
	"github.com/tomtom215/posvault/internal/store"
	"github.com/tomtom215/posvault/internal/validation"
)

// Frequency selects the schedule rule.
type Frequency string

// Frequencies.
const (
	FrequencyHourly  Frequency = "hourly"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyCustom  Frequency = "custom"
)

// Config is the backup policy supplied by the settings layer.
type Config struct {
	Enabled   bool      `json:"enabled"`
	Frequency Frequency `json:"frequency" validate:"required,oneof=hourly daily weekly monthly custom"`

	// TimeOfDay is local HH:MM; empty means 02:00.
	TimeOfDay string `json:"timeOfDay,omitempty" validate:"omitempty,timeofday"`

	// DayOfWeek is 0 (Sunday) to 6.
	DayOfWeek int `json:"dayOfWeek" validate:"min=0,max=6"`

	// DayOfMonth is 1 to 31; 0 means 1.
	DayOfMonth int `json:"dayOfMonth,omitempty" validate:"min=0,max=31"`

	CloudProvider    cloud.Provider `json:"cloudProvider" validate:"required,oneof=local gdrive dropbox s3"`
	Encrypt          bool           `json:"encrypt"`
	RetainCount      int            `json:"retainCount" validate:"min=1"`
	IncludeLocalCopy bool           `json:"includeLocalCopy"`
	IncludeAuthData  bool           `json:"includeAuthData"`
	IncludePosData   bool           `json:"includePosData"`
}

// DefaultConfig returns the policy used before the user changes anything.
func DefaultConfig() Config {
	return Config{
		Enabled:          false,
		Frequency:        FrequencyDaily,
		TimeOfDay:        "02:00",
		CloudProvider:    cloud.ProviderLocal,
		Encrypt:          true,
		RetainCount:      5,
		IncludeLocalCopy: true,
		IncludeAuthData:  true,
		IncludePosData:   true,
	}
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid backup config: %w", err)
	}
	return nil
}

// LoadConfig returns the persisted policy, or DefaultConfig when none is stored.
func LoadConfig(kv KV) (Config, error) {
	cfg := DefaultConfig()
	err := kv.GetJSON(KeyConfig, &cfg)
	if errors.Is(err, store.ErrNotFound) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("load backup config: %w", err)
	}
	return cfg, nil
}

// SaveConfig validates and persists cfg.
func SaveConfig(kv KV, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := kv.SetJSON(KeyConfig, cfg); err != nil {
		return fmt.Errorf("save backup config: %w", err)
	}
	return nil
}
