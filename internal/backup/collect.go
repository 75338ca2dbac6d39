// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package backup

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/posvault/internal/store"
)

// collect gathers the payload categories enabled by cfg. Settings are always
// collected; auth data records presence flags, never token values.
func (o *Orchestrator) collect(cfg Config) (*Payload, error) {
	p := &Payload{
		Settings: json.RawMessage("{}"),
		CustomData: CustomData{
			FormatVersion: FormatVersion,
			Platform:      o.device.Platform,
			Make:          o.device.Make,
			Model:         o.device.Model,
		},
	}

	settings, err := o.kv.Get(KeySettings)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	case !json.Valid(settings):
		return nil, fmt.Errorf("read settings: stored settings are not valid JSON")
	default:
		p.Settings = settings
	}

	if cfg.IncludeAuthData {
		auth, err := o.collectAuth()
		if err != nil {
			return nil, err
		}
		p.AuthData = auth
	}

	if cfg.IncludePosData {
		rows, err := o.kv.Scan(PrefixPOS)
		if err != nil {
			return nil, fmt.Errorf("read POS data: %w", err)
		}
		if len(rows) > 0 {
			p.PosData = make(map[string]string, len(rows))
			for k, v := range rows {
				p.PosData[strings.TrimPrefix(k, PrefixPOS)] = string(v)
			}
		}
	}
	return p, nil
}

func (o *Orchestrator) collectAuth() (*AuthData, error) {
	auth := &AuthData{}
	username, err := o.kv.Get(KeyUsername)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("read username: %w", err)
	default:
		auth.Username = string(username)
	}

	auth.HasAccessToken, err = o.hasSecret(SecretAccessToken)
	if err != nil {
		return nil, err
	}
	auth.HasRefreshToken, err = o.hasSecret(SecretRefreshToken)
	if err != nil {
		return nil, err
	}
	return auth, nil
}

func (o *Orchestrator) hasSecret(name string) (bool, error) {
	v, err := o.secrets.Get(name)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	return v != "", nil
}

// backupPassword returns the stored backup password, generating and storing
// one on first use.
func (o *Orchestrator) backupPassword() (string, error) {
	pw, err := o.secrets.Get(SecretBackupPassword)
	if err == nil && pw != "" {
		return pw, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("read backup password: %w", err)
	}
	pw = generatePassword()
	if err := o.secrets.Set(SecretBackupPassword, pw); err != nil {
		return "", fmt.Errorf("store backup password: %w", err)
	}
	o.logger.Info().Msg("generated backup encryption password")
	return pw, nil
}
