// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package backup

import (
	"context"

	"github.com/tomtom215/posvault/internal/cloud"
	"github.com/tomtom215/posvault/internal/store"
)

// Keys of the local KV namespaces.
const (
	KeySettings = "app:settings"
	KeyUsername = "auth:username"
	PrefixPOS   = "pos:"
	KeyHistory  = "backup:history"
	KeyConfig   = "backup:config"
)

// Names of vault entries.
const (
	SecretBackupPassword = "backup_password"
	SecretAccessToken    = "session:access_token"
	SecretRefreshToken   = "session:refresh_token"
)

// KV is the local key-value collaborator. Missing keys yield store.ErrNotFound.
type KV interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Scan(prefix string) (map[string][]byte, error)
	Update(fn func(store.Tx) error) error
	GetJSON(key string, v any) error
	SetJSON(key string, v any) error
}

// Secrets is the secure vault collaborator. Missing names yield store.ErrNotFound.
type Secrets interface {
	Get(name string) (string, error)
	Set(name, value string) error
}

// Remote is the cloud transfer surface, satisfied by *cloud.Hub.
type Remote interface {
	Upload(ctx context.Context, p cloud.Provider, data []byte, name string) (string, error)
	Download(ctx context.Context, p cloud.Provider, locator string) ([]byte, error)
	Delete(ctx context.Context, p cloud.Provider, locator string) error
}
