// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

// Package cloud moves backup blobs to and from remote storage.
//
// Three backends are supported next to the device-local pseudo provider:
//
//   - gdrive: objects addressed by opaque file ID inside the Drive appDataFolder
//   - dropbox: objects addressed by path inside the app folder
//   - s3: objects addressed by bucket and key
//
// Callers go through Hub, which resolves stored credentials, paces requests
// and trips a per-provider circuit breaker. Adapters only speak their
// backend's API and translate its failures into the errors below.
package cloud

import (
	"context"
	"errors"
	"fmt"
)

// Provider identifies a storage backend.
type Provider string

// Supported providers.
const (
	ProviderLocal   Provider = "local"
	ProviderGDrive  Provider = "gdrive"
	ProviderDropbox Provider = "dropbox"
	ProviderS3      Provider = "s3"
)

// Providers lists every provider, local first.
var Providers = []Provider{ProviderLocal, ProviderGDrive, ProviderDropbox, ProviderS3}

// ParseProvider converts a string into a Provider.
func ParseProvider(s string) (Provider, error) {
	for _, p := range Providers {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, s)
}

// IsRemote reports whether p stores data off the device.
func (p Provider) IsRemote() bool {
	return p != ProviderLocal && p != ""
}

var (
	// ErrProviderUnavailable covers transport failures, 5xx responses and an
	// open circuit breaker.
	ErrProviderUnavailable = errors.New("cloud provider unavailable")

	// ErrAuthExpired is returned when the provider rejects the credentials or
	// they carry an expiry in the past.
	ErrAuthExpired = errors.New("cloud authorization expired")

	// ErrQuotaExceeded is returned when the provider reports no space left.
	ErrQuotaExceeded = errors.New("cloud storage quota exceeded")

	// ErrCredentialsNotFound is returned when no credentials are stored.
	ErrCredentialsNotFound = errors.New("cloud credentials not found")

	// ErrCredentialsExpired is returned when stored credentials have expired.
	ErrCredentialsExpired = errors.New("cloud credentials expired")

	// ErrObjectNotFound is returned when a remote object does not exist.
	ErrObjectNotFound = errors.New("remote object not found")

	// ErrLocalProvider is returned for transfer operations on ProviderLocal.
	ErrLocalProvider = errors.New("local provider has no remote storage")

	// ErrUnsupportedProvider is returned for unknown or unconfigured providers.
	ErrUnsupportedProvider = errors.New("unsupported cloud provider")

	// ErrInvalidCredentials is returned when credentials fail validation.
	ErrInvalidCredentials = errors.New("invalid cloud credentials")
)

// Adapter is implemented by each remote backend. Locators are opaque to
// callers: a Drive file ID, a Dropbox path or an S3 key.
type Adapter interface {
	Upload(ctx context.Context, creds Credentials, data []byte, name string) (string, error)
	Download(ctx context.Context, creds Credentials, locator string) ([]byte, error)
	Delete(ctx context.Context, creds Credentials, locator string) error
	List(ctx context.Context, creds Credentials) ([]string, error)
}
