// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package cloud

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/posvault/internal/store"
	"github.com/tomtom215/posvault/internal/validation"
)

// Credentials is a closed union: DriveCredentials, DropboxCredentials or
// S3Credentials. Each variant carries only what its provider needs.
type Credentials interface {
	Provider() Provider
	// Expiry returns the zero time when the credentials do not expire.
	Expiry() time.Time
	isCredentials()
}

// DriveCredentials authorizes Google Drive appDataFolder access.
type DriveCredentials struct {
	AccessToken  string    `json:"access_token" validate:"required"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// DropboxCredentials authorizes Dropbox app-folder access.
type DropboxCredentials struct {
	AccessToken  string    `json:"access_token" validate:"required"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// S3Credentials authorizes bucket access. Endpoint is optional and selects
// an S3-compatible service instead of AWS.
type S3Credentials struct {
	AccessKeyID     string    `json:"access_key_id" validate:"required"`
	SecretAccessKey string    `json:"secret_access_key" validate:"required"`
	SessionToken    string    `json:"session_token,omitempty"`
	Bucket          string    `json:"bucket" validate:"required"`
	Region          string    `json:"region" validate:"required"`
	Endpoint        string    `json:"endpoint,omitempty" validate:"omitempty,url"`
	ExpiresAt       time.Time `json:"expires_at,omitempty"`
}

// Provider implements Credentials.
func (DriveCredentials) Provider() Provider { return ProviderGDrive }

// Provider implements Credentials.
func (DropboxCredentials) Provider() Provider { return ProviderDropbox }

// Provider implements Credentials.
func (S3Credentials) Provider() Provider { return ProviderS3 }

// Expiry implements Credentials.
func (c DriveCredentials) Expiry() time.Time { return c.ExpiresAt }

// Expiry implements Credentials.
func (c DropboxCredentials) Expiry() time.Time { return c.ExpiresAt }

// Expiry implements Credentials.
func (c S3Credentials) Expiry() time.Time { return c.ExpiresAt }

func (DriveCredentials) isCredentials()   {}
func (DropboxCredentials) isCredentials() {}
func (S3Credentials) isCredentials()      {}

// expired reports whether c carries an expiry at or before now.
func expired(c Credentials, now time.Time) bool {
	exp := c.Expiry()
	return !exp.IsZero() && !exp.After(now)
}

// ValidateCredentials checks the variant's required fields.
func ValidateCredentials(c Credentials) error {
	if c == nil {
		return fmt.Errorf("%w: nil credentials", ErrInvalidCredentials)
	}
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, err.Error())
	}
	return nil
}

// credentialRecord is the tagged JSON form persisted in the vault.
type credentialRecord struct {
	Provider Provider            `json:"provider"`
	GDrive   *DriveCredentials   `json:"gdrive,omitempty"`
	Dropbox  *DropboxCredentials `json:"dropbox,omitempty"`
	S3       *S3Credentials      `json:"s3,omitempty"`
}

// MarshalCredentials encodes c with its provider tag.
func MarshalCredentials(c Credentials) ([]byte, error) {
	rec := credentialRecord{Provider: c.Provider()}
	switch v := c.(type) {
	case DriveCredentials:
		rec.GDrive = &v
	case DropboxCredentials:
		rec.Dropbox = &v
	case S3Credentials:
		rec.S3 = &v
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidCredentials, c)
	}
	return json.Marshal(rec)
}

// UnmarshalCredentials decodes a tagged credential record.
func UnmarshalCredentials(data []byte) (Credentials, error) {
	var rec credentialRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	switch {
	case rec.Provider == ProviderGDrive && rec.GDrive != nil:
		return *rec.GDrive, nil
	case rec.Provider == ProviderDropbox && rec.Dropbox != nil:
		return *rec.Dropbox, nil
	case rec.Provider == ProviderS3 && rec.S3 != nil:
		return *rec.S3, nil
	default:
		return nil, fmt.Errorf("%w: record for %q has no matching variant", ErrInvalidCredentials, rec.Provider)
	}
}

// DecodeCredentials decodes the untagged variant for p, as accepted over
// HTTP where the provider comes from the route.
func DecodeCredentials(p Provider, data []byte) (Credentials, error) {
	var (
		creds Credentials
		err   error
	)
	switch p {
	case ProviderGDrive:
		var v DriveCredentials
		err = json.Unmarshal(data, &v)
		creds = v
	case ProviderDropbox:
		var v DropboxCredentials
		err = json.Unmarshal(data, &v)
		creds = v
	case ProviderS3:
		var v S3Credentials
		err = json.Unmarshal(data, &v)
		creds = v
	case ProviderLocal:
		return nil, ErrLocalProvider
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, p)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	return creds, nil
}

// SecretStore is the secure collaborator holding credential records.
// Get must return store.ErrNotFound for missing names.
type SecretStore interface {
	Get(name string) (string, error)
	Set(name, value string) error
	Delete(name string) error
}

// CredentialStore persists credentials per provider.
type CredentialStore struct {
	secrets SecretStore
	now     func() time.Time
}

// NewCredentialStore creates a credential store over secrets.
func NewCredentialStore(secrets SecretStore, now func() time.Time) *CredentialStore {
	if now == nil {
		now = time.Now
	}
	return &CredentialStore{secrets: secrets, now: now}
}

func credentialKey(p Provider) string {
	return "cloud_credentials:" + string(p)
}

// Get returns the stored credentials for p. It fails fast with
// ErrCredentialsNotFound or ErrCredentialsExpired without any network call.
func (s *CredentialStore) Get(p Provider) (Credentials, error) {
	raw, err := s.secrets.Get(credentialKey(p))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, p)
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials for %s: %w", p, err)
	}
	creds, err := UnmarshalCredentials([]byte(raw))
	if err != nil {
		return nil, err
	}
	if creds.Provider() != p {
		return nil, fmt.Errorf("%w: stored record is for %s", ErrInvalidCredentials, creds.Provider())
	}
	if expired(creds, s.now()) {
		return nil, fmt.Errorf("%w: %s", ErrCredentialsExpired, p)
	}
	return creds, nil
}

// Save validates and stores c, replacing any previous credentials.
func (s *CredentialStore) Save(c Credentials) error {
	if err := ValidateCredentials(c); err != nil {
		return err
	}
	data, err := MarshalCredentials(c)
	if err != nil {
		return err
	}
	return s.secrets.Set(credentialKey(c.Provider()), string(data))
}

// Remove deletes credentials for p.
func (s *CredentialStore) Remove(p Provider) error {
	return s.secrets.Delete(credentialKey(p))
}
