// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	vaultKeyPrefix = "vault:"
	vaultHKDFSalt  = "posvault-secure-vault"
	vaultHKDFInfo  = "vault-encryption-v1"
	vaultNonceSize = 12
)

var (
	// ErrEmptyMasterKey is returned when the vault is opened without a key.
	ErrEmptyMasterKey = errors.New("vault master key cannot be empty")

	// ErrVaultCorrupt is returned when an entry fails authentication.
	ErrVaultCorrupt = errors.New("vault entry failed authentication")
)

// Vault is the secure credential collaborator. Values are encrypted at rest
// with AES-256-GCM under a key derived from the master key via HKDF-SHA256.
type Vault struct {
	db   *DB
	aead cipher.AEAD
}

// NewVault creates a vault over db.
func NewVault(db *DB, masterKey string) (*Vault, error) {
	if masterKey == "" {
		return nil, ErrEmptyMasterKey
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(masterKey), []byte(vaultHKDFSalt), []byte(vaultHKDFInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive vault key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &Vault{db: db, aead: aead}, nil
}

// Get returns the secret stored under name, or ErrNotFound.
func (v *Vault) Get(name string) (string, error) {
	data, err := v.db.Get(vaultKeyPrefix + name)
	if err != nil {
		return "", err
	}
	if len(data) < vaultNonceSize+v.aead.Overhead() {
		return "", ErrVaultCorrupt
	}
	plain, err := v.aead.Open(nil, data[:vaultNonceSize], data[vaultNonceSize:], []byte(name))
	if err != nil {
		return "", ErrVaultCorrupt
	}
	return string(plain), nil
}

// Set stores secret under name.
func (v *Vault) Set(name, secret string) error {
	nonce := make([]byte, vaultNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	// The entry name is bound as associated data so entries cannot be swapped.
	sealed := v.aead.Seal(nonce, nonce, []byte(secret), []byte(name))
	return v.db.Set(vaultKeyPrefix+name, sealed)
}

// Delete removes name. Missing entries are ignored.
func (v *Vault) Delete(name string) error {
	return v.db.Delete(vaultKeyPrefix + name)
}
