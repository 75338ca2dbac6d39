// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

// Package crypt implements password-based sealing of backup payloads.
//
// Algorithm:
//   - PBKDF2-HMAC-SHA256, 100 000 iterations, 256-bit key
//   - 16-byte random salt and 16-byte random IV per seal
//   - AES-256-GCM (authenticated; the tag is appended to the ciphertext)
//
// Every call to Seal produces a different envelope for identical input.
// Unseal reports every failure as ErrDecryption so callers cannot tell a
// wrong password from corrupted ciphertext.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Algorithm tags envelopes produced by this package.
	Algorithm = "AES-256-GCM/PBKDF2-SHA256"

	// DefaultIterations is the PBKDF2 work factor.
	DefaultIterations = 100_000

	// MaxIterations bounds the work factor Unseal accepts from an envelope.
	MaxIterations = DefaultIterations * 10

	// KeySize is the derived key length in bytes.
	KeySize = 32

	// SaltSize is the random salt length in bytes.
	SaltSize = 16

	// IVSize is the GCM nonce length in bytes (128-bit IV).
	IVSize = 16
)

var (
	// ErrKeyDerivation is returned when a key cannot be derived.
	ErrKeyDerivation = errors.New("key derivation failed")

	// ErrDecryption is returned for any unseal failure: wrong password,
	// tampered ciphertext or malformed envelope.
	ErrDecryption = errors.New("decryption failed")
)

// Envelope is the sealed form of a payload.
type Envelope struct {
	Ciphertext  []byte `json:"ciphertext"`
	Salt        []byte `json:"salt"`
	IV          []byte `json:"iv"`
	Algorithm   string `json:"algorithm"`
	Iterations  int    `json:"iterations"`
	SealedAt    int64  `json:"sealed_at"`
	Compression string `json:"compression,omitempty"`
}

// Engine derives keys and seals/unseals envelopes. The zero value is not
// usable; construct with New.
type Engine struct {
	iterations int
	random     io.Reader
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithIterations overrides the PBKDF2 work factor for new envelopes.
// Unseal honors the count recorded in the envelope up to MaxIterations.
func WithIterations(n int) Option {
	return func(e *Engine) {
		if n > 0 && n <= MaxIterations {
			e.iterations = n
		}
	}
}

// WithRandom replaces the entropy source.
func WithRandom(r io.Reader) Option {
	return func(e *Engine) { e.random = r }
}

// WithClock replaces the clock used to stamp envelopes.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		iterations: DefaultIterations,
		random:     rand.Reader,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DeriveKey derives a 256-bit key from password. A nil salt is replaced by a
// fresh random one; the salt actually used is returned.
func (e *Engine) DeriveKey(password, salt []byte) (key, usedSalt []byte, err error) {
	return e.deriveKey(password, salt, e.iterations)
}

func (e *Engine) deriveKey(password, salt []byte, iterations int) ([]byte, []byte, error) {
	if len(password) == 0 {
		return nil, nil, fmt.Errorf("%w: empty password", ErrKeyDerivation)
	}
	if salt == nil {
		salt = make([]byte, SaltSize)
		if _, err := io.ReadFull(e.random, salt); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrKeyDerivation, err)
		}
	}
	return pbkdf2.Key(password, salt, iterations, KeySize, sha256.New), salt, nil
}

// Seal encrypts plaintext under a key derived from password.
func (e *Engine) Seal(plaintext, password []byte) (*Envelope, error) {
	key, salt, err := e.DeriveKey(password, nil)
	if err != nil {
		return nil, err
	}
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(e.random, iv); err != nil {
		return nil, fmt.Errorf("failed to generate iv: %w", err)
	}

	return &Envelope{
		Ciphertext: aead.Seal(nil, iv, plaintext, nil),
		Salt:       salt,
		IV:         iv,
		Algorithm:  Algorithm,
		Iterations: e.iterations,
		SealedAt:   e.now().UnixMilli(),
	}, nil
}

// Unseal decrypts env with password.
func (e *Engine) Unseal(env *Envelope, password []byte) ([]byte, error) {
	if env == nil || env.Algorithm != Algorithm || len(env.Salt) == 0 || len(env.IV) != IVSize {
		return nil, ErrDecryption
	}
	iterations := env.Iterations
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	if iterations > MaxIterations {
		return nil, ErrDecryption
	}
	key, _, err := e.deriveKey(password, env.Salt, iterations)
	if err != nil {
		return nil, ErrDecryption
	}
	aead, err := newAEAD(key)
	if err != nil {
		return nil, ErrDecryption
	}
	plaintext, err := aead.Open(nil, env.IV, env.Ciphertext, nil)
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}

// Checksum returns the hex SHA-256 digest of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyChecksum reports whether data hashes to digest.
func VerifyChecksum(data []byte, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(Checksum(data)), []byte(digest)) == 1
}
