// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package backup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/posvault/internal/crypt"
	"github.com/tomtom215/posvault/internal/logging"
	"github.com/tomtom215/posvault/internal/metrics"
	"github.com/tomtom215/posvault/internal/store"
)

// Restorer verifies snapshots and writes them back to the local stores.
type Restorer struct {
	store   *SnapshotStore
	kv      KV
	secrets Secrets
	engine  *crypt.Engine
	remote  Remote
	logger  zerolog.Logger
}

// NewRestorer creates a Restorer.
//
//nolint:gocritic // Deps is a one-shot constructor argument
func NewRestorer(d Deps) *Restorer {
	r := &Restorer{
		store:   d.Store,
		kv:      d.KV,
		secrets: d.Secrets,
		engine:  d.Engine,
		remote:  d.Remote,
		logger:  d.Logger.With().Str("component", "restore").Logger(),
	}
	if r.engine == nil {
		r.engine = crypt.New()
	}
	return r
}

// load returns the document for id, from disk or, for cloud-only backups,
// from the provider recorded in history.
func (r *Restorer) load(ctx context.Context, id string) (*document, error) {
	_, data, err := r.store.Find(id)
	if errors.Is(err, ErrBackupNotFound) {
		data, err = r.download(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return decodeDocument(data)
}

func (r *Restorer) download(ctx context.Context, id string) ([]byte, error) {
	entry, ok, err := r.store.HistoryEntryFor(id)
	if err != nil {
		return nil, err
	}
	if !ok || entry.CloudPath == "" || r.remote == nil {
		return nil, fmt.Errorf("%w: %s", ErrBackupNotFound, id)
	}
	data, err := r.remote.Download(ctx, entry.Provider, entry.CloudPath)
	if err != nil {
		return nil, fmt.Errorf("download backup %s: %w", id, err)
	}
	return data, nil
}

// password picks the supplied password, else the stored one.
func (r *Restorer) password(supplied string) (string, error) {
	if supplied != "" {
		return supplied, nil
	}
	pw, err := r.secrets.Get(SecretBackupPassword)
	if errors.Is(err, store.ErrNotFound) || (err == nil && pw == "") {
		return "", ErrPasswordRequired
	}
	if err != nil {
		return "", fmt.Errorf("read backup password: %w", err)
	}
	return pw, nil
}

// Restore writes the snapshot id back to the local stores. Categories are
// written independently; the outcome reports which ones succeeded.
func (r *Restorer) Restore(ctx context.Context, id, password string) RestoreOutcome {
	start := time.Now()
	ctx = logging.ContextWithNewCorrelationID(ctx)
	log := r.logger.With().Str("backup_id", id).Str("correlation_id", logging.CorrelationIDFromContext(ctx)).Logger()

	out := RestoreOutcome{SnapshotID: id}
	err := r.restore(ctx, id, password, &out)
	if err != nil {
		out.Error = err.Error()
		log.Error().Err(err).Interface("restored", out.RestoredData).Msg("restore failed")
	} else {
		out.Success = true
		log.Info().Interface("restored", out.RestoredData).Msg("restore completed")
	}
	out.DurationMillis = time.Since(start).Milliseconds()
	metrics.RecordRestore(out.Success, time.Since(start))
	return out
}

func (r *Restorer) restore(ctx context.Context, id, password string, out *RestoreOutcome) error {
	doc, err := r.load(ctx, id)
	if err != nil {
		return err
	}

	pw := ""
	if doc.sealed() {
		if pw, err = r.password(password); err != nil {
			return err
		}
	}
	raw, err := doc.payloadBytes(r.engine, pw)
	if err != nil {
		return err
	}

	v := Verify(doc.Metadata, raw)
	if !v.ChecksumMatch {
		return ErrChecksumMismatch
	}
	if !v.StructureValid {
		return fmt.Errorf("invalid snapshot: %s", strings.Join(v.Errors, "; "))
	}
	payload, err := decodePayload(raw)
	if err != nil {
		return err
	}
	return r.apply(payload, out)
}

// apply writes each category back. It keeps going after a failure and
// returns the joined errors.
func (r *Restorer) apply(p *Payload, out *RestoreOutcome) error {
	var errs []error

	// An empty settings object still replaces the local one; only an
	// absent blob leaves it alone.
	if len(p.Settings) > 0 && string(p.Settings) != "null" {
		if err := r.kv.Set(KeySettings, p.Settings); err != nil {
			errs = append(errs, fmt.Errorf("restore settings: %w", err))
		} else {
			out.RestoredData.Settings = true
		}
	}

	// Only the username comes back; the user signs in again for fresh tokens.
	if p.AuthData != nil && p.AuthData.Username != "" {
		if err := r.kv.Set(KeyUsername, []byte(p.AuthData.Username)); err != nil {
			errs = append(errs, fmt.Errorf("restore auth data: %w", err))
		} else {
			out.RestoredData.AuthData = true
		}
	}

	if len(p.PosData) > 0 {
		keys := make([]string, 0, len(p.PosData))
		for k := range p.PosData {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		failed := 0
		for _, k := range keys {
			if err := r.kv.Set(PrefixPOS+k, []byte(p.PosData[k])); err != nil {
				failed++
				errs = append(errs, fmt.Errorf("restore POS key %s: %w", k, err))
			}
		}
		out.RestoredData.PosData = failed == 0
	}

	return errors.Join(errs...)
}

// VerifyBackup checks the snapshot id. A sealed snapshot whose password is
// unknown is reported valid: readability is all that can be checked without
// the secret.
func (r *Restorer) VerifyBackup(ctx context.Context, id, password string) (VerificationResult, error) {
	doc, err := r.load(ctx, id)
	if errors.Is(err, ErrBackupNotFound) {
		return VerificationResult{}, err
	}
	if err != nil {
		return VerificationResult{Errors: []string{err.Error()}}, nil
	}

	pw := ""
	if doc.sealed() {
		pw, err = r.password(password)
		if errors.Is(err, ErrPasswordRequired) {
			return VerificationResult{IsValid: true, ChecksumMatch: true, StructureValid: true, Errors: []string{}}, nil
		}
		if err != nil {
			return VerificationResult{}, err
		}
	}

	raw, err := doc.payloadBytes(r.engine, pw)
	if err != nil {
		return VerificationResult{Errors: []string{err.Error()}}, nil
	}
	return Verify(doc.Metadata, raw), nil
}

// ShouldAutoRestore reports whether there are no local settings yet but at
// least one local backup exists.
func (r *Restorer) ShouldAutoRestore() (bool, error) {
	_, err := r.kv.Get(KeySettings)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}
	files, err := r.store.ReadAll()
	if err != nil {
		return false, err
	}
	return len(files) > 0, nil
}
