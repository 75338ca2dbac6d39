// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

/*
snapshot_store.go - Local Snapshot Persistence

SnapshotStore is the single owner of the backup directory and the history
ledger. Blob files are written through a temp file and renamed into place so
a crash never leaves a half-written backup_<id>.json[.enc] behind.

Naming:
  - backup_<id>.json      plain snapshot
  - backup_<id>.json.enc  sealed snapshot

Listings parse only the clear metadata block. When a file cannot be parsed
its metadata is rebuilt from the file name and modification time and the
entry is flagged Degraded.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/posvault/internal/metrics"
)

const (
	filePrefix    = "backup_"
	plainSuffix   = ".json"
	sealedSuffix  = ".json.enc"
	historyCap    = 50
	defaultStale  = 2 * time.Hour
	dirPerm       = 0o700
	filePerm      = 0o600
	exportPerm    = 0o644
	tempExtension = ".tmp"
)

// FileName returns the canonical blob name for id.
func FileName(id string, encrypted bool) string {
	if encrypted {
		return filePrefix + id + sealedSuffix
	}
	return filePrefix + id + plainSuffix
}

// parseFileName extracts the id and encryption flag from a blob name.
func parseFileName(name string) (id string, encrypted, ok bool) {
	if !strings.HasPrefix(name, filePrefix) {
		return "", false, false
	}
	rest := strings.TrimPrefix(name, filePrefix)
	switch {
	case strings.HasSuffix(rest, sealedSuffix):
		id, encrypted = strings.TrimSuffix(rest, sealedSuffix), true
	case strings.HasSuffix(rest, plainSuffix):
		id = strings.TrimSuffix(rest, plainSuffix)
	default:
		return "", false, false
	}
	return id, encrypted, id != ""
}

// StoreOptions configures a SnapshotStore.
type StoreOptions struct {
	// StaleAfter is the age at which an in_progress row counts as abandoned.
	StaleAfter time.Duration
	Now        func() time.Time
	Logger     zerolog.Logger
}

// SnapshotStore persists blobs in dir and the history ledger in kv.
type SnapshotStore struct {
	dir        string
	kv         KV
	staleAfter time.Duration
	now        func() time.Time
	logger     zerolog.Logger

	// claimMu serialises ledger transactions within this process; the
	// store transaction covers other processes.
	claimMu sync.Mutex
}

// NewSnapshotStore creates a store rooted at dir.
func NewSnapshotStore(dir string, kv KV, opts StoreOptions) *SnapshotStore {
	s := &SnapshotStore{
		dir:        dir,
		kv:         kv,
		staleAfter: opts.StaleAfter,
		now:        opts.Now,
		logger:     opts.Logger.With().Str("component", "snapshot_store").Logger(),
	}
	if s.staleAfter <= 0 {
		s.staleAfter = defaultStale
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Dir returns the backup directory.
func (s *SnapshotStore) Dir() string {
	return s.dir
}

// Write stores blob as backup_<id>.json[.enc] and returns its path.
func (s *SnapshotStore) Write(id string, blob []byte, encrypted bool) (string, error) {
	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	path := filepath.Join(s.dir, FileName(id, encrypted))
	tmp := path + tempExtension

	if err := os.WriteFile(tmp, blob, filePerm); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write backup file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("commit backup file: %w", err)
	}
	return path, nil
}

// ReadAll lists local blobs, newest first.
func (s *SnapshotStore) ReadAll() ([]BackupFile, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []BackupFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	files := make([]BackupFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, encrypted, ok := parseFileName(e.Name())
		if !ok {
			continue
		}
		files = append(files, s.describe(e, id, encrypted))
	}

	sort.Slice(files, func(i, j int) bool {
		a, b := files[i].Metadata, files[j].Metadata
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt > b.CreatedAt
		}
		return a.ID > b.ID
	})
	return files, nil
}

func (s *SnapshotStore) describe(e fs.DirEntry, id string, encrypted bool) BackupFile {
	path := filepath.Join(s.dir, e.Name())
	bf := BackupFile{Name: e.Name(), Path: path}
	info, infoErr := e.Info()
	if infoErr == nil {
		bf.Size = info.Size()
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if doc, derr := decodeDocument(data); derr == nil {
			bf.Metadata = doc.Metadata
			return bf
		}
	}

	// Degraded: rebuild what the name and mtime tell us.
	bf.Degraded = true
	bf.Metadata = Metadata{ID: id, Encrypted: encrypted, SizeBytes: bf.Size}
	if infoErr == nil {
		bf.Metadata.CreatedAt = info.ModTime().UnixMilli()
	}
	s.logger.Warn().Str("file", e.Name()).Msg("backup metadata unreadable, using file name")
	return bf
}

// Find returns the local blob for id.
func (s *SnapshotStore) Find(id string) (BackupFile, []byte, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return BackupFile{}, nil, fmt.Errorf("%w: %q", ErrBackupNotFound, id)
	}
	for _, encrypted := range []bool{true, false} {
		name := FileName(id, encrypted)
		path := filepath.Join(s.dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return BackupFile{}, nil, fmt.Errorf("read backup file: %w", err)
		}
		bf := BackupFile{Name: name, Path: path, Size: int64(len(data))}
		if doc, derr := decodeDocument(data); derr == nil {
			bf.Metadata = doc.Metadata
		} else {
			bf.Degraded = true
			bf.Metadata = Metadata{ID: id, Encrypted: encrypted, SizeBytes: bf.Size}
		}
		return bf, data, nil
	}
	return BackupFile{}, nil, fmt.Errorf("%w: %s", ErrBackupNotFound, id)
}

// Delete removes the local blob for id. It returns false when none existed.
func (s *SnapshotStore) Delete(id string) (bool, error) {
	removed := false
	for _, encrypted := range []bool{true, false} {
		err := os.Remove(filepath.Join(s.dir, FileName(id, encrypted)))
		switch {
		case err == nil:
			removed = true
		case errors.Is(err, fs.ErrNotExist):
		default:
			return removed, fmt.Errorf("delete backup file: %w", err)
		}
	}
	return removed, nil
}

// Export copies the blob for id into dir and returns the new path.
func (s *SnapshotStore) Export(id, dir string) (string, error) {
	bf, data, err := s.Find(id)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	dest := filepath.Join(dir, bf.Name)
	if err := os.WriteFile(dest, data, exportPerm); err != nil { //nolint:gosec // exports are meant to be user-readable
		return "", fmt.Errorf("export backup: %w", err)
	}
	return dest, nil
}

// EnforceRetention keeps the newest retainCount backups and deletes the rest
// locally, remotely (when a history row records a cloud path) and from the
// history ledger. Every local blob counts, manual and scheduled alike, and
// backups that only exist in the cloud take part in the ordering as well. It
// returns the deleted ids.
func (s *SnapshotStore) EnforceRetention(ctx context.Context, retainCount int, remote Remote) ([]string, error) {
	if retainCount < 1 {
		retainCount = 1
	}
	files, err := s.ReadAll()
	if err != nil {
		return nil, err
	}
	history, err := s.GetHistory()
	if err != nil {
		return nil, err
	}

	type candidate struct {
		id        string
		createdAt int64
	}
	local := make(map[string]bool, len(files))
	candidates := make([]candidate, 0, len(files))
	for _, f := range files {
		local[f.Metadata.ID] = true
		candidates = append(candidates, candidate{f.Metadata.ID, f.Metadata.CreatedAt})
	}
	byID := make(map[string]HistoryEntry, len(history))
	for _, h := range history {
		byID[h.ID] = h
		if h.Status == StatusCompleted && h.CloudPath != "" && h.LocalPath == "" && !local[h.ID] {
			candidates = append(candidates, candidate{h.ID, h.CreatedAt})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].createdAt != candidates[j].createdAt {
			return candidates[i].createdAt > candidates[j].createdAt
		}
		return candidates[i].id > candidates[j].id
	})

	var deleted []string
	for i, c := range candidates {
		if i < retainCount {
			continue
		}
		if h, ok := byID[c.id]; ok && h.CloudPath != "" && remote != nil && h.Provider.IsRemote() {
			if err := remote.Delete(ctx, h.Provider, h.CloudPath); err != nil {
				s.logger.Warn().Err(err).Str("backup_id", c.id).Msg("failed to delete remote copy during retention")
			}
		}
		if _, err := s.Delete(c.id); err != nil {
			return deleted, err
		}
		if _, err := s.RemoveHistory(c.id); err != nil {
			return deleted, err
		}
		deleted = append(deleted, c.id)
	}

	kept := len(candidates) - len(deleted)
	metrics.BackupsRetained.Set(float64(kept))
	metrics.RetentionDeletions.Add(float64(len(deleted)))
	if len(deleted) > 0 {
		s.logger.Info().Int("deleted", len(deleted)).Int("kept", kept).Msg("retention enforced")
	}
	return deleted, nil
}
