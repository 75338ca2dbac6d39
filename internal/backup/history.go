// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package backup

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/posvault/internal/store"
)

const abandonedMessage = "abandoned: run exceeded the stale timeout"

func readHistory(tx store.Tx) ([]HistoryEntry, error) {
	data, err := tx.Get(KeyHistory)
	if errors.Is(err, store.ErrNotFound) {
		return []HistoryEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return entries, nil
}

func writeHistory(tx store.Tx, entries []HistoryEntry) error {
	if len(entries) > historyCap {
		entries = entries[:historyCap]
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return tx.Set(KeyHistory, data)
}

// mutateHistory runs fn over the ledger inside one transaction.
func (s *SnapshotStore) mutateHistory(fn func([]HistoryEntry) ([]HistoryEntry, error)) error {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()
	return s.kv.Update(func(tx store.Tx) error {
		entries, err := readHistory(tx)
		if err != nil {
			return err
		}
		entries, err = fn(entries)
		if err != nil {
			return err
		}
		return writeHistory(tx, entries)
	})
}

// GetHistory returns the ledger, newest first.
func (s *SnapshotStore) GetHistory() ([]HistoryEntry, error) {
	data, err := s.kv.Get(KeyHistory)
	if errors.Is(err, store.ErrNotFound) {
		return []HistoryEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return entries, nil
}

// HistoryEntryFor returns the row for id.
func (s *SnapshotStore) HistoryEntryFor(id string) (HistoryEntry, bool, error) {
	entries, err := s.GetHistory()
	if err != nil {
		return HistoryEntry{}, false, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, true, nil
		}
	}
	return HistoryEntry{}, false, nil
}

// AppendHistory prepends entry, evicting the oldest rows beyond the cap.
func (s *SnapshotStore) AppendHistory(entry HistoryEntry) error {
	return s.mutateHistory(func(entries []HistoryEntry) ([]HistoryEntry, error) {
		return append([]HistoryEntry{entry}, entries...), nil
	})
}

// UpdateHistory replaces the row with entry.ID in place, or prepends it if
// it has been evicted.
func (s *SnapshotStore) UpdateHistory(entry HistoryEntry) error {
	entry.UpdatedAt = s.now().UnixMilli()
	return s.mutateHistory(func(entries []HistoryEntry) ([]HistoryEntry, error) {
		for i := range entries {
			if entries[i].ID == entry.ID {
				entries[i] = entry
				return entries, nil
			}
		}
		return append([]HistoryEntry{entry}, entries...), nil
	})
}

// RemoveHistory deletes the row for id and reports whether it existed.
func (s *SnapshotStore) RemoveHistory(id string) (bool, error) {
	removed := false
	err := s.mutateHistory(func(entries []HistoryEntry) ([]HistoryEntry, error) {
		out := entries[:0]
		for _, e := range entries {
			if e.ID == id {
				removed = true
				continue
			}
			out = append(out, e)
		}
		return out, nil
	})
	return removed, err
}

// isStale reports whether an in_progress row has outlived the stale timeout.
func (s *SnapshotStore) isStale(e HistoryEntry, nowMillis int64) bool {
	last := e.UpdatedAt
	if last == 0 {
		last = e.CreatedAt
	}
	return nowMillis-last > s.staleAfter.Milliseconds()
}

// ClaimRun atomically records a new in_progress row and returns it.
//
// It fails with ErrBackupInProgress when a non-stale in_progress row exists,
// or, for scheduled runs with a non-zero cycle, when that cycle already has an
// in_progress or completed row. Stale in_progress rows are marked failed.
func (s *SnapshotStore) ClaimRun(trigger Trigger, cycle int64) (HistoryEntry, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("generate backup id: %w", err)
	}
	now := s.now().UnixMilli()
	entry := HistoryEntry{
		ID:        id.String(),
		CreatedAt: now,
		UpdatedAt: now,
		Trigger:   trigger,
		Status:    StatusInProgress,
	}
	if trigger == TriggerScheduled {
		entry.Cycle = cycle
	}

	err = s.mutateHistory(func(entries []HistoryEntry) ([]HistoryEntry, error) {
		for i := range entries {
			e := &entries[i]
			if e.Status == StatusInProgress {
				if !s.isStale(*e, now) {
					return nil, ErrBackupInProgress
				}
				e.Status = StatusFailed
				e.ErrorMessage = abandonedMessage
				e.UpdatedAt = now
				s.logger.Warn().Str("backup_id", e.ID).Msg("marked abandoned in-progress backup as failed")
			}
			if entry.Cycle != 0 && e.Cycle == entry.Cycle && e.Status == StatusCompleted {
				return nil, fmt.Errorf("%w: cycle %d already completed", ErrBackupInProgress, entry.Cycle)
			}
		}
		return append([]HistoryEntry{entry}, entries...), nil
	})
	if err != nil {
		return HistoryEntry{}, err
	}
	return entry, nil
}

// InProgress reports whether a non-stale run currently holds the claim.
func (s *SnapshotStore) InProgress() (bool, error) {
	entries, err := s.GetHistory()
	if err != nil {
		return false, err
	}
	now := s.now().UnixMilli()
	for _, e := range entries {
		if e.Status == StatusInProgress && !s.isStale(e, now) {
			return true, nil
		}
	}
	return false, nil
}
