// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

// Package backup snapshots the local POS state, seals it, persists it on the
// device and optionally in the cloud, and later verifies and restores it.
//
// # Components
//
//   - SnapshotStore owns the backup directory and the history ledger. Nothing
//     else writes backup files or history rows.
//   - Orchestrator runs one backup attempt: collect, seal, write local,
//     upload, record history, enforce retention.
//   - Restorer locates a snapshot, unseals and verifies it, then writes the
//     restored fields back to the local stores.
//
// # On-disk format
//
// Each snapshot is one JSON document named backup_<id>.json, or
// backup_<id>.json.enc when sealed. The metadata block is always stored in
// clear so listings never need a password:
//
//	{"metadata": {...}, "payload": {...}}          plain
//	{"metadata": {...}, "envelope": {...}}         sealed (zstd, then AES-256-GCM)
//
// The checksum in the metadata covers the compact payload JSON before
// compression and sealing.
//
// # Concurrency
//
// A run is claimed by appending an in_progress history row inside a single
// store transaction. A second claim fails with ErrBackupInProgress until the
// row reaches a terminal status or grows older than the stale timeout, which
// lets a headless process killed mid-run heal on the next trigger.
package backup
