// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

// Package store is the local key-value collaborator backed by BadgerDB. It
// holds the application settings blob, the POS working set, the backup
// history ledger, the schedule row and the encrypted vault.
package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("key not found")

	// ErrLocked is returned by Open when another process holds the data dir.
	ErrLocked = errors.New("data directory is locked by another process")
)

// Tx is the view of a read-write transaction handed to Update callbacks.
type Tx interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// DB wraps a badger database.
type DB struct {
	db *badger.DB
}

// Open opens (or creates) the database under dir.
func Open(dir string) (*DB, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		if strings.Contains(err.Error(), "directory lock") {
			return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
		}
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return &DB{db: db}, nil
}

// OpenInMemory opens a non-persistent database, used by tests and dry runs.
func OpenInMemory() (*DB, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open in-memory badger: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Get returns a copy of the value stored at key.
func (d *DB) Get(key string) ([]byte, error) {
	var out []byte
	err := d.db.View(func(txn *badger.Txn) error {
		v, err := (&tx{txn: txn}).Get(key)
		out = v
		return err
	})
	return out, err
}

// Set stores value at key.
func (d *DB) Set(key string, value []byte) error {
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Delete removes key. Deleting a missing key is not an error.
func (d *DB) Delete(key string) error {
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Scan returns every key/value under prefix, keyed by the full key.
func (d *DB) Scan(prefix string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("read %s: %w", item.Key(), err)
			}
			out[string(item.KeyCopy(nil))] = val
		}
		return nil
	})
	return out, err
}

// Update runs fn in a single read-write transaction.
func (d *DB) Update(fn func(Tx) error) error {
	return d.db.Update(func(txn *badger.Txn) error {
		return fn(&tx{txn: txn})
	})
}

// GetJSON decodes the value at key into v.
func (d *DB) GetJSON(key string, v any) error {
	data, err := d.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it at key.
func (d *DB) SetJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return d.Set(key, data)
}

type tx struct {
	txn *badger.Txn
}

func (t *tx) Get(key string) ([]byte, error) {
	item, err := t.txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return item.ValueCopy(nil)
}

func (t *tx) Set(key string, value []byte) error {
	return t.txn.Set([]byte(key), value)
}

func (t *tx) Delete(key string) error {
	return t.txn.Delete([]byte(key))
}
