// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/posvault/internal/cloud"
	"github.com/tomtom215/posvault/internal/crypt"
	"github.com/tomtom215/posvault/internal/logging"
	"github.com/tomtom215/posvault/internal/store"
)

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeRemote is an in-memory Remote.
type fakeRemote struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	deletes   []string
	next      int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{objects: make(map[string][]byte)}
}

func (f *fakeRemote) Upload(_ context.Context, p cloud.Provider, data []byte, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.next++
	loc := fmt.Sprintf("%s/%d/%s", p, f.next, name)
	f.objects[loc] = append([]byte(nil), data...)
	return loc, nil
}

func (f *fakeRemote) Download(_ context.Context, _ cloud.Provider, loc string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[loc]
	if !ok {
		return nil, cloud.ErrObjectNotFound
	}
	return data, nil
}

func (f *fakeRemote) Delete(_ context.Context, _ cloud.Provider, loc string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, loc)
	delete(f.objects, loc)
	return nil
}

func (f *fakeRemote) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

// testEnv wires an orchestrator and restorer over an in-memory store and a
// temp backup directory.
type testEnv struct {
	db       *store.DB
	vault    *store.Vault
	snaps    *SnapshotStore
	clock    *testClock
	remote   *fakeRemote
	deps     Deps
	orch     *Orchestrator
	restorer *Restorer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	vault, err := store.NewVault(db, "test-master-key")
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}

	env := &testEnv{db: db, vault: vault, clock: newTestClock(), remote: newFakeRemote()}
	env.snaps = NewSnapshotStore(t.TempDir(), db, StoreOptions{Now: env.clock.Now, Logger: logging.NewTestLogger(io.Discard)})
	d := Deps{
		Store:   env.snaps,
		KV:      db,
		Secrets: vault,
		Engine:  crypt.New(crypt.WithIterations(1000)),
		Remote:  env.remote,
		Device:  Device{Platform: "android", OSVersion: "14", AppVersion: "3.2.0", Make: "Sunmi", Model: "T2"},
		Now:     env.clock.Now,
		Logger:  logging.NewTestLogger(io.Discard),
	}
	env.deps = d
	env.orch = NewOrchestrator(d)
	env.restorer = NewRestorer(d)
	return env
}

func (e *testEnv) seed(t *testing.T, settings string, pos map[string]string) {
	t.Helper()
	if settings != "" {
		if err := e.db.Set(KeySettings, []byte(settings)); err != nil {
			t.Fatal(err)
		}
	}
	for k, v := range pos {
		if err := e.db.Set(PrefixPOS+k, []byte(v)); err != nil {
			t.Fatal(err)
		}
	}
}

// backup runs a manual backup and advances the clock a minute.
func (e *testEnv) backup(t *testing.T, cfg Config) Result {
	t.Helper()
	res := e.orch.CreateBackup(context.Background(), cfg, TriggerManual, 0)
	e.clock.Advance(time.Minute)
	return res
}

func (e *testEnv) mustGet(t *testing.T, key string) string {
	t.Helper()
	v, err := e.db.Get(key)
	if err != nil {
		t.Fatalf("Get(%q): %v", key, err)
	}
	return string(v)
}

func (e *testEnv) mustMissing(t *testing.T, key string) {
	t.Helper()
	if _, err := e.db.Get(key); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get(%q): expected ErrNotFound, got %v", key, err)
	}
}

func localConfig() Config {
	cfg := DefaultConfig()
	cfg.Enabled = true
	return cfg
}
