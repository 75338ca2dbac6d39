// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package cloud

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/posvault/internal/store"
)

func newTestCredentialStore(t *testing.T, now func() time.Time) *CredentialStore {
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
	return NewCredentialStore(vault, now)
}

// fakeAdapter records calls and returns canned results.
type fakeAdapter struct {
	mu      sync.Mutex
	calls   int
	err     error
	objects map[string][]byte
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{objects: make(map[string][]byte)}
}

func (f *fakeAdapter) record() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeAdapter) Upload(_ context.Context, _ Credentials, data []byte, name string) (string, error) {
	if err := f.record(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects["remote/"+name] = append([]byte(nil), data...)
	return "remote/" + name, nil
}

func (f *fakeAdapter) Download(_ context.Context, _ Credentials, locator string) ([]byte, error) {
	if err := f.record(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[locator]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return data, nil
}

func (f *fakeAdapter) Delete(_ context.Context, _ Credentials, locator string) error {
	if err := f.record(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, locator)
	return nil
}

func (f *fakeAdapter) List(context.Context, Credentials) ([]string, error) {
	if err := f.record(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.objects))
	for k := range f.objects {
		out = append(out, k)
	}
	return out, nil
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestHub(t *testing.T, adapter Adapter, now func() time.Time) *Hub {
	t.Helper()
	creds := newTestCredentialStore(t, now)
	return NewHub(creds, map[Provider]Adapter{ProviderGDrive: adapter}, HubConfig{Now: now}, zerolog.Nop())
}
