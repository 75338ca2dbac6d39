// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package cloud

import (
	"context"
	"errors"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

func fixedClock() func() time.Time {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func TestHubRoundTrip(t *testing.T) {
	ctx := context.Background()
	adapter := newFakeAdapter()
	hub := newTestHub(t, adapter, fixedClock())
	if err := hub.Credentials().Save(DriveCredentials{AccessToken: "t"}); err != nil {
		t.Fatal(err)
	}

	loc, err := hub.Upload(ctx, ProviderGDrive, []byte("blob"), "backup_1.json.enc")
	if err != nil {
		t.Fatal(err)
	}
	data, err := hub.Download(ctx, ProviderGDrive, loc)
	if err != nil || string(data) != "blob" {
		t.Fatalf("Download = %q, %v", data, err)
	}
	if got := hub.List(ctx, ProviderGDrive); len(got) != 1 || got[0] != loc {
		t.Errorf("List = %v", got)
	}
	if err := hub.Delete(ctx, ProviderGDrive, loc); err != nil {
		t.Fatal(err)
	}
	if err := hub.Delete(ctx, ProviderGDrive, loc); err != nil {
		t.Errorf("second delete should succeed: %v", err)
	}
	if !hub.TestConnection(ctx, ProviderGDrive) {
		t.Error("TestConnection should succeed")
	}
}

func TestHubFailsFastWithoutCredentials(t *testing.T) {
	adapter := newFakeAdapter()
	hub := newTestHub(t, adapter, fixedClock())

	_, err := hub.Upload(context.Background(), ProviderGDrive, []byte("x"), "n")
	if !errors.Is(err, ErrCredentialsNotFound) {
		t.Fatalf("expected ErrCredentialsNotFound, got %v", err)
	}
	if adapter.callCount() != 0 {
		t.Error("adapter must not be called without credentials")
	}
	if hub.TestConnection(context.Background(), ProviderGDrive) {
		t.Error("TestConnection should fail without credentials")
	}
	if got := hub.List(context.Background(), ProviderGDrive); got == nil || len(got) != 0 {
		t.Errorf("List should be empty, got %v", got)
	}
}

func TestHubLocalProvider(t *testing.T) {
	hub := newTestHub(t, newFakeAdapter(), fixedClock())
	ctx := context.Background()
	if _, err := hub.Upload(ctx, ProviderLocal, nil, "n"); !errors.Is(err, ErrLocalProvider) {
		t.Errorf("expected ErrLocalProvider, got %v", err)
	}
	if !hub.TestConnection(ctx, ProviderLocal) {
		t.Error("local provider is always reachable")
	}
	if got := hub.List(ctx, ProviderLocal); len(got) != 0 {
		t.Errorf("List(local) = %v", got)
	}
	if _, err := hub.Upload(ctx, ProviderS3, nil, "n"); !errors.Is(err, ErrUnsupportedProvider) {
		t.Errorf("expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestHubRejectsExpiredCredentialsBeforeCall(t *testing.T) {
	now := fixedClock()
	adapter := newFakeAdapter()
	hub := newTestHub(t, adapter, now)
	if hub.TestCredentials(context.Background(), DriveCredentials{AccessToken: "t", ExpiresAt: now().Add(-time.Second)}) {
		t.Error("expired credentials should fail")
	}
	if adapter.callCount() != 0 {
		t.Error("adapter must not be called with expired credentials")
	}
	if !hub.TestCredentials(context.Background(), DriveCredentials{AccessToken: "t"}) {
		t.Error("valid unsaved credentials should pass")
	}
}

func TestHubBreakerOpensOnProviderFailures(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.err = ErrProviderUnavailable
	hub := newTestHub(t, adapter, fixedClock())
	if err := hub.Credentials().Save(DriveCredentials{AccessToken: "t"}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if _, err := hub.Upload(context.Background(), ProviderGDrive, []byte("x"), "n"); !errors.Is(err, ErrProviderUnavailable) {
			t.Fatalf("call %d: expected ErrProviderUnavailable, got %v", i, err)
		}
	}
	_, err := hub.Upload(context.Background(), ProviderGDrive, []byte("x"), "n")
	if !errors.Is(err, ErrProviderUnavailable) || !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if adapter.callCount() != 3 {
		t.Errorf("adapter called %d times, want 3", adapter.callCount())
	}
}

func TestHubBreakerIgnoresAuthFailures(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.err = ErrAuthExpired
	hub := newTestHub(t, adapter, fixedClock())
	if err := hub.Credentials().Save(DriveCredentials{AccessToken: "t"}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if _, err := hub.Upload(context.Background(), ProviderGDrive, []byte("x"), "n"); !errors.Is(err, ErrAuthExpired) {
			t.Fatalf("call %d: expected ErrAuthExpired, got %v", i, err)
		}
	}
	if adapter.callCount() != 5 {
		t.Errorf("adapter called %d times, want 5", adapter.callCount())
	}
}
