// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package scheduler

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/posvault/internal/logging"
)

func TestTickerHostFiresAndWaitsForFinish(t *testing.T) {
	h := NewTickerHost(time.Minute, logging.NewTestLogger(io.Discard))
	clock := &fakeClock{now: at(2024, 1, 1, 0, 0)}
	h.now = clock.Now

	var fired atomic.Int32
	done := make(chan struct{}, 10)
	if err := h.Register("task", 15*time.Minute, func(_ context.Context, id string) {
		fired.Add(1)
		done <- struct{}{}
	}); err != nil {
		t.Fatal(err)
	}

	h.fireDue(context.Background())
	<-done
	if fired.Load() != 1 {
		t.Fatalf("fired = %d", fired.Load())
	}

	// Unfinished invocations block further fires.
	clock.Set(at(2024, 1, 1, 1, 0))
	h.fireDue(context.Background())
	if fired.Load() != 1 {
		t.Fatal("fired again before Finish")
	}

	h.Finish("task")
	clock.Set(at(2024, 1, 1, 1, 5))
	h.fireDue(context.Background())
	<-done
	if fired.Load() != 2 {
		t.Fatalf("fired = %d", fired.Load())
	}

	// Interval not yet elapsed.
	h.Finish("task")
	clock.Set(at(2024, 1, 1, 1, 10))
	h.fireDue(context.Background())
	h.wg.Wait()
	if fired.Load() != 2 {
		t.Fatal("fired before the interval elapsed")
	}
}

func TestTickerHostCancel(t *testing.T) {
	h := NewTickerHost(time.Minute, logging.NewTestLogger(io.Discard))
	if err := h.Register("task", time.Hour, func(context.Context, string) {}); err != nil {
		t.Fatal(err)
	}
	if !h.Registered("task") {
		t.Fatal("expected registration")
	}
	h.Cancel("task")
	if h.Registered("task") {
		t.Fatal("expected cancellation")
	}
	h.Finish("task")
}

func TestTickerHostRegisterValidation(t *testing.T) {
	h := NewTickerHost(0, logging.NewTestLogger(io.Discard))
	if err := h.Register("task", 0, func(context.Context, string) {}); err == nil {
		t.Error("expected error for zero interval")
	}
	if err := h.Register("task", time.Minute, nil); err == nil {
		t.Error("expected error for nil callback")
	}
}

func TestTickerHostServeStops(t *testing.T) {
	h := NewTickerHost(10*time.Millisecond, logging.NewTestLogger(io.Discard))
	fired := make(chan struct{}, 1)
	if err := h.Register("task", time.Millisecond, func(_ context.Context, id string) {
		select {
		case fired <- struct{}{}:
		default:
		}
		h.Finish(id)
	}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.Serve(ctx) }()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("task never fired")
	}
	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}
