// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TaskFunc is the callback a host invokes when a task fires. It must call
// TaskHost.Finish for taskID before returning.
type TaskFunc func(ctx context.Context, taskID string)

// TaskHost is the background task registry the scheduler runs on.
type TaskHost interface {
	Register(taskID string, every time.Duration, fn TaskFunc) error
	Cancel(taskID string)
	Finish(taskID string)
}

// NopHost accepts registrations and never fires them.
type NopHost struct{}

// Register implements TaskHost.
func (NopHost) Register(string, time.Duration, TaskFunc) error { return nil }

// Cancel implements TaskHost.
func (NopHost) Cancel(string) {}

// Finish implements TaskHost.
func (NopHost) Finish(string) {}

type hostedTask struct {
	every    time.Duration
	fn       TaskFunc
	lastFire time.Time
	running  bool
}

// TickerHost fires registered tasks from an in-process ticker. A task does
// not fire again until its previous invocation has called Finish.
type TickerHost struct {
	resolution time.Duration
	now        func() time.Time
	logger     zerolog.Logger

	mu    sync.Mutex
	tasks map[string]*hostedTask
	wg    sync.WaitGroup
}

// NewTickerHost creates a host that checks for due tasks every resolution.
func NewTickerHost(resolution time.Duration, logger zerolog.Logger) *TickerHost {
	if resolution <= 0 {
		resolution = time.Minute
	}
	return &TickerHost{
		resolution: resolution,
		now:        time.Now,
		logger:     logger.With().Str("component", "task_host").Logger(),
		tasks:      make(map[string]*hostedTask),
	}
}

// Register adds or replaces taskID. The first fire happens on the next tick.
func (h *TickerHost) Register(taskID string, every time.Duration, fn TaskFunc) error {
	if every <= 0 {
		return fmt.Errorf("task %s: interval must be positive", taskID)
	}
	if fn == nil {
		return fmt.Errorf("task %s: nil callback", taskID)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.tasks[taskID]
	if !ok {
		t = &hostedTask{}
		h.tasks[taskID] = t
	}
	t.every = every
	t.fn = fn
	h.logger.Debug().Str("task_id", taskID).Dur("every", every).Msg("task registered")
	return nil
}

// Cancel removes taskID. An invocation already running completes.
func (h *TickerHost) Cancel(taskID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.tasks, taskID)
}

// Finish acknowledges the current invocation of taskID.
func (h *TickerHost) Finish(taskID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.tasks[taskID]; ok {
		t.running = false
	}
}

// Registered reports whether taskID is registered.
func (h *TickerHost) Registered(taskID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.tasks[taskID]
	return ok
}

// Serve implements suture.Service. It returns once ctx is canceled and all
// in-flight invocations have returned.
func (h *TickerHost) Serve(ctx context.Context) error {
	ticker := time.NewTicker(h.resolution)
	defer ticker.Stop()

	h.fireDue(ctx)
	for {
		select {
		case <-ticker.C:
			h.fireDue(ctx)
		case <-ctx.Done():
			h.wg.Wait()
			return ctx.Err()
		}
	}
}

// fireDue starts every task whose interval has elapsed.
func (h *TickerHost) fireDue(ctx context.Context) {
	now := h.now()
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, t := range h.tasks {
		if t.running || (!t.lastFire.IsZero() && now.Sub(t.lastFire) < t.every) {
			continue
		}
		t.running = true
		t.lastFire = now
		h.wg.Add(1)
		go func(id string, fn TaskFunc) {
			defer h.wg.Done()
			fn(ctx, id)
		}(id, t.fn)
	}
}

// String implements fmt.Stringer for suture logs.
func (h *TickerHost) String() string {
	return "task-host"
}
