// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/posvault/internal/backup"
	"github.com/tomtom215/posvault/internal/logging"
	"github.com/tomtom215/posvault/internal/metrics"
	"github.com/tomtom215/posvault/internal/store"
)

// KeySchedule is the KV row holding ScheduleState.
const KeySchedule = "backup:schedule"

const (
	// DefaultTaskID identifies the recurring backup task.
	DefaultTaskID = "posvault-scheduled-backup"

	// MinPollInterval is the shortest interval the task is registered with.
	MinPollInterval = 15 * time.Minute
)

// ScheduleState is the persisted schedule row.
type ScheduleState struct {
	TaskID      string           `json:"taskId"`
	ScheduledAt int64            `json:"scheduledAtEpochMillis"`
	NextRun     int64            `json:"nextRunEpochMillis"`
	Frequency   backup.Frequency `json:"frequency"`
	Enabled     bool             `json:"enabled"`
}

// NextRunTime returns NextRun as a time.
func (s ScheduleState) NextRunTime() time.Time {
	return time.UnixMilli(s.NextRun)
}

// Outcome classifies one trigger fire.
type Outcome string

// Trigger outcomes.
const (
	OutcomeCompleted    Outcome = "completed"
	OutcomeSkipped      Outcome = "skipped"
	OutcomeFailed       Outcome = "failed"
	OutcomeNotDue       Outcome = "not_due"
	OutcomeDisabled     Outcome = "disabled"
	OutcomeNotScheduled Outcome = "not_scheduled"
)

// TriggerResult reports what a trigger fire did.
type TriggerResult struct {
	Outcome Outcome        `json:"outcome"`
	NextRun int64          `json:"nextRunEpochMillis,omitempty"`
	Backup  *backup.Result `json:"backup,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Runner creates backups; *backup.Orchestrator satisfies it.
type Runner interface {
	CreateBackup(ctx context.Context, cfg backup.Config, trigger backup.Trigger, cycle int64) backup.Result
}

// Options configures a Scheduler.
type Options struct {
	TaskID       string
	PollInterval time.Duration
	Location     *time.Location
	Now          func() time.Time
	Logger       zerolog.Logger
}

// Scheduler persists the backup schedule and serves trigger fires.
type Scheduler struct {
	kv     backup.KV
	runner Runner
	host   TaskHost
	taskID string
	poll   time.Duration
	loc    *time.Location
	now    func() time.Time
	logger zerolog.Logger

	// mu orders Schedule, Stop and state writes within one process.
	mu sync.Mutex
}

// New creates a Scheduler.
func New(kv backup.KV, runner Runner, host TaskHost, opts Options) *Scheduler {
	s := &Scheduler{
		kv:     kv,
		runner: runner,
		host:   host,
		taskID: opts.TaskID,
		poll:   opts.PollInterval,
		loc:    opts.Location,
		now:    opts.Now,
		logger: opts.Logger.With().Str("component", "scheduler").Logger(),
	}
	if s.taskID == "" {
		s.taskID = DefaultTaskID
	}
	if s.poll < MinPollInterval {
		s.poll = MinPollInterval
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.host == nil {
		s.host = NopHost{}
	}
	return s
}

// TaskID returns the registered task identifier.
func (s *Scheduler) TaskID() string {
	return s.taskID
}

func (s *Scheduler) loadState() (ScheduleState, bool, error) {
	var st ScheduleState
	err := s.kv.GetJSON(KeySchedule, &st)
	if errors.Is(err, store.ErrNotFound) {
		return ScheduleState{}, false, nil
	}
	if err != nil {
		return ScheduleState{}, false, fmt.Errorf("load schedule: %w", err)
	}
	return st, true, nil
}

func (s *Scheduler) saveState(st ScheduleState) error {
	if err := s.kv.SetJSON(KeySchedule, st); err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	metrics.SetNextRun(st.NextRunTime())
	return nil
}

// Schedule persists cfg as the current policy. When cfg is enabled it
// computes and stores the next run and registers the recurring task;
// otherwise it stops the schedule.
//
//nolint:gocritic // Config is a small value type
func (s *Scheduler) Schedule(cfg backup.Config) (ScheduleState, error) {
	if err := backup.SaveConfig(s.kv, cfg); err != nil {
		return ScheduleState{}, err
	}
	if !cfg.Enabled {
		return ScheduleState{}, s.Stop()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().In(s.loc)
	next, err := NextRun(cfg, now)
	if err != nil {
		return ScheduleState{}, err
	}
	st := ScheduleState{
		TaskID:      s.taskID,
		ScheduledAt: now.UnixMilli(),
		NextRun:     next.UnixMilli(),
		Frequency:   cfg.Frequency,
		Enabled:     true,
	}
	if err := s.saveState(st); err != nil {
		return ScheduleState{}, err
	}
	if err := s.host.Register(s.taskID, s.poll, s.fire); err != nil {
		return ScheduleState{}, fmt.Errorf("register task: %w", err)
	}
	s.logger.Info().
		Str("frequency", string(cfg.Frequency)).
		Time("next_run", next).
		Dur("poll_interval", s.poll).
		Msg("backup scheduled")
	return st, nil
}

// Stop cancels the recurring task and deletes the schedule row.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.host.Cancel(s.taskID)
	if err := s.kv.Delete(KeySchedule); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	metrics.SetNextRun(time.Time{})
	s.logger.Info().Msg("backup schedule stopped")
	return nil
}

// Resume re-registers the task for a persisted schedule, typically at
// process start. It reports whether a schedule was found.
func (s *Scheduler) Resume() (bool, error) {
	st, ok, err := s.loadState()
	if err != nil || !ok || !st.Enabled {
		return false, err
	}
	if err := s.host.Register(s.taskID, s.poll, s.fire); err != nil {
		return false, fmt.Errorf("register task: %w", err)
	}
	metrics.SetNextRun(st.NextRunTime())
	s.logger.Info().Time("next_run", st.NextRunTime()).Msg("backup schedule resumed")
	return true, nil
}

// Status returns the persisted schedule, if any.
func (s *Scheduler) Status() (ScheduleState, bool, error) {
	return s.loadState()
}

func (s *Scheduler) fire(ctx context.Context, taskID string) {
	s.HandleTrigger(ctx, taskID)
}

// HandleTrigger serves one fire of taskID and acknowledges it with the host.
// It runs a backup only when the persisted next run has passed, using the
// policy stored at the time of the fire.
func (s *Scheduler) HandleTrigger(ctx context.Context, taskID string) TriggerResult {
	defer s.host.Finish(taskID)

	ctx = logging.ContextWithNewCorrelationID(ctx)
	log := s.logger.With().Str("task_id", taskID).Str("correlation_id", logging.CorrelationIDFromContext(ctx)).Logger()

	res := s.handle(ctx, log)
	metrics.SchedulerTriggers.WithLabelValues(string(res.Outcome)).Inc()
	log.Debug().Str("outcome", string(res.Outcome)).Msg("trigger handled")
	return res
}

func (s *Scheduler) handle(ctx context.Context, log zerolog.Logger) TriggerResult {
	st, ok, err := s.loadState()
	if err != nil {
		log.Error().Err(err).Msg("failed to read schedule")
		return TriggerResult{Outcome: OutcomeFailed, Error: err.Error()}
	}
	if !ok {
		s.host.Cancel(s.taskID)
		return TriggerResult{Outcome: OutcomeNotScheduled}
	}

	cfg, err := backup.LoadConfig(s.kv)
	if err != nil {
		log.Error().Err(err).Msg("failed to read backup config")
		return TriggerResult{Outcome: OutcomeFailed, NextRun: st.NextRun, Error: err.Error()}
	}
	if !cfg.Enabled {
		if err := s.Stop(); err != nil {
			return TriggerResult{Outcome: OutcomeFailed, Error: err.Error()}
		}
		return TriggerResult{Outcome: OutcomeDisabled}
	}

	if s.now().UnixMilli() < st.NextRun {
		return TriggerResult{Outcome: OutcomeNotDue, NextRun: st.NextRun}
	}

	log.Info().Time("cycle", st.NextRunTime()).Msg("running scheduled backup")
	result := s.runner.CreateBackup(ctx, cfg, backup.TriggerScheduled, st.NextRun)

	out := TriggerResult{Backup: &result, NextRun: st.NextRun}
	switch {
	case result.Success:
		out.Outcome = OutcomeCompleted
	case result.Skipped:
		out.Outcome = OutcomeSkipped
	default:
		// Keep NextRun so the next fire retries.
		out.Outcome = OutcomeFailed
		out.Error = result.Error
		return out
	}

	next, err := s.advance(cfg, st)
	if err != nil {
		log.Error().Err(err).Msg("failed to advance schedule")
		out.Error = err.Error()
		return out
	}
	out.NextRun = next.NextRun
	return out
}

// advance recomputes the next run from cfg and persists it.
//
//nolint:gocritic // Config is a small value type
func (s *Scheduler) advance(cfg backup.Config, st ScheduleState) (ScheduleState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The schedule may have been stopped while the backup ran.
	if _, ok, err := s.loadState(); err != nil || !ok {
		return st, err
	}
	next, err := NextRun(cfg, s.now().In(s.loc))
	if err != nil {
		return st, err
	}
	st.NextRun = next.UnixMilli()
	st.Frequency = cfg.Frequency
	st.Enabled = cfg.Enabled
	if err := s.saveState(st); err != nil {
		return st, err
	}
	return st, nil
}
