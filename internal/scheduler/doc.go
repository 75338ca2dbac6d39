// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

// Package scheduler drives automatic backups.
//
// The Scheduler owns one persisted ScheduleState row and registers a single
// recurring task with a TaskHost. The host may fire the task far more often
// than the configured frequency, or long after the process that scheduled it
// has exited, so every fire re-reads the persisted state and the current
// backup policy and only runs a backup once nextRun has passed.
//
// Hosts:
//   - TickerHost runs registered tasks from an in-process ticker and is
//     supervised as a suture service by the server.
//   - NopHost ignores registrations; the headless trigger command uses it to
//     serve exactly one fire and exit.
//
// Next-run rules (all in the scheduler's location):
//
//	hourly   top of the next hour
//	daily    today at timeOfDay if still ahead, else tomorrow
//	weekly   next dayOfWeek at timeOfDay, strictly in the future
//	monthly  dayOfMonth of this month at timeOfDay, else next month
//	custom   same as daily
package scheduler
