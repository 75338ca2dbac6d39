// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/posvault/internal/backup"
)

const defaultTimeOfDay = "02:00"

// parseTimeOfDay splits HH:MM. Empty input means 02:00.
func parseTimeOfDay(s string) (hour, minute int, err error) {
	if s == "" {
		s = defaultTimeOfDay
	}
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid time of day %q", s)
	}
	if hour, err = strconv.Atoi(h); err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid time of day %q", s)
	}
	if minute, err = strconv.Atoi(m); err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time of day %q", s)
	}
	return hour, minute, nil
}

// NextRun returns the next scheduled instant after now for cfg. Calendar
// fields are interpreted in now's location. A dayOfMonth past the end of a
// month normalises forward the way time.Date does.
//
//nolint:gocritic // Config is a small value type
func NextRun(cfg backup.Config, now time.Time) (time.Time, error) {
	loc := now.Location()

	y, mo, d := now.Date()

	if cfg.Frequency == backup.FrequencyHourly {
		return time.Date(y, mo, d, now.Hour()+1, 0, 0, 0, loc), nil
	}

	hour, minute, err := parseTimeOfDay(cfg.TimeOfDay)
	if err != nil {
		return time.Time{}, err
	}

	switch cfg.Frequency {
	case backup.FrequencyDaily, backup.FrequencyCustom:
		next := time.Date(y, mo, d, hour, minute, 0, 0, loc)
		if !next.After(now) {
			next = time.Date(y, mo, d+1, hour, minute, 0, 0, loc)
		}
		return next, nil

	case backup.FrequencyWeekly:
		ahead := (cfg.DayOfWeek - int(now.Weekday()) + 7) % 7
		next := time.Date(y, mo, d+ahead, hour, minute, 0, 0, loc)
		if !next.After(now) {
			next = time.Date(y, mo, d+ahead+7, hour, minute, 0, 0, loc)
		}
		return next, nil

	case backup.FrequencyMonthly:
		day := cfg.DayOfMonth
		if day <= 0 {
			day = 1
		}
		next := time.Date(y, mo, day, hour, minute, 0, 0, loc)
		if !next.After(now) {
			next = time.Date(y, mo+1, day, hour, minute, 0, 0, loc)
		}
		return next, nil

	default:
		return time.Time{}, fmt.Errorf("unsupported frequency %q", cfg.Frequency)
	}
}
