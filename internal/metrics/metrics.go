// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

// Package metrics holds the Prometheus instruments for backup, restore,
// scheduling, cloud transfer and the HTTP surface.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Backup Metrics
	BackupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posvault_backups_total",
			Help: "Backup attempts by trigger and final status",
		},
		[]string{"trigger", "status"}, // status: "completed", "failed", "skipped"
	)

	BackupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "posvault_backup_duration_seconds",
			Help:    "Duration of backup attempts in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"trigger"},
	)

	BackupSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "posvault_backup_size_bytes",
			Help:    "Size of written backup blobs",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KiB .. 256MiB
		},
	)

	BackupsRetained = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "posvault_backups_retained",
			Help: "Local backup blobs remaining after the last retention pass",
		},
	)

	RetentionDeletions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "posvault_retention_deletions_total",
			Help: "Backups removed by retention enforcement",
		},
	)

	// Restore Metrics
	RestoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posvault_restores_total",
			Help: "Restore attempts by outcome",
		},
		[]string{"status"},
	)

	RestoreDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "posvault_restore_duration_seconds",
			Help:    "Duration of restore attempts in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Scheduler Metrics
	SchedulerTriggers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posvault_scheduler_triggers_total",
			Help: "Trigger fires by outcome",
		},
		[]string{"outcome"}, // completed, skipped, failed, not_due, disabled, not_scheduled
	)

	SchedulerNextRun = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "posvault_scheduler_next_run_timestamp_seconds",
			Help: "Unix time of the next scheduled backup, 0 when unscheduled",
		},
	)

	// Cloud Metrics
	CloudRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posvault_cloud_requests_total",
			Help: "Cloud provider operations by result",
		},
		[]string{"provider", "operation", "result"},
	)

	CloudRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "posvault_cloud_request_duration_seconds",
			Help:    "Duration of cloud provider operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "posvault_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posvault_circuit_breaker_state_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posvault_api_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "posvault_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordBackup records one finished backup attempt.
func RecordBackup(trigger, status string, duration time.Duration, sizeBytes int64) {
	BackupsTotal.WithLabelValues(trigger, status).Inc()
	BackupDuration.WithLabelValues(trigger).Observe(duration.Seconds())
	if sizeBytes > 0 {
		BackupSizeBytes.Observe(float64(sizeBytes))
	}
}

// RecordRestore records one finished restore attempt.
func RecordRestore(success bool, duration time.Duration) {
	status := "failed"
	if success {
		status = "completed"
	}
	RestoresTotal.WithLabelValues(status).Inc()
	RestoreDuration.Observe(duration.Seconds())
}

// RecordCloudRequest records one adapter call.
func RecordCloudRequest(provider, operation, result string, duration time.Duration) {
	CloudRequests.WithLabelValues(provider, operation, result).Inc()
	CloudRequestDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// RecordAPIRequest records one HTTP request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// SetNextRun publishes the next scheduled run; the zero time clears it.
func SetNextRun(t time.Time) {
	if t.IsZero() {
		SchedulerNextRun.Set(0)
		return
	}
	SchedulerNextRun.Set(float64(t.Unix()))
}
