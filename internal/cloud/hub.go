// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package cloud

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/posvault/internal/metrics"
)

// HubConfig tunes request pacing and timeouts.
type HubConfig struct {
	// RequestTimeout bounds each adapter call. Zero disables the bound.
	RequestTimeout time.Duration

	// RequestsPerSecond paces calls per provider. Zero disables pacing.
	RequestsPerSecond float64

	// Burst is the limiter bucket size; defaults to 1.
	Burst int

	// Now overrides the clock used for credential expiry checks.
	Now func() time.Time
}

// Hub dispatches cloud operations to the adapter registered for a provider.
// Every remote call resolves credentials first, then waits on the
// provider's rate limiter and runs inside the provider's circuit breaker.
type Hub struct {
	adapters map[Provider]Adapter
	creds    *CredentialStore
	breakers map[Provider]*gobreaker.CircuitBreaker[any]
	limiters map[Provider]*rate.Limiter
	timeout  time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

// NewHub creates a Hub over the given adapters.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewHub(creds *CredentialStore, adapters map[Provider]Adapter, cfg HubConfig, logger zerolog.Logger) *Hub {
	h := &Hub{
		adapters: adapters,
		creds:    creds,
		breakers: make(map[Provider]*gobreaker.CircuitBreaker[any], len(adapters)),
		limiters: make(map[Provider]*rate.Limiter, len(adapters)),
		timeout:  cfg.RequestTimeout,
		now:      cfg.Now,
		logger:   logger.With().Str("component", "cloud").Logger(),
	}
	if h.now == nil {
		h.now = time.Now
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	for p := range adapters {
		h.breakers[p] = h.newBreaker(p)
		limit := rate.Inf
		if cfg.RequestsPerSecond > 0 {
			limit = rate.Limit(cfg.RequestsPerSecond)
		}
		h.limiters[p] = rate.NewLimiter(limit, burst)
	}
	return h
}

func (h *Hub) newBreaker(p Provider) *gobreaker.CircuitBreaker[any] {
	name := "cloud-" + string(p)
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		// Caller-side failures say nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrAuthExpired) ||
				errors.Is(err, ErrQuotaExceeded) ||
				errors.Is(err, ErrObjectNotFound) ||
				errors.Is(err, ErrInvalidCredentials) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			h.logger.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Supports reports whether an adapter is registered for p.
func (h *Hub) Supports(p Provider) bool {
	_, ok := h.adapters[p]
	return ok
}

// Credentials exposes the credential store.
func (h *Hub) Credentials() *CredentialStore {
	return h.creds
}

// resolve loads credentials and the adapter for a remote provider.
func (h *Hub) resolve(p Provider) (Adapter, Credentials, error) {
	if !p.IsRemote() {
		return nil, nil, ErrLocalProvider
	}
	adapter, ok := h.adapters[p]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, p)
	}
	creds, err := h.creds.Get(p)
	if err != nil {
		return nil, nil, err
	}
	return adapter, creds, nil
}

// invoke runs fn for provider p under pacing, timeout and the breaker.
func (h *Hub) invoke(ctx context.Context, p Provider, op string, creds Credentials, fn func(context.Context) (any, error)) (any, error) {
	if expired(creds, h.now()) {
		return nil, fmt.Errorf("%w: %s credentials expired", ErrAuthExpired, p)
	}
	if err := h.limiters[p].Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %w", ErrProviderUnavailable, err)
	}
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := h.breakers[p].Execute(func() (any, error) {
		return fn(ctx)
	})

	outcome := "success"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "rejected"
		err = fmt.Errorf("%w: %s circuit open: %w", ErrProviderUnavailable, p, err)
	case err != nil:
		outcome = "failure"
	}
	metrics.RecordCloudRequest(string(p), op, outcome, time.Since(start))
	if err != nil {
		h.logger.Warn().Err(err).Str("provider", string(p)).Str("operation", op).Msg("cloud operation failed")
	}
	return result, err
}

// Upload stores data remotely under name and returns its locator.
func (h *Hub) Upload(ctx context.Context, p Provider, data []byte, name string) (string, error) {
	adapter, creds, err := h.resolve(p)
	if err != nil {
		return "", err
	}
	res, err := h.invoke(ctx, p, "upload", creds, func(ctx context.Context) (any, error) {
		return adapter.Upload(ctx, creds, data, name)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

// Download fetches the object at locator. Safe to retry.
func (h *Hub) Download(ctx context.Context, p Provider, locator string) ([]byte, error) {
	adapter, creds, err := h.resolve(p)
	if err != nil {
		return nil, err
	}
	res, err := h.invoke(ctx, p, "download", creds, func(ctx context.Context) (any, error) {
		return adapter.Download(ctx, creds, locator)
	})
	if err != nil {
		return nil, err
	}
	return res.([]byte), nil
}

// Delete removes the object at locator. Deleting a missing object succeeds.
func (h *Hub) Delete(ctx context.Context, p Provider, locator string) error {
	adapter, creds, err := h.resolve(p)
	if err != nil {
		return err
	}
	_, err = h.invoke(ctx, p, "delete", creds, func(ctx context.Context) (any, error) {
		return nil, adapter.Delete(ctx, creds, locator)
	})
	if errors.Is(err, ErrObjectNotFound) {
		return nil
	}
	return err
}

// List returns the remote locators for p. Listings are advisory: any
// failure yields an empty result.
func (h *Hub) List(ctx context.Context, p Provider) []string {
	locators, err := h.list(ctx, p)
	if err != nil {
		return []string{}
	}
	return locators
}

func (h *Hub) list(ctx context.Context, p Provider) ([]string, error) {
	if !p.IsRemote() {
		return []string{}, nil
	}
	adapter, creds, err := h.resolve(p)
	if err != nil {
		return nil, err
	}
	return h.listWith(ctx, adapter, creds)
}

func (h *Hub) listWith(ctx context.Context, adapter Adapter, creds Credentials) ([]string, error) {
	res, err := h.invoke(ctx, creds.Provider(), "list", creds, func(ctx context.Context) (any, error) {
		return adapter.List(ctx, creds)
	})
	if err != nil {
		return nil, err
	}
	locators, _ := res.([]string)
	if locators == nil {
		locators = []string{}
	}
	return locators, nil
}

// TestConnection lists with the stored credentials and reports success.
func (h *Hub) TestConnection(ctx context.Context, p Provider) bool {
	_, err := h.list(ctx, p)
	return err == nil
}

// TestCredentials lists with creds that have not been saved yet.
func (h *Hub) TestCredentials(ctx context.Context, creds Credentials) bool {
	if ValidateCredentials(creds) != nil {
		return false
	}
	adapter, ok := h.adapters[creds.Provider()]
	if !ok {
		return false
	}
	_, err := h.listWith(ctx, adapter, creds)
	return err == nil
}
