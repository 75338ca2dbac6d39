// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/posvault/internal/scheduler"
)

// triggerPath is the API route serving one trigger fire.
const triggerPath = "/api/v1/schedule/trigger"

// triggerEnvelope is the subset of the API envelope the forwarder reads.
type triggerEnvelope struct {
	Status string                  `json:"status"`
	Data   scheduler.TriggerResult `json:"data"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// forwardTrigger asks the server at baseURL to serve a trigger fire. A
// failed backup is still a TriggerResult; only transport faults are errors.
func forwardTrigger(ctx context.Context, client *http.Client, baseURL string) (scheduler.TriggerResult, error) {
	url := strings.TrimRight(baseURL, "/") + triggerPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, http.NoBody)
	if err != nil {
		return scheduler.TriggerResult{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return scheduler.TriggerResult{}, fmt.Errorf("forward trigger to %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return scheduler.TriggerResult{}, fmt.Errorf("read trigger response: %w", err)
	}
	var env triggerEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return scheduler.TriggerResult{}, fmt.Errorf("decode trigger response (HTTP %d): %w", resp.StatusCode, err)
	}
	if env.Data.Outcome == "" {
		if env.Error != nil {
			return scheduler.TriggerResult{}, fmt.Errorf("trigger rejected (HTTP %d): %s: %s", resp.StatusCode, env.Error.Code, env.Error.Message)
		}
		return scheduler.TriggerResult{}, fmt.Errorf("trigger response without outcome (HTTP %d)", resp.StatusCode)
	}
	return env.Data, nil
}
