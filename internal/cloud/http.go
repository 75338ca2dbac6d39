// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package cloud

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of an error response is read for classification.
const maxErrorBody = 64 * 1024

// restClient is the shared REST plumbing of the Drive and Dropbox adapters.
type restClient struct {
	http *http.Client
}

func newRESTClient(client *http.Client) restClient {
	if client == nil {
		client = http.DefaultClient
	}
	return restClient{http: client}
}

// do sends the request with a bearer token and returns the body of a 2xx
// response. Non-2xx responses are translated by classifyResponse.
func (c restClient) do(ctx context.Context, method, url, token string, body []byte, headers map[string]string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: read body: %w", ErrProviderUnavailable, err)
		}
		return data, nil
	}

	errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, classifyResponse(resp.StatusCode, errBody)
}

// classifyResponse maps a non-2xx status onto the package error taxonomy.
// The body is only inspected for well-known quota and not-found markers.
func classifyResponse(status int, body []byte) error {
	text := strings.ToLower(string(body))
	switch {
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: status %d", ErrAuthExpired, status)
	case status == http.StatusInsufficientStorage,
		strings.Contains(text, "insufficient_space"),
		strings.Contains(text, "storagequotaexceeded"),
		status == http.StatusForbidden && strings.Contains(text, "quota"):
		return fmt.Errorf("%w: status %d", ErrQuotaExceeded, status)
	case status == http.StatusNotFound,
		status == http.StatusConflict && strings.Contains(text, "not_found"):
		return fmt.Errorf("%w: status %d", ErrObjectNotFound, status)
	default:
		return fmt.Errorf("%w: status %d", ErrProviderUnavailable, status)
	}
}
