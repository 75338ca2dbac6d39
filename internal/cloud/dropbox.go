// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package cloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/goccy/go-json"
)

// Default Dropbox v2 endpoints.
const (
	DefaultDropboxAPIBase     = "https://api.dropboxapi.com/2"
	DefaultDropboxContentBase = "https://content.dropboxapi.com/2"
)

// dropboxFolder lives inside the app folder granted to the app key.
const dropboxFolder = "/posvault-backups"

// DropboxAdapter stores blobs by path inside the Dropbox app folder.
// Locators are lower-cased Dropbox paths.
type DropboxAdapter struct {
	rest        restClient
	apiBase     string
	contentBase string
}

// NewDropboxAdapter creates a Dropbox adapter. Empty bases select the public API.
func NewDropboxAdapter(client *http.Client, apiBase, contentBase string) *DropboxAdapter {
	if apiBase == "" {
		apiBase = DefaultDropboxAPIBase
	}
	if contentBase == "" {
		contentBase = DefaultDropboxContentBase
	}
	return &DropboxAdapter{
		rest:        newRESTClient(client),
		apiBase:     strings.TrimRight(apiBase, "/"),
		contentBase: strings.TrimRight(contentBase, "/"),
	}
}

type dropboxEntry struct {
	Tag       string `json:".tag"`
	PathLower string `json:"path_lower"`
}

func dropboxToken(c Credentials) (string, error) {
	dc, ok := c.(DropboxCredentials)
	if !ok {
		return "", fmt.Errorf("%w: expected dropbox credentials, got %T", ErrInvalidCredentials, c)
	}
	return dc.AccessToken, nil
}

func dropboxArg(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode Dropbox-API-Arg: %w", err)
	}
	return string(data), nil
}

// Upload writes data to the backup folder. Dropbox commits single-request
// uploads atomically.
func (a *DropboxAdapter) Upload(ctx context.Context, creds Credentials, data []byte, name string) (string, error) {
	token, err := dropboxToken(creds)
	if err != nil {
		return "", err
	}
	arg, err := dropboxArg(map[string]any{
		"path":       path.Join(dropboxFolder, name),
		"mode":       "overwrite",
		"autorename": false,
		"mute":       true,
	})
	if err != nil {
		return "", err
	}

	resp, err := a.rest.do(ctx, http.MethodPost, a.contentBase+"/files/upload", token, data, map[string]string{
		"Content-Type":    "application/octet-stream",
		"Dropbox-API-Arg": arg,
	})
	if err != nil {
		return "", err
	}

	var entry dropboxEntry
	if err := json.Unmarshal(resp, &entry); err != nil || entry.PathLower == "" {
		return "", fmt.Errorf("%w: upload response has no path", ErrProviderUnavailable)
	}
	return entry.PathLower, nil
}

// Download fetches the file at locator.
func (a *DropboxAdapter) Download(ctx context.Context, creds Credentials, locator string) ([]byte, error) {
	token, err := dropboxToken(creds)
	if err != nil {
		return nil, err
	}
	arg, err := dropboxArg(map[string]string{"path": locator})
	if err != nil {
		return nil, err
	}
	return a.rest.do(ctx, http.MethodPost, a.contentBase+"/files/download", token, nil, map[string]string{
		"Dropbox-API-Arg": arg,
	})
}

// Delete removes the file at locator. A missing file is not an error.
func (a *DropboxAdapter) Delete(ctx context.Context, creds Credentials, locator string) error {
	token, err := dropboxToken(creds)
	if err != nil {
		return err
	}
	body, err := json.Marshal(map[string]string{"path": locator})
	if err != nil {
		return err
	}
	_, err = a.rest.do(ctx, http.MethodPost, a.apiBase+"/files/delete_v2", token, body, map[string]string{
		"Content-Type": "application/json",
	})
	if errors.Is(err, ErrObjectNotFound) {
		return nil
	}
	return err
}

// List returns the paths of files in the backup folder.
func (a *DropboxAdapter) List(ctx context.Context, creds Credentials) ([]string, error) {
	token, err := dropboxToken(creds)
	if err != nil {
		return nil, err
	}

	endpoint := a.apiBase + "/files/list_folder"
	req := map[string]any{"path": dropboxFolder}
	var paths []string
	for {
		body, err := json.Marshal(req)
		if err != nil {
			return nil, err
		}
		resp, err := a.rest.do(ctx, http.MethodPost, endpoint, token, body, map[string]string{
			"Content-Type": "application/json",
		})
		if errors.Is(err, ErrObjectNotFound) {
			// Folder not created yet.
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		var page struct {
			Entries []dropboxEntry `json:"entries"`
			Cursor  string         `json:"cursor"`
			HasMore bool           `json:"has_more"`
		}
		if err := json.Unmarshal(resp, &page); err != nil {
			return nil, fmt.Errorf("%w: decode folder list: %w", ErrProviderUnavailable, err)
		}
		for _, e := range page.Entries {
			if e.Tag == "file" {
				paths = append(paths, e.PathLower)
			}
		}
		if !page.HasMore {
			return paths, nil
		}
		endpoint = a.apiBase + "/files/list_folder/continue"
		req = map[string]any{"cursor": page.Cursor}
	}
}
