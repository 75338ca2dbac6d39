// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package cloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
)

// Default Drive v3 endpoints.
const (
	DefaultDriveAPIBase    = "https://www.googleapis.com/drive/v3"
	DefaultDriveUploadBase = "https://www.googleapis.com/upload/drive/v3"
)

const (
	driveAppFolder   = "appDataFolder"
	driveAppProperty = "posvault"
	driveAppValue    = "backup"
)

// DriveAdapter stores blobs in the Drive appDataFolder, which is hidden
// from the user's Drive UI. Locators are Drive file IDs.
type DriveAdapter struct {
	rest       restClient
	apiBase    string
	uploadBase string
}

// NewDriveAdapter creates a Drive adapter. Empty bases select the public API.
func NewDriveAdapter(client *http.Client, apiBase, uploadBase string) *DriveAdapter {
	if apiBase == "" {
		apiBase = DefaultDriveAPIBase
	}
	if uploadBase == "" {
		uploadBase = DefaultDriveUploadBase
	}
	return &DriveAdapter{
		rest:       newRESTClient(client),
		apiBase:    strings.TrimRight(apiBase, "/"),
		uploadBase: strings.TrimRight(uploadBase, "/"),
	}
}

type driveFile struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

func driveToken(c Credentials) (string, error) {
	dc, ok := c.(DriveCredentials)
	if !ok {
		return "", fmt.Errorf("%w: expected gdrive credentials, got %T", ErrInvalidCredentials, c)
	}
	return dc.AccessToken, nil
}

// Upload sends data as one multipart/related request so the file either
// exists completely or not at all.
func (a *DriveAdapter) Upload(ctx context.Context, creds Credentials, data []byte, name string) (string, error) {
	token, err := driveToken(creds)
	if err != nil {
		return "", err
	}

	meta, err := json.Marshal(map[string]any{
		"name":          name,
		"parents":       []string{driveAppFolder},
		"appProperties": map[string]string{driveAppProperty: driveAppValue},
	})
	if err != nil {
		return "", fmt.Errorf("encode drive metadata: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	metaPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return "", err
	}
	if _, err := metaPart.Write(meta); err != nil {
		return "", err
	}
	mediaPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/octet-stream"}})
	if err != nil {
		return "", err
	}
	if _, err := mediaPart.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	resp, err := a.rest.do(ctx, http.MethodPost, a.uploadBase+"/files?uploadType=multipart&fields=id", token,
		body.Bytes(), map[string]string{"Content-Type": "multipart/related; boundary=" + mw.Boundary()})
	if err != nil {
		return "", err
	}

	var file driveFile
	if err := json.Unmarshal(resp, &file); err != nil || file.ID == "" {
		return "", fmt.Errorf("%w: upload response has no file id", ErrProviderUnavailable)
	}
	return file.ID, nil
}

// Download fetches the file content.
func (a *DriveAdapter) Download(ctx context.Context, creds Credentials, locator string) ([]byte, error) {
	token, err := driveToken(creds)
	if err != nil {
		return nil, err
	}
	return a.rest.do(ctx, http.MethodGet, a.apiBase+"/files/"+url.PathEscape(locator)+"?alt=media", token, nil, nil)
}

// Delete removes the file. A missing file is not an error.
func (a *DriveAdapter) Delete(ctx context.Context, creds Credentials, locator string) error {
	token, err := driveToken(creds)
	if err != nil {
		return err
	}
	_, err = a.rest.do(ctx, http.MethodDelete, a.apiBase+"/files/"+url.PathEscape(locator), token, nil, nil)
	if errors.Is(err, ErrObjectNotFound) {
		return nil
	}
	return err
}

// List returns the IDs of backup files in the appDataFolder.
func (a *DriveAdapter) List(ctx context.Context, creds Credentials) ([]string, error) {
	token, err := driveToken(creds)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("spaces", driveAppFolder)
	q.Set("fields", "nextPageToken,files(id,name)")
	q.Set("q", fmt.Sprintf("appProperties has { key='%s' and value='%s' } and trashed = false", driveAppProperty, driveAppValue))

	var ids []string
	for {
		resp, err := a.rest.do(ctx, http.MethodGet, a.apiBase+"/files?"+q.Encode(), token, nil, nil)
		if err != nil {
			return nil, err
		}
		var page struct {
			NextPageToken string      `json:"nextPageToken"`
			Files         []driveFile `json:"files"`
		}
		if err := json.Unmarshal(resp, &page); err != nil {
			return nil, fmt.Errorf("%w: decode file list: %w", ErrProviderUnavailable, err)
		}
		for _, f := range page.Files {
			ids = append(ids, f.ID)
		}
		if page.NextPageToken == "" {
			return ids, nil
		}
		q.Set("pageToken", page.NextPageToken)
	}
}
