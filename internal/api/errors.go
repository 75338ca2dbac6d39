// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/posvault/internal/backup"
	"github.com/tomtom215/posvault/internal/cloud"
	"github.com/tomtom215/posvault/internal/crypt"
	"github.com/tomtom215/posvault/internal/service"
)

// errorMapping pairs a sentinel with its HTTP status and error code.
type errorMapping struct {
	target error
	status int
	code   string
}

// errorMappings is checked in order; the first errors.Is match wins.
var errorMappings = []errorMapping{
	{backup.ErrBackupNotFound, http.StatusNotFound, "BACKUP_NOT_FOUND"},
	{cloud.ErrObjectNotFound, http.StatusNotFound, "REMOTE_OBJECT_NOT_FOUND"},
	{cloud.ErrCredentialsNotFound, http.StatusNotFound, "CREDENTIALS_NOT_FOUND"},
	{backup.ErrBackupInProgress, http.StatusConflict, "BACKUP_IN_PROGRESS"},
	{backup.ErrPasswordRequired, http.StatusBadRequest, "PASSWORD_REQUIRED"},
	{cloud.ErrUnsupportedProvider, http.StatusBadRequest, "UNSUPPORTED_PROVIDER"},
	{cloud.ErrLocalProvider, http.StatusBadRequest, "LOCAL_PROVIDER"},
	{cloud.ErrInvalidCredentials, http.StatusBadRequest, "INVALID_CREDENTIALS"},
	{backup.ErrBackupTooLarge, http.StatusRequestEntityTooLarge, "BACKUP_TOO_LARGE"},
	{crypt.ErrDecryption, http.StatusUnprocessableEntity, "DECRYPTION_FAILED"},
	{crypt.ErrKeyDerivation, http.StatusUnprocessableEntity, "KEY_DERIVATION_FAILED"},
	{backup.ErrChecksumMismatch, http.StatusUnprocessableEntity, "CHECKSUM_MISMATCH"},
	{backup.ErrEmptyPayload, http.StatusUnprocessableEntity, "EMPTY_PAYLOAD"},
	{cloud.ErrAuthExpired, http.StatusUnauthorized, "AUTH_EXPIRED"},
	{cloud.ErrCredentialsExpired, http.StatusUnauthorized, "CREDENTIALS_EXPIRED"},
	{cloud.ErrQuotaExceeded, http.StatusInsufficientStorage, "QUOTA_EXCEEDED"},
	{cloud.ErrProviderUnavailable, http.StatusServiceUnavailable, "PROVIDER_UNAVAILABLE"},
	{service.ErrCloudUnavailable, http.StatusServiceUnavailable, "CLOUD_UNAVAILABLE"},
}

// classify maps err onto an HTTP status and error code.
func classify(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}
