// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

/*
Package api exposes the backup service over HTTP using the Chi router.

Every JSON endpoint answers with the same envelope:

	{
	  "status": "success" | "error",
	  "data": ...,
	  "metadata": {"timestamp": "..."},
	  "error": {"code": "...", "message": "...", "details": {...}}
	}

Routes:

	GET    /api/v1/health
	GET    /metrics
	GET    /api/v1/backups                    local backup files
	POST   /api/v1/backups                    manual backup (body: optional BackupConfig)
	GET    /api/v1/backups/history            history ledger
	DELETE /api/v1/backups/{id}
	POST   /api/v1/backups/{id}/export
	POST   /api/v1/backups/{id}/restore       body: {"password": "..."} (optional)
	POST   /api/v1/backups/{id}/verify        body: {"password": "..."} (optional)
	GET    /api/v1/restore/auto               fresh-install restore hint
	GET    /api/v1/config                     persisted BackupConfig
	GET    /api/v1/schedule
	PUT    /api/v1/schedule                   body: BackupConfig
	DELETE /api/v1/schedule
	POST   /api/v1/schedule/trigger           one scheduled trigger fire
	PUT    /api/v1/cloud/{provider}/credentials
	DELETE /api/v1/cloud/{provider}/credentials
	POST   /api/v1/cloud/{provider}/test
	GET    /api/v1/cloud/{provider}/backups

The API is meant to be bound to the loopback interface of the POS device.
It carries an IP rate limit but no authentication.
*/
package api
