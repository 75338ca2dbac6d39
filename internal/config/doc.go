// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

/*
Package config loads PosVault's process configuration.

# Configuration Sources

Sources are layered with koanf, later layers overriding earlier ones:

 1. Built-in defaults (defaultConfig)
 2. A YAML file: $CONFIG_PATH, then posvault.yaml, then /etc/posvault/config.yaml
 3. Environment variables prefixed POSVAULT_

Environment keys nest with a double underscore:

	POSVAULT_STORAGE__DATA_DIR=/var/lib/posvault
	POSVAULT_VAULT__MASTER_KEY=...
	POSVAULT_SCHEDULER__POLL_INTERVAL=30m
	POSVAULT_CLOUD__S3__ENDPOINT=http://minio:9000
	POSVAULT_SERVER__PORT=8330
	POSVAULT_LOGGING__LEVEL=debug

# Sections

  - storage: data, backup and export directories
  - vault: master key protecting the secure vault at rest
  - scheduler: task id, host polling interval, stale run timeout, time zone
  - cloud: request timeout, pacing and provider endpoints
  - device: descriptor stamped into backup metadata
  - server: HTTP bind address and rate limit
  - logging: level, format, caller

The backup policy itself (frequency, retention, provider) is not process
configuration; it is persisted in the local store and changed through the API.
*/
package config
