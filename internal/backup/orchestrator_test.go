// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package backup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/posvault/internal/cloud"
)

func TestCreateBackupAndRestoreRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, `{"currency":"USD","taxRate":8.25}`, map[string]string{"cart": `{"items":2}`, "held_sale_1": "42"})
	if err := env.db.Set(KeyUsername, []byte("cashier1")); err != nil {
		t.Fatal(err)
	}

	res := env.backup(t, localConfig())
	if !res.Success {
		t.Fatalf("backup failed: %s", res.Error)
	}
	if !res.Encrypted || !strings.HasSuffix(res.LocalPath, ".json.enc") {
		t.Errorf("expected sealed file, got %q (encrypted=%v)", res.LocalPath, res.Encrypted)
	}
	if _, err := os.Stat(res.LocalPath); err != nil {
		t.Fatalf("backup file missing: %v", err)
	}
	if pw, err := env.vault.Get(SecretBackupPassword); err != nil || pw == "" {
		t.Fatalf("backup password not generated: %q, %v", pw, err)
	}

	entry, ok, err := env.snaps.HistoryEntryFor(res.BackupID)
	if err != nil || !ok {
		t.Fatalf("history row missing: %v", err)
	}
	if entry.Status != StatusCompleted || entry.Trigger != TriggerManual || entry.LocalPath != res.LocalPath {
		t.Errorf("unexpected history row: %+v", entry)
	}

	for _, k := range []string{KeySettings, KeyUsername, PrefixPOS + "cart", PrefixPOS + "held_sale_1"} {
		if err := env.db.Delete(k); err != nil {
			t.Fatal(err)
		}
	}

	out := env.restorer.Restore(context.Background(), res.BackupID, "")
	if !out.Success {
		t.Fatalf("restore failed: %s", out.Error)
	}
	if !out.RestoredData.Settings || !out.RestoredData.AuthData || !out.RestoredData.PosData {
		t.Errorf("RestoredData = %+v", out.RestoredData)
	}
	if got := env.mustGet(t, KeySettings); got != `{"currency":"USD","taxRate":8.25}` {
		t.Errorf("settings = %s", got)
	}
	if got := env.mustGet(t, KeyUsername); got != "cashier1" {
		t.Errorf("username = %s", got)
	}
	if got := env.mustGet(t, PrefixPOS+"held_sale_1"); got != "42" {
		t.Errorf("held sale = %s", got)
	}
}

func TestCreateBackupPlain(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, `{"currency":"EUR"}`, nil)
	cfg := localConfig()
	cfg.Encrypt = false

	res := env.backup(t, cfg)
	if !res.Success {
		t.Fatalf("backup failed: %s", res.Error)
	}
	if filepath.Base(res.LocalPath) != FileName(res.BackupID, false) {
		t.Errorf("LocalPath = %s", res.LocalPath)
	}
	if _, err := env.vault.Get(SecretBackupPassword); err == nil {
		t.Error("plain backups must not generate a password")
	}

	files, err := env.snaps.ReadAll()
	if err != nil || len(files) != 1 {
		t.Fatalf("ReadAll = %v, %v", files, err)
	}
	meta := files[0].Metadata
	if meta.ID != res.BackupID || meta.Encrypted || meta.FormatVersion != FormatVersion || meta.Checksum == "" {
		t.Errorf("metadata = %+v", meta)
	}
	if meta.Device.Model != "T2" || meta.Provider != cloud.ProviderLocal {
		t.Errorf("device/provider not recorded: %+v", meta)
	}
}

func TestCreateBackupEmptyPayloadFails(t *testing.T) {
	env := newTestEnv(t)

	res := env.backup(t, localConfig())
	if res.Success || res.Error == "" {
		t.Fatalf("expected failure, got %+v", res)
	}
	files, _ := env.snaps.ReadAll()
	if len(files) != 0 {
		t.Errorf("failed backup left %d files", len(files))
	}
	entry, ok, _ := env.snaps.HistoryEntryFor(res.BackupID)
	if !ok || entry.Status != StatusFailed || entry.ErrorMessage != ErrEmptyPayload.Error() {
		t.Errorf("history row = %+v", entry)
	}
}

func TestCreateBackupTooLarge(t *testing.T) {
	env := newTestEnv(t)
	if env.orch.maxSize != MaxPayloadSize {
		t.Fatalf("default size guard = %d, want %d", env.orch.maxSize, MaxPayloadSize)
	}

	d := env.deps
	d.MaxPayloadSize = 4 << 10
	orch := NewOrchestrator(d)
	env.seed(t, `{"currency":"USD"}`, map[string]string{"held_sale_1": strings.Repeat("x", 8<<10)})

	for _, encrypt := range []bool{true, false} {
		cfg := localConfig()
		cfg.Encrypt = encrypt
		res := orch.CreateBackup(context.Background(), cfg, TriggerManual, 0)
		env.clock.Advance(time.Minute)

		if res.Success || !strings.HasPrefix(res.Error, ErrBackupTooLarge.Error()) {
			t.Fatalf("encrypt=%v: expected %v, got %+v", encrypt, ErrBackupTooLarge, res)
		}
		if res.LocalPath != "" {
			t.Errorf("encrypt=%v: local path %q reported for oversized payload", encrypt, res.LocalPath)
		}
		entry, ok, err := env.snaps.HistoryEntryFor(res.BackupID)
		if err != nil || !ok || entry.Status != StatusFailed {
			t.Errorf("encrypt=%v: history row = %+v (ok=%v, err=%v)", encrypt, entry, ok, err)
		}
	}

	files, err := env.snaps.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 0 {
		t.Errorf("oversized payload left %d files", len(files))
	}
	dir, err := os.ReadDir(env.snaps.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(dir) != 0 {
		t.Errorf("backup directory not empty: %d entries", len(dir))
	}
}

func TestCreateBackupRejectsInvalidConfig(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, `{"a":1}`, nil)
	cfg := localConfig()
	cfg.RetainCount = 0

	res := env.backup(t, cfg)
	if res.Success || !strings.Contains(res.Error, "invalid backup config") {
		t.Fatalf("expected validation failure, got %+v", res)
	}
	history, _ := env.snaps.GetHistory()
	if len(history) != 0 {
		t.Errorf("invalid config must not claim a run, history = %+v", history)
	}
}

func TestCreateBackupEnforcesRetention(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, `{"a":1}`, nil)
	cfg := localConfig()
	cfg.Encrypt = false
	cfg.RetainCount = 2

	var ids []string
	for range 4 {
		res := env.backup(t, cfg)
		if !res.Success {
			t.Fatalf("backup failed: %s", res.Error)
		}
		ids = append(ids, res.BackupID)
	}

	files, err := env.snaps.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 retained files, got %d", len(files))
	}
	if files[0].Metadata.ID != ids[3] || files[1].Metadata.ID != ids[2] {
		t.Errorf("retained the wrong backups: %s, %s", files[0].Metadata.ID, files[1].Metadata.ID)
	}
	history, _ := env.snaps.GetHistory()
	if len(history) != 2 {
		t.Errorf("history should drop pruned rows, got %d", len(history))
	}
}

func TestRetentionCountsManualAndScheduled(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, `{"a":1}`, nil)
	cfg := localConfig()
	cfg.Encrypt = false
	cfg.RetainCount = 2

	first := env.orch.CreateBackup(context.Background(), cfg, TriggerScheduled, 1)
	env.clock.Advance(time.Minute)
	manual := env.backup(t, cfg)
	last := env.orch.CreateBackup(context.Background(), cfg, TriggerScheduled, 2)
	for _, res := range []Result{first, manual, last} {
		if !res.Success {
			t.Fatalf("backup failed: %s", res.Error)
		}
	}

	files, err := env.snaps.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0].Metadata.ID != last.BackupID || files[1].Metadata.ID != manual.BackupID {
		t.Fatalf("kept = %+v, want [%s %s]", files, last.BackupID, manual.BackupID)
	}
	if _, ok, _ := env.snaps.HistoryEntryFor(first.BackupID); ok {
		t.Error("pruned scheduled backup still in history")
	}
}

func TestCreateBackupSkipsWhileInProgress(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, `{"a":1}`, nil)

	held, err := env.snaps.ClaimRun(TriggerManual, 0)
	if err != nil {
		t.Fatal(err)
	}
	res := env.orch.CreateBackup(context.Background(), localConfig(), TriggerScheduled, 0)
	if !res.Skipped || res.Success {
		t.Fatalf("expected skipped result, got %+v", res)
	}

	// Once the holder is stale the next run reclaims.
	env.clock.Advance(3 * time.Hour)
	res = env.orch.CreateBackup(context.Background(), localConfig(), TriggerManual, 0)
	if !res.Success {
		t.Fatalf("expected reclaim after stale timeout: %s", res.Error)
	}
	entry, _, _ := env.snaps.HistoryEntryFor(held.ID)
	if entry.Status != StatusFailed || entry.ErrorMessage != abandonedMessage {
		t.Errorf("stale row = %+v", entry)
	}
}

func TestCreateBackupScheduledCycleRunsOnce(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, `{"a":1}`, nil)
	cycle := env.clock.Now().UnixMilli()

	first := env.orch.CreateBackup(context.Background(), localConfig(), TriggerScheduled, cycle)
	if !first.Success {
		t.Fatalf("first run failed: %s", first.Error)
	}
	second := env.orch.CreateBackup(context.Background(), localConfig(), TriggerScheduled, cycle)
	if !second.Skipped {
		t.Fatalf("second run of the same cycle should skip, got %+v", second)
	}
	manual := env.orch.CreateBackup(context.Background(), localConfig(), TriggerManual, cycle)
	if !manual.Success {
		t.Fatalf("manual runs ignore the cycle: %s", manual.Error)
	}
}

func TestCreateBackupUploadFailureIsWarning(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, `{"a":1}`, nil)
	env.remote.uploadErr = cloud.ErrProviderUnavailable
	cfg := localConfig()
	cfg.CloudProvider = cloud.ProviderGDrive
	cfg.IncludeLocalCopy = false

	res := env.backup(t, cfg)
	if !res.Success {
		t.Fatalf("upload failure must not fail the backup: %s", res.Error)
	}
	if len(res.Warnings) == 0 || res.CloudPath != "" {
		t.Errorf("expected a warning and no cloud path, got %+v", res)
	}
	if _, err := os.Stat(res.LocalPath); err != nil {
		t.Errorf("local copy must survive a failed upload: %v", err)
	}
	entry, _, _ := env.snaps.HistoryEntryFor(res.BackupID)
	if entry.Status != StatusCompleted || !strings.Contains(entry.ErrorMessage, "cloud upload failed") {
		t.Errorf("history row = %+v", entry)
	}
}

func TestCreateBackupCloudOnly(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, `{"currency":"USD"}`, nil)
	cfg := localConfig()
	cfg.CloudProvider = cloud.ProviderS3
	cfg.IncludeLocalCopy = false

	res := env.backup(t, cfg)
	if !res.Success || res.CloudPath == "" || res.LocalPath != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if files, _ := env.snaps.ReadAll(); len(files) != 0 {
		t.Errorf("cloud-only backup left %d local files", len(files))
	}

	if err := env.db.Delete(KeySettings); err != nil {
		t.Fatal(err)
	}
	out := env.restorer.Restore(context.Background(), res.BackupID, "")
	if !out.Success || !out.RestoredData.Settings {
		t.Fatalf("restore from cloud failed: %+v", out)
	}
	if got := env.mustGet(t, KeySettings); got != `{"currency":"USD"}` {
		t.Errorf("settings = %s", got)
	}
}

func TestRetentionPrunesCloudOnlyCopies(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, `{"a":1}`, nil)
	cfg := localConfig()
	cfg.CloudProvider = cloud.ProviderDropbox
	cfg.IncludeLocalCopy = false
	cfg.RetainCount = 1

	for range 3 {
		if res := env.backup(t, cfg); !res.Success {
			t.Fatalf("backup failed: %s", res.Error)
		}
	}
	if n := env.remote.count(); n != 1 {
		t.Errorf("expected 1 remote object after retention, got %d", n)
	}
	if len(env.remote.deletes) != 2 {
		t.Errorf("expected 2 remote deletes, got %v", env.remote.deletes)
	}
}

func TestCreateBackupWithoutRemote(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, `{"a":1}`, nil)
	env.orch.remote = nil
	cfg := localConfig()
	cfg.CloudProvider = cloud.ProviderGDrive

	res := env.backup(t, cfg)
	if !res.Success || len(res.Warnings) != 1 {
		t.Fatalf("expected success with one warning, got %+v", res)
	}
}

func TestCreateBackupRespectsCategoryFlags(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, `{"a":1}`, map[string]string{"cart": "x"})
	cfg := localConfig()
	cfg.Encrypt = false
	cfg.IncludePosData = false
	cfg.IncludeAuthData = false

	res := env.backup(t, cfg)
	if !res.Success {
		t.Fatal(res.Error)
	}
	_, data, err := env.snaps.Find(res.BackupID)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := decodeDocument(data)
	if err != nil {
		t.Fatal(err)
	}
	p, err := decodePayload(doc.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if p.PosData != nil || p.AuthData != nil {
		t.Errorf("excluded categories were collected: %+v", p)
	}
}

func TestCreateBackupNeverStoresTokens(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, `{"a":1}`, nil)
	if err := env.vault.Set(SecretAccessToken, "super-secret-token"); err != nil {
		t.Fatal(err)
	}
	cfg := localConfig()
	cfg.Encrypt = false

	res := env.backup(t, cfg)
	if !res.Success {
		t.Fatal(res.Error)
	}
	_, data, err := env.snaps.Find(res.BackupID)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "super-secret-token") {
		t.Fatal("token value leaked into the backup")
	}
	if !strings.Contains(string(data), `"hasAccessToken":true`) {
		t.Errorf("expected the presence flag in %s", data)
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	cfg.TimeOfDay = "25:00"
	if err := cfg.Validate(); err == nil {
		t.Error("expected time of day validation error")
	}
	cfg = DefaultConfig()
	cfg.CloudProvider = "ftp"
	if err := cfg.Validate(); err == nil {
		t.Error("expected provider validation error")
	}
}

func TestConfigPersistence(t *testing.T) {
	env := newTestEnv(t)
	got, err := LoadConfig(env.db)
	if err != nil {
		t.Fatal(err)
	}
	if got != DefaultConfig() {
		t.Errorf("LoadConfig on empty store = %+v", got)
	}

	cfg := localConfig()
	cfg.Frequency = FrequencyWeekly
	cfg.DayOfWeek = 3
	if err := SaveConfig(env.db, cfg); err != nil {
		t.Fatal(err)
	}
	got, err = LoadConfig(env.db)
	if err != nil || got != cfg {
		t.Errorf("LoadConfig = %+v, %v", got, err)
	}

	cfg.RetainCount = -1
	if err := SaveConfig(env.db, cfg); err == nil {
		t.Error("SaveConfig should reject an invalid policy")
	}

	if err := env.db.Set(KeyConfig, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(env.db); err == nil || !strings.Contains(err.Error(), "load backup config") {
		t.Errorf("LoadConfig on a corrupt row = %v", err)
	}
}
