// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package cloud

import (
	"errors"
	"testing"
	"time"
)

func TestParseProvider(t *testing.T) {
	for _, p := range Providers {
		got, err := ParseProvider(string(p))
		if err != nil || got != p {
			t.Errorf("ParseProvider(%q) = %q, %v", p, got, err)
		}
	}
	if _, err := ParseProvider("ftp"); !errors.Is(err, ErrUnsupportedProvider) {
		t.Errorf("expected ErrUnsupportedProvider, got %v", err)
	}
	if ProviderLocal.IsRemote() || !ProviderS3.IsRemote() {
		t.Error("IsRemote mismatch")
	}
}

func TestCredentialRoundTrip(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []Credentials{
		DriveCredentials{AccessToken: "ya29", RefreshToken: "1//r", ExpiresAt: exp},
		DropboxCredentials{AccessToken: "sl.abc"},
		S3Credentials{AccessKeyID: "AKIA", SecretAccessKey: "s", Bucket: "b", Region: "eu-west-1"},
	}
	for _, c := range cases {
		data, err := MarshalCredentials(c)
		if err != nil {
			t.Fatalf("marshal %T: %v", c, err)
		}
		got, err := UnmarshalCredentials(data)
		if err != nil {
			t.Fatalf("unmarshal %T: %v", c, err)
		}
		if got.Provider() != c.Provider() || !got.Expiry().Equal(c.Expiry()) {
			t.Errorf("round trip mismatch: %#v vs %#v", got, c)
		}
	}
}

func TestUnmarshalCredentialsRejectsMismatchedTag(t *testing.T) {
	if _, err := UnmarshalCredentials([]byte(`{"provider":"s3","gdrive":{"access_token":"x"}}`)); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestDecodeCredentials(t *testing.T) {
	got, err := DecodeCredentials(ProviderS3, []byte(`{"access_key_id":"AKIA","secret_access_key":"s","bucket":"b","region":"us-east-1"}`))
	if err != nil {
		t.Fatalf("DecodeCredentials: %v", err)
	}
	s3c, ok := got.(S3Credentials)
	if !ok || s3c.Bucket != "b" {
		t.Fatalf("got %#v", got)
	}
	if _, err := DecodeCredentials(ProviderGDrive, []byte(`{"access_token":`)); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := DecodeCredentials(ProviderLocal, []byte(`{}`)); !errors.Is(err, ErrLocalProvider) {
		t.Errorf("expected ErrLocalProvider, got %v", err)
	}
	if _, err := DecodeCredentials(Provider("ftp"), []byte(`{}`)); !errors.Is(err, ErrUnsupportedProvider) {
		t.Errorf("expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestValidateCredentials(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
		ok    bool
	}{
		{"drive ok", DriveCredentials{AccessToken: "t"}, true},
		{"drive missing token", DriveCredentials{}, false},
		{"s3 ok", S3Credentials{AccessKeyID: "a", SecretAccessKey: "s", Bucket: "b", Region: "r"}, true},
		{"s3 missing bucket", S3Credentials{AccessKeyID: "a", SecretAccessKey: "s", Region: "r"}, false},
		{"s3 missing region", S3Credentials{AccessKeyID: "a", SecretAccessKey: "s", Bucket: "b"}, false},
		{"s3 bad endpoint", S3Credentials{AccessKeyID: "a", SecretAccessKey: "s", Bucket: "b", Region: "r", Endpoint: "not a url"}, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCredentials(tt.creds)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestCredentialStore(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cs := newTestCredentialStore(t, func() time.Time { return now })

	if _, err := cs.Get(ProviderGDrive); !errors.Is(err, ErrCredentialsNotFound) {
		t.Fatalf("expected ErrCredentialsNotFound, got %v", err)
	}
	if err := cs.Save(DriveCredentials{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	if err := cs.Save(DriveCredentials{AccessToken: "t", ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}
	got, err := cs.Get(ProviderGDrive)
	if err != nil {
		t.Fatal(err)
	}
	if got.(DriveCredentials).AccessToken != "t" {
		t.Errorf("unexpected credentials %#v", got)
	}

	if err := cs.Save(DropboxCredentials{AccessToken: "d", ExpiresAt: now.Add(-time.Minute)}); err != nil {
		t.Fatal(err)
	}
	if _, err := cs.Get(ProviderDropbox); !errors.Is(err, ErrCredentialsExpired) {
		t.Fatalf("expected ErrCredentialsExpired, got %v", err)
	}

	if err := cs.Remove(ProviderGDrive); err != nil {
		t.Fatal(err)
	}
	if _, err := cs.Get(ProviderGDrive); !errors.Is(err, ErrCredentialsNotFound) {
		t.Fatalf("expected ErrCredentialsNotFound after remove, got %v", err)
	}
}
