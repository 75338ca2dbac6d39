// PosVault - Point-of-Sale Backup & Recovery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/posvault

package cloud

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/goccy/go-json"
)

func TestClassifyResponse(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   error
	}{
		{401, "", ErrAuthExpired},
		{403, `{"error":{"errors":[{"reason":"storageQuotaExceeded"}]}}`, ErrQuotaExceeded},
		{403, "forbidden", ErrProviderUnavailable},
		{507, "", ErrQuotaExceeded},
		{409, `{"error_summary":"path/insufficient_space/"}`, ErrQuotaExceeded},
		{409, `{"error_summary":"path_lookup/not_found/"}`, ErrObjectNotFound},
		{404, "", ErrObjectNotFound},
		{500, "", ErrProviderUnavailable},
	}
	for _, tt := range tests {
		if err := classifyResponse(tt.status, []byte(tt.body)); !errors.Is(err, tt.want) {
			t.Errorf("classifyResponse(%d, %q) = %v, want %v", tt.status, tt.body, err, tt.want)
		}
	}
}

// fakeDrive implements the slice of the Drive v3 API the adapter uses.
type fakeDrive struct {
	mu    sync.Mutex
	files map[string][]byte
	props map[string]map[string]string
	next  int
}

func (d *fakeDrive) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload/files", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer drive-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil {
			t.Errorf("content type: %v", err)
		}
		mr := multipart.NewReader(r.Body, params["boundary"])
		metaPart, _ := mr.NextPart()
		var meta struct {
			Parents       []string          `json:"parents"`
			AppProperties map[string]string `json:"appProperties"`
		}
		_ = json.NewDecoder(metaPart).Decode(&meta)
		mediaPart, _ := mr.NextPart()
		data, _ := io.ReadAll(mediaPart)

		d.mu.Lock()
		d.next++
		id := "file" + string(rune('0'+d.next))
		d.files[id] = data
		d.props[id] = meta.AppProperties
		d.mu.Unlock()

		if len(meta.Parents) != 1 || meta.Parents[0] != "appDataFolder" {
			t.Errorf("parents = %v", meta.Parents)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
	})
	mux.HandleFunc("GET /api/files/{id}", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		data, ok := d.files[r.PathValue("id")]
		d.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(data)
	})
	mux.HandleFunc("DELETE /api/files/{id}", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		if _, ok := d.files[r.PathValue("id")]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(d.files, r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/files", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("spaces") != "appDataFolder" {
			t.Errorf("spaces = %q", r.URL.Query().Get("spaces"))
		}
		d.mu.Lock()
		defer d.mu.Unlock()
		var files []map[string]string
		for id := range d.files {
			files = append(files, map[string]string{"id": id})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"files": files})
	})
	return mux
}

func TestDriveAdapter(t *testing.T) {
	fake := &fakeDrive{files: map[string][]byte{}, props: map[string]map[string]string{}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	a := NewDriveAdapter(srv.Client(), srv.URL+"/api", srv.URL+"/upload")
	creds := DriveCredentials{AccessToken: "drive-token"}
	ctx := context.Background()

	id, err := a.Upload(ctx, creds, []byte("sealed"), "backup_1.json.enc")
	if err != nil {
		t.Fatal(err)
	}
	if fake.props[id]["posvault"] != "backup" {
		t.Errorf("app properties = %v", fake.props[id])
	}
	data, err := a.Download(ctx, creds, id)
	if err != nil || string(data) != "sealed" {
		t.Fatalf("Download = %q, %v", data, err)
	}
	ids, err := a.List(ctx, creds)
	if err != nil || len(ids) != 1 {
		t.Fatalf("List = %v, %v", ids, err)
	}
	if err := a.Delete(ctx, creds, id); err != nil {
		t.Fatal(err)
	}
	if err := a.Delete(ctx, creds, id); err != nil {
		t.Errorf("deleting a missing file should succeed: %v", err)
	}
	if _, err := a.Download(ctx, creds, id); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}

	_, err = a.Upload(ctx, DriveCredentials{AccessToken: "stale"}, []byte("x"), "n")
	if !errors.Is(err, ErrAuthExpired) {
		t.Errorf("expected ErrAuthExpired, got %v", err)
	}
	if _, err := a.Upload(ctx, DropboxCredentials{AccessToken: "x"}, nil, "n"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestDriveAdapterTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	a := NewDriveAdapter(srv.Client(), srv.URL, srv.URL)
	_, err := a.Upload(context.Background(), DriveCredentials{AccessToken: "t"}, []byte("x"), "n")
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}

// fakeDropbox implements the slice of the Dropbox v2 API the adapter uses.
type fakeDropbox struct {
	mu    sync.Mutex
	files map[string][]byte
	quota bool
}

func (d *fakeDropbox) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /content/files/upload", func(w http.ResponseWriter, r *http.Request) {
		if d.quota {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error_summary":"path/insufficient_space/.."}`))
			return
		}
		var arg struct {
			Path string `json:"path"`
		}
		_ = json.Unmarshal([]byte(r.Header.Get("Dropbox-API-Arg")), &arg)
		data, _ := io.ReadAll(r.Body)
		p := strings.ToLower(arg.Path)
		d.mu.Lock()
		d.files[p] = data
		d.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{".tag": "file", "path_lower": p})
	})
	mux.HandleFunc("POST /content/files/download", func(w http.ResponseWriter, r *http.Request) {
		var arg struct {
			Path string `json:"path"`
		}
		_ = json.Unmarshal([]byte(r.Header.Get("Dropbox-API-Arg")), &arg)
		d.mu.Lock()
		data, ok := d.files[arg.Path]
		d.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error_summary":"path/not_found/"}`))
			return
		}
		_, _ = w.Write(data)
	})
	mux.HandleFunc("POST /api/files/delete_v2", func(w http.ResponseWriter, r *http.Request) {
		var arg struct {
			Path string `json:"path"`
		}
		_ = json.NewDecoder(r.Body).Decode(&arg)
		d.mu.Lock()
		defer d.mu.Unlock()
		if _, ok := d.files[arg.Path]; !ok {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error_summary":"path_lookup/not_found/"}`))
			return
		}
		delete(d.files, arg.Path)
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("POST /api/files/list_folder", func(w http.ResponseWriter, _ *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		var entries []map[string]string
		for p := range d.files {
			entries = append(entries, map[string]string{".tag": "file", "path_lower": p})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"entries": entries, "has_more": false})
	})
	return mux
}

func TestDropboxAdapter(t *testing.T) {
	fake := &fakeDropbox{files: map[string][]byte{}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	a := NewDropboxAdapter(srv.Client(), srv.URL+"/api", srv.URL+"/content")
	creds := DropboxCredentials{AccessToken: "t"}
	ctx := context.Background()

	loc, err := a.Upload(ctx, creds, []byte("blob"), "Backup_1.json")
	if err != nil {
		t.Fatal(err)
	}
	if loc != "/posvault-backups/backup_1.json" {
		t.Errorf("locator = %q", loc)
	}
	data, err := a.Download(ctx, creds, loc)
	if err != nil || string(data) != "blob" {
		t.Fatalf("Download = %q, %v", data, err)
	}
	paths, err := a.List(ctx, creds)
	if err != nil || len(paths) != 1 {
		t.Fatalf("List = %v, %v", paths, err)
	}
	if err := a.Delete(ctx, creds, loc); err != nil {
		t.Fatal(err)
	}
	if err := a.Delete(ctx, creds, loc); err != nil {
		t.Errorf("deleting a missing file should succeed: %v", err)
	}

	fake.quota = true
	if _, err := a.Upload(ctx, creds, []byte("x"), "n"); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("expected ErrQuotaExceeded, got %v", err)
	}
}

// fakeS3 is an in-memory S3API.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]map[string]string
	putErr  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, _ := io.ReadAll(in.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	f.meta[aws.ToString(in.Key)] = in.Metadata
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "missing"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &s3.ListObjectsV2Output{}
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
		}
	}
	return out, nil
}

func TestS3Adapter(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, meta: map[string]map[string]string{}}
	builds := 0
	a := NewS3Adapter(func(context.Context, S3Credentials) (S3API, error) {
		builds++
		return fake, nil
	}, "")
	creds := S3Credentials{AccessKeyID: "a", SecretAccessKey: "s", Bucket: "b", Region: "us-east-1"}
	ctx := context.Background()

	key, err := a.Upload(ctx, creds, []byte("blob"), "backup_1.json.enc")
	if err != nil {
		t.Fatal(err)
	}
	if key != "posvault-backups/backup_1.json.enc" || fake.meta[key]["posvault-app"] != "backup" {
		t.Errorf("key = %q meta = %v", key, fake.meta[key])
	}
	data, err := a.Download(ctx, creds, key)
	if err != nil || string(data) != "blob" {
		t.Fatalf("Download = %q, %v", data, err)
	}
	keys, err := a.List(ctx, creds)
	if err != nil || len(keys) != 1 {
		t.Fatalf("List = %v, %v", keys, err)
	}
	if err := a.Delete(ctx, creds, key); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Download(ctx, creds, key); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
	if builds != 1 {
		t.Errorf("client built %d times, want 1", builds)
	}

	fake.putErr = &smithy.GenericAPIError{Code: "ExpiredToken"}
	if _, err := a.Upload(ctx, creds, []byte("x"), "n"); !errors.Is(err, ErrAuthExpired) {
		t.Errorf("expected ErrAuthExpired, got %v", err)
	}
	fake.putErr = errors.New("dial tcp: refused")
	if _, err := a.Upload(ctx, creds, []byte("x"), "n"); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}
