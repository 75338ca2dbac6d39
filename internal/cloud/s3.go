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
	"io"
	"path"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// s3Prefix namespaces backup objects inside the bucket.
const s3Prefix = "posvault-backups/"

// S3API is the subset of *s3.Client used by S3Adapter.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3ClientFactory builds a client for a credential set.
type S3ClientFactory func(ctx context.Context, creds S3Credentials) (S3API, error)

// S3Adapter stores blobs by bucket and key. Locators are object keys.
type S3Adapter struct {
	factory S3ClientFactory

	mu      sync.Mutex
	clients map[S3Credentials]S3API
}

// NewS3Adapter creates an S3 adapter. A nil factory uses the AWS SDK with
// static credentials; defaultEndpoint applies when the credentials carry none.
func NewS3Adapter(factory S3ClientFactory, defaultEndpoint string) *S3Adapter {
	if factory == nil {
		factory = sdkClientFactory(defaultEndpoint)
	}
	return &S3Adapter{factory: factory, clients: make(map[S3Credentials]S3API)}
}

func sdkClientFactory(defaultEndpoint string) S3ClientFactory {
	return func(ctx context.Context, c S3Credentials) (S3API, error) {
		cfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(c.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				c.AccessKeyID, c.SecretAccessKey, c.SessionToken,
			)),
		)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		endpoint := c.Endpoint
		if endpoint == "" {
			endpoint = defaultEndpoint
		}
		return s3.NewFromConfig(cfg, func(o *s3.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
				o.UsePathStyle = true
			}
		}), nil
	}
}

func (a *S3Adapter) client(ctx context.Context, creds Credentials) (S3API, S3Credentials, error) {
	sc, ok := creds.(S3Credentials)
	if !ok {
		return nil, S3Credentials{}, fmt.Errorf("%w: expected s3 credentials, got %T", ErrInvalidCredentials, creds)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.clients[sc]; ok {
		return c, sc, nil
	}
	c, err := a.factory(ctx, sc)
	if err != nil {
		return nil, sc, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	a.clients[sc] = c
	return c, sc, nil
}

// Upload puts a single object; PutObject is atomic on the service side.
func (a *S3Adapter) Upload(ctx context.Context, creds Credentials, data []byte, name string) (string, error) {
	c, sc, err := a.client(ctx, creds)
	if err != nil {
		return "", err
	}
	key := path.Join(s3Prefix, name)
	_, err = c.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(sc.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/octet-stream"),
		Metadata:      map[string]string{"posvault-app": "backup", "posvault-file": name},
	})
	if err != nil {
		return "", translateS3Error(err)
	}
	return key, nil
}

// Download reads the object at locator.
func (a *S3Adapter) Download(ctx context.Context, creds Credentials, locator string) ([]byte, error) {
	c, sc, err := a.client(ctx, creds)
	if err != nil {
		return nil, err
	}
	out, err := c.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(sc.Bucket), Key: aws.String(locator)})
	if err != nil {
		return nil, translateS3Error(err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read object: %w", ErrProviderUnavailable, err)
	}
	return data, nil
}

// Delete removes the object. A missing key is not an error.
func (a *S3Adapter) Delete(ctx context.Context, creds Credentials, locator string) error {
	c, sc, err := a.client(ctx, creds)
	if err != nil {
		return err
	}
	_, err = c.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(sc.Bucket), Key: aws.String(locator)})
	if err != nil {
		if err = translateS3Error(err); errors.Is(err, ErrObjectNotFound) {
			return nil
		}
		return err
	}
	return nil
}

// List returns every backup key under the prefix.
func (a *S3Adapter) List(ctx context.Context, creds Credentials) ([]string, error) {
	c, sc, err := a.client(ctx, creds)
	if err != nil {
		return nil, err
	}
	var keys []string
	p := s3.NewListObjectsV2Paginator(c, &s3.ListObjectsV2Input{
		Bucket: aws.String(sc.Bucket),
		Prefix: aws.String(s3Prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, translateS3Error(err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// translateS3Error maps smithy API error codes onto the package taxonomy.
func translateS3Error(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NotFound":
		return fmt.Errorf("%w: %s", ErrObjectNotFound, apiErr.ErrorCode())
	case "ExpiredToken", "TokenRefreshRequired", "InvalidAccessKeyId", "SignatureDoesNotMatch", "InvalidToken":
		return fmt.Errorf("%w: %s", ErrAuthExpired, apiErr.ErrorCode())
	case "QuotaExceeded", "ServiceQuotaExceeded", "InsufficientStorage":
		return fmt.Errorf("%w: %s", ErrQuotaExceeded, apiErr.ErrorCode())
	default:
		return fmt.Errorf("%w: %s: %s", ErrProviderUnavailable, apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
}
