// Package minio wraps the MinIO SDK client for source document storage.
package minio

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	minioopts "github.com/kart-io/ragx/pkg/options/minio"
)

// Client wraps the MinIO SDK client bound to a single bucket.
type Client struct {
	client *minio.Client
	bucket string
}

// New creates a new MinIO client and ensures the configured bucket exists.
func New(ctx context.Context, opts *minioopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("minio options is nil")
	}

	mc, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := mc.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %q: %w", opts.Bucket, err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %q: %w", opts.Bucket, err)
		}
	}

	return &Client{client: mc, bucket: opts.Bucket}, nil
}

// Bucket returns the bucket this client writes to.
func (c *Client) Bucket() string {
	return c.bucket
}

// Upload stores an object and returns its key.
func (c *Client) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := c.client.PutObject(ctx, c.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object %q: %w", key, err)
	}
	return key, nil
}

// Download fetches an object. The caller must close the returned reader.
func (c *Client) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := c.client.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %q: %w", key, err)
	}
	return obj, nil
}

// Remove deletes an object.
func (c *Client) Remove(ctx context.Context, key string) error {
	if err := c.client.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object %q: %w", key, err)
	}
	return nil
}

// PresignedGetURL returns a time-limited download URL for an object.
func (c *Client) PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (*url.URL, error) {
	u, err := c.client.PresignedGetObject(ctx, c.bucket, key, expiry, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to presign object %q: %w", key, err)
	}
	return u, nil
}

// Ping verifies the bucket is still reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.client.BucketExists(ctx, c.bucket); err != nil {
		return fmt.Errorf("minio ping failed: %w", err)
	}
	return nil
}
