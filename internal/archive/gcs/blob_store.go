// Package gcs implements a Google Cloud Storage archive.
package gcs

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// BlobStore writes delivered images to a GCS bucket. Authentication is
// handled via Application Default Credentials.
type BlobStore struct {
	client *storage.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// New initializes a GCS client and verifies the bucket is reachable, so a
// misconfigured deployment fails at startup rather than mid-run.
func New(ctx context.Context, bucket string, prefix string, logger *zap.Logger) (*BlobStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("gcs client close failed after bucket check", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("get gcs bucket %q attributes: %w", bucket, err)
	}
	return &BlobStore{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}, nil
}

// Save uploads data to the bucket and returns a gs:// URI.
func (s *BlobStore) Save(ctx context.Context, objectName string, data []byte) (string, error) {
	name := objectName
	if s.prefix != "" {
		name = s.prefix + "/" + objectName
	}
	wc := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	if _, err := wc.Write(data); err != nil {
		if closeErr := wc.Close(); closeErr != nil {
			s.logger.Warn("gcs writer close failed after write failure", zap.Error(closeErr))
		}
		return "", fmt.Errorf("write gcs object %s: %w", name, err)
	}
	// Close finalizes the upload; the object does not exist until it returns.
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("close gcs writer for object %s: %w", name, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, name), nil
}

// Close releases the underlying client.
func (s *BlobStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close gcs client: %w", err)
	}
	return nil
}
