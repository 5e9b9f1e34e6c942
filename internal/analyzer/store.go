package analyzer

import (
	"context"
	"io"
	"os"

	"cloud.google.com/go/storage"

	"snapspend/internal/errs"
)

// ObjectStore holds the durable copy of every canonical receipt image. The
// stored object is the input for expense analysis and is retained for audit.
type ObjectStore interface {
	Put(ctx context.Context, localPath, key, contentType string) error
}

// GCSStore implements ObjectStore on a Google Cloud Storage bucket.
type GCSStore struct {
	bucket *storage.BucketHandle
}

func NewGCSStore(client *storage.Client, bucket string) *GCSStore {
	return &GCSStore{bucket: client.Bucket(bucket)}
}

// Put streams the local file to the bucket under key. Rewriting an existing
// key produces the same object, so the operation is idempotent across
// retries.
func (s *GCSStore) Put(ctx context.Context, localPath, key, contentType string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return &errs.StorageError{Key: key, Err: err}
	}
	defer f.Close()

	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return &errs.StorageError{Key: key, Err: err}
	}
	if err := w.Close(); err != nil {
		return &errs.StorageError{Key: key, Err: err}
	}
	return nil
}
