package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSStore is a BlobStore on Google Cloud Storage
type GCSStore struct {
	client *gcs.Client
}

// NewGCSStore connects with application default credentials
func NewGCSStore(ctx context.Context) (*GCSStore, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSStore{client: client}, nil
}

// Put uploads one object
func (s *GCSStore) Put(ctx context.Context, bucket, name string, data []byte) error {
	w := s.client.Bucket(bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("put gs://%s/%s: %w", bucket, name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("put gs://%s/%s: %w", bucket, name, err)
	}
	return nil
}

// Get downloads one object
func (s *GCSStore) Get(ctx context.Context, bucket, name string) ([]byte, error) {
	r, err := s.client.Bucket(bucket).Object(name).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, notFound(bucket, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get gs://%s/%s: %w", bucket, name, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", bucket, name, err)
	}
	return data, nil
}

// Latest downloads the object with the newest creation time
func (s *GCSStore) Latest(ctx context.Context, bucket string) (string, []byte, error) {
	it := s.client.Bucket(bucket).Objects(ctx, nil)
	var latest *gcs.ObjectAttrs
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return "", nil, fmt.Errorf("list gs://%s: %w", bucket, err)
		}
		if latest == nil || attrs.Created.After(latest.Created) {
			latest = attrs
		}
	}
	if latest == nil {
		return "", nil, emptyBucket(bucket)
	}

	data, err := s.Get(ctx, bucket, latest.Name)
	if err != nil {
		return "", nil, err
	}
	return latest.Name, data, nil
}

// Delete removes one object
func (s *GCSStore) Delete(ctx context.Context, bucket, name string) error {
	err := s.client.Bucket(bucket).Object(name).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return notFound(bucket, name)
	}
	if err != nil {
		return fmt.Errorf("delete gs://%s/%s: %w", bucket, name, err)
	}
	return nil
}

// Close releases the client
func (s *GCSStore) Close() error {
	return s.client.Close()
}
