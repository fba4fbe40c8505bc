// Package storage keeps training data and trained models as named objects
// grouped in buckets.
package storage

import (
	"context"
	"fmt"
	"strings"

	"flight-delay/internal/models"
)

// BlobStore is a bucketed object store. Missing objects are reported
// with models.ErrNotFound.
type BlobStore interface {
	Put(ctx context.Context, bucket, name string, data []byte) error
	Get(ctx context.Context, bucket, name string) ([]byte, error)
	// Latest returns the most recently created object of the bucket
	Latest(ctx context.Context, bucket string) (name string, data []byte, err error)
	Delete(ctx context.Context, bucket, name string) error
}

func checkName(kind, name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: invalid %s name %q", models.ErrValidation, kind, name)
	}
	return nil
}

func notFound(bucket, name string) error {
	return fmt.Errorf("%w: object %s/%s", models.ErrNotFound, bucket, name)
}

func emptyBucket(bucket string) error {
	return fmt.Errorf("%w: bucket %s has no objects", models.ErrNotFound, bucket)
}
