package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore maps every bucket to a directory under root
type LocalStore struct {
	root string
}

// NewLocalStore creates root if needed
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) path(bucket, name string) (string, error) {
	if err := checkName("bucket", bucket); err != nil {
		return "", err
	}
	if err := checkName("object", name); err != nil {
		return "", err
	}
	return filepath.Join(s.root, bucket, name), nil
}

// Put writes the object through a temp file and rename
func (s *LocalStore) Put(ctx context.Context, bucket, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(bucket, name)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, name, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("put %s/%s: %w", bucket, name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, name, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, name, err)
	}
	return nil
}

// Get reads one object
func (s *LocalStore) Get(ctx context.Context, bucket, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(bucket, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(bucket, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", bucket, name, err)
	}
	return data, nil
}

// Latest picks the object with the newest modification time; ties go to
// the greater name.
func (s *LocalStore) Latest(ctx context.Context, bucket string) (string, []byte, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	if err := checkName("bucket", bucket); err != nil {
		return "", nil, err
	}

	entries, err := os.ReadDir(filepath.Join(s.root, bucket))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil, emptyBucket(bucket)
	}
	if err != nil {
		return "", nil, fmt.Errorf("list %s: %w", bucket, err)
	}

	var latest fs.FileInfo
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return "", nil, fmt.Errorf("list %s: %w", bucket, err)
		}
		if latest == nil || info.ModTime().After(latest.ModTime()) ||
			(info.ModTime().Equal(latest.ModTime()) && info.Name() > latest.Name()) {
			latest = info
		}
	}
	if latest == nil {
		return "", nil, emptyBucket(bucket)
	}

	data, err := s.Get(ctx, bucket, latest.Name())
	if err != nil {
		return "", nil, err
	}
	return latest.Name(), data, nil
}

// Delete removes one object
func (s *LocalStore) Delete(ctx context.Context, bucket, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(bucket, name)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return notFound(bucket, name)
	}
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", bucket, name, err)
	}
	return nil
}
