package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStore persists objects on disk, mirroring bucket/key layout. It backs
// development setups and tests where no S3-compatible store is available.
type LocalStore struct {
	root string
}

// NewLocalStore creates a local object store rooted at dir.
func NewLocalStore(root string) *LocalStore {
	if root == "" {
		root = filepath.Join(os.TempDir(), "sageworks-store")
	}
	_ = os.MkdirAll(root, 0o755)
	return &LocalStore{root: root}
}

func (s *LocalStore) bucketPath(bucket string) string {
	return filepath.Join(s.root, bucket)
}

func (s *LocalStore) objectPath(bucket, key string) string {
	return filepath.Join(s.bucketPath(bucket), filepath.FromSlash(key))
}

// Ping verifies the root directory is usable.
func (s *LocalStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.MkdirAll(s.root, 0o755)
}

// EnsureBucket creates the bucket directory.
func (s *LocalStore) EnsureBucket(ctx context.Context, bucket string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if bucket == "" {
		return fmt.Errorf("bucket name is required")
	}
	return os.MkdirAll(s.bucketPath(bucket), 0o755)
}

// PutObject writes an object file, creating parent directories as needed.
func (s *LocalStore) PutObject(ctx context.Context, bucket, key string, data []byte) error {
	if err := s.EnsureBucket(ctx, bucket); err != nil {
		return err
	}
	path := s.objectPath(bucket, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write object %q: %w", key, err)
	}
	return nil
}

// GetObject reads an object file.
func (s *LocalStore) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.objectPath(bucket, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read object %q: %w", key, err)
	}
	return data, nil
}

// StatObject returns object metadata.
func (s *LocalStore) StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(s.objectPath(bucket, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to stat object %q: %w", key, err)
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}
	return &ObjectInfo{Key: key, SizeBytes: info.Size(), LastModified: info.ModTime()}, nil
}

// ListPrefix walks the bucket directory and returns objects under the prefix.
func (s *LocalStore) ListPrefix(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := s.bucketPath(bucket)
	var infos []ObjectInfo
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		infos = append(infos, ObjectInfo{Key: key, SizeBytes: fi.Size(), LastModified: fi.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list prefix %q: %w", prefix, err)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// RemoveObject deletes an object file.
func (s *LocalStore) RemoveObject(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(s.objectPath(bucket, key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove object %q: %w", key, err)
	}
	return nil
}

// RemovePrefix deletes all objects under a prefix.
func (s *LocalStore) RemovePrefix(ctx context.Context, bucket, prefix string) error {
	infos, err := s.ListPrefix(ctx, bucket, prefix)
	if err != nil {
		return err
	}
	for _, info := range infos {
		if err := s.RemoveObject(ctx, bucket, info.Key); err != nil {
			return err
		}
	}
	return nil
}
