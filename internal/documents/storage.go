package documents

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Storage abstracts where uploaded files live. The disk implementation
// is the default; an object-store implementation can slot in behind the
// same interface.
type Storage interface {
	Save(ctx context.Context, key string, r io.Reader) (string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Remove(ctx context.Context, path string) error
}

// DiskStorage writes uploads under a local directory.
type DiskStorage struct {
	Dir string
}

func NewDiskStorage(dir string) (*DiskStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStorage{Dir: dir}, nil
}

func (s *DiskStorage) Save(ctx context.Context, key string, r io.Reader) (string, error) {
	path := filepath.Join(s.Dir, filepath.Base(key))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return path, nil
}

func (s *DiskStorage) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	return os.Open(path)
}

func (s *DiskStorage) Remove(ctx context.Context, path string) error {
	return os.Remove(path)
}
