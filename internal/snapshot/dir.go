package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirBucket stores blobs as files in a single directory.
type DirBucket struct {
	dir string
}

var _ Bucket = (*DirBucket)(nil)

// NewDirBucket creates dir if needed.
func NewDirBucket(dir string) (*DirBucket, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &DirBucket{dir: dir}, nil
}

// Put writes through a temporary file so readers never see a partial blob.
func (b *DirBucket) Put(_ context.Context, name string, data []byte) error {
	tmp, err := os.CreateTemp(b.dir, ".tmp-"+name+"-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(b.dir, name))
}

func (b *DirBucket) Get(_ context.Context, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(b.dir, name))
}

func (b *DirBucket) List(_ context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasPrefix(e.Name(), prefix) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (b *DirBucket) Delete(_ context.Context, name string) error {
	return os.Remove(filepath.Join(b.dir, name))
}
