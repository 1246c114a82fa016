package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	lockFileName   = ".lock"
	lockRetryDelay = 50 * time.Millisecond
)

var _ Backend = (*File)(nil)
var _ Batcher = (*File)(nil)

// File stores each key as a file in a directory. An advisory lock on
// dir/.lock serialises writers across processes; readers take a shared lock.
type File struct {
	dir string
	flk *flock.Flock

	mu     sync.Mutex
	closed bool
}

// OpenFile opens (and creates if missing) the data directory at dir.
func OpenFile(dir string) (*File, error) {
	if dir == "" {
		return nil, errors.New("data dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return &File{
		dir: dir,
		flk: flock.New(filepath.Join(dir, lockFileName)),
	}, nil
}

// Dir returns the data directory.
func (f *File) Dir() string { return f.dir }

func (f *File) Get(ctx context.Context, key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return "", false, ErrClosed
	}

	locked, err := f.flk.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return "", false, fmt.Errorf("lock %s: %w", f.dir, err)
	}
	if !locked {
		return "", false, fmt.Errorf("lock %s: not acquired", f.dir)
	}
	defer func() { _ = f.flk.Unlock() }()

	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return string(data), true, nil
}

func (f *File) Set(ctx context.Context, key, value string) error {
	return f.SetMany(ctx, map[string]string{key: value})
}

// SetMany writes all values while holding the exclusive lock. Each file is
// replaced atomically through a rename.
func (f *File) SetMany(ctx context.Context, values map[string]string) error {
	for k := range values {
		if err := validateKey(k); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	locked, err := f.flk.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock %s: %w", f.dir, err)
	}
	if !locked {
		return fmt.Errorf("lock %s: not acquired", f.dir)
	}
	defer func() { _ = f.flk.Unlock() }()

	for k, v := range values {
		if err := writeFileAtomic(f.path(k), []byte(v)); err != nil {
			return fmt.Errorf("write %s: %w", k, err)
		}
	}
	return nil
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return f.flk.Close()
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, key)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
