// Package storage provides the key-value backends the ledger persists to.
//
// A backend is an opaque string store. The ledger owns the encoding of every
// value; backends only move bytes.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kinds accepted by Open.
const (
	KindSQLite = "sqlite"
	KindFile   = "file"
	KindMemory = "memory"
)

var (
	// ErrInvalidKey is returned for keys that are empty or contain path separators.
	ErrInvalidKey = errors.New("invalid key")

	// ErrClosed is returned by operations on a closed backend.
	ErrClosed = errors.New("backend closed")
)

// Backend is a key-value store holding string values.
type Backend interface {
	// Get returns the value stored under key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Close releases the backend's resources.
	Close() error
}

// Batcher is implemented by backends that can write several keys atomically.
type Batcher interface {
	SetMany(ctx context.Context, values map[string]string) error
}

// SetAll writes every entry of values, atomically when b supports it.
func SetAll(ctx context.Context, b Backend, values map[string]string) error {
	if bb, ok := b.(Batcher); ok {
		return bb.SetMany(ctx, values)
	}
	for k, v := range values {
		if err := b.Set(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

// Open constructs the backend of the given kind. path is the database file for
// sqlite and the data directory for file; memory ignores it.
func Open(kind, path string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindSQLite, "":
		return OpenSQLite(path)
	case KindFile:
		return OpenFile(path)
	case KindMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
