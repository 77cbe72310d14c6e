package cache

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/minio/highwayhash"
)

// hashKey is the fixed highwayhash key; keys only need to be stable, not
// secret.
var hashKey = []byte("gmalt-source-identity-key-000000")

// Key derives a cache key from source text and the parameters that affect
// its rewrite.
func Key(source []byte, params ...string) (string, error) {
	h, err := highwayhash.New(hashKey)
	if err != nil {
		return "", fmt.Errorf("creating hash: %w", err)
	}
	h.Write(source)
	for _, p := range params {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Store is an LRU backed by a snapshot file.
type Store struct {
	*LRU
	path string
}

// Open loads the snapshot at path, if any. An empty path gives a purely
// in-memory store.
func Open(path string, opts Options) (*Store, error) {
	s := &Store{LRU: New(opts), path: path}
	if path == "" {
		return s, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening cache %s: %w", path, err)
	}
	defer f.Close()
	if err := s.Load(f); err != nil {
		return nil, fmt.Errorf("loading cache %s: %w", path, err)
	}
	return s, nil
}

// Path returns the snapshot file location.
func (s *Store) Path() string { return s.path }

// Flush writes the snapshot, replacing the previous one atomically.
func (s *Store) Flush() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".cache-*")
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}
	if err := s.Save(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// Remove clears the store and deletes its snapshot file.
func (s *Store) Remove() error {
	s.Clear()
	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing cache %s: %w", s.path, err)
	}
	return nil
}

// FileSize returns the size of the snapshot file, or 0 when there is none.
func (s *Store) FileSize() int64 {
	if s.path == "" {
		return 0
	}
	fi, err := os.Stat(s.path)
	if err != nil {
		return 0
	}
	return fi.Size()
}
