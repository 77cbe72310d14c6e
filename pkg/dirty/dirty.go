// Package dirty tracks which source files changed since they were last
// rewritten, so directory rewrites only redo the files that are stale.
package dirty

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/l3aro/go-malt/pkg/cache"
)

// DefaultFile is the default location of the tracker state.
const DefaultFile = ".gmalt/dirty.msgpack"

// stateVersion is bumped when fileState changes incompatibly.
const stateVersion = 1

// fileState represents the dirty state of a single file.
type fileState struct {
	Path     string `msgpack:"path"`
	Hash     string `msgpack:"hash"`
	IsDirty  bool   `msgpack:"dirty"`
	LastSeen int64  `msgpack:"last_seen"` // Unix timestamp
}

// dirtyData is the on-disk structure.
type dirtyData struct {
	Version int         `msgpack:"version"`
	Files   []fileState `msgpack:"files"`
}

// Tracker tracks dirty files based on content hashing.
type Tracker struct {
	mu     sync.RWMutex
	files  map[string]fileState
	path   string
	params []string
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithPath sets the state file location.
func WithPath(path string) Option {
	return func(t *Tracker) {
		t.path = path
	}
}

// WithParams mixes rewrite options into every hash, so a file rewritten
// under different options counts as changed.
func WithParams(params ...string) Option {
	return func(t *Tracker) {
		t.params = params
	}
}

// New creates a new Tracker with optional configuration.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		files: make(map[string]fileState),
		path:  DefaultFile,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Open creates a Tracker and loads its saved state, if any.
func Open(opts ...Option) (*Tracker, error) {
	t := New(opts...)
	if err := t.Load(); err != nil {
		return nil, err
	}
	return t, nil
}

// Path returns the state file location.
func (t *Tracker) Path() string { return t.path }

func (t *Tracker) computeHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return cache.Key(data, t.params...)
}

// CheckAndMark hashes the file and reports whether it needs rewriting: it
// is new, its content or the options changed, or its last rewrite did not
// complete. Such files are marked dirty.
func (t *Tracker) CheckAndMark(path string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to get absolute path: %w", err)
	}
	hash, err := t.computeHash(absPath)
	if err != nil {
		return false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	existing, exists := t.files[absPath]
	if exists && existing.Hash == hash && !existing.IsDirty {
		existing.LastSeen = time.Now().Unix()
		t.files[absPath] = existing
		return false, nil
	}
	t.files[absPath] = fileState{
		Path:     absPath,
		Hash:     hash,
		IsDirty:  true,
		LastSeen: time.Now().Unix(),
	}
	return true, nil
}

// CheckAndMarkContext is CheckAndMark with context support.
func (t *Tracker) CheckAndMarkContext(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return t.CheckAndMark(path)
}

// IsDirty checks if a file is currently marked as dirty.
func (t *Tracker) IsDirty(path string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	state, exists := t.files[absPath]
	return exists && state.IsDirty
}

// DirtyFiles returns the files currently marked as dirty, sorted.
func (t *Tracker) DirtyFiles() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var result []string
	for _, state := range t.files {
		if state.IsDirty {
			result = append(result, state.Path)
		}
	}
	slices.Sort(result)
	return result
}

// ClearDirty clears the dirty flag for the given files after they were
// rewritten. With no files, every flag is cleared.
func (t *Tracker) ClearDirty(files ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(files) == 0 {
		for p, state := range t.files {
			state.IsDirty = false
			t.files[p] = state
		}
		return
	}
	for _, path := range files {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		if state, exists := t.files[absPath]; exists {
			state.IsDirty = false
			t.files[absPath] = state
		}
	}
}

// Count returns the number of dirty files.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, state := range t.files {
		if state.IsDirty {
			count++
		}
	}
	return count
}

// TotalCount returns the total number of tracked files.
func (t *Tracker) TotalCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.files)
}

// Remove removes a file from tracking.
func (t *Tracker) Remove(path string) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.files, absPath)
}

// Prune forgets files that no longer exist and returns how many were
// dropped.
func (t *Tracker) Prune() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for p := range t.files {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			delete(t.files, p)
			n++
		}
	}
	return n
}

// Save persists the state, creating its directory as needed.
func (t *Tracker) Save() error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	f, err := os.Create(t.path)
	if err != nil {
		return fmt.Errorf("failed to create state file: %w", err)
	}
	if err := t.SaveTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load restores the state file. A missing file leaves the tracker empty,
// and so does a file written by an incompatible version.
func (t *Tracker) Load() error {
	f, err := os.Open(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open state file: %w", err)
	}
	defer f.Close()
	return t.LoadFrom(f)
}

// SaveTo writes the state to w.
func (t *Tracker) SaveTo(w io.Writer) error {
	t.mu.RLock()
	data := dirtyData{Version: stateVersion, Files: make([]fileState, 0, len(t.files))}
	for _, state := range t.files {
		data.Files = append(data.Files, state)
	}
	t.mu.RUnlock()

	if err := msgpack.NewEncoder(w).Encode(&data); err != nil {
		return fmt.Errorf("failed to encode dirty data: %w", err)
	}
	return nil
}

// LoadFrom reads the state from r, replacing the tracked files.
func (t *Tracker) LoadFrom(r io.Reader) error {
	var data dirtyData
	if err := msgpack.NewDecoder(r).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode dirty data: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.files = make(map[string]fileState, len(data.Files))
	if data.Version != stateVersion {
		return nil
	}
	for _, state := range data.Files {
		t.files[state.Path] = state
	}
	return nil
}
