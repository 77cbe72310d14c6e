package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/l3aro/go-malt/internal/scanner"
	"github.com/l3aro/go-malt/pkg/cache"
	"github.com/l3aro/go-malt/pkg/transpiler"
)

// openTransformer creates a transformer backed by the configured cache. The
// returned func flushes the cache and must be called when done.
func openTransformer() (*transpiler.Transformer, func() error, error) {
	if settings.CachePath == "" {
		t := transpiler.New(transpiler.Config{Logger: logger})
		return t, func() error { return nil }, nil
	}
	store, err := openCache()
	if err != nil {
		return nil, nil, err
	}
	t := transpiler.New(transpiler.Config{Cache: store, Logger: logger})
	return t, t.Flush, nil
}

func openCache() (*cache.Store, error) {
	store, err := cache.Open(settings.CachePath, cache.Options{MaxEntries: settings.CacheMaxEntries})
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return store, nil
}

// readPythonFile reads a single .py file.
func readPythonFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, expected a file: %s", path)
	}
	if !isPythonFile(path) {
		return nil, fmt.Errorf("unsupported file type: %s (only .py files supported)", path)
	}
	return os.ReadFile(path)
}

// sourceFiles resolves path to the Python files it denotes: the file itself,
// or every source under a directory honoring the configured ignore file.
func sourceFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}
	if !info.IsDir() {
		if !isPythonFile(path) {
			return nil, fmt.Errorf("unsupported file type: %s (only .py files supported)", path)
		}
		return []string{path}, nil
	}
	opts := scanner.DefaultOptions()
	if settings.IgnoreFile != "" {
		opts.IgnoreFileName = settings.IgnoreFile
	}
	files, err := scanner.New(opts).Scan(path)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = filepath.Join(path, filepath.FromSlash(f.Path))
	}
	return out, nil
}

// isPythonFile checks if the file has a .py extension.
func isPythonFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".py")
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
