// Package scanner finds the Python sources under a directory, honoring
// gitignore-style .gmaltignore files.
package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// FileInfo represents a discovered source file.
type FileInfo struct {
	Path     string // Relative path from root, slash-separated
	FullPath string // Absolute path
	Size     int64  // File size in bytes
}

// Options configures the scanner behavior.
type Options struct {
	SkipHidden      bool     // Skip hidden files and directories (starting with .)
	DefaultExcludes []string // Directory names never entered
	IgnoreFileName  string   // Name of the ignore file (default: .gmaltignore)
	Extensions      []string // Source file extensions to report
}

// DefaultOptions returns scanner options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		SkipHidden:     true,
		IgnoreFileName: ".gmaltignore",
		Extensions:     []string{".py"},
		DefaultExcludes: []string{
			"__pycache__",
			".git",
			".hg",
			".svn",
			".venv",
			"venv",
			".tox",
			".nox",
			".mypy_cache",
			".pytest_cache",
			"node_modules",
			"build",
			"dist",
			"site-packages",
		},
	}
}

// Scanner walks a directory tree.
type Scanner struct {
	opts Options
}

// New creates a new Scanner with the given options.
func New(opts Options) *Scanner {
	if opts.IgnoreFileName == "" {
		opts.IgnoreFileName = ".gmaltignore"
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".py"}
	}
	return &Scanner{opts: opts}
}

// Scan returns the source files under root in lexical order. Ignore files
// found in subdirectories apply to their own subtree.
func (s *Scanner) Scan(root string) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}

	ig := &Ignore{}
	var files []FileInfo
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == absRoot {
				return err
			}
			return nil
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && s.skipDir(d.Name(), rel, ig) {
				return filepath.SkipDir
			}
			base := rel
			if base == "." {
				base = ""
			}
			if err := s.loadIgnore(ig, path, base); err != nil {
				return fmt.Errorf("loading ignore patterns: %w", err)
			}
			return nil
		}

		if s.opts.SkipHidden && isHidden(d.Name()) {
			return nil
		}
		if !d.Type().IsRegular() || !s.IsSource(path) || ig.Ignored(rel, false) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, FileInfo{Path: rel, FullPath: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}
	return files, nil
}

// IsSource reports whether path has one of the configured extensions.
func (s *Scanner) IsSource(path string) bool {
	return slices.Contains(s.opts.Extensions, strings.ToLower(filepath.Ext(path)))
}

func (s *Scanner) skipDir(name, rel string, ig *Ignore) bool {
	if s.opts.SkipHidden && isHidden(name) {
		return true
	}
	for _, exclude := range s.opts.DefaultExcludes {
		if strings.EqualFold(name, exclude) {
			return true
		}
	}
	return ig.Ignored(rel, true)
}

func (s *Scanner) loadIgnore(ig *Ignore, dir, base string) error {
	f, err := os.Open(filepath.Join(dir, s.opts.IgnoreFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	return ig.Add(base, f)
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Scan is a convenience function that scans a directory with default options.
func Scan(root string) ([]FileInfo, error) {
	return New(DefaultOptions()).Scan(root)
}
