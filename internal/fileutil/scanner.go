package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

// ErrBadPattern is returned when one of the glob patterns cannot be parsed.
var ErrBadPattern = errors.New("invalid file pattern")

// ScanOptions configures the directory scanning behavior
type ScanOptions struct {
	// Patterns are slash-separated glob patterns relative to the scanned directory
	// (e.g., "**/*.txt"). A file matching any pattern is included once.
	Patterns []string
	// FollowSymlinks traverses symbolic links. When disabled, links are neither
	// traversed nor reported.
	FollowSymlinks bool
	// ExcludeDirs is a list of directory names to skip (e.g., ".git", "node_modules")
	ExcludeDirs []string
}

// ScanResult contains the results of a directory scan
type ScanResult struct {
	// Files contains slash-separated paths relative to the scanned directory, sorted
	Files []string
	// Errors contains any errors encountered during scanning
	Errors []error
}

// SplitPatterns splits a comma-separated pattern list into trimmed, non-empty
// glob patterns. A trailing "/" selects everything below a directory.
func SplitPatterns(pattern string) []string {
	var patterns []string
	for _, p := range strings.Split(pattern, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		p = filepath.ToSlash(p)
		p = strings.TrimPrefix(p, "./")
		if strings.HasSuffix(p, "/") {
			p += "**"
		}
		patterns = append(patterns, p)
	}
	return patterns
}

// ValidatePatterns reports the first pattern that doublestar cannot parse.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("%w: %q", ErrBadPattern, p)
		}
	}
	return nil
}

// ScanDirectory walks dir on fsys and collects every regular file whose relative
// path matches one of opts.Patterns.
func ScanDirectory(fsys afero.Fs, dir string, opts ScanOptions) (*ScanResult, error) {
	if err := ValidatePatterns(opts.Patterns); err != nil {
		return nil, err
	}

	info, err := fsys.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	s := &scanner{
		fsys:     fsys,
		opts:     opts,
		excludes: make(map[string]bool),
		seen:     make(map[string]bool),
		result: &ScanResult{
			Files:  make([]string, 0),
			Errors: make([]error, 0),
		},
	}
	for _, name := range opts.ExcludeDirs {
		s.excludes[name] = true
	}

	s.walk(dir, "", []os.FileInfo{info})

	sort.Strings(s.result.Files)
	return s.result, nil
}

type scanner struct {
	fsys     afero.Fs
	opts     ScanOptions
	excludes map[string]bool
	seen     map[string]bool
	result   *ScanResult
}

// walk visits the entries of dir. ancestors holds the directory infos on the
// current path and is used to break symbolic link cycles.
func (s *scanner) walk(dir, rel string, ancestors []os.FileInfo) {
	entries, err := afero.ReadDir(s.fsys, dir)
	if err != nil {
		s.result.Errors = append(s.result.Errors, fmt.Errorf("error accessing %s: %w", dir, err))
		return
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		relPath := entry.Name()
		if rel != "" {
			relPath = rel + "/" + entry.Name()
		}

		info := entry
		if entry.Mode()&os.ModeSymlink != 0 {
			if !s.opts.FollowSymlinks {
				continue
			}
			target, err := s.fsys.Stat(path)
			if err != nil {
				s.result.Errors = append(s.result.Errors, fmt.Errorf("error resolving link %s: %w", path, err))
				continue
			}
			info = target
		}

		if info.IsDir() {
			if s.excludes[entry.Name()] || isCycle(info, ancestors) {
				continue
			}
			s.walk(path, relPath, append(ancestors, info))
			continue
		}

		if !info.Mode().IsRegular() {
			continue
		}
		if s.matches(relPath) && !s.seen[relPath] {
			s.seen[relPath] = true
			s.result.Files = append(s.result.Files, relPath)
		}
	}
}

func (s *scanner) matches(relPath string) bool {
	for _, p := range s.opts.Patterns {
		if ok, _ := doublestar.Match(p, relPath); ok {
			return true
		}
	}
	return false
}

func isCycle(info os.FileInfo, ancestors []os.FileInfo) bool {
	for _, a := range ancestors {
		if os.SameFile(info, a) {
			return true
		}
	}
	return false
}
