package visitor

import (
	"errors"
	"path/filepath"

	"github.com/harrison/filescout/internal/fileutil"
	"github.com/spf13/afero"
)

// FileSystem is the boundary between the visitor and the files it scans.
// Implementations must be safe to call sequentially from a single invocation.
type FileSystem interface {
	// AbsolutePath renders path as an absolute path for log messages.
	// It falls back to path when it cannot be resolved.
	AbsolutePath(path string) string
	// Find returns relative, slash-separated paths of all files below baseDir
	// that match pattern. No match is an empty slice, not an error.
	Find(pattern string, followSymlinks bool, baseDir string) ([]string, error)
	// Resolve joins baseDir and a path returned by Find.
	Resolve(baseDir, relativePath string) string
	// IsNotReadable reports whether the file cannot be opened for reading.
	IsNotReadable(path string) bool
	// IsEmpty reports whether the file has no content.
	IsEmpty(path string) bool
}

// OSFileSystem implements FileSystem on top of an afero filesystem.
type OSFileSystem struct {
	Fs          afero.Fs
	ExcludeDirs []string
}

// NewOSFileSystem creates a FileSystem backed by the operating system.
func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{Fs: afero.NewOsFs()}
}

// AbsolutePath implements FileSystem.
func (o *OSFileSystem) AbsolutePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// Find implements FileSystem. A missing or inaccessible base directory yields no
// files; only a malformed pattern is reported as an error.
func (o *OSFileSystem) Find(pattern string, followSymlinks bool, baseDir string) ([]string, error) {
	result, err := fileutil.ScanDirectory(o.Fs, baseDir, fileutil.ScanOptions{
		Patterns:       fileutil.SplitPatterns(pattern),
		FollowSymlinks: followSymlinks,
		ExcludeDirs:    o.ExcludeDirs,
	})
	if err != nil {
		if errors.Is(err, fileutil.ErrBadPattern) {
			return nil, err
		}
		return []string{}, nil
	}
	return result.Files, nil
}

// Resolve implements FileSystem.
func (o *OSFileSystem) Resolve(baseDir, relativePath string) string {
	return filepath.Join(baseDir, filepath.FromSlash(relativePath))
}

// IsNotReadable implements FileSystem.
func (o *OSFileSystem) IsNotReadable(path string) bool {
	f, err := o.Fs.Open(path)
	if err != nil {
		return true
	}
	f.Close()
	return false
}

// IsEmpty implements FileSystem.
func (o *OSFileSystem) IsEmpty(path string) bool {
	info, err := o.Fs.Stat(path)
	if err != nil {
		return false
	}
	return info.Size() == 0
}
