package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTree writes the given files below root on fsys.
func createTree(t *testing.T, fsys afero.Fs, root string, files []string) {
	t.Helper()

	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create directory: %v", err)
		}
		if err := afero.WriteFile(fsys, path, []byte("test content"), 0644); err != nil {
			t.Fatalf("failed to create file: %v", err)
		}
	}
}

func TestScanDirectory(t *testing.T) {
	fsys := afero.NewMemMapFs()
	root := "/workspace"

	// root/
	//   one.txt
	//   two.md
	//   reports/
	//     a.xml
	//     nested/
	//       b.xml
	//       c.txt
	//   .git/
	//     config.txt
	createTree(t, fsys, root, []string{
		"one.txt",
		"two.md",
		"reports/a.xml",
		"reports/nested/b.xml",
		"reports/nested/c.txt",
		".git/config.txt",
	})

	tests := []struct {
		name      string
		opts      ScanOptions
		wantFiles []string
	}{
		{
			name:      "recursive glob includes top level",
			opts:      ScanOptions{Patterns: []string{"**/*.txt"}},
			wantFiles: []string{".git/config.txt", "one.txt", "reports/nested/c.txt"},
		},
		{
			name:      "single level glob",
			opts:      ScanOptions{Patterns: []string{"reports/*.xml"}},
			wantFiles: []string{"reports/a.xml"},
		},
		{
			name:      "multiple patterns",
			opts:      ScanOptions{Patterns: []string{"**/*.xml", "*.md"}},
			wantFiles: []string{"reports/a.xml", "reports/nested/b.xml", "two.md"},
		},
		{
			name:      "overlapping patterns report a file once",
			opts:      ScanOptions{Patterns: []string{"**/*.txt", "one.*"}},
			wantFiles: []string{".git/config.txt", "one.txt", "reports/nested/c.txt"},
		},
		{
			name:      "excluded directories",
			opts:      ScanOptions{Patterns: []string{"**/*.txt"}, ExcludeDirs: []string{".git", "nested"}},
			wantFiles: []string{"one.txt"},
		},
		{
			name:      "no match",
			opts:      ScanOptions{Patterns: []string{"**/*.json"}},
			wantFiles: []string{},
		},
		{
			name:      "no patterns matches nothing",
			opts:      ScanOptions{},
			wantFiles: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ScanDirectory(fsys, root, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFiles, result.Files)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestScanDirectory_Errors(t *testing.T) {
	fsys := afero.NewMemMapFs()
	createTree(t, fsys, "/workspace", []string{"file.txt"})

	t.Run("missing directory", func(t *testing.T) {
		_, err := ScanDirectory(fsys, "/missing", ScanOptions{Patterns: []string{"**"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to access directory")
	})

	t.Run("file instead of directory", func(t *testing.T) {
		_, err := ScanDirectory(fsys, "/workspace/file.txt", ScanOptions{Patterns: []string{"**"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "path is not a directory")
	})

	t.Run("bad pattern", func(t *testing.T) {
		_, err := ScanDirectory(fsys, "/workspace", ScanOptions{Patterns: []string{"[a-"}})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrBadPattern))
	})
}

func TestScanDirectory_SortedOutput(t *testing.T) {
	fsys := afero.NewMemMapFs()
	createTree(t, fsys, "/ws", []string{"z.txt", "a.txt", "m/b.txt", "c.txt"})

	result, err := ScanDirectory(fsys, "/ws", ScanOptions{Patterns: []string{"**/*.txt"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "c.txt", "m/b.txt", "z.txt"}, result.Files)
}

func TestScanDirectory_Symlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symbolic links need elevated rights on windows")
	}

	root := t.TempDir()
	outside := t.TempDir()
	fsys := afero.NewOsFs()

	createTree(t, fsys, root, []string{"real/one.txt"})
	createTree(t, fsys, outside, []string{"linked.txt"})
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "dirlink")))
	require.NoError(t, os.Symlink(filepath.Join(root, "real", "one.txt"), filepath.Join(root, "filelink.txt")))
	// cycle: real/loop -> root
	require.NoError(t, os.Symlink(root, filepath.Join(root, "real", "loop")))

	t.Run("follow", func(t *testing.T) {
		result, err := ScanDirectory(fsys, root, ScanOptions{
			Patterns:       []string{"**/*.txt"},
			FollowSymlinks: true,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"dirlink/linked.txt", "filelink.txt", "real/one.txt"}, result.Files)
	})

	t.Run("no follow", func(t *testing.T) {
		result, err := ScanDirectory(fsys, root, ScanOptions{
			Patterns:       []string{"**/*.txt"},
			FollowSymlinks: false,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"real/one.txt"}, result.Files)
	})
}

func TestSplitPatterns(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "single", input: "**/*.txt", want: []string{"**/*.txt"}},
		{name: "comma separated", input: "**/*.txt, *.md ,", want: []string{"**/*.txt", "*.md"}},
		{name: "directory shorthand", input: "build/", want: []string{"build/**"}},
		{name: "dot prefix", input: "./docs/*.md", want: []string{"docs/*.md"}},
		{name: "empty", input: "  ", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitPatterns(tt.input))
		})
	}
}
