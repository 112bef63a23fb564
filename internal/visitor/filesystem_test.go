package visitor

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/harrison/filescout/internal/fileutil"
	"github.com/harrison/filescout/internal/filteredlog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemFileSystem(t *testing.T, files map[string]string) *OSFileSystem {
	t.Helper()

	fsys := afero.NewMemMapFs()
	for name, data := range files {
		path := filepath.Join("/ws", filepath.FromSlash(name))
		require.NoError(t, fsys.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, afero.WriteFile(fsys, path, []byte(data), 0644))
	}
	return &OSFileSystem{Fs: fsys}
}

func TestOSFileSystem_Find(t *testing.T) {
	fs := newMemFileSystem(t, map[string]string{
		"one.txt":        "1",
		"sub/two.txt":    "2",
		"sub/three.md":   "3",
		"vendor/x.txt":   "x",
		"sub/empty.txt":  "",
		"other/four.txt": "4",
	})
	fs.ExcludeDirs = []string{"vendor"}

	files, err := fs.Find("**/*.txt", true, "/ws")
	require.NoError(t, err)
	assert.Equal(t, []string{"one.txt", "other/four.txt", "sub/empty.txt", "sub/two.txt"}, files)

	files, err = fs.Find("**/*.md, one.txt", false, "/ws")
	require.NoError(t, err)
	assert.Equal(t, []string{"one.txt", "sub/three.md"}, files)
}

func TestOSFileSystem_FindMissingBaseDir(t *testing.T) {
	fs := newMemFileSystem(t, nil)

	files, err := fs.Find("**/*.txt", true, "/does/not/exist")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestOSFileSystem_FindBadPattern(t *testing.T) {
	fs := newMemFileSystem(t, map[string]string{"one.txt": "1"})

	_, err := fs.Find("[a-", true, "/ws")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fileutil.ErrBadPattern))
}

func TestOSFileSystem_Predicates(t *testing.T) {
	fs := newMemFileSystem(t, map[string]string{
		"full.txt":  "content",
		"empty.txt": "",
	})

	assert.Equal(t, filepath.Join("/ws", "sub", "a.txt"), fs.Resolve("/ws", "sub/a.txt"))

	assert.False(t, fs.IsEmpty(fs.Resolve("/ws", "full.txt")))
	assert.True(t, fs.IsEmpty(fs.Resolve("/ws", "empty.txt")))
	assert.False(t, fs.IsEmpty(fs.Resolve("/ws", "missing.txt")))

	assert.False(t, fs.IsNotReadable(fs.Resolve("/ws", "full.txt")))
	assert.True(t, fs.IsNotReadable(fs.Resolve("/ws", "missing.txt")))
}

func TestOSFileSystem_AbsolutePath(t *testing.T) {
	fs := NewOSFileSystem()

	abs := fs.AbsolutePath("relative/dir")
	assert.True(t, filepath.IsAbs(abs))
	assert.Equal(t, "relative/dir", filepath.ToSlash(abs[len(abs)-len("relative/dir"):]))
}

func TestOSFileSystem_Unreadable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read files without permission bits")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "secret.txt")
	require.NoError(t, os.WriteFile(path, []byte("secret"), 0000))

	fs := NewOSFileSystem()
	assert.True(t, fs.IsNotReadable(path))
}

func TestVisitor_EndToEndOnDisk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.txt"), []byte("first"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "two.txt"), []byte("second"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.txt"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.md"), []byte("x"), 0644))

	var readAll Transform[string] = func(_ context.Context, path string, cs Charset, _ *filteredlog.Log) (string, error) {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		data, err := io.ReadAll(cs.NewReader(f))
		return string(data), err
	}

	v := New(Options{FilePattern: "**/*.txt", Encoding: "UTF-8"}, NewOSFileSystem(), readAll)
	result, err := v.Invoke(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"second", "first"}, result.Results)
	assert.Equal(t, []string{
		"Searching for all files in '" + dir + "' that match the pattern '**/*.txt'",
		"Traversing of symbolic links: disabled",
		"-> found 3 files",
		"Successfully processed file 'nested/two.txt'",
		"Successfully processed file 'one.txt'",
	}, result.Log.InfoMessages())
	assert.Equal(t, []string{
		"Errors during parsing",
		"Skipping file 'empty.txt' because it's empty",
	}, result.Log.ErrorMessages())
}
