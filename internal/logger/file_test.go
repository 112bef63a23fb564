package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harrison/filescout/internal/filteredlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileLoggerWithDirAndLevel(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "logs")

	fl, err := NewFileLoggerWithDirAndLevel(logDir, "info")
	require.NoError(t, err)
	defer fl.Close()

	assert.FileExists(t, fl.RunFile())
	assert.True(t, strings.HasPrefix(filepath.Base(fl.RunFile()), "run-"))

	target, err := os.Readlink(filepath.Join(logDir, "latest.log"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(fl.RunFile()), target)
}

func TestFileLogger_SecondRunGetsOwnFile(t *testing.T) {
	logDir := t.TempDir()

	first, err := NewFileLoggerWithDirAndLevel(logDir, "info")
	require.NoError(t, err)
	defer first.Close()
	second, err := NewFileLoggerWithDirAndLevel(logDir, "info")
	require.NoError(t, err)
	defer second.Close()

	assert.NotEqual(t, first.RunFile(), second.RunFile())
	target, err := os.Readlink(filepath.Join(logDir, "latest.log"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(second.RunFile()), target)
}

func TestFileLogger_LogScan(t *testing.T) {
	fl, err := NewFileLoggerWithDirAndLevel(t.TempDir(), "info")
	require.NoError(t, err)

	log := filteredlog.New("Errors during parsing")
	log.LogInfo("-> found 1 file")
	log.LogError("Skipping file 'a.txt' because it's empty")

	fl.LogScan("lines", log)
	fl.LogScanSummary(ScanSummary{Workspace: "/ws", Pattern: "*.txt", Found: 1, Duration: time.Second})
	fl.LogDebug("hidden at info level")
	require.NoError(t, fl.Close())

	data, err := os.ReadFile(fl.RunFile())
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "=== filescout Run Log ===")
	assert.Contains(t, content, "[lines] [-ERROR-] Errors during parsing\n")
	assert.Contains(t, content, "[lines] [-ERROR-] Skipping file 'a.txt' because it's empty\n")
	assert.Contains(t, content, "[lines] -> found 1 file\n")
	assert.Contains(t, content, "Scan of /ws (*.txt): found 1, processed 0, skipped 1, errors 0 in 1s")
	assert.NotContains(t, content, "hidden at info level")
}

func TestFileLogger_ErrorLevelKeepsErrorsOnly(t *testing.T) {
	fl, err := NewFileLoggerWithDirAndLevel(t.TempDir(), "error")
	require.NoError(t, err)

	log := filteredlog.New("Title")
	log.LogInfo("info line")
	log.LogError("error line")
	fl.LogScan("h", log)
	require.NoError(t, fl.Close())

	data, err := os.ReadFile(fl.RunFile())
	require.NoError(t, err)
	assert.Contains(t, string(data), "[h] [-ERROR-] error line")
	assert.NotContains(t, string(data), "info line")
}

func TestFileLogger_LogScanReportsSkippedErrors(t *testing.T) {
	fl, err := NewFileLoggerWithDirAndLevel(t.TempDir(), "info")
	require.NoError(t, err)

	log := filteredlog.NewWithLimit("Title", 1)
	log.LogError("kept")
	log.LogError("dropped 1")
	log.LogError("dropped 2")
	fl.LogScan("h", log)
	require.NoError(t, fl.Close())

	data, err := os.ReadFile(fl.RunFile())
	require.NoError(t, err)
	assert.Contains(t, string(data), "[h] [-ERROR-] kept\n[h] [-ERROR-]   ... skipped logging of 2 additional errors ...\n")
	assert.NotContains(t, string(data), "dropped")
}

func TestFileLogger_CloseTwice(t *testing.T) {
	fl, err := NewFileLoggerWithDirAndLevel(t.TempDir(), "info")
	require.NoError(t, err)

	require.NoError(t, fl.Close())
	require.NoError(t, fl.Close())
	fl.LogInfo("after close is dropped")
}
