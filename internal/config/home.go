package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetHome returns the filescout home directory
// Priority order:
//  1. FILESCOUT_HOME environment variable (if set)
//  2. .filescout in the current working directory (fallback)
//
// The directory is created if it doesn't exist
func GetHome() (string, error) {
	if home := os.Getenv("FILESCOUT_HOME"); home != "" {
		if err := os.MkdirAll(home, 0755); err != nil {
			return "", fmt.Errorf("create filescout home directory: %w", err)
		}
		return home, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	home := filepath.Join(cwd, ".filescout")
	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create filescout home directory: %w", err)
	}

	return home, nil
}

// GetHistoryDBPath returns the history database path: the configured one if set,
// otherwise $FILESCOUT_HOME/history/scans.db
func (c *Config) GetHistoryDBPath() (string, error) {
	if c.History.DBPath != "" {
		return c.History.DBPath, nil
	}

	home, err := GetHome()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, "history", "scans.db"), nil
}
