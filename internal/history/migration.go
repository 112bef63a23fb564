package history

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is a single schema change
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations is the ordered list of all schema changes
var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial scans table",
		SQL: `
CREATE TABLE IF NOT EXISTS scans (
    id TEXT PRIMARY KEY,
    workspace TEXT NOT NULL,
    pattern TEXT NOT NULL,
    encoding TEXT NOT NULL,
    processor TEXT NOT NULL,
    found INTEGER NOT NULL DEFAULT 0,
    processed INTEGER NOT NULL DEFAULT 0,
    has_errors BOOLEAN NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    started_at TEXT NOT NULL,
    info_messages TEXT NOT NULL DEFAULT '[]',
    error_messages TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_scans_started_at ON scans(started_at DESC);
`,
	},
	{
		Version:     2,
		Description: "Index scans by workspace",
		SQL: `
CREATE INDEX IF NOT EXISTS idx_scans_workspace ON scans(workspace);
`,
	},
	{
		Version:     3,
		Description: "Count errors beyond the log line limit",
		SQL: `
ALTER TABLE scans ADD COLUMN skipped_errors INTEGER NOT NULL DEFAULT 0;
`,
	},
}

// ApplyMigrations applies every migration not yet recorded in schema_version.
// All of them run in one transaction so concurrent openers serialize.
func (s *Store) ApplyMigrations(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	if _, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := tx.QueryContext(ctx, `SELECT version FROM schema_version`)
	if err != nil {
		return fmt.Errorf("query schema versions: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("scan version: %w", err)
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate versions: %w", err)
	}

	for _, migration := range migrations {
		if applied[migration.Version] {
			continue
		}
		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", migration.Version, migration.Description, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, migration.Version); err != nil {
			return fmt.Errorf("record migration %d: %w", migration.Version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}

	return nil
}

// GetLatestVersion returns the highest applied migration version, 0 if none
func (s *Store) GetLatestVersion() (int, error) {
	var version sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&version); err != nil {
		return 0, fmt.Errorf("query latest version: %w", err)
	}
	return int(version.Int64), nil
}
