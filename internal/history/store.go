// Package history records finished scans in a SQLite database so earlier
// runs can be listed and their logs replayed.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// likeEscaper quotes the LIKE wildcards of a user supplied ID prefix
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// timeLayout is fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrScanNotFound is returned by GetScan for an unknown ID.
var ErrScanNotFound = errors.New("scan not found")

// ScanRecord is a single finished scan
type ScanRecord struct {
	ID            string
	Workspace     string
	Pattern       string
	Encoding      string
	Processor     string
	Found         int
	Processed     int
	HasErrors     bool
	Duration      time.Duration
	StartedAt     time.Time
	InfoMessages  []string
	ErrorMessages []string
	// SkippedErrors counts the errors beyond the log's line limit.
	SkippedErrors int
}

// Store manages the scan history database
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (or creates) the history database and applies pending migrations
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// An in-memory database lives on one connection only
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// busy_timeout must come first so the other pragmas wait on locks
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	store := &Store{db: db, dbPath: dbPath}
	if err := store.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return store, nil
}

// execWithRetry retries statements that fail with "database is locked".
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Path returns the database location
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordScan stores a scan. An empty ID is replaced by a fresh UUID and
// a zero StartedAt by the current time; both are written back to rec.
func (s *Store) RecordScan(ctx context.Context, rec *ScanRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}

	infoJSON, err := marshalMessages(rec.InfoMessages)
	if err != nil {
		return fmt.Errorf("marshal info messages: %w", err)
	}
	errorJSON, err := marshalMessages(rec.ErrorMessages)
	if err != nil {
		return fmt.Errorf("marshal error messages: %w", err)
	}

	query := `INSERT INTO scans
		(id, workspace, pattern, encoding, processor, found, processed, has_errors, duration_ms, started_at, info_messages, error_messages, skipped_errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Workspace,
		rec.Pattern,
		rec.Encoding,
		rec.Processor,
		rec.Found,
		rec.Processed,
		rec.HasErrors,
		rec.Duration.Milliseconds(),
		rec.StartedAt.UTC().Format(timeLayout),
		infoJSON,
		errorJSON,
		rec.SkippedErrors,
	)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}

	return nil
}

// ListScans returns the most recent scans first, without their messages.
// A limit <= 0 returns every scan.
func (s *Store) ListScans(ctx context.Context, limit int) ([]*ScanRecord, error) {
	query := `SELECT id, workspace, pattern, encoding, processor, found, processed, has_errors, duration_ms, started_at
		FROM scans
		ORDER BY started_at DESC, rowid DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	var scans []*ScanRecord
	for rows.Next() {
		rec := &ScanRecord{}
		var durationMs int64
		var startedAt string
		if err := rows.Scan(
			&rec.ID, &rec.Workspace, &rec.Pattern, &rec.Encoding, &rec.Processor,
			&rec.Found, &rec.Processed, &rec.HasErrors, &durationMs, &startedAt,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		if rec.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		scans = append(scans, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scans: %w", err)
	}

	return scans, nil
}

// GetScan returns a single scan including its stored log messages.
// The ID may be a unique prefix of the full UUID; it is matched literally.
func (s *Store) GetScan(ctx context.Context, id string) (*ScanRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrScanNotFound)
	}

	query := `SELECT id, workspace, pattern, encoding, processor, found, processed, has_errors, duration_ms, started_at, info_messages, error_messages, skipped_errors
		FROM scans
		WHERE id LIKE ? || '%' ESCAPE '\'
		LIMIT 2`

	rows, err := s.db.QueryContext(ctx, query, likeEscaper.Replace(id))
	if err != nil {
		return nil, fmt.Errorf("query scan: %w", err)
	}
	defer rows.Close()

	var found []*ScanRecord
	for rows.Next() {
		rec := &ScanRecord{}
		var durationMs int64
		var startedAt, infoJSON, errorJSON string
		if err := rows.Scan(
			&rec.ID, &rec.Workspace, &rec.Pattern, &rec.Encoding, &rec.Processor,
			&rec.Found, &rec.Processed, &rec.HasErrors, &durationMs, &startedAt,
			&infoJSON, &errorJSON, &rec.SkippedErrors,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		if rec.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if err := json.Unmarshal([]byte(infoJSON), &rec.InfoMessages); err != nil {
			return nil, fmt.Errorf("unmarshal info messages: %w", err)
		}
		if err := json.Unmarshal([]byte(errorJSON), &rec.ErrorMessages); err != nil {
			return nil, fmt.Errorf("unmarshal error messages: %w", err)
		}
		found = append(found, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scan: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrScanNotFound, id)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("scan id %q is ambiguous", id)
	}
}

// DeleteOlderThan removes scans started before the cutoff and returns how many were deleted
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM scans WHERE started_at < ?`,
		cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("delete scans: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func marshalMessages(messages []string) (string, error) {
	if messages == nil {
		messages = []string{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
