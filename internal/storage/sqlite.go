// Package storage provides the run journal for falconeye.
// It implements SQLite-based storage for runs, asset downloads and fetch errors.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/masahif/falconeye/internal/scraper"
	// SQLite database driver (CGO-free)
	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Ensure SQLiteStorage implements scraper.Journal at compile time.
var _ scraper.Journal = (*SQLiteStorage)(nil)

// SQLiteStorage implements the scraper.Journal interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection prevents lock conflicts
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	storage := &SQLiteStorage{db: db}

	if err := storage.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// InitSchema creates the database schema
func (s *SQLiteStorage) InitSchema() error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// SaveRun inserts a run, or updates it when the id is already recorded
func (s *SQLiteStorage) SaveRun(run *scraper.RunRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (
			id, source, rule, selector, status, result_count,
			error_type, error_message, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			result_count = excluded.result_count,
			error_type = excluded.error_type,
			error_message = excluded.error_message,
			finished_at = excluded.finished_at
	`,
		run.ID,
		run.Source,
		run.Rule,
		nullIfEmpty(run.Selector),
		run.Status,
		run.ResultCount,
		nullIfEmpty(run.ErrorType),
		nullIfEmpty(run.ErrorMessage),
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// SaveAssets saves multiple asset records in a single transaction
func (s *SQLiteStorage) SaveAssets(assets []*scraper.AssetRecord) error {
	if len(assets) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO assets (
			run_id, url, file_name, path, bytes, status,
			error_type, error_message, downloaded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, a := range assets {
		if _, err := stmt.Exec(
			a.RunID,
			a.URL,
			nullIfEmpty(a.FileName),
			nullIfEmpty(a.Path),
			a.Bytes,
			a.Status,
			nullIfEmpty(a.ErrorType),
			nullIfEmpty(a.ErrorMessage),
			formatTime(a.DownloadedAt),
		); err != nil {
			return fmt.Errorf("failed to insert asset %s: %w", a.URL, err)
		}
	}

	return tx.Commit()
}

// SaveError saves a page load failure
func (s *SQLiteStorage) SaveError(rec *scraper.ErrorRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO fetch_errors (run_id, source, error_type, error_message, occurred_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.RunID, rec.Source, rec.ErrorType, rec.ErrorMessage, formatTime(rec.OccurredAt))
	if err != nil {
		return fmt.Errorf("failed to save error: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 returns all.
func (s *SQLiteStorage) ListRuns(limit int) ([]scraper.RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.Query(`
		SELECT id, source, rule, COALESCE(selector, ''), status, result_count,
		       COALESCE(error_type, ''), COALESCE(error_message, ''),
		       started_at, COALESCE(finished_at, '')
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []scraper.RunRecord
	for rows.Next() {
		var run scraper.RunRecord
		var started, finished string
		if err := rows.Scan(&run.ID, &run.Source, &run.Rule, &run.Selector, &run.Status,
			&run.ResultCount, &run.ErrorType, &run.ErrorMessage, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt = parseTime(started)
		run.FinishedAt = parseTime(finished)
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// GetAssets returns the asset records of a run in insertion order
func (s *SQLiteStorage) GetAssets(runID string) ([]scraper.AssetRecord, error) {
	rows, err := s.db.Query(`
		SELECT run_id, url, COALESCE(file_name, ''), COALESCE(path, ''), bytes, status,
		       COALESCE(error_type, ''), COALESCE(error_message, ''), downloaded_at
		FROM assets
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var assets []scraper.AssetRecord
	for rows.Next() {
		var a scraper.AssetRecord
		var downloaded string
		if err := rows.Scan(&a.RunID, &a.URL, &a.FileName, &a.Path, &a.Bytes, &a.Status,
			&a.ErrorType, &a.ErrorMessage, &downloaded); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		a.DownloadedAt = parseTime(downloaded)
		assets = append(assets, a)
	}

	return assets, rows.Err()
}

// GetErrors returns the fetch errors of a run
func (s *SQLiteStorage) GetErrors(runID string) ([]scraper.ErrorRecord, error) {
	rows, err := s.db.Query(`
		SELECT run_id, source, error_type, COALESCE(error_message, ''), occurred_at
		FROM fetch_errors
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query errors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []scraper.ErrorRecord
	for rows.Next() {
		var rec scraper.ErrorRecord
		var occurred string
		if err := rows.Scan(&rec.RunID, &rec.Source, &rec.ErrorType, &rec.ErrorMessage, &occurred); err != nil {
			return nil, fmt.Errorf("failed to scan error: %w", err)
		}
		rec.OccurredAt = parseTime(occurred)
		records = append(records, rec)
	}

	return records, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
