package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

const journalSchema = `
CREATE TABLE IF NOT EXISTS alert_decisions (
	id          TEXT PRIMARY KEY,
	decided_at  INTEGER NOT NULL,
	model_id    TEXT    NOT NULL,
	model_label TEXT    NOT NULL,
	percentage  REAL    NOT NULL,
	level       TEXT    NOT NULL,
	outcome     TEXT    NOT NULL,
	choice      TEXT    NOT NULL DEFAULT '',
	allowed     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alert_decisions_time ON alert_decisions(decided_at);
`

// NewSQLiteStorage opens (and if needed creates) the journal database.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Append inserts one entry.
func (s *SQLiteStorage) Append(ctx context.Context, entry *Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alert_decisions (id, decided_at, model_id, model_label, percentage, level, outcome, choice, allowed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Time.UnixMilli(),
		entry.ModelID,
		entry.ModelLabel,
		entry.Percentage,
		entry.Level,
		entry.Outcome,
		entry.Choice,
		boolToInt(entry.Allowed),
	)
	if err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries, newest first.
func (s *SQLiteStorage) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, decided_at, model_id, model_label, percentage, level, outcome, choice, allowed
		 FROM alert_decisions ORDER BY decided_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			entry     Entry
			decidedAt int64
			allowed   int
		)
		if err := rows.Scan(&entry.ID, &decidedAt, &entry.ModelID, &entry.ModelLabel,
			&entry.Percentage, &entry.Level, &entry.Outcome, &entry.Choice, &allowed); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		entry.Time = time.UnixMilli(decidedAt)
		entry.Allowed = allowed != 0
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// Close closes the database handle.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
