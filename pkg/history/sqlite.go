package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"gravityhq/sentinel/pkg/quota"
)

// SQLiteStore implements Store with durable SQLite persistence. It uses a
// write-ahead log for concurrent read performance while the poll loop
// writes.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	insertStmt  *sql.Stmt
	historyStmt *sql.Stmt
	pruneStmt   *sql.Stmt
}

const historySchema = `
CREATE TABLE IF NOT EXISTS quota_points (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	taken_at    INTEGER NOT NULL,
	model_id    TEXT    NOT NULL,
	label       TEXT    NOT NULL,
	percentage  REAL,
	exhausted   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_quota_points_model_time ON quota_points(model_id, taken_at);
CREATE INDEX IF NOT EXISTS idx_quota_points_time ON quota_points(taken_at);
`

// NewSQLiteStore opens (and if needed creates) the history database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// Single writer (the poll loop); a second connection would only add
	// lock contention.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:     db,
		logger: slog.Default().With("component", "history.sqlite"),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("history store opened", "path", path)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := s.db.Exec(historySchema); err != nil {
		return fmt.Errorf("failed to initialize history schema: %w", err)
	}

	var err error
	s.insertStmt, err = s.db.Prepare(
		"INSERT INTO quota_points (taken_at, model_id, label, percentage, exhausted) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	s.historyStmt, err = s.db.Prepare(
		"SELECT taken_at, model_id, label, percentage, exhausted FROM quota_points WHERE model_id = ? AND taken_at >= ? ORDER BY taken_at ASC")
	if err != nil {
		return fmt.Errorf("failed to prepare history query: %w", err)
	}
	s.pruneStmt, err = s.db.Prepare("DELETE FROM quota_points WHERE taken_at < ?")
	if err != nil {
		return fmt.Errorf("failed to prepare prune: %w", err)
	}
	return nil
}

// SaveSnapshot writes one row per model in a single transaction.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snapshot *quota.Snapshot) error {
	points := pointsFromSnapshot(snapshot)
	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin history transaction: %w", err)
	}
	defer tx.Rollback()

	stmt := tx.StmtContext(ctx, s.insertStmt)
	for _, p := range points {
		var pct any
		if p.Percentage != nil {
			pct = *p.Percentage
		}
		if _, err := stmt.ExecContext(ctx, p.Timestamp.UnixMilli(), p.ModelID, p.Label, pct, boolToInt(p.Exhausted)); err != nil {
			return fmt.Errorf("failed to insert history point: %w", err)
		}
	}

	return tx.Commit()
}

// ModelHistory returns a model's points since the given time, oldest first.
func (s *SQLiteStore) ModelHistory(ctx context.Context, modelID string, since time.Time) ([]Point, error) {
	rows, err := s.historyStmt.QueryContext(ctx, modelID, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var (
			takenAt   int64
			point     Point
			pct       sql.NullFloat64
			exhausted int
		)
		if err := rows.Scan(&takenAt, &point.ModelID, &point.Label, &pct, &exhausted); err != nil {
			return nil, fmt.Errorf("failed to scan history point: %w", err)
		}
		point.Timestamp = time.UnixMilli(takenAt)
		if pct.Valid {
			point.Percentage = &pct.Float64
		}
		point.Exhausted = exhausted != 0
		points = append(points, point)
	}
	return points, rows.Err()
}

// Prune deletes points older than the cutoff.
func (s *SQLiteStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.pruneStmt.ExecContext(ctx, olderThan.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return result.RowsAffected()
}

// Close releases the prepared statements and the database handle.
func (s *SQLiteStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.insertStmt, s.historyStmt, s.pruneStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
