package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	// Pure-Go SQLite driver, registered as "sqlite".
	_ "modernc.org/sqlite"

	"penalty-alerts/internal/config"
)

const (
	sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS notified_keys (
    event_key  TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS alerts (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    cycle_id   TEXT NOT NULL,
    match_id   TEXT NOT NULL,
    event_key  TEXT NOT NULL,
    rule       TEXT NOT NULL,
    home       TEXT NOT NULL DEFAULT '',
    away       TEXT NOT NULL DEFAULT '',
    minute     TEXT NOT NULL DEFAULT '',
    message    TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS alerts_created_at_idx ON alerts (created_at);`

	sqliteSelectKeysSQL = `SELECT event_key FROM notified_keys ORDER BY event_key`
	sqliteInsertKeySQL  = `INSERT OR IGNORE INTO notified_keys (event_key, created_at) VALUES (?, ?)`

	sqliteInsertAlertSQL = `INSERT INTO alerts (cycle_id, match_id, event_key, rule, home, away, minute, message, created_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqliteAlertColumns = `id, cycle_id, match_id, event_key, rule, home, away, minute, message, created_at`

	sqliteListRecentAlertsSQL = `SELECT ` + sqliteAlertColumns + ` FROM alerts
    ORDER BY created_at DESC, id DESC LIMIT ?`

	sqliteListAlertsBetweenSQL = `SELECT ` + sqliteAlertColumns + ` FROM alerts
    WHERE created_at >= ? AND created_at < ?
    ORDER BY created_at, id`

	sqliteCountAlertsSQL = `SELECT COUNT(*) FROM alerts`
)

// SQLiteStore keeps notified keys and the alert audit trail in a local
// SQLite file. Timestamps are stored as unix milliseconds.
type SQLiteStore struct {
	db *sql.DB

	mu      sync.Mutex
	written map[string]struct{}
}

// OpenSQLite opens (creating if needed) the database at cfg.SQLitePath.
func OpenSQLite(ctx context.Context, cfg config.StorageConfig) (*SQLiteStore, error) {
	path := cfg.SQLitePath
	if path == "" {
		return nil, fmt.Errorf("storage.sqlite_path is required")
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if path != ":memory:" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute PRAGMA journal_mode: %w", err)
		}
	}

	return &SQLiteStore{db: db, written: make(map[string]struct{})}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	if s == nil || s.db == nil {
		return
	}
	_ = s.db.Close()
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	return s.db, nil
}

// EnsureSchema creates the tables when missing.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, sqliteSchemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// ReadKeys returns every persisted key.
func (s *SQLiteStore) ReadKeys(ctx context.Context) ([]string, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, sqliteSelectKeysSQL)
	if err != nil {
		return nil, fmt.Errorf("select notified keys: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan notified key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	for _, k := range keys {
		s.written[k] = struct{}{}
	}
	s.mu.Unlock()
	return keys, nil
}

// WriteKeys inserts keys not yet persisted in one transaction.
func (s *SQLiteStore) WriteKeys(ctx context.Context, keys []string) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pending := pendingKeys(s.written, keys)
	if len(pending) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	now := time.Now().UTC().UnixMilli()
	for _, k := range pending {
		if _, err := tx.ExecContext(ctx, sqliteInsertKeySQL, k, now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert notified key: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit notified keys: %w", err)
	}

	for _, k := range pending {
		s.written[k] = struct{}{}
	}
	return nil
}

// InsertAlert persists an alert emission.
func (s *SQLiteStore) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return AlertRecord{}, err
	}

	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	alert.CreatedAt = alert.CreatedAt.UTC().Truncate(time.Millisecond)

	res, err := db.ExecContext(ctx, sqliteInsertAlertSQL,
		alert.CycleID,
		alert.MatchID,
		alert.EventKey,
		alert.Rule,
		alert.Home,
		alert.Away,
		alert.Minute,
		alert.Message,
		alert.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", err)
	}
	if alert.ID, err = res.LastInsertId(); err != nil {
		return AlertRecord{}, fmt.Errorf("insert alert id: %w", err)
	}
	return alert, nil
}

// ListRecentAlerts lists most recent alerts.
func (s *SQLiteStore) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, sqliteListRecentAlertsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent alerts: %w", err)
	}
	return scanSQLiteAlerts(rows)
}

// ListAlertsBetween lists alerts within a time window.
func (s *SQLiteStore) ListAlertsBetween(ctx context.Context, from, to time.Time) ([]AlertRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, sqliteListAlertsBetweenSQL, from.UTC().UnixMilli(), to.UTC().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("list alerts between: %w", err)
	}
	return scanSQLiteAlerts(rows)
}

// CountAlerts counts stored alerts.
func (s *SQLiteStore) CountAlerts(ctx context.Context) (int64, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	var count int64
	if err := db.QueryRowContext(ctx, sqliteCountAlertsSQL).Scan(&count); err != nil {
		return 0, fmt.Errorf("count alerts: %w", err)
	}
	return count, nil
}

func scanSQLiteAlerts(rows *sql.Rows) ([]AlertRecord, error) {
	defer rows.Close()

	alerts := make([]AlertRecord, 0)
	for rows.Next() {
		var rec AlertRecord
		var createdMillis int64
		if err := rows.Scan(
			&rec.ID,
			&rec.CycleID,
			&rec.MatchID,
			&rec.EventKey,
			&rec.Rule,
			&rec.Home,
			&rec.Away,
			&rec.Minute,
			&rec.Message,
			&createdMillis,
		); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		rec.CreatedAt = time.UnixMilli(createdMillis).UTC()
		alerts = append(alerts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return alerts, nil
}

var _ Database = (*SQLiteStore)(nil)
