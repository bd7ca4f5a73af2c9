package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"penalty-alerts/internal/config"
)

const (
	pgSchemaSQL = `
CREATE TABLE IF NOT EXISTS notified_keys (
    event_key  TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS alerts (
    id         BIGSERIAL PRIMARY KEY,
    cycle_id   TEXT NOT NULL,
    match_id   TEXT NOT NULL,
    event_key  TEXT NOT NULL,
    rule       TEXT NOT NULL,
    home       TEXT NOT NULL DEFAULT '',
    away       TEXT NOT NULL DEFAULT '',
    minute     TEXT NOT NULL DEFAULT '',
    message    TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS alerts_created_at_idx ON alerts (created_at);`

	pgSelectKeysSQL = `SELECT event_key FROM notified_keys ORDER BY event_key;`

	pgInsertKeySQL = `INSERT INTO notified_keys (event_key) VALUES ($1)
    ON CONFLICT (event_key) DO NOTHING;`

	pgInsertAlertSQL = `INSERT INTO alerts (
        cycle_id,
        match_id,
        event_key,
        rule,
        home,
        away,
        minute,
        message
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    RETURNING id, created_at;`

	pgAlertColumns = `id, cycle_id, match_id, event_key, rule, home, away, minute, message, created_at`

	pgListRecentAlertsSQL = `SELECT ` + pgAlertColumns + `
    FROM alerts
    ORDER BY created_at DESC, id DESC
    LIMIT $1;`

	pgListAlertsBetweenSQL = `SELECT ` + pgAlertColumns + `
    FROM alerts
    WHERE created_at >= $1
      AND created_at < $2
    ORDER BY created_at, id;`

	pgCountAlertsSQL = `SELECT COUNT(*) FROM alerts;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.StorageConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

// PostgresStore keeps notified keys and the alert audit trail in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool

	mu      sync.Mutex
	written map[string]struct{}
}

// NewPostgresStore wires a pgx pool into a store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, written: make(map[string]struct{})}
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the tables when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, pgSchemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *PostgresStore) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the lock dies with the session anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// ReadKeys returns every persisted key.
func (s *PostgresStore) ReadKeys(ctx context.Context) ([]string, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, pgSelectKeysSQL)
	if err != nil {
		return nil, fmt.Errorf("select notified keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan notified keys: %w", err)
	}

	s.mu.Lock()
	for _, k := range keys {
		s.written[k] = struct{}{}
	}
	s.mu.Unlock()
	return keys, nil
}

// WriteKeys inserts keys not yet persisted in one transaction.
func (s *PostgresStore) WriteKeys(ctx context.Context, keys []string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pending := pendingKeys(s.written, keys)
	if len(pending) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, k := range pending {
		batch.Queue(pgInsertKeySQL, k)
	}

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("insert notified keys: %w", err)
	}

	for _, k := range pending {
		s.written[k] = struct{}{}
	}
	return nil
}

// InsertAlert persists an alert emission.
func (s *PostgresStore) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	row := pool.QueryRow(ctx, pgInsertAlertSQL,
		alert.CycleID,
		alert.MatchID,
		alert.EventKey,
		alert.Rule,
		alert.Home,
		alert.Away,
		alert.Minute,
		alert.Message,
	)
	if scanErr := row.Scan(&alert.ID, &alert.CreatedAt); scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return alert, nil
}

// ListRecentAlerts lists most recent alerts.
func (s *PostgresStore) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, pgListRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	return collectAlerts(rows)
}

// ListAlertsBetween lists alerts within a time window.
func (s *PostgresStore) ListAlertsBetween(ctx context.Context, from, to time.Time) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, pgListAlertsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list alerts between: %w", queryErr)
	}
	return collectAlerts(rows)
}

// CountAlerts counts stored alerts.
func (s *PostgresStore) CountAlerts(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, pgCountAlertsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count alerts: %w", scanErr)
	}
	return count, nil
}

func collectAlerts(rows pgx.Rows) ([]AlertRecord, error) {
	alerts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (AlertRecord, error) {
		var rec AlertRecord
		err := row.Scan(
			&rec.ID,
			&rec.CycleID,
			&rec.MatchID,
			&rec.EventKey,
			&rec.Rule,
			&rec.Home,
			&rec.Away,
			&rec.Minute,
			&rec.Message,
			&rec.CreatedAt,
		)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan alerts: %w", err)
	}
	return alerts, nil
}

var (
	_ Database       = (*PostgresStore)(nil)
	_ AdvisoryLocker = (*PostgresStore)(nil)
)
