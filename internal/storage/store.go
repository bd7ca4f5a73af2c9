package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"penalty-alerts/internal/config"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	ListAlertsBetween(ctx context.Context, from, to time.Time) ([]AlertRecord, error)
	CountAlerts(ctx context.Context) (int64, error)
}

// KeyStore persists notified event keys. Keys are only ever added.
type KeyStore interface {
	ReadKeys(ctx context.Context) ([]string, error)
	WriteKeys(ctx context.Context, keys []string) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Database is a fully wired storage driver.
type Database interface {
	AlertStore
	KeyStore
	EnsureSchema(ctx context.Context) error
	Close()
}

// pendingKeys returns keys not yet in written, in input order.
func pendingKeys(written map[string]struct{}, keys []string) []string {
	out := make([]string, 0)
	for _, k := range keys {
		if _, ok := written[k]; ok {
			continue
		}
		out = append(out, k)
	}
	return out
}

// Open connects the configured driver and ensures its schema. It returns
// ErrNotConfigured when no driver is selected.
func Open(ctx context.Context, cfg config.StorageConfig) (Database, error) {
	var db Database
	switch cfg.Driver {
	case config.DriverNone:
		return nil, ErrNotConfigured
	case config.DriverPostgres:
		pool, err := NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		db = NewPostgresStore(pool)
	case config.DriverSQLite:
		store, err := OpenSQLite(ctx, cfg)
		if err != nil {
			return nil, err
		}
		db = store
	default:
		return nil, fmt.Errorf("storage driver %q is not supported", cfg.Driver)
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
