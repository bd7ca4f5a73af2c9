package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"penalty-alerts/internal/config"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	cfg := config.StorageConfig{Driver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "pw.db")}
	db, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(db.Close)
	return db.(*SQLiteStore)
}

func TestSQLiteKeysRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestSQLite(t)

	if err := store.WriteKeys(ctx, []string{"1_foul_43'", "2_red card_90'+3'"}); err != nil {
		t.Fatalf("WriteKeys: %v", err)
	}
	// 重复写入应被忽略
	if err := store.WriteKeys(ctx, []string{"1_foul_43'", "3_penalty confirmed_12'"}); err != nil {
		t.Fatalf("WriteKeys again: %v", err)
	}

	keys, err := store.ReadKeys(ctx)
	if err != nil {
		t.Fatalf("ReadKeys: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("expected 3 keys, got %v", keys)
	}
}

func TestSQLiteKeysSurviveReopen(t *testing.T) {
	ctx := context.Background()
	cfg := config.StorageConfig{Driver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "pw.db")}

	first, err := Open(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.WriteKeys(ctx, []string{"9_foul_area_12'"}); err != nil {
		t.Fatal(err)
	}
	first.Close()

	second, err := Open(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	keys, err := second.ReadKeys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != "9_foul_area_12'" {
		t.Fatalf("unexpected keys after reopen %v", keys)
	}
}

func TestSQLiteAlerts(t *testing.T) {
	ctx := context.Background()
	store := openTestSQLite(t)

	base := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rec, err := store.InsertAlert(ctx, AlertRecord{
			CycleID:   "c",
			MatchID:   "77",
			EventKey:  "77_foul_43'",
			Rule:      "addition",
			Home:      "Team A",
			Away:      "Team B",
			Minute:    "43'",
			Message:   "msg",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("InsertAlert: %v", err)
		}
		if rec.ID == 0 {
			t.Fatal("inserted alert should have an id")
		}
	}

	count, err := store.CountAlerts(ctx)
	if err != nil || count != 3 {
		t.Fatalf("CountAlerts = %d, %v", count, err)
	}

	recent, err := store.ListRecentAlerts(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || !recent[0].CreatedAt.After(recent[1].CreatedAt) {
		t.Fatalf("recent alerts should be newest first: %#v", recent)
	}

	between, err := store.ListAlertsBetween(ctx, base, base.Add(2*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(between) != 2 || !between[0].CreatedAt.Equal(base) {
		t.Fatalf("unexpected window result %#v", between)
	}
	if between[0].Home != "Team A" || between[0].Minute != "43'" {
		t.Fatalf("fields not round-tripped: %#v", between[0])
	}
}

func TestOpenWithoutDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.StorageConfig{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestNilPostgresStoreNotConfigured(t *testing.T) {
	var store *PostgresStore
	if _, err := store.ReadKeys(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestPendingKeys(t *testing.T) {
	written := map[string]struct{}{"a": {}}
	got := pendingKeys(written, []string{"a", "b", "c"})
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("unexpected pending %v", got)
	}
}
