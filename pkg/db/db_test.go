package db_test

import (
	"path/filepath"
	"testing"
	"time"

	"cilaosgo/pkg/db"
)

func TestDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "db_test.db")

	d, err := db.Init(path)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	defer d.Close()

	for _, table := range []string{"cache", "persistent_state", "narrative_events"} {
		var n int
		if err := d.QueryRow("SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&n); err != nil || n != 1 {
			t.Errorf("table %s missing (%v)", table, err)
		}
	}
}

func TestPrune(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "prune.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	old := time.Now().Add(-48 * time.Hour).UTC().Format("2006-01-02 15:04:05")
	if _, err := d.Exec("INSERT INTO cache (key, value, created_at) VALUES ('old', x'00', ?), ('new', x'00', CURRENT_TIMESTAMP)", old); err != nil {
		t.Fatal(err)
	}
	n, err := d.PruneCache(24 * time.Hour)
	if err != nil || n != 1 {
		t.Fatalf("PruneCache = %d, %v; want 1", n, err)
	}

	if _, err := d.Exec("INSERT INTO persistent_state (key, value, expires_at) VALUES ('a', '1', ?), ('b', '2', NULL)", old); err != nil {
		t.Fatal(err)
	}
	n, err = d.PruneState(time.Now())
	if err != nil || n != 1 {
		t.Fatalf("PruneState = %d, %v; want 1", n, err)
	}
}
