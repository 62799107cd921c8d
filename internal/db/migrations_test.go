package db_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/thorhanks/MealOps/internal/db"
)

func TestApplyMigrationsIdempotentAndCreatesStores(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dbPath := filepath.Join(t.TempDir(), "mealops.db")
	sqldb, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer sqldb.Close()

	if err := db.ApplyMigrations(ctx, sqldb); err != nil {
		t.Fatalf("first apply migrations: %v", err)
	}
	if err := db.ApplyMigrations(ctx, sqldb); err != nil {
		t.Fatalf("second apply migrations: %v", err)
	}

	version, err := db.SchemaVersion(ctx, sqldb)
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if version != 1 {
		t.Fatalf("expected schema version 1, got %d", version)
	}

	for _, table := range []string{"recipes", "recipe_ingredients", "servings_log", "ingredient_cache", "settings"} {
		var count int
		if err := sqldb.QueryRow(`SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&count); err != nil {
			t.Fatalf("check %s table: %v", table, err)
		}
		if count != 1 {
			t.Fatalf("expected %s table to exist", table)
		}
	}

	var indexCount int
	if err := sqldb.QueryRow(`SELECT COUNT(1) FROM sqlite_master WHERE type = 'index' AND name = 'idx_servings_log_type_date'`).Scan(&indexCount); err != nil {
		t.Fatalf("check type/date index: %v", err)
	}
	if indexCount != 1 {
		t.Fatalf("expected idx_servings_log_type_date index")
	}
}

func TestHandleOpenIsSingleFlight(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	h := db.NewHandle(filepath.Join(t.TempDir(), "mealops.db"), nil)
	defer h.Close()

	const callers = 8
	var wg sync.WaitGroup
	handles := make(chan any, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sqldb, err := h.Open(ctx)
			if err != nil {
				t.Errorf("open handle: %v", err)
				return
			}
			handles <- sqldb
		}()
	}
	wg.Wait()
	close(handles)

	var first any
	for got := range handles {
		if first == nil {
			first = got
			continue
		}
		if got != first {
			t.Fatalf("expected every caller to share one *sql.DB")
		}
	}

	again, err := h.Open(ctx)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if any(again) != first {
		t.Fatalf("expected second Open to return the live handle")
	}
}

func TestHandleReopensAfterClose(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	h := db.NewHandle(filepath.Join(t.TempDir(), "mealops.db"), nil)
	first, err := h.Open(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	second, err := h.Open(ctx)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer h.Close()
	if first == second {
		t.Fatalf("expected a fresh *sql.DB after Close")
	}
	if err := second.Ping(); err != nil {
		t.Fatalf("ping reopened store: %v", err)
	}
}
