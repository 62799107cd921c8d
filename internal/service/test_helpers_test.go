package service_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/thorhanks/MealOps/internal/db"
	"github.com/thorhanks/MealOps/internal/model"
	"github.com/thorhanks/MealOps/internal/service"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mealops.db")
	sqldb, err := db.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(context.Background(), sqldb); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return sqldb
}

func mustSaveRecipe(t *testing.T, store *service.RecipeStore, name string, servings int, perServing model.Macros) *model.Recipe {
	t.Helper()
	r := &model.Recipe{Name: name, Servings: servings, Macros: perServing}
	if err := store.Save(context.Background(), r); err != nil {
		t.Fatalf("save recipe %s: %v", name, err)
	}
	return r
}

func mustAppend(t *testing.T, ledger *service.Ledger, e *model.LogEntry) *model.LogEntry {
	t.Helper()
	if err := ledger.Append(context.Background(), e); err != nil {
		t.Fatalf("append %s entry: %v", e.Type, err)
	}
	return e
}
