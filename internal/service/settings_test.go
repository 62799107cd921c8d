package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/thorhanks/MealOps/internal/model"
	"github.com/thorhanks/MealOps/internal/service"
)

func TestSettingsDefaultsUntilUpdated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	defer db.Close()
	store := service.NewSettingsStore(db)

	got, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if got.ID != "user-settings" || got.TargetCalories != 2000 {
		t.Fatalf("expected default settings, got %+v", got)
	}
	var rows int
	if err := db.QueryRow(`SELECT COUNT(1) FROM settings`).Scan(&rows); err != nil {
		t.Fatalf("count settings: %v", err)
	}
	if rows != 0 {
		t.Fatalf("expected defaults not to be persisted, got %d rows", rows)
	}
}

func TestSettingsUpdate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	defer db.Close()
	store := service.NewSettingsStore(db)

	first, err := store.Update(ctx, func(s *model.Settings) error {
		s.TargetCalories = 2200
		return nil
	})
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	second, err := store.Update(ctx, func(s *model.Settings) error {
		s.USDAAPIKey = " key-123 "
		return nil
	})
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if second.TargetCalories != 2200 || second.USDAAPIKey != "key-123" {
		t.Fatalf("expected merged settings, got %+v", second)
	}
	if !second.Updated.After(first.Updated) {
		t.Fatalf("expected updated to be refreshed")
	}

	got, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if got.Created.UnixMilli() != first.Created.UnixMilli() {
		t.Fatalf("expected created to stay fixed, was %v now %v", first.Created, got.Created)
	}
	if got.TargetCalories != 2200 {
		t.Fatalf("expected persisted target 2200, got %v", got.TargetCalories)
	}
}

func TestSettingsUpdateRejectsInvalidTarget(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	defer db.Close()
	store := service.NewSettingsStore(db)

	if _, err := store.Update(ctx, func(s *model.Settings) error {
		s.TargetCalories = 0
		return nil
	}); err == nil {
		t.Fatalf("expected target validation error")
	}

	boom := errors.New("boom")
	if _, err := store.Update(ctx, func(s *model.Settings) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected mutator error, got %v", err)
	}

	got, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if got.TargetCalories != 2000 {
		t.Fatalf("expected default target after failed updates, got %v", got.TargetCalories)
	}
}
