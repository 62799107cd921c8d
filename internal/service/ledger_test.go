package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/thorhanks/MealOps/internal/model"
	"github.com/thorhanks/MealOps/internal/service"
)

func produce(recipeID string, servings int, at time.Time) *model.LogEntry {
	return &model.LogEntry{Type: model.EntryProduction, RecipeID: recipeID, Servings: servings, Date: at}
}

func consume(recipeID string, servings int, at time.Time) *model.LogEntry {
	return &model.LogEntry{Type: model.EntryConsumption, RecipeID: recipeID, Servings: servings, Date: at}
}

func TestLedgerInventoryScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	defer db.Close()
	recipes := service.NewRecipeStore(db)
	ledger := service.NewLedger(db)

	chili := mustSaveRecipe(t, recipes, "Chili", 4, model.Macros{Protein: 30, Carbs: 20, Fat: 10, Calories: 300})
	day := time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local)

	mustAppend(t, ledger, produce(chili.ID, 4, day))
	mustAppend(t, ledger, consume(chili.ID, 1, day.Add(time.Hour)))
	mustAppend(t, ledger, consume(chili.ID, 2, day.Add(2*time.Hour)))

	inv, err := ledger.InventoryOf(ctx, chili.ID)
	if err != nil {
		t.Fatalf("inventory: %v", err)
	}
	if inv != 1 {
		t.Fatalf("expected inventory 1, got %d", inv)
	}

	mustAppend(t, ledger, consume(chili.ID, 3, day.Add(3*time.Hour)))
	inv, err = ledger.InventoryOf(ctx, chili.ID)
	if err != nil {
		t.Fatalf("inventory: %v", err)
	}
	if inv != 0 {
		t.Fatalf("expected over-consumption to floor at 0, got %d", inv)
	}

	entries, err := ledger.ByRecipe(ctx, chili.ID)
	if err != nil {
		t.Fatalf("by recipe: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
}

func TestLedgerInventoryIsOrderIndependent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 8, 0, 0, 0, time.Local)

	sequences := [][]*model.LogEntry{
		{produce("r1", 5, base), consume("r1", 2, base), produce("r1", 3, base), consume("r1", 1, base)},
		{consume("r1", 1, base), consume("r1", 2, base), produce("r1", 3, base), produce("r1", 5, base)},
	}
	for i, seq := range sequences {
		db := newTestDB(t)
		ledger := service.NewLedger(db)
		for _, e := range seq {
			mustAppend(t, ledger, e)
		}
		inv, err := ledger.InventoryOf(ctx, "r1")
		db.Close()
		if err != nil {
			t.Fatalf("sequence %d inventory: %v", i, err)
		}
		if inv != 5 {
			t.Fatalf("sequence %d: expected inventory 5, got %d", i, inv)
		}
	}
}

func TestLedgerAppendValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	defer db.Close()
	ledger := service.NewLedger(db)

	invalid := []*model.LogEntry{
		{Type: "snack", RecipeID: "r1", Servings: 1},
		{Type: model.EntryProduction, RecipeID: "r1", Servings: 0},
		{Type: model.EntryConsumption, FoodName: "Apple"},
		{Type: model.EntryConsumption, FoodName: " ", Macros: &model.Macros{Calories: 95}},
		{Type: model.EntryConsumption, FoodName: "Apple", Macros: &model.Macros{Calories: -1}},
		{Type: model.EntryProduction, FoodName: "Apple", Macros: &model.Macros{Calories: 95}},
	}
	for i, e := range invalid {
		if err := ledger.Append(ctx, e); !errors.Is(err, service.ErrInvalidEntry) {
			t.Fatalf("case %d: expected ErrInvalidEntry, got %v", i, err)
		}
	}
	all, err := ledger.All(ctx)
	if err != nil {
		t.Fatalf("all entries: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no writes after rejected appends, got %d", len(all))
	}
}

func TestLedgerAdHocEntryRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	defer db.Close()
	ledger := service.NewLedger(db)

	e := mustAppend(t, ledger, &model.LogEntry{
		Type:     model.EntryConsumption,
		FoodName: "Banana",
		Amount:   120,
		Unit:     "g",
		Macros:   &model.Macros{Protein: 1.3, Carbs: 27.6, Fat: 0.4, Calories: 107},
	})
	if e.ID == "" || e.Date.IsZero() || e.Created.IsZero() {
		t.Fatalf("expected id, date and created defaults, got %+v", e)
	}
	got, err := ledger.Get(ctx, e.ID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if !got.IsAdHoc() || got.FoodName != "Banana" || got.Amount != 120 || got.Unit != "g" {
		t.Fatalf("unexpected entry %+v", got)
	}
	if got.Macros == nil || got.Macros.Calories != 107 {
		t.Fatalf("expected inline macros, got %+v", got.Macros)
	}
}

func TestLedgerRemove(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	defer db.Close()
	ledger := service.NewLedger(db)

	now := time.Now()
	p := mustAppend(t, ledger, produce("r1", 3, now))
	c := mustAppend(t, ledger, consume("r1", 2, now))

	if err := ledger.Remove(ctx, c.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	inv, err := ledger.InventoryOf(ctx, "r1")
	if err != nil {
		t.Fatalf("inventory: %v", err)
	}
	if inv != 3 {
		t.Fatalf("expected inventory 3 after removing consumption, got %d", inv)
	}
	if err := ledger.Remove(ctx, c.ID); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second remove, got %v", err)
	}
	if _, err := ledger.Get(ctx, p.ID); err != nil {
		t.Fatalf("expected production entry to remain: %v", err)
	}
}

func TestLedgerAllInventorySkipsEmptyAndDeleted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	defer db.Close()
	recipes := service.NewRecipeStore(db)
	ledger := service.NewLedger(db)

	now := time.Now()
	stocked := mustSaveRecipe(t, recipes, "Lasagna", 6, model.Macros{Calories: 450})
	empty := mustSaveRecipe(t, recipes, "Soup", 4, model.Macros{Calories: 200})
	retired := mustSaveRecipe(t, recipes, "Tacos", 4, model.Macros{Calories: 350})

	mustAppend(t, ledger, produce(stocked.ID, 6, now))
	mustAppend(t, ledger, consume(stocked.ID, 2, now))
	mustAppend(t, ledger, produce(empty.ID, 2, now))
	mustAppend(t, ledger, consume(empty.ID, 2, now))
	mustAppend(t, ledger, produce(retired.ID, 4, now))
	if err := recipes.SoftDelete(ctx, retired.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	items, err := ledger.AllInventory(ctx)
	if err != nil {
		t.Fatalf("all inventory: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one stocked recipe, got %+v", items)
	}
	if items[0].Recipe.ID != stocked.ID || items[0].Inventory != 4 {
		t.Fatalf("expected Lasagna x4, got %s x%d", items[0].Recipe.Name, items[0].Inventory)
	}

	// Soft delete keeps the ledger.
	inv, err := ledger.InventoryOf(ctx, retired.ID)
	if err != nil {
		t.Fatalf("inventory of deleted recipe: %v", err)
	}
	if inv != 4 {
		t.Fatalf("expected retired recipe entries to survive, got %d", inv)
	}
}

func TestLedgerRangeQueriesAreInclusive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	defer db.Close()
	ledger := service.NewLedger(db)

	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.Local)
	end := service.EndOfDay(start)

	mustAppend(t, ledger, consume("r1", 1, start))
	mustAppend(t, ledger, consume("r1", 1, end))
	mustAppend(t, ledger, produce("r1", 4, start.Add(time.Hour)))
	mustAppend(t, ledger, consume("r1", 1, end.Add(time.Millisecond)))
	mustAppend(t, ledger, consume("r1", 1, start.Add(-time.Millisecond)))

	all, err := ledger.EntriesInRange(ctx, start, end)
	if err != nil {
		t.Fatalf("entries in range: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries in range, got %d", len(all))
	}
	if !all[0].Date.Equal(start) || !all[2].Date.Equal(end) {
		t.Fatalf("expected entries ordered by date with both bounds included")
	}

	eaten, err := ledger.ConsumptionInRange(ctx, start, end)
	if err != nil {
		t.Fatalf("consumption in range: %v", err)
	}
	if len(eaten) != 2 {
		t.Fatalf("expected 2 consumption entries, got %d", len(eaten))
	}

	listed, err := ledger.List(ctx, service.LogFilter{Type: model.EntryProduction})
	if err != nil {
		t.Fatalf("list production: %v", err)
	}
	if len(listed) != 1 || listed[0].Servings != 4 {
		t.Fatalf("expected one production entry, got %+v", listed)
	}
}
