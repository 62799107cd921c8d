package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/thorhanks/MealOps/internal/model"
	"github.com/thorhanks/MealOps/internal/service"
)

func TestIngredientCachePutAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	defer db.Close()
	cache := service.NewIngredientCache(db)

	if _, err := cache.Get(ctx, "oats"); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty cache, got %v", err)
	}

	e := &model.IngredientCacheEntry{
		Name:             "Rolled Oats",
		NutrientsPer100g: model.Macros{Protein: 13.2, Carbs: 67.7, Fat: 6.5, Calories: 379},
		Source:           "usda",
		SourceID:         "173904",
	}
	if err := cache.Put(ctx, e); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := cache.Get(ctx, "  rolled OATS ")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != e.ID || got.NutrientsPer100g.Calories != 379 || got.SourceID != "173904" {
		t.Fatalf("unexpected cache entry %+v", got)
	}

	again := &model.IngredientCacheEntry{Name: "rolled oats", NutrientsPer100g: model.Macros{Calories: 380}}
	if err := cache.Put(ctx, again); err != nil {
		t.Fatalf("put again: %v", err)
	}
	if again.ID != e.ID {
		t.Fatalf("expected same-name put to reuse id %s, got %s", e.ID, again.ID)
	}
	all, err := cache.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 1 || all[0].NutrientsPer100g.Calories != 380 {
		t.Fatalf("expected one refreshed entry, got %+v", all)
	}

	if err := cache.Put(ctx, &model.IngredientCacheEntry{Name: ""}); err == nil {
		t.Fatalf("expected name validation error")
	}
}
