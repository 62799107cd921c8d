package service_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thorhanks/MealOps/internal/model"
	"github.com/thorhanks/MealOps/internal/service"
)

type fakeSearcher struct {
	calls   atomic.Int32
	results []service.FoodMatch
	err     error
	// block, when set, holds every search until it is closed or the
	// context ends.
	block   chan struct{}
	started chan struct{}
}

func (f *fakeSearcher) SearchFoods(ctx context.Context, query string, limit int) ([]service.FoodMatch, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func TestSearchSessionLastRequestWins(t *testing.T) {
	t.Parallel()

	fake := &fakeSearcher{
		results: []service.FoodMatch{{ID: "1", Description: "Rice"}},
		block:   make(chan struct{}),
		started: make(chan struct{}, 2),
	}
	session := service.NewSearchSession(fake)

	firstErr := make(chan error, 1)
	go func() {
		_, err := session.Search(context.Background(), "ric", 5)
		firstErr <- err
	}()
	<-fake.started

	secondDone := make(chan []service.FoodMatch, 1)
	go func() {
		items, err := session.Search(context.Background(), "rice", 5)
		if err != nil {
			t.Errorf("second search: %v", err)
		}
		secondDone <- items
	}()
	<-fake.started

	select {
	case err := <-firstErr:
		if !errors.Is(err, service.ErrLookupCancelled) {
			t.Fatalf("expected superseded search to be cancelled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("superseded search was not cancelled")
	}

	close(fake.block)
	select {
	case items := <-secondDone:
		if len(items) != 1 || items[0].Description != "Rice" {
			t.Fatalf("expected latest search results, got %+v", items)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("latest search did not finish")
	}
}

func TestSearchSessionPassesErrorsThrough(t *testing.T) {
	t.Parallel()
	fake := &fakeSearcher{err: service.ErrLookupAuth}
	session := service.NewSearchSession(fake)
	if _, err := session.Search(context.Background(), "rice", 5); !errors.Is(err, service.ErrLookupAuth) {
		t.Fatalf("expected ErrLookupAuth, got %v", err)
	}
	if _, err := session.Search(context.Background(), "  ", 5); err == nil {
		t.Fatalf("expected empty query error")
	}
}

func TestFallbackSearcher(t *testing.T) {
	t.Parallel()
	failing := &fakeSearcher{err: service.ErrLookupAuth}
	empty := &fakeSearcher{}
	good := &fakeSearcher{results: []service.FoodMatch{{ID: "off-1", Description: "Oats"}}}

	items, err := service.FallbackSearcher{failing, empty, good}.SearchFoods(context.Background(), "oats", 3)
	if err != nil {
		t.Fatalf("fallback search: %v", err)
	}
	if len(items) != 1 || items[0].ID != "off-1" {
		t.Fatalf("expected fallback result, got %+v", items)
	}

	_, err = service.FallbackSearcher{failing, empty}.SearchFoods(context.Background(), "oats", 3)
	if !errors.Is(err, service.ErrLookupAuth) {
		t.Fatalf("expected first error when nothing matched, got %v", err)
	}
}

func TestNewFoodSearcherSelectsProvider(t *testing.T) {
	t.Parallel()
	if s, err := service.NewFoodSearcher("usda", "key"); err != nil {
		t.Fatalf("usda searcher: %v", err)
	} else if _, ok := s.(*service.USDASearcher); !ok {
		t.Fatalf("expected USDA searcher, got %T", s)
	}
	if s, err := service.NewFoodSearcher("", ""); err != nil {
		t.Fatalf("default searcher: %v", err)
	} else if _, ok := s.(*service.OpenFoodFactsSearcher); !ok {
		t.Fatalf("expected Open Food Facts without a key, got %T", s)
	}
	if _, err := service.NewFoodSearcher("bogus", ""); err == nil {
		t.Fatalf("expected unknown provider error")
	}

	_, err := service.NewUSDASearcher("").SearchFoods(context.Background(), "rice", 1)
	if !errors.Is(err, service.ErrLookupAuth) {
		t.Fatalf("expected missing key to be an auth error, got %v", err)
	}
}

func TestLookupIngredientCachesFirstMatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	defer db.Close()
	cache := service.NewIngredientCache(db)

	fake := &fakeSearcher{results: []service.FoodMatch{
		{ID: "169756", Description: "Rice, white, cooked", Provider: "usda", NutrientsPer100g: model.Macros{Protein: 2.7, Carbs: 28.2, Fat: 0.3, Calories: 130}},
		{ID: "2", Description: "Rice, brown"},
	}}

	entry, hit, err := service.LookupIngredient(ctx, cache, fake, "White Rice")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if hit || entry.NutrientsPer100g.Calories != 130 || entry.SourceID != "169756" {
		t.Fatalf("expected fresh lookup of first match, got %+v (hit=%v)", entry, hit)
	}

	again, hit, err := service.LookupIngredient(ctx, cache, fake, "white rice")
	if err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if !hit || again.ID != entry.ID {
		t.Fatalf("expected cache hit, got %+v (hit=%v)", again, hit)
	}
	if fake.calls.Load() != 1 {
		t.Fatalf("expected one upstream search, got %d", fake.calls.Load())
	}

	failing := &fakeSearcher{err: service.ErrLookupFailed}
	if _, _, err := service.LookupIngredient(ctx, cache, failing, "kale"); !errors.Is(err, service.ErrLookupFailed) {
		t.Fatalf("expected ErrLookupFailed, got %v", err)
	}
}
