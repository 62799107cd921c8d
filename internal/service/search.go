package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/thorhanks/MealOps/internal/model"
	"github.com/thorhanks/MealOps/internal/provider/openfoodfacts"
	"github.com/thorhanks/MealOps/internal/provider/usda"
)

const (
	ProviderUSDA          = "usda"
	ProviderOpenFoodFacts = "openfoodfacts"
)

// FoodMatch is a lookup hit with nutrition per 100g.
type FoodMatch struct {
	ID               string       `json:"id"`
	Description      string       `json:"description"`
	Brand            string       `json:"brand,omitempty"`
	Provider         string       `json:"provider"`
	NutrientsPer100g model.Macros `json:"nutrientsPer100g"`
}

// FoodSearcher looks foods up by free text. Implementations report a bad
// or missing credential as ErrLookupAuth and anything else as
// ErrLookupFailed.
type FoodSearcher interface {
	SearchFoods(ctx context.Context, query string, limit int) ([]FoodMatch, error)
}

type USDASearcher struct {
	Client *usda.Client
}

func NewUSDASearcher(apiKey string) *USDASearcher {
	return &USDASearcher{Client: &usda.Client{APIKey: strings.TrimSpace(apiKey)}}
}

func (s *USDASearcher) SearchFoods(ctx context.Context, query string, limit int) ([]FoodMatch, error) {
	foods, err := s.Client.SearchFoods(ctx, query, limit)
	if err != nil {
		if errors.Is(err, usda.ErrUnauthorized) || errors.Is(err, usda.ErrMissingAPIKey) {
			return nil, fmt.Errorf("%w: %v", ErrLookupAuth, err)
		}
		return nil, lookupError(ctx, err)
	}
	out := make([]FoodMatch, 0, len(foods))
	for _, f := range foods {
		out = append(out, FoodMatch{
			ID:          f.FDCID,
			Description: f.Description,
			Brand:       f.Brand,
			Provider:    ProviderUSDA,
			NutrientsPer100g: model.Macros{
				Protein:  f.ProteinG,
				Carbs:    f.CarbsG,
				Fat:      f.FatG,
				Calories: f.Calories,
			},
		})
	}
	return out, nil
}

type OpenFoodFactsSearcher struct {
	Client *openfoodfacts.Client
}

func NewOpenFoodFactsSearcher() *OpenFoodFactsSearcher {
	return &OpenFoodFactsSearcher{Client: &openfoodfacts.Client{}}
}

func (s *OpenFoodFactsSearcher) SearchFoods(ctx context.Context, query string, limit int) ([]FoodMatch, error) {
	foods, err := s.Client.SearchFoods(ctx, query, limit)
	if err != nil {
		return nil, lookupError(ctx, err)
	}
	out := make([]FoodMatch, 0, len(foods))
	for _, f := range foods {
		out = append(out, FoodMatch{
			ID:          f.Code,
			Description: f.Description,
			Brand:       f.Brand,
			Provider:    ProviderOpenFoodFacts,
			NutrientsPer100g: model.Macros{
				Protein:  f.ProteinG,
				Carbs:    f.CarbsG,
				Fat:      f.FatG,
				Calories: f.Calories,
			},
		})
	}
	return out, nil
}

// FallbackSearcher tries each searcher in order and returns the first
// non-empty result. An auth failure is only reported when no searcher
// produced results.
type FallbackSearcher []FoodSearcher

func (f FallbackSearcher) SearchFoods(ctx context.Context, query string, limit int) ([]FoodMatch, error) {
	if len(f) == 0 {
		return nil, fmt.Errorf("%w: no lookup providers configured", ErrLookupFailed)
	}
	var firstErr error
	for _, s := range f {
		items, err := s.SearchFoods(ctx, query, limit)
		if err != nil {
			if errors.Is(err, ErrLookupCancelled) {
				return nil, err
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if len(items) > 0 {
			return items, nil
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return []FoodMatch{}, nil
}

// NewFoodSearcher picks a searcher for provider. An empty provider uses
// USDA when a key is configured and Open Food Facts otherwise, falling back
// between the two.
func NewFoodSearcher(provider, usdaAPIKey string) (FoodSearcher, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case ProviderUSDA:
		return NewUSDASearcher(usdaAPIKey), nil
	case ProviderOpenFoodFacts, "off":
		return NewOpenFoodFactsSearcher(), nil
	case "":
		if strings.TrimSpace(usdaAPIKey) == "" {
			return NewOpenFoodFactsSearcher(), nil
		}
		return FallbackSearcher{NewUSDASearcher(usdaAPIKey), NewOpenFoodFactsSearcher()}, nil
	default:
		return nil, fmt.Errorf("unknown lookup provider %q (expected usda or openfoodfacts)", provider)
	}
}

func lookupError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrLookupCancelled, ctx.Err())
	}
	return fmt.Errorf("%w: %v", ErrLookupFailed, err)
}

// SearchSession applies last-request-wins to a stream of searches, such as
// one input field. Starting a search cancels the one in flight, and a
// result that arrives after a newer search started is discarded with
// ErrLookupCancelled.
type SearchSession struct {
	searcher FoodSearcher

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

func NewSearchSession(searcher FoodSearcher) *SearchSession {
	return &SearchSession{searcher: searcher}
}

func (s *SearchSession) Search(ctx context.Context, query string, limit int) ([]FoodMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", ErrInvalidInput)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.mu.Unlock()

	items, err := s.searcher.SearchFoods(ctx, query, limit)

	s.mu.Lock()
	current := s.gen == gen
	if current {
		s.cancel = nil
	}
	s.mu.Unlock()
	if !current {
		return nil, ErrLookupCancelled
	}
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Cancel aborts the search in flight, if any.
func (s *SearchSession) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// LookupIngredient returns cached nutrition for name, or searches and
// caches the first match. The bool reports a cache hit.
func LookupIngredient(ctx context.Context, cache *IngredientCache, searcher FoodSearcher, name string) (*model.IngredientCacheEntry, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, fmt.Errorf("%w: ingredient name is required", ErrInvalidInput)
	}
	hit, err := cache.Get(ctx, name)
	if err == nil {
		return hit, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	matches, err := searcher.SearchFoods(ctx, name, 1)
	if err != nil {
		return nil, false, err
	}
	if len(matches) == 0 {
		return nil, false, fmt.Errorf("no nutrition match for %q: %w", name, ErrNotFound)
	}
	m := matches[0]
	entry := &model.IngredientCacheEntry{
		Name:             name,
		NutrientsPer100g: m.NutrientsPer100g,
		Source:           m.Provider,
		SourceID:         m.ID,
	}
	if err := cache.Put(ctx, entry); err != nil {
		return nil, false, err
	}
	return entry, false, nil
}
