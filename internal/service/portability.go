package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/thorhanks/MealOps/internal/model"
)

const SnapshotVersion = 1

// Snapshot is the portable whole-store document. Timestamps are Unix
// milliseconds.
type Snapshot struct {
	Version         int                `json:"version"`
	Exported        int64              `json:"exported"`
	Recipes         []SnapshotRecipe   `json:"recipes"`
	ServingsLog     []SnapshotLogEntry `json:"servingsLog"`
	IngredientCache []SnapshotCache    `json:"ingredientCache"`
	Settings        *SnapshotSettings  `json:"settings,omitempty"`
}

type SnapshotRecipe struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Servings     int                `json:"servings"`
	Ingredients  []model.Ingredient `json:"ingredients"`
	Instructions string             `json:"instructions"`
	Macros       model.Macros       `json:"macros"`
	Deleted      bool               `json:"deleted"`
	Created      int64              `json:"created"`
	Updated      int64              `json:"updated"`
}

type SnapshotLogEntry struct {
	ID       string          `json:"id"`
	Type     model.EntryType `json:"type"`
	RecipeID *string         `json:"recipeId"`
	Servings int             `json:"servings,omitempty"`
	FoodName string          `json:"foodName,omitempty"`
	Amount   float64         `json:"amount,omitempty"`
	Unit     string          `json:"unit,omitempty"`
	Macros   *model.Macros   `json:"macros,omitempty"`
	Date     int64           `json:"date"`
	Created  int64           `json:"created"`
}

type SnapshotCache struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	NutrientsPer100g model.Macros `json:"nutrientsPer100g"`
	Source           string       `json:"source,omitempty"`
	SourceID         string       `json:"sourceId,omitempty"`
	Cached           int64        `json:"cached"`
}

type SnapshotSettings struct {
	ID             string  `json:"id"`
	TargetCalories float64 `json:"targetCalories"`
	USDAAPIKey     string  `json:"usdaApiKey,omitempty"`
	Created        int64   `json:"created"`
	Updated        int64   `json:"updated"`
}

// ImportCounts reports how many records of each kind were written, or
// would be written for a dry run.
type ImportCounts struct {
	Recipes         int  `json:"recipes"`
	ServingsLog     int  `json:"servingsLog"`
	IngredientCache int  `json:"ingredientCache"`
	Settings        bool `json:"settings"`
	DryRun          bool `json:"dryRun,omitempty"`
}

type ImportOptions struct {
	DryRun bool
}

// Export reads every store, soft-deleted recipes included.
func Export(ctx context.Context, db *sql.DB) (*Snapshot, error) {
	recipes, err := NewRecipeStore(db).ListAll(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := NewLedger(db).All(ctx)
	if err != nil {
		return nil, err
	}
	cached, err := NewIngredientCache(db).All(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := NewSettingsStore(db).Get(ctx)
	if err != nil {
		return nil, err
	}

	out := &Snapshot{
		Version:         SnapshotVersion,
		Exported:        toMillis(time.Now()),
		Recipes:         make([]SnapshotRecipe, 0, len(recipes)),
		ServingsLog:     make([]SnapshotLogEntry, 0, len(entries)),
		IngredientCache: make([]SnapshotCache, 0, len(cached)),
	}
	for _, r := range recipes {
		out.Recipes = append(out.Recipes, SnapshotRecipe{
			ID:           r.ID,
			Name:         r.Name,
			Servings:     r.Servings,
			Ingredients:  r.Ingredients,
			Instructions: r.Instructions,
			Macros:       r.Macros,
			Deleted:      r.Deleted,
			Created:      toMillis(r.Created),
			Updated:      toMillis(r.Updated),
		})
	}
	for _, e := range entries {
		se := SnapshotLogEntry{
			ID:       e.ID,
			Type:     e.Type,
			Servings: e.Servings,
			FoodName: e.FoodName,
			Amount:   e.Amount,
			Unit:     e.Unit,
			Macros:   e.Macros,
			Date:     toMillis(e.Date),
			Created:  toMillis(e.Created),
		}
		if !e.IsAdHoc() {
			id := e.RecipeID
			se.RecipeID = &id
		}
		out.ServingsLog = append(out.ServingsLog, se)
	}
	for _, c := range cached {
		out.IngredientCache = append(out.IngredientCache, SnapshotCache{
			ID:               c.ID,
			Name:             c.Name,
			NutrientsPer100g: c.NutrientsPer100g,
			Source:           c.Source,
			SourceID:         c.SourceID,
			Cached:           toMillis(c.CachedAt),
		})
	}
	out.Settings = &SnapshotSettings{
		ID:             settings.ID,
		TargetCalories: settings.TargetCalories,
		USDAAPIKey:     settings.USDAAPIKey,
		Created:        toMillis(settings.Created),
		Updated:        toMillis(settings.Updated),
	}
	return out, nil
}

// DecodeSnapshot checks the document shape before decoding it. Shape
// errors wrap ErrImportValidation.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil || top == nil {
		return nil, fmt.Errorf("%w: invalid JSON structure", ErrImportValidation)
	}
	if !truthy(top["version"]) {
		return nil, fmt.Errorf("%w: missing version field", ErrImportValidation)
	}
	for _, field := range []string{"recipes", "servingsLog", "ingredientCache"} {
		if !isJSONArray(top[field]) {
			return nil, fmt.Errorf("%w: missing or invalid %s array", ErrImportValidation, field)
		}
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportValidation, err)
	}
	return &snap, nil
}

// Import upserts every record by id in one transaction. Records missing
// from the snapshot are left alone. Any failure rolls the whole import
// back.
func Import(ctx context.Context, db *sql.DB, snap *Snapshot, opts ImportOptions) (ImportCounts, error) {
	counts := ImportCounts{DryRun: opts.DryRun}
	if snap == nil {
		return counts, fmt.Errorf("%w: snapshot is required", ErrImportValidation)
	}
	recipes, entries, cached, err := snapshotRecords(snap)
	if err != nil {
		return counts, err
	}
	if opts.DryRun {
		counts.Recipes = len(recipes)
		counts.ServingsLog = len(entries)
		counts.IngredientCache = len(cached)
		counts.Settings = snap.Settings != nil
		return counts, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return counts, fmt.Errorf("begin import tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range recipes {
		if err := upsertRecipe(ctx, tx, &recipes[i]); err != nil {
			return counts, fmt.Errorf("import recipe %s: %w", recipes[i].ID, err)
		}
		if err := replaceRecipeIngredients(ctx, tx, recipes[i].ID, recipes[i].Ingredients); err != nil {
			return counts, fmt.Errorf("import recipe %s: %w", recipes[i].ID, err)
		}
		counts.Recipes++
	}
	for i := range entries {
		if err := insertLogEntry(ctx, tx, &entries[i], true); err != nil {
			return counts, fmt.Errorf("import log entry %s: %w", entries[i].ID, err)
		}
		counts.ServingsLog++
	}
	for i := range cached {
		if err := upsertCacheEntry(ctx, tx, &cached[i]); err != nil {
			return counts, fmt.Errorf("import cached ingredient %s: %w", cached[i].ID, err)
		}
		counts.IngredientCache++
	}
	if s := snap.Settings; s != nil {
		now := time.Now()
		in := &model.Settings{
			ID:             SettingsID,
			TargetCalories: s.TargetCalories,
			USDAAPIKey:     s.USDAAPIKey,
			Created:        millisOr(s.Created, now),
			Updated:        now,
		}
		if in.TargetCalories <= 0 {
			in.TargetCalories = DefaultTargetCalories
		}
		if err := putSettings(ctx, tx, in); err != nil {
			return counts, fmt.Errorf("import settings: %w", err)
		}
		counts.Settings = true
	}

	if err := tx.Commit(); err != nil {
		return counts, fmt.Errorf("commit import tx: %w", err)
	}
	return counts, nil
}

// snapshotRecords converts and validates every record before anything is
// written.
func snapshotRecords(snap *Snapshot) ([]model.Recipe, []model.LogEntry, []model.IngredientCacheEntry, error) {
	now := time.Now()
	recipes := make([]model.Recipe, 0, len(snap.Recipes))
	for i, sr := range snap.Recipes {
		if sr.ID == "" {
			return nil, nil, nil, fmt.Errorf("%w: recipe %d has no id", ErrImportValidation, i)
		}
		r := model.Recipe{
			ID:           sr.ID,
			Name:         sr.Name,
			Servings:     sr.Servings,
			Ingredients:  sr.Ingredients,
			Instructions: sr.Instructions,
			Macros:       sr.Macros,
			Deleted:      sr.Deleted,
			Created:      millisOr(sr.Created, now),
			Updated:      millisOr(sr.Updated, now),
		}
		if err := validateRecipe(&r); err != nil {
			return nil, nil, nil, fmt.Errorf("%w: recipe %s: %v", ErrImportValidation, sr.ID, err)
		}
		recipes = append(recipes, r)
	}

	entries := make([]model.LogEntry, 0, len(snap.ServingsLog))
	for i, se := range snap.ServingsLog {
		if se.ID == "" {
			return nil, nil, nil, fmt.Errorf("%w: log entry %d has no id", ErrImportValidation, i)
		}
		e := model.LogEntry{
			ID:       se.ID,
			Type:     se.Type,
			Servings: se.Servings,
			FoodName: se.FoodName,
			Amount:   se.Amount,
			Unit:     se.Unit,
			Macros:   se.Macros,
			Date:     millisOr(se.Date, now),
			Created:  millisOr(se.Created, now),
		}
		if se.RecipeID != nil {
			e.RecipeID = *se.RecipeID
		}
		if err := validateLogEntry(&e); err != nil {
			return nil, nil, nil, fmt.Errorf("%w: log entry %s: %v", ErrImportValidation, se.ID, err)
		}
		entries = append(entries, e)
	}

	cached := make([]model.IngredientCacheEntry, 0, len(snap.IngredientCache))
	for i, sc := range snap.IngredientCache {
		if sc.ID == "" || sc.Name == "" {
			return nil, nil, nil, fmt.Errorf("%w: cached ingredient %d needs an id and a name", ErrImportValidation, i)
		}
		cached = append(cached, model.IngredientCacheEntry{
			ID:               sc.ID,
			Name:             sc.Name,
			NutrientsPer100g: sc.NutrientsPer100g,
			Source:           sc.Source,
			SourceID:         sc.SourceID,
			CachedAt:         millisOr(sc.Cached, now),
		})
	}
	return recipes, entries, cached, nil
}

func millisOr(ms int64, fallback time.Time) time.Time {
	if ms == 0 {
		return fallback
	}
	return fromMillis(ms)
}

func truthy(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	switch string(v) {
	case "", "null", "false", "0", `""`:
		return false
	}
	return true
}

func isJSONArray(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	return len(v) > 0 && v[0] == '['
}
