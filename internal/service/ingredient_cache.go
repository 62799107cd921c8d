package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/thorhanks/MealOps/internal/model"
)

// IngredientCache memoizes nutrition lookups by ingredient name. It is
// never the source of truth for a saved recipe.
type IngredientCache struct {
	db  *sql.DB
	now func() time.Time
}

func NewIngredientCache(db *sql.DB) *IngredientCache {
	return &IngredientCache{db: db, now: time.Now}
}

const cacheColumns = `id, name, protein, carbs, fat, calories, source, source_id, cached_at`

// Get finds the most recently cached entry for name, ignoring case. It
// returns ErrNotFound on a miss.
func (c *IngredientCache) Get(ctx context.Context, name string) (*model.IngredientCacheEntry, error) {
	row := c.db.QueryRowContext(ctx, `
SELECT `+cacheColumns+`
FROM ingredient_cache
WHERE name_norm = ?
ORDER BY cached_at DESC
LIMIT 1
`, normalizeName(name))
	e, err := scanCacheEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("cached ingredient %q: %w", name, ErrNotFound)
		}
		return nil, err
	}
	return &e, nil
}

// Put stores e, replacing any entry with the same id or name.
func (c *IngredientCache) Put(ctx context.Context, e *model.IngredientCacheEntry) error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: ingredient name is required", ErrInvalidInput)
	}
	if err := validateMacros("", e.NutrientsPer100g); err != nil {
		return err
	}
	if e.CachedAt.IsZero() {
		e.CachedAt = c.now()
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache put: %w", err)
	}
	defer tx.Rollback()

	if strings.TrimSpace(e.ID) == "" {
		var existing string
		err := tx.QueryRowContext(ctx, `SELECT id FROM ingredient_cache WHERE name_norm = ? LIMIT 1`, normalizeName(e.Name)).Scan(&existing)
		switch {
		case err == nil:
			e.ID = existing
		case errors.Is(err, sql.ErrNoRows):
			e.ID = newID()
		default:
			return fmt.Errorf("find cached ingredient: %w", err)
		}
	}
	if err := upsertCacheEntry(ctx, tx, e); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cache put: %w", err)
	}
	return nil
}

func (c *IngredientCache) All(ctx context.Context) ([]model.IngredientCacheEntry, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+cacheColumns+` FROM ingredient_cache ORDER BY name_norm, cached_at`)
	if err != nil {
		return nil, fmt.Errorf("list cached ingredients: %w", err)
	}
	defer rows.Close()
	items := make([]model.IngredientCacheEntry, 0)
	for rows.Next() {
		e, err := scanCacheEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cached ingredients: %w", err)
	}
	return items, nil
}

func upsertCacheEntry(ctx context.Context, ex execer, e *model.IngredientCacheEntry) error {
	n := e.NutrientsPer100g
	_, err := ex.ExecContext(ctx, `
INSERT INTO ingredient_cache(id, name, name_norm, protein, carbs, fat, calories, source, source_id, cached_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  name = excluded.name,
  name_norm = excluded.name_norm,
  protein = excluded.protein,
  carbs = excluded.carbs,
  fat = excluded.fat,
  calories = excluded.calories,
  source = excluded.source,
  source_id = excluded.source_id,
  cached_at = excluded.cached_at
`, e.ID, strings.TrimSpace(e.Name), normalizeName(e.Name), n.Protein, n.Carbs, n.Fat, n.Calories,
		e.Source, e.SourceID, toMillis(e.CachedAt))
	if err != nil {
		return fmt.Errorf("save cached ingredient: %w", err)
	}
	return nil
}

func scanCacheEntry(row rowScanner) (model.IngredientCacheEntry, error) {
	var (
		e      model.IngredientCacheEntry
		cached int64
	)
	if err := row.Scan(&e.ID, &e.Name, &e.NutrientsPer100g.Protein, &e.NutrientsPer100g.Carbs,
		&e.NutrientsPer100g.Fat, &e.NutrientsPer100g.Calories, &e.Source, &e.SourceID, &cached); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("scan cached ingredient: %w", err)
	}
	e.CachedAt = fromMillis(cached)
	return e, nil
}
