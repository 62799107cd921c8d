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

type RecipeStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewRecipeStore(db *sql.DB) *RecipeStore {
	return &RecipeStore{db: db, now: time.Now}
}

const recipeColumns = `id, name, servings, instructions, protein, carbs, fat, calories, deleted, created_at, updated_at`

// ListActive returns non-deleted recipes ordered by name.
func (s *RecipeStore) ListActive(ctx context.Context) ([]model.Recipe, error) {
	return s.list(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE deleted = 0 ORDER BY name COLLATE NOCASE, id`)
}

// ListAll includes soft-deleted recipes.
func (s *RecipeStore) ListAll(ctx context.Context) ([]model.Recipe, error) {
	return s.list(ctx, `SELECT `+recipeColumns+` FROM recipes ORDER BY created_at, id`)
}

func (s *RecipeStore) list(ctx context.Context, query string, args ...any) ([]model.Recipe, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	items := make([]model.Recipe, 0)
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate recipes: %w", err)
	}
	rows.Close()

	// Ingredient rows are loaded after the cursor closes; the store has a
	// single connection.
	for i := range items {
		ings, err := listRecipeIngredients(ctx, s.db, items[i].ID)
		if err != nil {
			return nil, err
		}
		items[i].Ingredients = ings
	}
	return items, nil
}

// Get returns the recipe with the given id, soft-deleted or not.
func (s *RecipeStore) Get(ctx context.Context, id string) (*model.Recipe, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE id = ?`, strings.TrimSpace(id))
	r, err := scanRecipe(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("recipe %q: %w", id, ErrNotFound)
		}
		return nil, err
	}
	ings, err := listRecipeIngredients(ctx, s.db, r.ID)
	if err != nil {
		return nil, err
	}
	r.Ingredients = ings
	return &r, nil
}

// Resolve accepts an id or an active recipe name (case-insensitive).
func (s *RecipeStore) Resolve(ctx context.Context, idOrName string) (*model.Recipe, error) {
	idOrName = strings.TrimSpace(idOrName)
	if idOrName == "" {
		return nil, fmt.Errorf("%w: recipe identifier is required", ErrInvalidInput)
	}
	r, err := s.Get(ctx, idOrName)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	var id string
	err = s.db.QueryRowContext(ctx, `
SELECT id FROM recipes
WHERE deleted = 0 AND LOWER(TRIM(name)) = ?
ORDER BY updated_at DESC
LIMIT 1
`, normalizeName(idOrName)).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("recipe %q: %w", idOrName, ErrNotFound)
		}
		return nil, fmt.Errorf("resolve recipe: %w", err)
	}
	return s.Get(ctx, id)
}

// Save inserts or replaces a recipe and its ingredient rows. A recipe with
// an empty id is new: it gets an id, a created time and deleted=false.
// Macros are stored as given.
func (s *RecipeStore) Save(ctx context.Context, r *model.Recipe) error {
	if r == nil {
		return fmt.Errorf("%w: recipe is required", ErrInvalidInput)
	}
	if err := validateRecipe(r); err != nil {
		return err
	}
	now := s.now()
	if strings.TrimSpace(r.ID) == "" {
		r.ID = newID()
		r.Created = now
		r.Deleted = false
	}
	if r.Created.IsZero() {
		r.Created = now
	}
	r.Updated = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin recipe save: %w", err)
	}
	defer tx.Rollback()

	if err := upsertRecipe(ctx, tx, r); err != nil {
		return err
	}
	if err := replaceRecipeIngredients(ctx, tx, r.ID, r.Ingredients); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit recipe save: %w", err)
	}
	return nil
}

// SoftDelete hides a recipe from active listings. Ledger entries that
// reference it are kept. Deleting twice succeeds and refreshes updated.
func (s *RecipeStore) SoftDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE recipes SET deleted = 1, updated_at = ? WHERE id = ?`, toMillis(s.now()), strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete recipe rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("recipe %q: %w", id, ErrNotFound)
	}
	return nil
}

func validateRecipe(r *model.Recipe) error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return fmt.Errorf("%w: recipe name is required", ErrInvalidInput)
	}
	if r.Servings < 1 {
		return fmt.Errorf("%w: servings must be >= 1", ErrInvalidInput)
	}
	return validateMacros("", r.Macros)
}

func upsertRecipe(ctx context.Context, tx execer, r *model.Recipe) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO recipes(id, name, servings, instructions, protein, carbs, fat, calories, deleted, created_at, updated_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  name = excluded.name,
  servings = excluded.servings,
  instructions = excluded.instructions,
  protein = excluded.protein,
  carbs = excluded.carbs,
  fat = excluded.fat,
  calories = excluded.calories,
  deleted = excluded.deleted,
  created_at = excluded.created_at,
  updated_at = excluded.updated_at
`, r.ID, r.Name, r.Servings, r.Instructions,
		r.Macros.Protein, r.Macros.Carbs, r.Macros.Fat, r.Macros.Calories,
		boolToInt(r.Deleted), toMillis(r.Created), toMillis(r.Updated))
	if err != nil {
		return fmt.Errorf("save recipe: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecipe(row rowScanner) (model.Recipe, error) {
	var (
		r                model.Recipe
		deleted          int
		created, updated int64
	)
	if err := row.Scan(&r.ID, &r.Name, &r.Servings, &r.Instructions,
		&r.Macros.Protein, &r.Macros.Carbs, &r.Macros.Fat, &r.Macros.Calories,
		&deleted, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan recipe: %w", err)
	}
	r.Deleted = deleted != 0
	r.Created = fromMillis(created)
	r.Updated = fromMillis(updated)
	r.Ingredients = []model.Ingredient{}
	return r, nil
}
