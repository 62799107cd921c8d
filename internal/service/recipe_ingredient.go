package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/thorhanks/MealOps/internal/model"
)

// IngredientInput describes an ingredient with nutrition per 100g, the
// shape returned by a food lookup or typed in by hand.
type IngredientInput struct {
	Name     string                 `json:"name"`
	Amount   float64                `json:"amount"`
	Unit     string                 `json:"unit"`
	Per100g  model.Macros           `json:"per100g"`
	Source   model.IngredientSource `json:"source,omitempty"`
	SourceID string                 `json:"sourceId,omitempty"`
}

// BuildIngredient converts per-100g nutrition into the batch nutrition of
// the given amount. Units without a fixed weight count as 100g, so the
// per-100g values are used as-is.
func BuildIngredient(in IngredientInput) (model.Ingredient, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Ingredient{}, fmt.Errorf("%w: ingredient name is required", ErrInvalidInput)
	}
	if err := validateNonNegativeFloat("ingredient amount", in.Amount); err != nil {
		return model.Ingredient{}, err
	}
	if err := validateMacros("ingredient ", in.Per100g); err != nil {
		return model.Ingredient{}, err
	}
	source := in.Source
	if source == "" {
		source = model.SourceManual
	}

	ing := model.Ingredient{
		Name:     name,
		Amount:   in.Amount,
		Unit:     strings.TrimSpace(in.Unit),
		Source:   source,
		SourceID: strings.TrimSpace(in.SourceID),
	}
	grams, ok := ToGrams(in.Amount, in.Unit)
	if !ok {
		ing.GramsEquivalent = 100
		ing.Nutrition = RoundMacros(in.Per100g)
		return ing, nil
	}
	ing.GramsEquivalent = grams
	ing.Nutrition = ScaleMacros(in.Per100g, grams)
	return ing, nil
}

// ComputeRecipeMacros sums ingredient nutrition and divides by servings,
// rounding each field to one decimal.
func ComputeRecipeMacros(ingredients []model.Ingredient, servings int) (model.Macros, error) {
	if servings < 1 {
		return model.Macros{}, fmt.Errorf("%w: servings must be >= 1", ErrInvalidInput)
	}
	total := model.Macros{}
	for _, ing := range ingredients {
		total = SumMacros(total, ing.Nutrition)
	}
	return RoundMacros(MultiplyMacros(total, 1/float64(servings))), nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func replaceRecipeIngredients(ctx context.Context, tx execer, recipeID string, ingredients []model.Ingredient) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM recipe_ingredients WHERE recipe_id = ?`, recipeID); err != nil {
		return fmt.Errorf("clear recipe ingredients: %w", err)
	}
	for i, ing := range ingredients {
		if strings.TrimSpace(ing.Name) == "" {
			return fmt.Errorf("%w: ingredient %d name is required", ErrInvalidInput, i+1)
		}
		if err := validateNonNegativeFloat("ingredient amount", ing.Amount); err != nil {
			return err
		}
		if err := validateMacros("ingredient ", ing.Nutrition); err != nil {
			return err
		}
		source := ing.Source
		if source == "" {
			source = model.SourceManual
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO recipe_ingredients(recipe_id, position, name, amount, unit, grams_equivalent, protein, carbs, fat, calories, source, source_id)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, recipeID, i, strings.TrimSpace(ing.Name), ing.Amount, strings.TrimSpace(ing.Unit), ing.GramsEquivalent,
			ing.Nutrition.Protein, ing.Nutrition.Carbs, ing.Nutrition.Fat, ing.Nutrition.Calories, string(source), ing.SourceID); err != nil {
			return fmt.Errorf("insert recipe ingredient: %w", err)
		}
	}
	return nil
}

func listRecipeIngredients(ctx context.Context, q queryer, recipeID string) ([]model.Ingredient, error) {
	rows, err := q.QueryContext(ctx, `
SELECT name, amount, unit, grams_equivalent, protein, carbs, fat, calories, source, source_id
FROM recipe_ingredients
WHERE recipe_id = ?
ORDER BY position ASC
`, recipeID)
	if err != nil {
		return nil, fmt.Errorf("list recipe ingredients: %w", err)
	}
	defer rows.Close()
	items := make([]model.Ingredient, 0)
	for rows.Next() {
		var (
			it     model.Ingredient
			source string
		)
		if err := rows.Scan(&it.Name, &it.Amount, &it.Unit, &it.GramsEquivalent,
			&it.Nutrition.Protein, &it.Nutrition.Carbs, &it.Nutrition.Fat, &it.Nutrition.Calories,
			&source, &it.SourceID); err != nil {
			return nil, fmt.Errorf("scan recipe ingredient: %w", err)
		}
		it.Source = model.IngredientSource(source)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipe ingredients: %w", err)
	}
	return items, nil
}
