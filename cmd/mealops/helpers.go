package mealops

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/thorhanks/MealOps/internal/app"
	"github.com/thorhanks/MealOps/internal/db"
	"github.com/thorhanks/MealOps/internal/model"
	"github.com/thorhanks/MealOps/internal/service"
)

func resolveDBPath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	return app.DefaultDBPath()
}

// withDB opens and migrates the store for the duration of run.
func withDB(cmd *cobra.Command, run func(context.Context, *sql.DB) error) error {
	path, err := resolveDBPath()
	if err != nil {
		return err
	}
	if err := app.EnsureDBDir(path); err != nil {
		return err
	}
	handle := db.NewHandle(path, logger)
	defer handle.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sqldb, err := handle.Open(ctx)
	if err != nil {
		return err
	}
	return run(ctx, sqldb)
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(w, string(b))
	return nil
}

func parseDateFlag(value string) (time.Time, error) {
	t, err := service.ParseDate(value, time.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q (expected YYYY-MM-DD, today or yesterday)", value)
	}
	return t, nil
}

// parseIngredientSpec reads "name:amount:unit:protein:carbs:fat:calories",
// nutrition given per 100g. Unit may be empty for a plain count.
func parseIngredientSpec(spec string) (service.IngredientInput, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 7 {
		return service.IngredientInput{}, fmt.Errorf("invalid --ingredient %q (expected name:amount:unit:protein:carbs:fat:calories)", spec)
	}
	nums := make([]float64, 0, 5)
	for i, label := range []string{"amount", "protein", "carbs", "fat", "calories"} {
		idx := 1
		if i > 0 {
			idx = i + 2
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[idx]), 64)
		if err != nil {
			return service.IngredientInput{}, fmt.Errorf("invalid ingredient %s %q in %q", label, parts[idx], spec)
		}
		nums = append(nums, v)
	}
	return service.IngredientInput{
		Name:    strings.TrimSpace(parts[0]),
		Amount:  nums[0],
		Unit:    strings.TrimSpace(parts[2]),
		Per100g: model.Macros{Protein: nums[1], Carbs: nums[2], Fat: nums[3], Calories: nums[4]},
	}, nil
}

func formatMacros(m model.Macros) string {
	return fmt.Sprintf("%.1f kcal | P %.1fg | C %.1fg | F %.1fg", m.Calories, m.Protein, m.Carbs, m.Fat)
}
