package mealops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thorhanks/MealOps/internal/model"
	"github.com/thorhanks/MealOps/internal/service"
)

var recipeCmd = &cobra.Command{
	Use:   "recipe",
	Short: "Manage recipes",
}

var (
	recipeName         string
	recipeServings     int
	recipeInstructions string
	recipeIngredients  []string
	recipeLookup       bool
	recipeCalories     float64
	recipeProtein      float64
	recipeCarbs        float64
	recipeFat          float64
	recipeListAll      bool
	recipeJSON         bool
)

var recipeAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a recipe",
	Long: "Create a recipe from ingredients given as name:amount:unit:protein:carbs:fat:calories " +
		"(nutrition per 100g). With --lookup, ingredients may be given as name:amount:unit and " +
		"nutrition is fetched from the cache or an external provider. Without ingredients, " +
		"per-serving macros come from --calories/--protein/--carbs/--fat.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, func(ctx context.Context, sqldb *sql.DB) error {
			r, err := buildRecipe(ctx, sqldb)
			if err != nil {
				return err
			}
			if err := service.NewRecipeStore(sqldb).Save(ctx, r); err != nil {
				return err
			}
			logger.Info("recipe created", "id", r.ID, "name", r.Name)
			fmt.Fprintf(cmd.OutOrStdout(), "Created recipe %s (%s)\n", r.Name, r.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "Per serving: %s\n", formatMacros(r.Macros))
			return nil
		})
	},
}

var recipeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recipes with servings on hand",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, func(ctx context.Context, sqldb *sql.DB) error {
			store := service.NewRecipeStore(sqldb)
			list := store.ListActive
			if recipeListAll {
				list = store.ListAll
			}
			recipes, err := list(ctx)
			if err != nil {
				return err
			}
			ledger := service.NewLedger(sqldb)
			if recipeJSON {
				items := make([]model.InventoryItem, 0, len(recipes))
				for _, r := range recipes {
					inv, err := ledger.InventoryOf(ctx, r.ID)
					if err != nil {
						return err
					}
					items = append(items, model.InventoryItem{Recipe: r, Inventory: inv})
				}
				return printJSON(cmd.OutOrStdout(), items)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ID\tNAME\tSERVINGS\tON HAND\tKCAL\tP\tC\tF")
			for _, r := range recipes {
				inv, err := ledger.InventoryOf(ctx, r.ID)
				if err != nil {
					return err
				}
				name := r.Name
				if r.Deleted {
					name += " (deleted)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d\t%d\t%.1f\t%.1f\t%.1f\t%.1f\n",
					r.ID, name, r.Servings, inv, r.Macros.Calories, r.Macros.Protein, r.Macros.Carbs, r.Macros.Fat)
			}
			return nil
		})
	},
}

var recipeShowCmd = &cobra.Command{
	Use:   "show <id|name>",
	Short: "Show recipe details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, func(ctx context.Context, sqldb *sql.DB) error {
			r, err := service.NewRecipeStore(sqldb).Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			inv, err := service.NewLedger(sqldb).InventoryOf(ctx, r.ID)
			if err != nil {
				return err
			}
			if recipeJSON {
				return printJSON(cmd.OutOrStdout(), model.InventoryItem{Recipe: *r, Inventory: inv})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID: %s\nName: %s\nServings per batch: %d\nOn hand: %d\n", r.ID, r.Name, r.Servings, inv)
			fmt.Fprintf(out, "Per serving: %s\n", formatMacros(r.Macros))
			if r.Deleted {
				fmt.Fprintln(out, "Status: deleted")
			}
			if len(r.Ingredients) > 0 {
				fmt.Fprintln(out, "Ingredients:")
				for _, ing := range r.Ingredients {
					fmt.Fprintf(out, "  %s\t%g %s\t%.0fg\t%s\n", ing.Name, ing.Amount, ing.Unit, ing.GramsEquivalent, formatMacros(ing.Nutrition))
				}
			}
			if strings.TrimSpace(r.Instructions) != "" {
				fmt.Fprintf(out, "Instructions:\n%s\n", r.Instructions)
			}
			return nil
		})
	},
}

var recipeDeleteCmd = &cobra.Command{
	Use:   "delete <id|name>",
	Short: "Delete a recipe (history is kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, func(ctx context.Context, sqldb *sql.DB) error {
			store := service.NewRecipeStore(sqldb)
			r, err := store.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			if err := store.SoftDelete(ctx, r.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted recipe %q\n", r.Name)
			return nil
		})
	},
}

var recipeUnitsCmd = &cobra.Command{
	Use:   "units",
	Short: "List ingredient units",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), "UNIT\tLABEL\tGRAMS")
		for _, opt := range service.UnitOptions() {
			grams := "per 100g"
			if g, ok := service.ToGrams(1, opt.Value); ok {
				grams = fmt.Sprintf("%g", g)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", opt.Value, opt.Label, grams)
		}
		return nil
	},
}

func buildRecipe(ctx context.Context, sqldb *sql.DB) (*model.Recipe, error) {
	r := &model.Recipe{
		Name:         recipeName,
		Servings:     recipeServings,
		Instructions: recipeInstructions,
		Ingredients:  make([]model.Ingredient, 0, len(recipeIngredients)),
	}
	if len(recipeIngredients) == 0 {
		r.Macros = service.RoundMacros(model.Macros{
			Protein:  recipeProtein,
			Carbs:    recipeCarbs,
			Fat:      recipeFat,
			Calories: recipeCalories,
		})
		return r, nil
	}

	var searcher service.FoodSearcher
	if recipeLookup {
		var err error
		if searcher, err = newSearcher(ctx, sqldb, ""); err != nil {
			return nil, err
		}
	}
	cache := service.NewIngredientCache(sqldb)
	for _, spec := range recipeIngredients {
		in, err := ingredientInput(ctx, cache, searcher, spec)
		if err != nil {
			return nil, err
		}
		ing, err := service.BuildIngredient(in)
		if err != nil {
			return nil, err
		}
		r.Ingredients = append(r.Ingredients, ing)
	}
	macros, err := service.ComputeRecipeMacros(r.Ingredients, r.Servings)
	if err != nil {
		return nil, err
	}
	r.Macros = macros
	return r, nil
}

// ingredientInput parses a full spec, or with a searcher a short
// name:amount:unit spec whose nutrition is looked up.
func ingredientInput(ctx context.Context, cache *service.IngredientCache, searcher service.FoodSearcher, spec string) (service.IngredientInput, error) {
	parts := strings.Split(spec, ":")
	if searcher == nil || len(parts) != 3 {
		return parseIngredientSpec(spec)
	}
	in, err := parseIngredientSpec(spec + ":0:0:0:0")
	if err != nil {
		return service.IngredientInput{}, err
	}
	entry, hit, err := service.LookupIngredient(ctx, cache, searcher, in.Name)
	if err != nil {
		return service.IngredientInput{}, err
	}
	logger.Debug("ingredient nutrition resolved", "name", in.Name, "cached", hit, "source", entry.Source)
	in.Per100g = entry.NutrientsPer100g
	if entry.Source == service.ProviderUSDA {
		in.Source = model.SourceUSDAAPI
		in.SourceID = entry.SourceID
	}
	return in, nil
}

func init() {
	rootCmd.AddCommand(recipeCmd)
	recipeCmd.AddCommand(recipeAddCmd, recipeListCmd, recipeShowCmd, recipeDeleteCmd, recipeUnitsCmd)

	recipeAddCmd.Flags().StringVar(&recipeName, "name", "", "Recipe name")
	recipeAddCmd.Flags().IntVar(&recipeServings, "servings", 1, "Servings per batch")
	recipeAddCmd.Flags().StringVar(&recipeInstructions, "instructions", "", "Preparation notes")
	recipeAddCmd.Flags().StringArrayVar(&recipeIngredients, "ingredient", nil, "Ingredient as name:amount:unit:protein:carbs:fat:calories per 100g (repeatable)")
	recipeAddCmd.Flags().BoolVar(&recipeLookup, "lookup", false, "Fetch nutrition for name:amount:unit ingredients")
	recipeAddCmd.Flags().Float64Var(&recipeCalories, "calories", 0, "Calories per serving (without --ingredient)")
	recipeAddCmd.Flags().Float64Var(&recipeProtein, "protein", 0, "Protein grams per serving (without --ingredient)")
	recipeAddCmd.Flags().Float64Var(&recipeCarbs, "carbs", 0, "Carb grams per serving (without --ingredient)")
	recipeAddCmd.Flags().Float64Var(&recipeFat, "fat", 0, "Fat grams per serving (without --ingredient)")
	_ = recipeAddCmd.MarkFlagRequired("name")

	recipeListCmd.Flags().BoolVar(&recipeListAll, "all", false, "Include deleted recipes")
	recipeListCmd.Flags().BoolVar(&recipeJSON, "json", false, "Output JSON")
	recipeShowCmd.Flags().BoolVar(&recipeJSON, "json", false, "Output JSON")
}
