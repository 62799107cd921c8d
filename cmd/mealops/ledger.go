package mealops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/thorhanks/MealOps/internal/model"
	"github.com/thorhanks/MealOps/internal/service"
)

var (
	entryServings int
	entryDate     string

	foodName     string
	foodAmount   float64
	foodUnit     string
	foodCalories float64
	foodProtein  float64
	foodCarbs    float64
	foodFat      float64
	foodLookup   bool

	logFrom   string
	logTo     string
	logType   string
	logRecipe string
	logLimit  int
	logJSON   bool
)

var makeCmd = &cobra.Command{
	Use:   "make <recipe-id|name>",
	Short: "Record cooking servings of a recipe",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return logRecipeEntry(cmd, args[0], model.EntryProduction)
	},
}

var eatCmd = &cobra.Command{
	Use:   "eat <recipe-id|name>",
	Short: "Record eating servings of a recipe",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return logRecipeEntry(cmd, args[0], model.EntryConsumption)
	},
}

var foodCmd = &cobra.Command{
	Use:   "food",
	Short: "Record eating food that is not a recipe",
	Long: "Record ad-hoc food. Give the macros of the amount eaten with --calories/--protein/--carbs/--fat, " +
		"or use --lookup to fetch nutrition per 100g and scale it by --amount and --unit.",
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := parseDateFlag(entryDate)
		if err != nil {
			return err
		}
		return withDB(cmd, func(ctx context.Context, sqldb *sql.DB) error {
			macros := model.Macros{Protein: foodProtein, Carbs: foodCarbs, Fat: foodFat, Calories: foodCalories}
			if foodLookup {
				if macros, err = lookupFoodMacros(ctx, sqldb); err != nil {
					return err
				}
			}
			e := &model.LogEntry{
				Type:     model.EntryConsumption,
				FoodName: foodName,
				Amount:   foodAmount,
				Unit:     foodUnit,
				Macros:   &macros,
				Date:     withClock(date),
			}
			if err := service.NewLedger(sqldb).Append(ctx, e); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged %s (%s) on %s\n", e.FoodName, formatMacros(macros), e.Date.Format(service.DateLayout))
			return nil
		})
	},
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Inspect and correct the servings log",
}

var logListCmd = &cobra.Command{
	Use:   "list",
	Short: "List log entries, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := service.LogFilter{
			Type:     model.EntryType(strings.ToLower(strings.TrimSpace(logType))),
			RecipeID: logRecipe,
			Limit:    logLimit,
		}
		if logFrom != "" {
			from, err := parseDateFlag(logFrom)
			if err != nil {
				return err
			}
			filter.From = service.StartOfDay(from)
		}
		if logTo != "" {
			to, err := parseDateFlag(logTo)
			if err != nil {
				return err
			}
			filter.To = service.EndOfDay(to)
		}
		return withDB(cmd, func(ctx context.Context, sqldb *sql.DB) error {
			if filter.RecipeID != "" {
				r, err := service.NewRecipeStore(sqldb).Resolve(ctx, filter.RecipeID)
				if err != nil {
					return err
				}
				filter.RecipeID = r.ID
			}
			entries, err := service.NewLedger(sqldb).List(ctx, filter)
			if err != nil {
				return err
			}
			resolved, err := service.NewAggregator(sqldb).Resolve(ctx, entries)
			if err != nil {
				return err
			}
			if logJSON {
				return printJSON(cmd.OutOrStdout(), resolved)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ID\tDATE\tTYPE\tNAME\tDETAIL\tKCAL")
			for _, re := range resolved {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%s\t%.1f\n",
					re.Entry.ID, re.Entry.Date.Format("2006-01-02 15:04"), re.Entry.Type, re.Name, re.Detail, re.Macros.Calories)
			}
			return nil
		})
	},
}

var logRemoveCmd = &cobra.Command{
	Use:   "remove <entry-id>",
	Short: "Remove a mistaken log entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, func(ctx context.Context, sqldb *sql.DB) error {
			if err := service.NewLedger(sqldb).Remove(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed entry %s\n", args[0])
			return nil
		})
	},
}

func logRecipeEntry(cmd *cobra.Command, ref string, typ model.EntryType) error {
	date, err := parseDateFlag(entryDate)
	if err != nil {
		return err
	}
	return withDB(cmd, func(ctx context.Context, sqldb *sql.DB) error {
		r, err := service.NewRecipeStore(sqldb).Resolve(ctx, ref)
		if err != nil {
			return err
		}
		ledger := service.NewLedger(sqldb)
		before, err := ledger.InventoryOf(ctx, r.ID)
		if err != nil {
			return err
		}
		if typ == model.EntryConsumption && entryServings > before {
			logger.Warn("eating more servings than on hand", "recipe", r.Name, "onHand", before, "servings", entryServings)
		}
		e := &model.LogEntry{
			Type:     typ,
			RecipeID: r.ID,
			Servings: entryServings,
			Date:     withClock(date),
		}
		if err := ledger.Append(ctx, e); err != nil {
			return err
		}
		after, err := ledger.InventoryOf(ctx, r.ID)
		if err != nil {
			return err
		}
		verb := "Made"
		if typ == model.EntryConsumption {
			verb = "Ate"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d serving(s) of %s on %s. On hand: %d\n",
			verb, e.Servings, r.Name, e.Date.Format(service.DateLayout), after)
		return nil
	})
}

// withClock keeps the current time of day when logging against today so
// same-day entries stay ordered; other days are logged at midnight.
func withClock(day time.Time) time.Time {
	now := time.Now()
	if service.StartOfDay(now).Equal(day) {
		return now
	}
	return day
}

func lookupFoodMacros(ctx context.Context, sqldb *sql.DB) (model.Macros, error) {
	searcher, err := newSearcher(ctx, sqldb, "")
	if err != nil {
		return model.Macros{}, err
	}
	entry, hit, err := service.LookupIngredient(ctx, service.NewIngredientCache(sqldb), searcher, foodName)
	if err != nil {
		return model.Macros{}, err
	}
	logger.Debug("food nutrition resolved", "name", foodName, "cached", hit)
	ing, err := service.BuildIngredient(service.IngredientInput{
		Name:    foodName,
		Amount:  foodAmount,
		Unit:    foodUnit,
		Per100g: entry.NutrientsPer100g,
	})
	if err != nil {
		return model.Macros{}, err
	}
	return ing.Nutrition, nil
}

func init() {
	rootCmd.AddCommand(makeCmd, eatCmd, foodCmd, logCmd)
	logCmd.AddCommand(logListCmd, logRemoveCmd)

	for _, c := range []*cobra.Command{makeCmd, eatCmd} {
		c.Flags().IntVar(&entryServings, "servings", 1, "Number of servings")
		c.Flags().StringVar(&entryDate, "date", "", "Date YYYY-MM-DD, today or yesterday (default today)")
	}
	foodCmd.Flags().StringVar(&entryDate, "date", "", "Date YYYY-MM-DD, today or yesterday (default today)")
	foodCmd.Flags().StringVar(&foodName, "name", "", "Food name")
	foodCmd.Flags().Float64Var(&foodAmount, "amount", 1, "Amount eaten")
	foodCmd.Flags().StringVar(&foodUnit, "unit", "", "Unit of --amount (g, oz, cup, ...)")
	foodCmd.Flags().Float64Var(&foodCalories, "calories", 0, "Calories eaten")
	foodCmd.Flags().Float64Var(&foodProtein, "protein", 0, "Protein grams eaten")
	foodCmd.Flags().Float64Var(&foodCarbs, "carbs", 0, "Carb grams eaten")
	foodCmd.Flags().Float64Var(&foodFat, "fat", 0, "Fat grams eaten")
	foodCmd.Flags().BoolVar(&foodLookup, "lookup", false, "Fetch nutrition per 100g and scale by --amount/--unit")
	_ = foodCmd.MarkFlagRequired("name")

	logListCmd.Flags().StringVar(&logFrom, "from", "", "Start date YYYY-MM-DD")
	logListCmd.Flags().StringVar(&logTo, "to", "", "End date YYYY-MM-DD")
	logListCmd.Flags().StringVar(&logType, "type", "", "production or consumption")
	logListCmd.Flags().StringVar(&logRecipe, "recipe", "", "Recipe id or name")
	logListCmd.Flags().IntVar(&logLimit, "limit", 50, "Maximum entries (0 for all)")
	logListCmd.Flags().BoolVar(&logJSON, "json", false, "Output JSON")
}
