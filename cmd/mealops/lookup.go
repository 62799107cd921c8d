package mealops

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thorhanks/MealOps/internal/app"
	"github.com/thorhanks/MealOps/internal/service"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Lookup nutrition data from external providers",
}

const (
	usdaAPIGuideURL      = "https://fdc.nal.usda.gov/api-guide/"
	usdaSignupURL        = "https://api.data.gov/signup/"
	usdaRateLimitSummary = "USDA default rate limit is 1,000 requests per hour per IP."
	offAPIDocsURL        = "https://openfoodfacts.github.io/openfoodfacts-server/api/"
	offRateLimitSummary  = "Open Food Facts enforces fair-use limits and requires a descriptive User-Agent."
)

var (
	lookupProvider string
	lookupAPIKey   string
	lookupLimit    int
	lookupJSON     bool
)

var lookupSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search foods and show nutrition per 100g",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		return withDB(cmd, func(ctx context.Context, sqldb *sql.DB) error {
			searcher, err := newSearcher(ctx, sqldb, lookupProvider)
			if err != nil {
				return err
			}
			items, err := service.NewSearchSession(searcher).Search(ctx, query, lookupLimit)
			if err != nil {
				return err
			}
			if lookupJSON {
				return printJSON(cmd.OutOrStdout(), items)
			}
			if len(items) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No matches for %q\n", query)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "PROVIDER\tID\tFOOD\tBRAND\tKCAL\tP\tC\tF")
			for _, it := range items {
				m := it.NutrientsPer100g
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%.1f\t%.1f\t%.1f\t%.1f\n",
					it.Provider, it.ID, it.Description, it.Brand, m.Calories, m.Protein, m.Carbs, m.Fat)
			}
			return nil
		})
	},
}

var lookupIngredientCmd = &cobra.Command{
	Use:   "ingredient <name>",
	Short: "Show cached nutrition for an ingredient, fetching it on a miss",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args, " ")
		return withDB(cmd, func(ctx context.Context, sqldb *sql.DB) error {
			searcher, err := newSearcher(ctx, sqldb, lookupProvider)
			if err != nil {
				return err
			}
			entry, hit, err := service.LookupIngredient(ctx, service.NewIngredientCache(sqldb), searcher, name)
			if err != nil {
				return err
			}
			if lookupJSON {
				return printJSON(cmd.OutOrStdout(), entry)
			}
			source := "live"
			if hit {
				source = "cache"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ingredient: %s (%s)\n", entry.Name, source)
			fmt.Fprintf(cmd.OutOrStdout(), "Provider: %s %s\n", entry.Source, entry.SourceID)
			fmt.Fprintf(cmd.OutOrStdout(), "Per 100g: %s\n", formatMacros(entry.NutrientsPer100g))
			return nil
		})
	},
}

var lookupCacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "List cached ingredient nutrition",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, func(ctx context.Context, sqldb *sql.DB) error {
			items, err := service.NewIngredientCache(sqldb).All(ctx)
			if err != nil {
				return err
			}
			if lookupJSON {
				return printJSON(cmd.OutOrStdout(), items)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "NAME\tPROVIDER\tKCAL\tP\tC\tF\tCACHED")
			for _, it := range items {
				m := it.NutrientsPer100g
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%.1f\t%.1f\t%.1f\t%.1f\t%s\n",
					it.Name, it.Source, m.Calories, m.Protein, m.Carbs, m.Fat, it.CachedAt.Format(service.DateLayout))
			}
			return nil
		})
	},
}

var lookupProvidersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List lookup providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), providersHelpText())
		return nil
	},
}

var lookupUSDAHelpCmd = &cobra.Command{
	Use:   "usda-help",
	Short: "Show setup and usage guidance for the USDA provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), usdaHelpText())
		return nil
	},
}

var lookupOpenFoodFactsHelpCmd = &cobra.Command{
	Use:   "openfoodfacts-help",
	Short: "Show setup and usage guidance for the Open Food Facts provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), openFoodFactsHelpText())
		return nil
	},
}

func usdaHelpText() string {
	return fmt.Sprintf(`USDA FoodData Central setup:
1. Get an API key: %s
2. API guide: %s
3. Save it with: mealops settings set --usda-api-key <key>
   or export %s=<key>

Rate limits / usage:
- %s
- Looked-up ingredients are cached locally to reduce repeated requests.`,
		usdaSignupURL, usdaAPIGuideURL, app.EnvUSDAAPIKey, usdaRateLimitSummary)
}

func openFoodFactsHelpText() string {
	return fmt.Sprintf(`Open Food Facts:
- API key: not required
- API docs: %s
- Used when no USDA key is configured, and as the fallback when USDA fails.
- Force it with: mealops lookup search <query> --provider openfoodfacts

Rate limits / usage:
- %s
- Looked-up ingredients are cached locally to reduce repeated requests.`, offAPIDocsURL, offRateLimitSummary)
}

func providersHelpText() string {
	return `Available providers:
- usda: requires an API key
- openfoodfacts: no API key required

Without --provider, USDA is tried first when a key is configured and
Open Food Facts is used otherwise.

Useful commands:
- mealops lookup usda-help
- mealops lookup openfoodfacts-help
- mealops lookup search <query> [--provider usda|openfoodfacts]
- mealops lookup ingredient <name>`
}

// resolveUSDAAPIKey prefers the --api-key flag, then MEALOPS_USDA_API_KEY,
// then the key saved in settings.
func resolveUSDAAPIKey(ctx context.Context, sqldb *sql.DB, flagValue string) (string, error) {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v, nil
	}
	if v := strings.TrimSpace(os.Getenv(app.EnvUSDAAPIKey)); v != "" {
		return v, nil
	}
	s, err := service.NewSettingsStore(sqldb).Get(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(s.USDAAPIKey), nil
}

func newSearcher(ctx context.Context, sqldb *sql.DB, provider string) (service.FoodSearcher, error) {
	key, err := resolveUSDAAPIKey(ctx, sqldb, lookupAPIKey)
	if err != nil {
		return nil, err
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == service.ProviderUSDA && key == "" {
		return nil, fmt.Errorf("missing USDA API key; set --api-key or %s (see: mealops lookup usda-help)", app.EnvUSDAAPIKey)
	}
	return service.NewFoodSearcher(provider, key)
}

func init() {
	rootCmd.AddCommand(lookupCmd)
	lookupCmd.AddCommand(lookupSearchCmd, lookupIngredientCmd, lookupCacheCmd, lookupProvidersCmd, lookupUSDAHelpCmd, lookupOpenFoodFactsHelpCmd)

	for _, c := range []*cobra.Command{lookupSearchCmd, lookupIngredientCmd} {
		c.Flags().StringVar(&lookupProvider, "provider", "", "Provider: usda or openfoodfacts (default: usda when a key is set)")
		c.Flags().StringVar(&lookupAPIKey, "api-key", "", "USDA API key (fallback: "+app.EnvUSDAAPIKey+" or settings)")
	}
	for _, c := range []*cobra.Command{lookupSearchCmd, lookupIngredientCmd, lookupCacheCmd} {
		c.Flags().BoolVar(&lookupJSON, "json", false, "Output as JSON")
	}
	lookupSearchCmd.Flags().IntVar(&lookupLimit, "limit", 10, "Maximum matches")
	recipeAddCmd.Flags().StringVar(&lookupAPIKey, "api-key", "", "USDA API key for --lookup")
	foodCmd.Flags().StringVar(&lookupAPIKey, "api-key", "", "USDA API key for --lookup")
}
