package mealops

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thorhanks/MealOps/internal/model"
	"github.com/thorhanks/MealOps/internal/service"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change settings",
}

var (
	settingsTarget  float64
	settingsUSDAKey string
)

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, func(ctx context.Context, sqldb *sql.DB) error {
			s, err := service.NewSettingsStore(sqldb).Get(ctx)
			if err != nil {
				return err
			}
			key := "not set"
			if s.USDAAPIKey != "" {
				key = "set"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Target calories: %.0f\n", s.TargetCalories)
			fmt.Fprintf(cmd.OutOrStdout(), "USDA API key: %s\n", key)
			return nil
		})
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		targetChanged := cmd.Flags().Changed("target-calories")
		keyChanged := cmd.Flags().Changed("usda-api-key")
		if !targetChanged && !keyChanged {
			return fmt.Errorf("nothing to update: pass --target-calories or --usda-api-key")
		}
		return withDB(cmd, func(ctx context.Context, sqldb *sql.DB) error {
			s, err := service.NewSettingsStore(sqldb).Update(ctx, func(s *model.Settings) error {
				if targetChanged {
					s.TargetCalories = settingsTarget
				}
				if keyChanged {
					s.USDAAPIKey = settingsUSDAKey
				}
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated settings (target %.0f kcal)\n", s.TargetCalories)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)

	settingsSetCmd.Flags().Float64Var(&settingsTarget, "target-calories", service.DefaultTargetCalories, "Daily calorie target")
	settingsSetCmd.Flags().StringVar(&settingsUSDAKey, "usda-api-key", "", "USDA FoodData Central API key (empty to clear)")
}
