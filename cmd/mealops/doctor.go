package mealops

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thorhanks/MealOps/internal/service"
)

var doctorFix bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run data integrity checks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, func(ctx context.Context, sqldb *sql.DB) error {
			report, err := service.RunDoctor(ctx, sqldb, doctorFix)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Entries for missing recipes: %d\n", report.OrphanEntries)
			fmt.Fprintf(out, "Recipes eaten past production: %d\n", report.OverConsumedRecipes)
			fmt.Fprintf(out, "Orphan ingredient rows: %d\n", report.OrphanIngredientRows)
			fmt.Fprintf(out, "Duplicate cache rows: %d\n", report.DuplicateCacheRows)
			if doctorFix {
				fmt.Fprintf(out, "Fixed rows: %d\n", report.FixedRows)
				// Re-check after fixes so exit status reflects final state.
				report, err = service.RunDoctor(ctx, sqldb, false)
				if err != nil {
					return err
				}
			}
			if report.OrphanIngredientRows > 0 || report.DuplicateCacheRows > 0 {
				return fmt.Errorf("doctor found integrity issues (run with --fix)")
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "Attempt safe auto-fixes")
}
