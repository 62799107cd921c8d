package mealops

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thorhanks/MealOps/internal/db"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize local mealops database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, func(ctx context.Context, sqldb *sql.DB) error {
			version, err := db.SchemaVersion(ctx, sqldb)
			if err != nil {
				return err
			}
			path, _ := resolveDBPath()
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized mealops database at %s (schema v%d)\n", path, version)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
