package mealops

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thorhanks/MealOps/internal/service"
)

var (
	exportOut    string
	importIn     string
	importDryRun bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all data as a JSON snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, func(ctx context.Context, sqldb *sql.DB) error {
			snap, err := service.Export(ctx, sqldb)
			if err != nil {
				return err
			}
			if strings.TrimSpace(exportOut) == "" || exportOut == "-" {
				return printJSON(cmd.OutOrStdout(), snap)
			}
			b, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal export json: %w", err)
			}
			if err := os.WriteFile(exportOut, b, 0o600); err != nil {
				return fmt.Errorf("write export file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d recipes, %d log entries, %d cached ingredients to %s\n",
				len(snap.Recipes), len(snap.ServingsLog), len(snap.IngredientCache), exportOut)
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a JSON snapshot, upserting records by id",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(importIn) == "" {
			return fmt.Errorf("--in is required")
		}
		data, err := os.ReadFile(importIn)
		if err != nil {
			return fmt.Errorf("read import file: %w", err)
		}
		snap, err := service.DecodeSnapshot(data)
		if err != nil {
			return err
		}
		return withDB(cmd, func(ctx context.Context, sqldb *sql.DB) error {
			counts, err := service.Import(ctx, sqldb, snap, service.ImportOptions{DryRun: importDryRun})
			if err != nil {
				return err
			}
			verb := "Imported"
			if counts.DryRun {
				verb = "Would import"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d recipes, %d log entries, %d cached ingredients",
				verb, counts.Recipes, counts.ServingsLog, counts.IngredientCache)
			if counts.Settings {
				fmt.Fprint(cmd.OutOrStdout(), " and settings")
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)

	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output file (default stdout)")
	importCmd.Flags().StringVar(&importIn, "in", "", "Snapshot file to import")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate and count without writing")
}
