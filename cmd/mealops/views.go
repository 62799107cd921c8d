package mealops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/thorhanks/MealOps/internal/service"
)

var (
	viewDate     string
	viewJSON     bool
	weekSelected string
	reportFrom   string
	reportTo     string
	reportTolPct float64
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Show servings on hand per recipe",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, func(ctx context.Context, sqldb *sql.DB) error {
			items, err := service.NewLedger(sqldb).AllInventory(ctx)
			if err != nil {
				return err
			}
			if viewJSON {
				return printJSON(cmd.OutOrStdout(), items)
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing on hand. Log a batch with `mealops make`.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "RECIPE\tON HAND\tKCAL/SERVING")
			for _, it := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%.1f\n", it.Recipe.Name, it.Inventory, it.Recipe.Macros.Calories)
			}
			return nil
		})
	},
}

var dayCmd = &cobra.Command{
	Use:     "day",
	Aliases: []string{"today"},
	Short:   "Show what was eaten on a day and progress to the calorie target",
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := parseDateFlag(viewDate)
		if err != nil {
			return err
		}
		return withDB(cmd, func(ctx context.Context, sqldb *sql.DB) error {
			status, err := service.NewAggregator(sqldb).DayStatus(ctx, date)
			if err != nil {
				return err
			}
			if viewJSON {
				return printJSON(cmd.OutOrStdout(), status)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Date: %s\n", status.Date)
			fmt.Fprintf(out, "Eaten: %s\n", formatMacros(status.Totals))
			fmt.Fprintf(out, "Target: %.0f kcal (%d%%)\n", status.TargetCalories, status.CaloriePercent)
			fmt.Fprintf(out, "Remaining: %.1f kcal\n", status.RemainingCalories)
			if len(status.Entries) > 0 {
				fmt.Fprintln(out, "Entries:")
				for _, re := range status.Entries {
					fmt.Fprintf(out, "  %s\t%s\t%.1f kcal\n", re.Name, re.Detail, re.Macros.Calories)
				}
			}
			return nil
		})
	},
}

var weekCmd = &cobra.Command{
	Use:   "week",
	Short: "Show daily calories for the week containing --date",
	RunE: func(cmd *cobra.Command, args []string) error {
		anchor, err := parseDateFlag(viewDate)
		if err != nil {
			return err
		}
		selected := anchor
		if weekSelected != "" {
			if selected, err = parseDateFlag(weekSelected); err != nil {
				return err
			}
		}
		return withDB(cmd, func(ctx context.Context, sqldb *sql.DB) error {
			settings, err := service.NewSettingsStore(sqldb).Get(ctx)
			if err != nil {
				return err
			}
			buckets, err := service.NewAggregator(sqldb).WeeklyTrend(ctx, anchor, selected, settings.TargetCalories)
			if err != nil {
				return err
			}
			if viewJSON {
				return printJSON(cmd.OutOrStdout(), buckets)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Week of %s (target %.0f kcal)\n", service.WeekStart(anchor).Format(service.DateLayout), settings.TargetCalories)
			for _, b := range buckets {
				marker := " "
				if b.IsSelected {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\t%7.1f\t%s\n",
					marker, b.Date.Format("Mon"), b.Date.Format(service.DateLayout), b.Calories, bar(b.Calories, b.Target))
			}
			return nil
		})
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize consumption over a date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now()
		to := now
		from := now.AddDate(0, 0, -6)
		var err error
		if reportFrom != "" {
			if from, err = parseDateFlag(reportFrom); err != nil {
				return err
			}
		}
		if reportTo != "" {
			if to, err = parseDateFlag(reportTo); err != nil {
				return err
			}
		}
		return withDB(cmd, func(ctx context.Context, sqldb *sql.DB) error {
			report, err := service.NewAggregator(sqldb).Range(ctx, from, to, reportTolPct/100)
			if err != nil {
				return err
			}
			if viewJSON {
				return printJSON(cmd.OutOrStdout(), report)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Range: %s to %s\n", report.FromDate, report.ToDate)
			fmt.Fprintf(out, "Total: %s\n", formatMacros(report.Total))
			fmt.Fprintf(out, "Days with entries: %d\n", report.DaysWithEntries)
			fmt.Fprintf(out, "Average per day: %.1f kcal | P %.1fg | C %.1fg | F %.1fg\n",
				report.AverageCaloriesPerDay, report.AverageProteinPerDay, report.AverageCarbsPerDay, report.AverageFatPerDay)
			if report.HighestDay != nil {
				fmt.Fprintf(out, "Highest: %s (%.1f kcal)\n", report.HighestDay.Date, report.HighestDay.Calories)
			}
			if report.LowestDay != nil {
				fmt.Fprintf(out, "Lowest: %s (%.1f kcal)\n", report.LowestDay.Date, report.LowestDay.Calories)
			}
			a := report.Adherence
			fmt.Fprintf(out, "Within target: %d/%d days (%.1f%%)\n", a.WithinGoalDays, a.EvaluatedDays, a.PercentWithin)
			return nil
		})
	},
}

// bar draws calories as a 20-cell gauge against target.
func bar(calories, target float64) string {
	const width = 20
	if target <= 0 {
		return ""
	}
	filled := int(calories / target * width)
	filled = min(max(filled, 0), width)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

func init() {
	rootCmd.AddCommand(inventoryCmd, dayCmd, weekCmd, reportCmd)

	inventoryCmd.Flags().BoolVar(&viewJSON, "json", false, "Output JSON")
	dayCmd.Flags().StringVar(&viewDate, "date", "", "Date YYYY-MM-DD, today or yesterday (default today)")
	dayCmd.Flags().BoolVar(&viewJSON, "json", false, "Output JSON")
	weekCmd.Flags().StringVar(&viewDate, "date", "", "Any date in the week (default today)")
	weekCmd.Flags().StringVar(&weekSelected, "selected", "", "Day to highlight (default --date)")
	weekCmd.Flags().BoolVar(&viewJSON, "json", false, "Output JSON")
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "Start date YYYY-MM-DD (default 6 days ago)")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "End date YYYY-MM-DD (default today)")
	reportCmd.Flags().Float64Var(&reportTolPct, "tolerance", 10, "Percent over target still counted as within target")
	reportCmd.Flags().BoolVar(&viewJSON, "json", false, "Output JSON")
}
