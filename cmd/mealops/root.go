package mealops

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/thorhanks/MealOps/internal/app"
	"github.com/thorhanks/MealOps/internal/logging"
)

var (
	dbPath   string
	logLevel string
	envFile  string
	logger   = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "mealops",
	Short: "mealops tracks batch-cooked meals, servings on hand, and daily calories",
	Long: "mealops is a local meal-planning ledger: define recipes, log servings you cook and eat, " +
		"and see inventory and nutrition totals derived from that history.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnvFile(envFile); err != nil {
			return err
		}
		level := logLevel
		if !cmd.Flags().Changed("log-level") {
			if v := os.Getenv(app.EnvLogLevel); v != "" {
				level = v
			}
		}
		logger = logging.SetupWriter(cmd.ErrOrStderr(), level)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to SQLite database (default $MEALOPS_DB or the user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file to load before running")
}

// loadEnvFile reads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}
