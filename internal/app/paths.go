package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	appDirName = "mealops"
	dbFileName = "mealops.db"

	EnvDBPath     = "MEALOPS_DB"
	EnvLogLevel   = "MEALOPS_LOG_LEVEL"
	EnvUSDAAPIKey = "MEALOPS_USDA_API_KEY"
	EnvAddr       = "MEALOPS_ADDR"
)

// DefaultDBPath honours MEALOPS_DB before falling back to the user config dir.
func DefaultDBPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvDBPath)); p != "" {
		return p, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, appDirName, dbFileName), nil
}

func EnsureDBDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}
	return nil
}
