package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thorhanks/MealOps/internal/model"
)

func validateNonNegativeFloat(name string, value float64) error {
	if value < 0 {
		return fmt.Errorf("%w: %s must be >= 0", ErrInvalidInput, name)
	}
	return nil
}

func validateMacros(prefix string, m model.Macros) error {
	if err := validateNonNegativeFloat(prefix+"protein", m.Protein); err != nil {
		return err
	}
	if err := validateNonNegativeFloat(prefix+"carbs", m.Carbs); err != nil {
		return err
	}
	if err := validateNonNegativeFloat(prefix+"fat", m.Fat); err != nil {
		return err
	}
	return validateNonNegativeFloat(prefix+"calories", m.Calories)
}

func normalizeName(name string) string {
	return strings.TrimSpace(strings.ToLower(name))
}

func newID() string {
	return uuid.New().String()
}

// Timestamps are stored as Unix milliseconds so range queries and day
// arithmetic work on plain integers.
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).In(time.Local)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
