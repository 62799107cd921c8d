package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/thorhanks/MealOps/internal/model"
)

const DateLayout = "2006-01-02"

type DayStatus struct {
	Date              string          `json:"date"`
	Totals            model.Macros    `json:"totals"`
	TargetCalories    float64         `json:"targetCalories"`
	CaloriePercent    int             `json:"caloriePercent"`
	RemainingCalories float64         `json:"remainingCalories"`
	Entries           []ResolvedEntry `json:"entries"`
}

// DayStatus is the dashboard view of one day: what was eaten and how it
// compares to the calorie target.
func (a *Aggregator) DayStatus(ctx context.Context, date time.Time) (*DayStatus, error) {
	start := StartOfDay(date)
	settings, err := a.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	resolved, err := a.consumedOn(ctx, start)
	if err != nil {
		return nil, err
	}
	totals := totalOf(resolved)
	return &DayStatus{
		Date:              start.Format(DateLayout),
		Totals:            totals,
		TargetCalories:    settings.TargetCalories,
		CaloriePercent:    Percent(totals.Calories, settings.TargetCalories),
		RemainingCalories: settings.TargetCalories - totals.Calories,
		Entries:           resolved,
	}, nil
}

func StartOfDay(t time.Time) time.Time {
	t = t.In(time.Local)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

// EndOfDay is 23:59:59.999 local time.
func EndOfDay(t time.Time) time.Time {
	t = t.In(time.Local)
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), time.Local)
}

// WeekStart returns local midnight of the Sunday on or before t.
func WeekStart(t time.Time) time.Time {
	day := StartOfDay(t)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// ParseDate accepts YYYY-MM-DD, "today" and "yesterday"; empty means today.
func ParseDate(value string, now time.Time) (time.Time, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "today":
		return StartOfDay(now), nil
	case "yesterday":
		return StartOfDay(now).AddDate(0, 0, -1), nil
	}
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(value), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q (expected YYYY-MM-DD)", ErrInvalidInput, value)
	}
	return t, nil
}
