package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/thorhanks/MealOps/internal/model"
)

const (
	DeletedRecipeName = "[deleted recipe]"
	unknownFoodName   = "unknown"
	dayMillis         = int64(24 * time.Hour / time.Millisecond)
)

// Aggregator turns ledger entries into calorie and macro totals. It only
// reads; results reflect the store at call time.
type Aggregator struct {
	recipes  *RecipeStore
	ledger   *Ledger
	settings *SettingsStore
}

func NewAggregator(db *sql.DB) *Aggregator {
	return &Aggregator{
		recipes:  NewRecipeStore(db),
		ledger:   NewLedger(db),
		settings: NewSettingsStore(db),
	}
}

type ResolvedEntry struct {
	Entry  model.LogEntry `json:"entry"`
	Name   string         `json:"name"`
	Detail string         `json:"detail"`
	Macros model.Macros   `json:"macros"`
}

// Resolve attaches macros and a display name to each entry. Recipe lookups
// are memoized for the duration of the call. A recipe that no longer
// exists resolves to zero macros instead of failing the batch.
func (a *Aggregator) Resolve(ctx context.Context, entries []model.LogEntry) ([]ResolvedEntry, error) {
	memo := make(map[string]*model.Recipe)
	out := make([]ResolvedEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsAdHoc() {
			name := e.FoodName
			if name == "" {
				name = unknownFoodName
			}
			var m model.Macros
			if e.Macros != nil {
				m = *e.Macros
			}
			out = append(out, ResolvedEntry{Entry: e, Name: name, Detail: adHocDetail(e), Macros: m})
			continue
		}

		r, seen := memo[e.RecipeID]
		if !seen {
			got, err := a.recipes.Get(ctx, e.RecipeID)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return nil, err
			}
			r = got
			memo[e.RecipeID] = r
		}
		re := ResolvedEntry{Entry: e, Detail: servingsDetail(e.Servings)}
		if r == nil {
			re.Name = DeletedRecipeName
		} else {
			re.Name = r.Name
			re.Macros = MultiplyMacros(r.Macros, float64(e.Servings))
		}
		out = append(out, re)
	}
	return out, nil
}

// DailyTotals sums resolved consumption between local midnight and
// 23:59:59.999 of date.
func (a *Aggregator) DailyTotals(ctx context.Context, date time.Time) (model.Macros, error) {
	resolved, err := a.consumedOn(ctx, date)
	if err != nil {
		return model.Macros{}, err
	}
	return totalOf(resolved), nil
}

func (a *Aggregator) consumedOn(ctx context.Context, date time.Time) ([]ResolvedEntry, error) {
	entries, err := a.ledger.ConsumptionInRange(ctx, StartOfDay(date), EndOfDay(date))
	if err != nil {
		return nil, err
	}
	return a.Resolve(ctx, entries)
}

type DayBucket struct {
	Index      int       `json:"index"`
	Date       time.Time `json:"date"`
	Calories   float64   `json:"calories"`
	Target     float64   `json:"target"`
	IsSelected bool      `json:"isSelected"`
}

// WeeklyTrend buckets consumption for the Sunday-starting week containing
// anchor. Entries land in bucket floor((date-weekStart)/24h), capped at
// Saturday for the extra hour of a fall-back week. IsSelected marks the
// bucket whose day matches selected; none match when selected is outside
// the week.
func (a *Aggregator) WeeklyTrend(ctx context.Context, anchor, selected time.Time, targetCalories float64) ([7]DayBucket, error) {
	var buckets [7]DayBucket
	weekStart := WeekStart(anchor)
	selectedDay := StartOfDay(selected)
	for i := range buckets {
		day := weekStart.AddDate(0, 0, i)
		buckets[i] = DayBucket{
			Index:      i,
			Date:       day,
			Target:     targetCalories,
			IsSelected: day.Equal(selectedDay),
		}
	}

	entries, err := a.ledger.ConsumptionInRange(ctx, weekStart, EndOfDay(weekStart.AddDate(0, 0, 6)))
	if err != nil {
		return buckets, err
	}
	resolved, err := a.Resolve(ctx, entries)
	if err != nil {
		return buckets, err
	}
	startMs := toMillis(weekStart)
	for _, re := range resolved {
		idx := int((toMillis(re.Entry.Date) - startMs) / dayMillis)
		if idx < 0 {
			continue
		}
		idx = min(idx, 6)
		buckets[idx].Calories += re.Macros.Calories
	}
	return buckets, nil
}

type DaySummary struct {
	Date     string  `json:"date"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

type AdherenceSummary struct {
	EvaluatedDays  int     `json:"evaluatedDays"`
	WithinGoalDays int     `json:"withinTargetDays"`
	PercentWithin  float64 `json:"percentWithinTarget"`
	TargetCalories float64 `json:"targetCalories"`
	TolerancePct   float64 `json:"tolerancePercent"`
}

type RangeReport struct {
	FromDate              string           `json:"fromDate"`
	ToDate                string           `json:"toDate"`
	Total                 model.Macros     `json:"total"`
	DaysWithEntries       int              `json:"daysWithEntries"`
	AverageCaloriesPerDay float64          `json:"avgCaloriesPerDay"`
	AverageProteinPerDay  float64          `json:"avgProteinPerDay"`
	AverageCarbsPerDay    float64          `json:"avgCarbsPerDay"`
	AverageFatPerDay      float64          `json:"avgFatPerDay"`
	HighestDay            *DaySummary      `json:"highestDay,omitempty"`
	LowestDay             *DaySummary      `json:"lowestDay,omitempty"`
	Adherence             AdherenceSummary `json:"adherence"`
	Days                  []DaySummary     `json:"days"`
}

// Range reports per-day consumption totals between two dates, inclusive.
// A day is within target when its calories do not exceed the target by
// more than tolerance (a fraction, 0.1 = 10%).
func (a *Aggregator) Range(ctx context.Context, from, to time.Time, tolerance float64) (*RangeReport, error) {
	from = StartOfDay(from)
	to = StartOfDay(to)
	if from.After(to) {
		return nil, fmt.Errorf("%w: from date must be <= to date", ErrInvalidInput)
	}
	if tolerance < 0 {
		return nil, fmt.Errorf("%w: tolerance must be >= 0", ErrInvalidInput)
	}
	settings, err := a.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := a.ledger.ConsumptionInRange(ctx, from, EndOfDay(to))
	if err != nil {
		return nil, err
	}
	resolved, err := a.Resolve(ctx, entries)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]*DaySummary)
	for _, re := range resolved {
		key := re.Entry.Date.In(time.Local).Format(DateLayout)
		d, ok := byDay[key]
		if !ok {
			d = &DaySummary{Date: key}
			byDay[key] = d
		}
		d.Calories += re.Macros.Calories
		d.Protein += re.Macros.Protein
		d.Carbs += re.Macros.Carbs
		d.Fat += re.Macros.Fat
	}
	days := make([]DaySummary, 0, len(byDay))
	for _, d := range byDay {
		days = append(days, *d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })

	report := &RangeReport{
		FromDate: from.Format(DateLayout),
		ToDate:   to.Format(DateLayout),
		Days:     days,
	}
	report.DaysWithEntries = len(days)
	for _, d := range days {
		report.Total.Calories += d.Calories
		report.Total.Protein += d.Protein
		report.Total.Carbs += d.Carbs
		report.Total.Fat += d.Fat
	}
	if report.DaysWithEntries > 0 {
		div := float64(report.DaysWithEntries)
		report.AverageCaloriesPerDay = report.Total.Calories / div
		report.AverageProteinPerDay = report.Total.Protein / div
		report.AverageCarbsPerDay = report.Total.Carbs / div
		report.AverageFatPerDay = report.Total.Fat / div
		report.HighestDay, report.LowestDay = extremeDays(days)
	}
	report.Adherence = calculateAdherence(days, settings.TargetCalories, tolerance)
	return report, nil
}

func calculateAdherence(days []DaySummary, target, tolerance float64) AdherenceSummary {
	out := AdherenceSummary{TargetCalories: target, TolerancePct: tolerance * 100}
	for _, d := range days {
		out.EvaluatedDays++
		if d.Calories <= target*(1+tolerance) {
			out.WithinGoalDays++
		}
	}
	if out.EvaluatedDays > 0 {
		out.PercentWithin = (float64(out.WithinGoalDays) / float64(out.EvaluatedDays)) * 100
	}
	return out
}

func extremeDays(days []DaySummary) (*DaySummary, *DaySummary) {
	if len(days) == 0 {
		return nil, nil
	}
	copied := make([]DaySummary, len(days))
	copy(copied, days)
	sort.SliceStable(copied, func(i, j int) bool {
		return copied[i].Calories < copied[j].Calories
	})
	low := copied[0]
	high := copied[len(copied)-1]
	return &high, &low
}

// Percent is round(current/target*100), or 0 for a non-positive target.
func Percent(current, target float64) int {
	if target <= 0 {
		return 0
	}
	return int(math.Round(current / target * 100))
}

func totalOf(resolved []ResolvedEntry) model.Macros {
	var total model.Macros
	for _, re := range resolved {
		total = SumMacros(total, re.Macros)
	}
	return total
}

func servingsDetail(n int) string {
	if n == 1 {
		return "1 serving"
	}
	return strconv.Itoa(n) + " servings"
}

func adHocDetail(e model.LogEntry) string {
	if e.Amount == 0 && e.Unit == "" {
		return ""
	}
	amount := strconv.FormatFloat(e.Amount, 'f', -1, 64)
	if e.Unit == "" {
		return amount
	}
	return amount + " " + e.Unit
}
