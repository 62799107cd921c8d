package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/thorhanks/MealOps/internal/model"
)

// Ledger is the append-only production/consumption log. Entries are never
// edited; inventory is folded from them on every read.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

const logColumns = `id, type, recipe_id, servings, food_name, amount, unit, protein, carbs, fat, calories, date, created_at`

// Append validates and writes one entry. It fills in id, created and a
// missing date. Invalid entries are rejected with ErrInvalidEntry before
// anything is written.
func (l *Ledger) Append(ctx context.Context, e *model.LogEntry) error {
	if e == nil {
		return fmt.Errorf("%w: entry is required", ErrInvalidEntry)
	}
	if err := validateLogEntry(e); err != nil {
		return err
	}
	now := l.now()
	if strings.TrimSpace(e.ID) == "" {
		e.ID = newID()
	}
	if e.Created.IsZero() {
		e.Created = now
	}
	if e.Date.IsZero() {
		e.Date = now
	}
	if err := insertLogEntry(ctx, l.db, e, false); err != nil {
		return err
	}
	return nil
}

// Remove hard-deletes an entry.
func (l *Ledger) Remove(ctx context.Context, id string) error {
	res, err := l.db.ExecContext(ctx, `DELETE FROM servings_log WHERE id = ?`, strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("remove log entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove log entry rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("log entry %q: %w", id, ErrNotFound)
	}
	return nil
}

func (l *Ledger) Get(ctx context.Context, id string) (*model.LogEntry, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+logColumns+` FROM servings_log WHERE id = ?`, strings.TrimSpace(id))
	e, err := scanLogEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("log entry %q: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &e, nil
}

func (l *Ledger) ByRecipe(ctx context.Context, recipeID string) ([]model.LogEntry, error) {
	return l.query(ctx, `SELECT `+logColumns+` FROM servings_log WHERE recipe_id = ? ORDER BY date, created_at, id`, recipeID)
}

// InventoryOf returns produced minus consumed servings, floored at zero.
func (l *Ledger) InventoryOf(ctx context.Context, recipeID string) (int, error) {
	var net int
	err := l.db.QueryRowContext(ctx, `
SELECT IFNULL(SUM(CASE type WHEN 'production' THEN servings ELSE -servings END), 0)
FROM servings_log
WHERE recipe_id = ?
`, recipeID).Scan(&net)
	if err != nil {
		return 0, fmt.Errorf("compute inventory: %w", err)
	}
	return max(net, 0), nil
}

// AllInventory lists active recipes with a positive inventory, ordered by
// recipe name.
func (l *Ledger) AllInventory(ctx context.Context) ([]model.InventoryItem, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT recipe_id, SUM(CASE type WHEN 'production' THEN servings ELSE -servings END) AS net
FROM servings_log
WHERE recipe_id IS NOT NULL
GROUP BY recipe_id
HAVING net > 0
`)
	if err != nil {
		return nil, fmt.Errorf("compute inventory: %w", err)
	}
	counts := make(map[string]int)
	for rows.Next() {
		var (
			id  string
			net int
		)
		if err := rows.Scan(&id, &net); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		counts[id] = net
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate inventory: %w", err)
	}
	rows.Close()

	recipes, err := NewRecipeStore(l.db).ListActive(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]model.InventoryItem, 0, len(counts))
	for _, r := range recipes {
		if n, ok := counts[r.ID]; ok {
			items = append(items, model.InventoryItem{Recipe: r, Inventory: n})
		}
	}
	return items, nil
}

// EntriesInRange returns entries with start <= date <= end, oldest first.
func (l *Ledger) EntriesInRange(ctx context.Context, start, end time.Time) ([]model.LogEntry, error) {
	return l.query(ctx, `SELECT `+logColumns+` FROM servings_log WHERE date >= ? AND date <= ? ORDER BY date, created_at, id`,
		toMillis(start), toMillis(end))
}

func (l *Ledger) ConsumptionInRange(ctx context.Context, start, end time.Time) ([]model.LogEntry, error) {
	return l.query(ctx, `SELECT `+logColumns+` FROM servings_log WHERE type = 'consumption' AND date >= ? AND date <= ? ORDER BY date, created_at, id`,
		toMillis(start), toMillis(end))
}

func (l *Ledger) All(ctx context.Context) ([]model.LogEntry, error) {
	return l.query(ctx, `SELECT `+logColumns+` FROM servings_log ORDER BY date, created_at, id`)
}

// LogFilter narrows List. Zero values mean no restriction.
type LogFilter struct {
	From     time.Time
	To       time.Time
	Type     model.EntryType
	RecipeID string
	Limit    int
}

// List returns entries newest first.
func (l *Ledger) List(ctx context.Context, f LogFilter) ([]model.LogEntry, error) {
	query := `SELECT ` + logColumns + ` FROM servings_log WHERE 1=1`
	args := make([]any, 0, 4)
	if !f.From.IsZero() {
		query += ` AND date >= ?`
		args = append(args, toMillis(f.From))
	}
	if !f.To.IsZero() {
		query += ` AND date <= ?`
		args = append(args, toMillis(f.To))
	}
	if f.Type != "" {
		if f.Type != model.EntryProduction && f.Type != model.EntryConsumption {
			return nil, fmt.Errorf("%w: unknown entry type %q", ErrInvalidEntry, f.Type)
		}
		query += ` AND type = ?`
		args = append(args, string(f.Type))
	}
	if strings.TrimSpace(f.RecipeID) != "" {
		query += ` AND recipe_id = ?`
		args = append(args, strings.TrimSpace(f.RecipeID))
	}
	query += ` ORDER BY date DESC, created_at DESC, id`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	return l.query(ctx, query, args...)
}

func (l *Ledger) query(ctx context.Context, query string, args ...any) ([]model.LogEntry, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query log entries: %w", err)
	}
	defer rows.Close()
	items := make([]model.LogEntry, 0)
	for rows.Next() {
		e, err := scanLogEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log entries: %w", err)
	}
	return items, nil
}

func validateLogEntry(e *model.LogEntry) error {
	if e.Type != model.EntryProduction && e.Type != model.EntryConsumption {
		return fmt.Errorf("%w: type must be production or consumption, got %q", ErrInvalidEntry, e.Type)
	}
	e.RecipeID = strings.TrimSpace(e.RecipeID)
	if !e.IsAdHoc() {
		if e.Servings < 1 {
			return fmt.Errorf("%w: servings must be >= 1", ErrInvalidEntry)
		}
		return nil
	}
	if e.Type != model.EntryConsumption {
		return fmt.Errorf("%w: ad-hoc entries must be consumption", ErrInvalidEntry)
	}
	if e.Macros == nil {
		return fmt.Errorf("%w: ad-hoc entries require macros", ErrInvalidEntry)
	}
	if err := validateMacros("", *e.Macros); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	e.FoodName = strings.TrimSpace(e.FoodName)
	if e.FoodName == "" {
		return fmt.Errorf("%w: ad-hoc entries require a food name", ErrInvalidEntry)
	}
	if e.Amount < 0 {
		return fmt.Errorf("%w: amount must be >= 0", ErrInvalidEntry)
	}
	return nil
}

// insertLogEntry writes e. With upsert set an existing id is overwritten,
// which only import does.
func insertLogEntry(ctx context.Context, ex execer, e *model.LogEntry, upsert bool) error {
	query := `
INSERT INTO servings_log(` + logColumns + `)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if upsert {
		query += `
ON CONFLICT(id) DO UPDATE SET
  type = excluded.type,
  recipe_id = excluded.recipe_id,
  servings = excluded.servings,
  food_name = excluded.food_name,
  amount = excluded.amount,
  unit = excluded.unit,
  protein = excluded.protein,
  carbs = excluded.carbs,
  fat = excluded.fat,
  calories = excluded.calories,
  date = excluded.date,
  created_at = excluded.created_at`
	}

	var recipeID any
	if !e.IsAdHoc() {
		recipeID = e.RecipeID
	}
	var protein, carbs, fat, calories any
	if e.Macros != nil {
		protein, carbs, fat, calories = e.Macros.Protein, e.Macros.Carbs, e.Macros.Fat, e.Macros.Calories
	}
	if _, err := ex.ExecContext(ctx, query,
		e.ID, string(e.Type), recipeID, e.Servings, e.FoodName, e.Amount, strings.TrimSpace(e.Unit),
		protein, carbs, fat, calories, toMillis(e.Date), toMillis(e.Created)); err != nil {
		return fmt.Errorf("insert log entry: %w", err)
	}
	return nil
}

func scanLogEntry(row rowScanner) (model.LogEntry, error) {
	var (
		e                       model.LogEntry
		typ                     string
		recipeID                sql.NullString
		protein, carbs, fat, kc sql.NullFloat64
		date, created           int64
	)
	if err := row.Scan(&e.ID, &typ, &recipeID, &e.Servings, &e.FoodName, &e.Amount, &e.Unit,
		&protein, &carbs, &fat, &kc, &date, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("scan log entry: %w", err)
	}
	e.Type = model.EntryType(typ)
	e.RecipeID = recipeID.String
	if kc.Valid || protein.Valid || carbs.Valid || fat.Valid {
		e.Macros = &model.Macros{Protein: protein.Float64, Carbs: carbs.Float64, Fat: fat.Float64, Calories: kc.Float64}
	}
	e.Date = fromMillis(date)
	e.Created = fromMillis(created)
	return e, nil
}
