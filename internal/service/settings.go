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

const (
	SettingsID            = "user-settings"
	DefaultTargetCalories = 2000.0
)

type SettingsStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db, now: time.Now}
}

// Get returns the singleton settings. Until the first update a default
// record is returned without being written.
func (s *SettingsStore) Get(ctx context.Context) (*model.Settings, error) {
	return getSettings(ctx, s.db, s.now)
}

// Update applies mutate to the current settings and persists the result in
// one transaction.
func (s *SettingsStore) Update(ctx context.Context, mutate func(*model.Settings) error) (*model.Settings, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin settings update: %w", err)
	}
	defer tx.Rollback()

	current, err := getSettings(ctx, tx, s.now)
	if err != nil {
		return nil, err
	}
	if err := mutate(current); err != nil {
		return nil, err
	}
	current.ID = SettingsID
	current.Updated = s.now()
	if err := putSettings(ctx, tx, current); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit settings update: %w", err)
	}
	return current, nil
}

// Put replaces the stored settings as-is.
func (s *SettingsStore) Put(ctx context.Context, in model.Settings) error {
	in.ID = SettingsID
	if in.Created.IsZero() {
		in.Created = s.now()
	}
	if in.Updated.IsZero() {
		in.Updated = in.Created
	}
	return putSettings(ctx, s.db, &in)
}

type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getSettings(ctx context.Context, q rowQueryer, now func() time.Time) (*model.Settings, error) {
	var (
		out              model.Settings
		created, updated int64
	)
	err := q.QueryRowContext(ctx, `
SELECT id, target_calories, usda_api_key, created_at, updated_at
FROM settings WHERE id = ?
`, SettingsID).Scan(&out.ID, &out.TargetCalories, &out.USDAAPIKey, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		ts := now()
		return &model.Settings{
			ID:             SettingsID,
			TargetCalories: DefaultTargetCalories,
			Created:        ts,
			Updated:        ts,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	out.Created = fromMillis(created)
	out.Updated = fromMillis(updated)
	return &out, nil
}

func putSettings(ctx context.Context, ex execer, in *model.Settings) error {
	if in.TargetCalories <= 0 {
		return fmt.Errorf("%w: target calories must be > 0", ErrInvalidInput)
	}
	in.USDAAPIKey = strings.TrimSpace(in.USDAAPIKey)
	_, err := ex.ExecContext(ctx, `
INSERT INTO settings(id, target_calories, usda_api_key, created_at, updated_at)
VALUES(?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  target_calories = excluded.target_calories,
  usda_api_key = excluded.usda_api_key,
  updated_at = excluded.updated_at
`, SettingsID, in.TargetCalories, in.USDAAPIKey, toMillis(in.Created), toMillis(in.Updated))
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
