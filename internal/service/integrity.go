package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type BackupInfo struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"createdAt"`
	SizeBytes int64     `json:"sizeBytes"`
}

type DoctorReport struct {
	OrphanEntries        int `json:"orphanEntries"`
	OverConsumedRecipes  int `json:"overConsumedRecipes"`
	OrphanIngredientRows int `json:"orphanIngredientRows"`
	DuplicateCacheRows   int `json:"duplicateCacheRows"`
	FixedRows            int `json:"fixedRows,omitempty"`
}

// CreateBackup writes a consistent copy of the live store to outPath with
// a .sha256 file next to it.
func CreateBackup(ctx context.Context, db *sql.DB, outPath string) (BackupInfo, error) {
	if strings.TrimSpace(outPath) == "" {
		return BackupInfo{}, fmt.Errorf("backup output path is required")
	}
	if _, err := os.Stat(outPath); err == nil {
		return BackupInfo{}, fmt.Errorf("backup %s already exists", outPath)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return BackupInfo{}, fmt.Errorf("create backup directory: %w", err)
	}
	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, outPath); err != nil {
		return BackupInfo{}, fmt.Errorf("snapshot store: %w", err)
	}
	checksum, err := fileSHA256(outPath)
	if err != nil {
		return BackupInfo{}, err
	}
	if err := os.WriteFile(outPath+".sha256", []byte(checksum+"\n"), 0o644); err != nil {
		return BackupInfo{}, fmt.Errorf("write checksum file: %w", err)
	}
	st, err := os.Stat(outPath)
	if err != nil {
		return BackupInfo{}, fmt.Errorf("stat backup: %w", err)
	}
	return BackupInfo{Path: outPath, Checksum: checksum, CreatedAt: st.ModTime(), SizeBytes: st.Size()}, nil
}

// RestoreBackup copies a backup over dbPath after verifying its checksum
// file, when one exists. The store must not be open.
func RestoreBackup(backupPath, dbPath string, force bool) error {
	if strings.TrimSpace(backupPath) == "" || strings.TrimSpace(dbPath) == "" {
		return fmt.Errorf("backup path and db path are required")
	}
	if !force {
		if _, err := os.Stat(dbPath); err == nil {
			return fmt.Errorf("target db already exists; use --force to overwrite")
		}
	}
	if expected, err := os.ReadFile(backupPath + ".sha256"); err == nil {
		actual, err := fileSHA256(backupPath)
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(expected)) != actual {
			return fmt.Errorf("backup checksum mismatch")
		}
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}
	if err := copyFile(backupPath, dbPath); err != nil {
		return err
	}
	// Stale journal files from the replaced store would corrupt the restore.
	for _, suffix := range []string{"-wal", "-shm", "-journal"} {
		_ = os.Remove(dbPath + suffix)
	}
	return nil
}

func ListBackups(dir string) ([]BackupInfo, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}
	out := make([]BackupInfo, 0)
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".db") {
			continue
		}
		full := filepath.Join(dir, f.Name())
		st, err := os.Stat(full)
		if err != nil {
			continue
		}
		checksum := ""
		if b, err := os.ReadFile(full + ".sha256"); err == nil {
			checksum = strings.TrimSpace(string(b))
		}
		out = append(out, BackupInfo{Path: full, Checksum: checksum, CreatedAt: st.ModTime(), SizeBytes: st.Size()})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// RunDoctor reports store anomalies. Orphaned ledger entries and
// over-consumed recipes are expected states and only counted; with fix set,
// ingredient rows without a recipe and duplicate cache names are removed.
func RunDoctor(ctx context.Context, db *sql.DB, fix bool) (DoctorReport, error) {
	report := DoctorReport{}
	if err := db.QueryRowContext(ctx, `
SELECT COUNT(1) FROM servings_log l
LEFT JOIN recipes r ON r.id = l.recipe_id
WHERE l.recipe_id IS NOT NULL AND r.id IS NULL
`).Scan(&report.OrphanEntries); err != nil {
		return report, fmt.Errorf("doctor orphan check: %w", err)
	}
	if err := db.QueryRowContext(ctx, `
SELECT COUNT(1) FROM (
  SELECT recipe_id, SUM(CASE type WHEN 'production' THEN servings ELSE -servings END) AS net
  FROM servings_log
  WHERE recipe_id IS NOT NULL
  GROUP BY recipe_id
  HAVING net < 0
)
`).Scan(&report.OverConsumedRecipes); err != nil {
		return report, fmt.Errorf("doctor inventory check: %w", err)
	}
	if err := db.QueryRowContext(ctx, `
SELECT COUNT(1) FROM recipe_ingredients i
LEFT JOIN recipes r ON r.id = i.recipe_id
WHERE r.id IS NULL
`).Scan(&report.OrphanIngredientRows); err != nil {
		return report, fmt.Errorf("doctor ingredient check: %w", err)
	}
	if err := db.QueryRowContext(ctx, `
SELECT COALESCE(SUM(cnt-1),0) FROM (
  SELECT COUNT(*) AS cnt
  FROM ingredient_cache
  GROUP BY name_norm
  HAVING cnt > 1
)
`).Scan(&report.DuplicateCacheRows); err != nil {
		return report, fmt.Errorf("doctor duplicate query: %w", err)
	}

	if !fix || (report.OrphanIngredientRows == 0 && report.DuplicateCacheRows == 0) {
		return report, nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return report, fmt.Errorf("doctor fix begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	res, err := tx.ExecContext(ctx, `DELETE FROM recipe_ingredients WHERE recipe_id NOT IN (SELECT id FROM recipes)`)
	if err != nil {
		return report, fmt.Errorf("doctor fix ingredient rows: %w", err)
	}
	n, _ := res.RowsAffected()
	report.FixedRows += int(n)
	res, err = tx.ExecContext(ctx, `
DELETE FROM ingredient_cache
WHERE id NOT IN (
  SELECT id FROM (
    SELECT id, ROW_NUMBER() OVER (PARTITION BY name_norm ORDER BY cached_at DESC, id) AS rn
    FROM ingredient_cache
  ) WHERE rn = 1
)
`)
	if err != nil {
		return report, fmt.Errorf("doctor fix cache rows: %w", err)
	}
	n, _ = res.RowsAffected()
	report.FixedRows += int(n)
	if err := tx.Commit(); err != nil {
		return report, fmt.Errorf("doctor fix commit: %w", err)
	}
	return report, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy file: %w", err)
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("sync destination file: %w", err)
	}
	return nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
