package mealops

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/thorhanks/MealOps/internal/model"
	"github.com/thorhanks/MealOps/internal/service"
)

// runCLI executes the root command with fresh flag values and returns
// stdout. Package-level flag variables outlive a single Execute, so every
// flag is put back to its default first.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRunCLI(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("mealops %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func TestRootHelp(t *testing.T) {
	out, err := runCLI(t, "--help")
	if err != nil {
		t.Fatalf("execute root help: %v", err)
	}
	if out == "" {
		t.Fatalf("expected help output")
	}
}

func TestInitCommandIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mealops.db")
	for i := 0; i < 2; i++ {
		out, err := runCLI(t, "--db", path, "init")
		if err != nil {
			t.Fatalf("init run %d failed: %v", i+1, err)
		}
		if !strings.Contains(out, "schema v1") {
			t.Fatalf("expected schema version in output, got %q", out)
		}
	}
}

func TestRecipeMakeEatFlow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mealops.db")
	out := mustRunCLI(t, "--db", path, "recipe", "add", "--name", "Chili", "--servings", "4",
		"--ingredient", "ground beef:500:g:26:0:15:250",
		"--ingredient", "beans:2:cup:9:27:0.5:140")
	if !strings.Contains(out, "Created recipe Chili") {
		t.Fatalf("unexpected recipe add output: %q", out)
	}

	mustRunCLI(t, "--db", path, "make", "chili", "--servings", "4", "--date", "2026-01-15")
	out = mustRunCLI(t, "--db", path, "eat", "Chili", "--date", "2026-01-15")
	if !strings.Contains(out, "On hand: 3") {
		t.Fatalf("expected 3 servings on hand after eating one, got %q", out)
	}

	var items []model.InventoryItem
	if err := json.Unmarshal([]byte(mustRunCLI(t, "--db", path, "inventory", "--json")), &items); err != nil {
		t.Fatalf("decode inventory json: %v", err)
	}
	if len(items) != 1 || items[0].Inventory != 3 || items[0].Recipe.Name != "Chili" {
		t.Fatalf("unexpected inventory: %+v", items)
	}
	if len(items[0].Recipe.Ingredients) != 2 {
		t.Fatalf("expected two ingredients, got %d", len(items[0].Recipe.Ingredients))
	}

	var day service.DayStatus
	if err := json.Unmarshal([]byte(mustRunCLI(t, "--db", path, "day", "--date", "2026-01-15", "--json")), &day); err != nil {
		t.Fatalf("decode day json: %v", err)
	}
	if day.Totals.Calories != items[0].Recipe.Macros.Calories {
		t.Fatalf("expected one serving of calories, got %v want %v", day.Totals.Calories, items[0].Recipe.Macros.Calories)
	}
}

func TestFoodCommandLogsAndRemovesAdHocEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mealops.db")
	out := mustRunCLI(t, "--db", path, "food", "--name", "apple", "--calories", "95", "--carbs", "25", "--date", "2026-01-15")
	if !strings.Contains(out, "Logged apple") {
		t.Fatalf("unexpected food output: %q", out)
	}
	if _, err := runCLI(t, "--db", path, "food", "--name", "apple", "--calories", "-5"); err == nil {
		t.Fatalf("expected negative calories to be rejected")
	}

	var resolved []service.ResolvedEntry
	if err := json.Unmarshal([]byte(mustRunCLI(t, "--db", path, "log", "list", "--json")), &resolved); err != nil {
		t.Fatalf("decode log json: %v", err)
	}
	if len(resolved) != 1 || resolved[0].Name != "apple" {
		t.Fatalf("expected the apple entry only, got %+v", resolved)
	}

	mustRunCLI(t, "--db", path, "log", "remove", resolved[0].Entry.ID)
	if _, err := runCLI(t, "--db", path, "log", "remove", resolved[0].Entry.ID); err == nil {
		t.Fatalf("expected removing a missing entry to fail")
	}
}

func TestRecipeDeleteKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mealops.db")
	mustRunCLI(t, "--db", path, "recipe", "add", "--name", "Soup", "--servings", "2", "--calories", "300")
	mustRunCLI(t, "--db", path, "make", "Soup", "--servings", "2")
	mustRunCLI(t, "--db", path, "recipe", "delete", "soup")

	out := mustRunCLI(t, "--db", path, "recipe", "list")
	if strings.Contains(out, "Soup") {
		t.Fatalf("expected deleted recipe to be hidden, got %q", out)
	}
	out = mustRunCLI(t, "--db", path, "recipe", "list", "--all")
	if !strings.Contains(out, "Soup (deleted)") {
		t.Fatalf("expected deleted recipe with --all, got %q", out)
	}
	out = mustRunCLI(t, "--db", path, "inventory")
	if !strings.Contains(out, "Nothing on hand") {
		t.Fatalf("expected deleted recipe to leave inventory, got %q", out)
	}
}

func TestSettingsAndWeek(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mealops.db")
	if _, err := runCLI(t, "--db", path, "settings", "set"); err == nil {
		t.Fatalf("expected settings set without flags to fail")
	}
	if _, err := runCLI(t, "--db", path, "settings", "set", "--target-calories", "0"); err == nil {
		t.Fatalf("expected zero target to be rejected")
	}
	mustRunCLI(t, "--db", path, "settings", "set", "--target-calories", "1800")
	out := mustRunCLI(t, "--db", path, "settings", "show")
	if !strings.Contains(out, "Target calories: 1800") {
		t.Fatalf("unexpected settings output: %q", out)
	}

	mustRunCLI(t, "--db", path, "food", "--name", "toast", "--calories", "200", "--date", "2026-01-13")
	var buckets []service.DayBucket
	if err := json.Unmarshal([]byte(mustRunCLI(t, "--db", path, "week", "--date", "2026-01-15", "--json")), &buckets); err != nil {
		t.Fatalf("decode week json: %v", err)
	}
	if len(buckets) != 7 || buckets[2].Calories != 200 || buckets[2].Target != 1800 {
		t.Fatalf("unexpected week buckets: %+v", buckets)
	}
	if !buckets[4].IsSelected {
		t.Fatalf("expected Thursday to be selected by default")
	}
}

func TestExportImportDryRun(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.db")
	dst := filepath.Join(dir, "dst.db")
	snapshot := filepath.Join(dir, "export.json")

	mustRunCLI(t, "--db", src, "recipe", "add", "--name", "Oats", "--servings", "2", "--calories", "380")
	mustRunCLI(t, "--db", src, "make", "Oats", "--servings", "2")
	mustRunCLI(t, "--db", src, "export", "--out", snapshot)
	if _, err := os.Stat(snapshot); err != nil {
		t.Fatalf("expected export file: %v", err)
	}

	out := mustRunCLI(t, "--db", dst, "import", "--in", snapshot, "--dry-run")
	if !strings.Contains(out, "Would import 1 recipes, 1 log entries") {
		t.Fatalf("unexpected dry run output: %q", out)
	}
	if out := mustRunCLI(t, "--db", dst, "recipe", "list"); strings.Contains(out, "Oats") {
		t.Fatalf("expected dry run to write nothing, got %q", out)
	}
	mustRunCLI(t, "--db", dst, "import", "--in", snapshot)
	if out := mustRunCLI(t, "--db", dst, "inventory"); !strings.Contains(out, "Oats\t2") {
		t.Fatalf("expected imported inventory, got %q", out)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"version": 1}`), 0o600); err != nil {
		t.Fatalf("write bad snapshot: %v", err)
	}
	if _, err := runCLI(t, "--db", dst, "import", "--in", bad); err == nil {
		t.Fatalf("expected malformed snapshot to be rejected")
	}
}

func TestBackupCreateListRestore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mealops.db")
	mustRunCLI(t, "--db", path, "recipe", "add", "--name", "Rice", "--servings", "3", "--calories", "200")

	out := mustRunCLI(t, "--db", path, "backup", "create")
	if !strings.Contains(out, "Created backup") {
		t.Fatalf("unexpected backup output: %q", out)
	}
	out = mustRunCLI(t, "--db", path, "backup", "list")
	if !strings.Contains(out, "mealops-") {
		t.Fatalf("expected backup listed, got %q", out)
	}
	items, err := service.ListBackups(filepath.Join(dir, "backups"))
	if err != nil || len(items) != 1 {
		t.Fatalf("expected one backup, got %d (%v)", len(items), err)
	}

	restored := filepath.Join(dir, "restored.db")
	mustRunCLI(t, "--db", restored, "backup", "restore", "--file", items[0].Path)
	if out := mustRunCLI(t, "--db", restored, "recipe", "list"); !strings.Contains(out, "Rice") {
		t.Fatalf("expected restored recipe, got %q", out)
	}
}

func TestDoctorCleanStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mealops.db")
	out := mustRunCLI(t, "--db", path, "doctor")
	if !strings.Contains(out, "Duplicate cache rows: 0") {
		t.Fatalf("unexpected doctor output: %q", out)
	}
}

func TestParseIngredientSpec(t *testing.T) {
	in, err := parseIngredientSpec("rolled oats:80:g:13:68:7:380")
	if err != nil {
		t.Fatalf("parse spec: %v", err)
	}
	if in.Name != "rolled oats" || in.Amount != 80 || in.Unit != "g" || in.Per100g.Calories != 380 || in.Per100g.Fat != 7 {
		t.Fatalf("unexpected ingredient input: %+v", in)
	}
	for _, bad := range []string{"oats:80:g", "oats:x:g:1:1:1:1", "oats:80:g:1:1:1:kcal"} {
		if _, err := parseIngredientSpec(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out := mustRunCLI(t, "version")
	if !strings.HasPrefix(out, "mealops dev") {
		t.Fatalf("unexpected version output: %q", out)
	}
}
