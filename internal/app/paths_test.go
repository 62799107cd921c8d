package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultDBPathPrefersEnv(t *testing.T) {
	want := filepath.Join(t.TempDir(), "custom.db")
	t.Setenv(EnvDBPath, want)

	got, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("default db path: %v", err)
	}
	if got != want {
		t.Fatalf("path = %q, want %q", got, want)
	}
}

func TestEnsureDBDirCreatesParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "mealops.db")
	if err := EnsureDBDir(path); err != nil {
		t.Fatalf("ensure dir: %v", err)
	}
	st, err := os.Stat(filepath.Dir(path))
	if err != nil {
		t.Fatalf("stat dir: %v", err)
	}
	if !st.IsDir() {
		t.Fatalf("expected directory at %s", filepath.Dir(path))
	}
}
