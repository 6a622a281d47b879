package retention

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeIndex struct {
	deleted []string
}

func (f *fakeIndex) DeleteRun(_ context.Context, runID string) error {
	f.deleted = append(f.deleted, runID)
	return nil
}

func makeRun(t *testing.T, root, id string, age time.Duration) string {
	t.Helper()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "playwright.log"), []byte("log"), 0644); err != nil {
		t.Fatal(err)
	}
	mod := time.Now().Add(-age)
	if err := os.Chtimes(dir, mod, mod); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestPrune(t *testing.T) {
	primary := t.TempDir()
	fallback := t.TempDir()
	day := 24 * time.Hour

	oldPrimary := makeRun(t, primary, "100", 20*day)
	fresh := makeRun(t, primary, "101", 2*day)
	oldFallback := makeRun(t, fallback, "99", 15*day)
	// loose files in a root are not runs
	if err := os.WriteFile(filepath.Join(primary, "README"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	idx := &fakeIndex{}
	p := NewPruner([]string{primary, fallback, filepath.Join(primary, "missing")}, idx, 14, zap.NewNop())

	n, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 2 {
		t.Errorf("removed = %d, want 2", n)
	}
	for _, dir := range []string{oldPrimary, oldFallback} {
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Errorf("%s still exists", dir)
		}
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh run removed: %v", err)
	}
	sort.Strings(idx.deleted)
	if len(idx.deleted) != 2 || idx.deleted[0] != "100" || idx.deleted[1] != "99" {
		t.Errorf("index deletions = %v", idx.deleted)
	}
}

func TestPrune_DisabledWithZeroDays(t *testing.T) {
	root := t.TempDir()
	dir := makeRun(t, root, "1", 365*24*time.Hour)

	n, err := NewPruner([]string{root}, nil, 0, zap.NewNop()).Prune(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("Prune = %d, %v", n, err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Error("run removed while retention disabled")
	}
}

func TestStart_InvalidSchedule(t *testing.T) {
	p := NewPruner(nil, nil, 14, zap.NewNop())
	if _, err := p.Start(context.Background(), "every day"); err == nil {
		t.Error("expected error for invalid schedule")
	}
	stop, err := p.Start(context.Background(), "0 3 * * *")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	stop()
}
