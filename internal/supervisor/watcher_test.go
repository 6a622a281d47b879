package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestWatcher_DebouncesReportChanges(t *testing.T) {
	out := t.TempDir()
	changes := make(chan []string, 4)

	w, err := NewWatcher(Options{OutputDir: out}, func(files []string) { changes <- files }, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.SetDebounce(100 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// unrelated files are ignored
	if err := os.WriteFile(filepath.Join(out, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{AuthFile, SeedFile} {
		if err := os.WriteFile(filepath.Join(out, name), []byte(`{"status":"ok"}`), 0644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case files := <-changes:
		if len(files) != 2 {
			t.Errorf("changed files = %v, want the two reports", files)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change callback")
	}

	select {
	case files := <-changes:
		t.Errorf("unexpected second callback: %v", files)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_MissingContextDirIsSkipped(t *testing.T) {
	out := t.TempDir()
	w, err := NewWatcher(Options{
		OutputDir:   out,
		ContextPath: filepath.Join(out, "nope", "context.json"),
	}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Run(ctx)
}
