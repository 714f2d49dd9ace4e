package sweeper

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/djlord-it/camsync/internal/testutil"
)

func remaining(t *testing.T, dir string) []string {
	t.Helper()
	paths, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return names
}

func TestSweeper_RemovesOnlyExpiredArtifacts(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	testutil.WriteArtifact(t, dir, "ancient.jpg", now.Add(-10*24*time.Hour))
	testutil.WriteArtifact(t, dir, "recent.jpg", now.Add(-time.Hour))
	testutil.WriteArtifact(t, dir, "notes.txt", now.Add(-10*24*time.Hour))

	cfg := DefaultConfig()
	cfg.Dir = dir
	s := New(cfg)
	s.clock = testutil.NewFakeClock(now).Now

	s.runCycle()

	got := remaining(t, dir)
	if len(got) != 2 {
		t.Fatalf("remaining = %v, want recent.jpg and notes.txt", got)
	}
	for _, name := range got {
		if name == "ancient.jpg" {
			t.Errorf("ancient.jpg survived the sweep")
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "recent.jpg")); err != nil {
		t.Errorf("recent.jpg was removed: %v", err)
	}
}

func TestSweeper_RespectsBatchLimit(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		testutil.WriteArtifact(t, dir, name, now.Add(-10*24*time.Hour))
	}

	cfg := DefaultConfig()
	cfg.Dir = dir
	cfg.BatchSize = 2
	s := New(cfg)
	s.clock = testutil.NewFakeClock(now).Now

	s.runCycle()

	if got := remaining(t, dir); len(got) != 1 {
		t.Errorf("remaining = %v, want exactly one survivor", got)
	}
}
