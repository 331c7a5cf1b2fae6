package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"scriptview/internal/logs"
)

func TestLast(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scriptview.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	tests := []struct {
		name string
		n    int
		want []string
	}{
		{name: "tail two", n: 2, want: []string{"b", "c"}},
		{name: "more than available", n: 10, want: []string{"a", "b", "c"}},
		{name: "all", n: 0, want: []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, offset, err := logs.Last(path, tt.n)
			if err != nil {
				t.Fatalf("Last: %v", err)
			}
			if !reflect.DeepEqual(lines, tt.want) {
				t.Fatalf("Last = %#v, want %#v", lines, tt.want)
			}
			if offset != 6 {
				t.Fatalf("expected offset 6, got %d", offset)
			}
		})
	}

	lines, offset, err := logs.Last(filepath.Join(dir, "missing.log"), 5)
	if err != nil || len(lines) != 0 || offset != 0 {
		t.Fatalf("missing file: %v %d %v", lines, offset, err)
	}
}

type lineCollector struct {
	mu    sync.Mutex
	lines []string
}

func (c *lineCollector) add(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
}

func (c *lineCollector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func waitLines(t *testing.T, c *lineCollector, want []string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if reflect.DeepEqual(c.snapshot(), want) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("lines = %#v, want %#v", c.snapshot(), want)
}

func appendString(t *testing.T, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(s); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestFollowEmitsAppendedLinesAcrossRotation(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "scriptview-1.log")
	second := filepath.Join(dir, "scriptview-2.log")
	link := filepath.Join(dir, "scriptview.log")
	appendString(t, first, "old\n")
	if err := os.Symlink(first, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	_, offset, err := logs.Last(link, 10)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	collector := &lineCollector{}
	done := make(chan error, 1)
	go func() { done <- logs.Follow(ctx, link, offset, 10*time.Millisecond, collector.add) }()

	appendString(t, first, "new line\npart")
	waitLines(t, collector, []string{"new line"})
	appendString(t, first, "ial\n")
	waitLines(t, collector, []string{"new line", "partial"})

	appendString(t, second, "next run\n")
	if err := os.Remove(link); err != nil {
		t.Fatalf("remove link: %v", err)
	}
	if err := os.Symlink(second, link); err != nil {
		t.Fatalf("relink: %v", err)
	}
	waitLines(t, collector, []string{"new line", "partial", "next run"})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Follow: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Follow did not return after cancel")
	}
}
