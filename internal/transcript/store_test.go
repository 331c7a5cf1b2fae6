package transcript_test

import (
	"sync"
	"testing"
	"time"

	"scriptview/internal/feed"
	"scriptview/internal/transcript"
)

func TestStoreReplaceCopiesInput(t *testing.T) {
	store := transcript.NewStore()
	in := entries("a", "b")
	store.Replace(in)
	in[0] = feed.NewEntry("mutated", 0, 0)

	snap := store.Snapshot()
	if snap[0].Text != "a" {
		t.Fatalf("store must copy on replace, got %q", snap[0].Text)
	}
	snap[1] = feed.NewEntry("also mutated", 0, 0)
	if store.Snapshot()[1].Text != "b" {
		t.Fatal("snapshot must be independent of the store")
	}
}

func TestStoreTail(t *testing.T) {
	store := transcript.NewStore()
	store.Replace(entries("a", "b", "c", "d"))

	tests := []struct {
		n    int
		want int
	}{
		{n: 0, want: 4},
		{n: -1, want: 4},
		{n: 2, want: 2},
		{n: 10, want: 4},
	}
	for _, tt := range tests {
		got := store.Tail(tt.n)
		if len(got) != tt.want {
			t.Fatalf("Tail(%d) returned %d entries, want %d", tt.n, len(got), tt.want)
		}
		if got[len(got)-1].Text != "d" {
			t.Fatalf("Tail(%d) must end with the newest entry, got %q", tt.n, texts(got))
		}
	}
}

func TestStoreClearAndStatus(t *testing.T) {
	store := transcript.NewStore()
	if st := store.Status(); st.Version != 0 || st.Entries != 0 {
		t.Fatalf("unexpected initial status %+v", st)
	}

	store.Replace(entries("a", "b"))
	store.SetFeedPresent(true)
	store.SetScriptInstalled(true)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store.RecordReload("replaced", at)

	st := store.Status()
	if st.Version != 1 || st.Entries != 2 || !st.FeedPresent || !st.ScriptInstalled {
		t.Fatalf("unexpected status after replace %+v", st)
	}
	if st.LastOutcome != "replaced" || !st.LastReload.Equal(at) {
		t.Fatalf("unexpected reload record %+v", st)
	}
	if st.UpdatedAt.IsZero() {
		t.Fatal("expected UpdatedAt to be set")
	}

	store.Clear()
	st = store.Status()
	if st.Version != 2 || st.Entries != 0 {
		t.Fatalf("unexpected status after clear %+v", st)
	}
	if len(store.Snapshot()) != 0 {
		t.Fatal("expected empty transcript after clear")
	}
	if !st.FeedPresent {
		t.Fatal("clear must not touch presence flags")
	}
}

func TestStoreChangesClosesOnMutation(t *testing.T) {
	store := transcript.NewStore()
	version, changed := store.Changes()
	if version != 0 {
		t.Fatalf("unexpected version %d", version)
	}

	store.SetFeedPresent(true)
	select {
	case <-changed:
		t.Fatal("flag updates must not signal a transcript change")
	default:
	}

	store.Replace(entries("x"))
	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("expected change channel to close on replace")
	}

	next, nextChanged := store.Changes()
	if next != 1 {
		t.Fatalf("expected version 1, got %d", next)
	}
	select {
	case <-nextChanged:
		t.Fatal("new change channel should still be open")
	default:
	}
}

func TestStoreReplaceIsAtomicForReaders(t *testing.T) {
	store := transcript.NewStore()
	short := entries("s", "s", "s")
	long := entries("l", "l", "l", "l", "l", "l", "l")
	store.Replace(short)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan string, 8)

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := store.Snapshot()
				want := len(short)
				if snap[0].Text == "l" {
					want = len(long)
				}
				if len(snap) != want {
					errs <- "torn snapshot length"
					return
				}
				for _, entry := range snap {
					if entry.Text != snap[0].Text {
						errs <- "mixed snapshot contents"
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 2000; i++ {
		if i%2 == 0 {
			store.Replace(long)
		} else {
			store.Replace(short)
		}
	}
	close(stop)
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Fatal(msg)
	}
}
