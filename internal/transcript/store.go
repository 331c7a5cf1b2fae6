package transcript

import (
	"sync"
	"time"

	"scriptview/internal/feed"
)

// Status summarizes the store for display collaborators.
type Status struct {
	FeedPresent     bool
	ScriptInstalled bool
	Entries         int
	Version         uint64
	UpdatedAt       time.Time
	LastReload      time.Time
	LastOutcome     string
}

// Store owns the current transcript. A single writer replaces it wholesale
// while any number of readers take copies; nobody holds references into it.
type Store struct {
	mu              sync.RWMutex
	entries         []feed.Entry
	version         uint64
	changed         chan struct{}
	feedPresent     bool
	scriptInstalled bool
	updatedAt       time.Time
	lastReload      time.Time
	lastOutcome     string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{changed: make(chan struct{})}
}

// Replace installs a copy of entries as the new transcript.
func (s *Store) Replace(entries []feed.Entry) {
	next := append([]feed.Entry(nil), entries...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = next
	s.bumpLocked()
}

// Clear empties the transcript until the next successful replace.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.bumpLocked()
}

func (s *Store) bumpLocked() {
	s.version++
	s.updatedAt = time.Now()
	close(s.changed)
	s.changed = make(chan struct{})
}

// Snapshot returns an independent copy of the whole transcript.
func (s *Store) Snapshot() []feed.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]feed.Entry(nil), s.entries...)
}

// Tail returns a copy of the last n entries. n <= 0 returns everything.
func (s *Store) Tail(n int) []feed.Entry {
	entries, _ := s.TailVersion(n)
	return entries
}

// TailVersion is Tail plus the version the copy was taken at.
func (s *Store) TailVersion(n int) ([]feed.Entry, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if n > 0 && n < len(s.entries) {
		start = len(s.entries) - n
	}
	return append([]feed.Entry(nil), s.entries[start:]...), s.version
}

// SetFeedPresent records whether the feed existed at the last reload attempt.
func (s *Store) SetFeedPresent(present bool) {
	s.mu.Lock()
	s.feedPresent = present
	s.mu.Unlock()
}

// SetScriptInstalled records whether the companion script was found.
func (s *Store) SetScriptInstalled(installed bool) {
	s.mu.Lock()
	s.scriptInstalled = installed
	s.mu.Unlock()
}

// RecordReload stores the outcome of the most recent reload attempt.
func (s *Store) RecordReload(outcome string, at time.Time) {
	s.mu.Lock()
	s.lastOutcome = outcome
	s.lastReload = at
	s.mu.Unlock()
}

// Status returns the current flags and counters.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		FeedPresent:     s.feedPresent,
		ScriptInstalled: s.scriptInstalled,
		Entries:         len(s.entries),
		Version:         s.version,
		UpdatedAt:       s.updatedAt,
		LastReload:      s.lastReload,
		LastOutcome:     s.lastOutcome,
	}
}

// Changes returns the current version and a channel that is closed on the
// next transcript mutation.
func (s *Store) Changes() (uint64, <-chan struct{}) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version, s.changed
}
