// Package history keeps a bounded in-memory log of answered questions.
package history

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity is the number of entries kept when none is configured.
const DefaultCapacity = 50

// Entry is one answered question.
type Entry struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is a fixed-capacity ring of entries. When full, recording a new
// entry evicts the oldest one.
type Store struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
	now     func() time.Time
}

// New returns a Store holding at most capacity entries.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{entries: make([]Entry, capacity), now: time.Now}
}

// Record appends an entry and returns it.
func (s *Store) Record(question, answer string) Entry {
	e := Entry{
		ID:        uuid.NewString(),
		Question:  question,
		Answer:    answer,
		Timestamp: s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[s.next] = e
	s.next = (s.next + 1) % len(s.entries)
	if s.next == 0 {
		s.full = true
	}
	return e
}

// Recent returns up to n entries, newest first. n <= 0 returns all.
func (s *Store) Recent(n int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := s.lenLocked()
	if n <= 0 || n > size {
		n = size
	}
	out := make([]Entry, 0, n)
	for i := 1; i <= n; i++ {
		idx := (s.next - i + len(s.entries)) % len(s.entries)
		out = append(out, s.entries[idx])
	}
	return out
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lenLocked()
}

// Capacity returns the maximum number of entries.
func (s *Store) Capacity() int { return len(s.entries) }

func (s *Store) lenLocked() int {
	if s.full {
		return len(s.entries)
	}
	return s.next
}
