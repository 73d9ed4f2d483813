// Package store holds the crawl's records keyed by sequence number. The
// sequence, not completion time, is the only ordering it knows about.
package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/quotescrape/internal/quotes"
)

var (
	// ErrDuplicateSequence is returned when a sequence slot is filled twice.
	ErrDuplicateSequence = errors.New("sequence already recorded")
	// ErrInvalidSequence is returned for sequence numbers below 1.
	ErrInvalidSequence = errors.New("sequence must be positive")
)

// Store is an append-only mapping from sequence number to record.
type Store struct {
	mu      sync.RWMutex
	records map[int]quotes.Record
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		records: make(map[int]quotes.Record),
	}
}

// Insert fills the slot for seq. Each slot is written at most once.
func (s *Store) Insert(seq int, rec quotes.Record) error {
	if seq < 1 {
		return fmt.Errorf("insert %d: %w", seq, ErrInvalidSequence)
	}
	rec = rec.Clone()
	rec.Sequence = seq

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[seq]; exists {
		return fmt.Errorf("insert %d: %w", seq, ErrDuplicateSequence)
	}
	s.records[seq] = rec
	return nil
}

// Get returns a copy of the record at seq.
func (s *Store) Get(seq int) (quotes.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[seq]
	if !ok {
		return quotes.Record{}, false
	}
	return rec.Clone(), true
}

// Len reports how many slots are filled.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Finalize returns copies of every record in ascending sequence order.
func (s *Store) Finalize() []quotes.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]int, 0, len(s.records))
	for seq := range s.records {
		keys = append(keys, seq)
	}
	sort.Ints(keys)

	out := make([]quotes.Record, 0, len(keys))
	for _, seq := range keys {
		out = append(out, s.records[seq].Clone())
	}
	return out
}

// Missing lists the sequence numbers in 1..n that have no record.
func (s *Store) Missing(n int) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var missing []int
	for seq := 1; seq <= n; seq++ {
		if _, ok := s.records[seq]; !ok {
			missing = append(missing, seq)
		}
	}
	return missing
}
