// Package memory is an in-memory export target used in tests and when
// no spreadsheet is configured in development.
package memory

import (
	"context"
	"sync"

	"masareef/internal/core"
)

type Store struct {
	mu   sync.Mutex
	rows []core.LedgerEntry
}

func New() *Store {
	return &Store{}
}

// AppendEntries records the entries and reports how many were added.
func (s *Store) AppendEntries(_ context.Context, entries []core.LedgerEntry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, entries...)
	return len(entries), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() []core.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.LedgerEntry(nil), s.rows...)
}
