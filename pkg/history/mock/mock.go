// Package mock provides an in-memory test double for [history.Store].
//
// Typical usage:
//
//	store := &mock.Store{}
//	// inject store into the system under test ...
//	if got := len(store.Entries()); got != 1 {
//	    t.Errorf("recorded %d entries, want 1", got)
//	}
package mock

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/MrWong99/voxkey/pkg/history"
)

var _ history.Store = (*Store)(nil)

// Store keeps entries in memory. Search is a case-insensitive substring
// match. The *Err fields, when set, are returned instead.
type Store struct {
	mu      sync.Mutex
	entries []history.Entry
	// notify, if set, receives every recorded entry.
	notify chan history.Entry

	RecordErr error
	RecentErr error
	SearchErr error
}

// NewStore returns a Store that also sends every recorded entry on the
// returned channel. The channel is buffered with size n.
func NewStore(n int) (*Store, <-chan history.Entry) {
	ch := make(chan history.Entry, n)
	return &Store{notify: ch}, ch
}

// Record implements [history.Store].
func (s *Store) Record(_ context.Context, e history.Entry) error {
	s.mu.Lock()
	if s.RecordErr != nil {
		s.mu.Unlock()
		return s.RecordErr
	}
	e.ID = int64(len(s.entries) + 1)
	s.entries = append(s.entries, e)
	ch := s.notify
	s.mu.Unlock()
	if ch != nil {
		ch <- e
	}
	return nil
}

// Recent implements [history.Store].
func (s *Store) Recent(_ context.Context, limit int) ([]history.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RecentErr != nil {
		return nil, s.RecentErr
	}
	return newestFirst(s.entries, history.Limit(limit), func(history.Entry) bool { return true }), nil
}

// Search implements [history.Store].
func (s *Store) Search(_ context.Context, query string, limit int) ([]history.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SearchErr != nil {
		return nil, s.SearchErr
	}
	q := strings.ToLower(query)
	return newestFirst(s.entries, history.Limit(limit), func(e history.Entry) bool {
		return e.OK() && strings.Contains(strings.ToLower(e.Text), q)
	}), nil
}

// Entries returns a copy of everything recorded, oldest first.
func (s *Store) Entries() []history.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

func newestFirst(entries []history.Entry, limit int, keep func(history.Entry) bool) []history.Entry {
	out := []history.Entry{}
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		if keep(entries[i]) {
			out = append(out, entries[i])
		}
	}
	return out
}
