package outbox

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps entries in insertion order.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.Payload = slices.Clone(entry.Payload)
	s.entries = append(s.entries, entry)
	return nil
}

func (s *MemoryStore) FetchUnpublished(_ context.Context, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, e := range s.entries {
		if e.PublishedAt != nil {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkPublished(_ context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if slices.Contains(ids, s.entries[i].ID) {
			published := at
			s.entries[i].PublishedAt = &published
		}
	}
	return nil
}

// Entries returns a copy of every entry, published or not.
func (s *MemoryStore) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

// Snapshot returns a func that drops entries appended after the call.
// Publish marks set in the meantime are kept.
func (s *MemoryStore) Snapshot() func() {
	s.mu.Lock()
	n := len(s.entries)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.entries = s.entries[:n:n]
		s.mu.Unlock()
	}
}
