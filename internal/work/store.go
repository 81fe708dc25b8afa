package work

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Store persists non-terminal envelopes so they survive a restart.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append inserts or replaces the record with the same id. It must be
	// durable when it returns.
	Append(ctx context.Context, rec Record) error

	// LoadAll returns every stored record ordered by Seq.
	LoadAll(ctx context.Context) ([]Record, error)

	// Remove deletes the record with the given id. Removing an unknown id
	// is not an error.
	Remove(ctx context.Context, id uuid.UUID) error
}

// MemoryStore is a Store kept in process memory. It does not survive a
// restart and is meant for tests and single-shot deployments.
type MemoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID]Record)}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec.Clone()
	return nil
}

// LoadAll implements Store.
func (s *MemoryStore) LoadAll(_ context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, rec.Clone())
	}
	SortRecords(records)
	return records, nil
}

// Remove implements Store.
func (s *MemoryStore) Remove(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// SortRecords orders records by Seq, breaking ties by enqueue time.
func SortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Seq != records[j].Seq {
			return records[i].Seq < records[j].Seq
		}
		return records[i].EnqueuedAt.Before(records[j].EnqueuedAt)
	})
}
