// Package memory is an in-process store used for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"finapi/internal/core"
	"finapi/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu         sync.Mutex
	partitions map[string]map[string]core.TransactionRecord
}

// New returns a store seeded with records.
func New(seed ...core.TransactionRecord) *Store {
	s := &Store{partitions: make(map[string]map[string]core.TransactionRecord)}
	for _, r := range seed {
		s.put(r)
	}
	return s
}

// Put upserts r. A record with the same keys is replaced.
func (s *Store) Put(_ context.Context, r core.TransactionRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(r)
	return nil
}

func (s *Store) put(r core.TransactionRecord) {
	p, ok := s.partitions[r.PartitionKey]
	if !ok {
		p = make(map[string]core.TransactionRecord)
		s.partitions[r.PartitionKey] = p
	}
	p[r.SortKey] = r
}

// QueryByPartition returns a copy of the partition ordered by sort key.
func (s *Store) QueryByPartition(_ context.Context, partitionKey string) ([]core.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.partitions[partitionKey]
	out := make([]core.TransactionRecord, 0, len(p))
	for _, r := range p {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortKey < out[j].SortKey })
	return out, nil
}

// Len reports the total number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.partitions {
		n += len(p)
	}
	return n
}

// Close is a no-op so the memory store satisfies io.Closer like the others.
func (s *Store) Close() error { return nil }
