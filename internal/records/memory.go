package records

import (
	"context"
	"sort"
	"sync"

	"github.com/dariak/consentshare/internal/domain"
)

// MemoryStore keeps individuals and their transaction sequences in process
// memory. It backs unit tests and the demo deployment mode where no graph
// database is configured.
type MemoryStore struct {
	mu           sync.RWMutex
	individuals  map[string]domain.Individual
	transactions map[string][]domain.Transaction
}

// NewMemoryStore returns an empty in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		individuals:  make(map[string]domain.Individual),
		transactions: make(map[string][]domain.Transaction),
	}
}

func (s *MemoryStore) GetIndividual(_ context.Context, individualID string) (domain.Individual, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	individual, ok := s.individuals[individualID]
	if !ok {
		return domain.Individual{}, ErrIndividualNotFound
	}
	return individual, nil
}

func (s *MemoryStore) GetTransactions(_ context.Context, individualID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.individuals[individualID]; !ok {
		return nil, ErrIndividualNotFound
	}
	return append([]domain.Transaction(nil), s.transactions[individualID]...), nil
}

func (s *MemoryStore) ListIndividualIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.individuals))
	for id := range s.individuals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) UpsertIndividual(_ context.Context, individual domain.Individual) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.individuals[individual.ID] = individual
	return nil
}

// UpsertTransaction appends or replaces a transaction in the individual's
// sequence. Order by timestamp is maintained so reads always see the
// timeline the record system guarantees.
func (s *MemoryStore) UpsertTransaction(_ context.Context, individualID string, tx domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.individuals[individualID]; !ok {
		return ErrIndividualNotFound
	}

	seq := s.transactions[individualID]
	replaced := false
	for i, existing := range seq {
		if existing.ID == tx.ID {
			seq[i] = tx
			replaced = true
			break
		}
	}
	if !replaced {
		seq = append(seq, tx)
	}
	sort.SliceStable(seq, func(i, j int) bool { return seq[i].Timestamp.Before(seq[j].Timestamp) })
	s.transactions[individualID] = seq
	return nil
}

// Probe reports the store as always reachable; it exists so the memory store
// satisfies the same health contract as the graph-backed store.
func (s *MemoryStore) Probe(context.Context) error {
	return nil
}
