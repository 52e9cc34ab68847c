package server

import "context"

// HealthService defines behaviour for readiness probes.
type HealthService interface {
	Probe(ctx context.Context) error
}

// StoreProber is implemented by record stores that can verify their backing
// connectivity (the graph store checks the Bolt connection, the memory store
// always succeeds).
type StoreProber interface {
	Probe(ctx context.Context) error
}

// RecordsHealthService reports the record store's availability.
type RecordsHealthService struct {
	Store StoreProber
}

// Probe implements the HealthService interface.
func (s RecordsHealthService) Probe(ctx context.Context) error {
	if s.Store == nil {
		return nil
	}
	return s.Store.Probe(ctx)
}
