package records

import (
	"context"
	"errors"

	"github.com/dariak/consentshare/internal/domain"
)

// Store is the read-only view of the external system of record. The
// aggregation core never mutates identity or transaction data; it only reads
// through this interface.
type Store interface {
	GetIndividual(ctx context.Context, individualID string) (domain.Individual, error)
	GetTransactions(ctx context.Context, individualID string) ([]domain.Transaction, error)
	ListIndividualIDs(ctx context.Context) ([]string, error)
}

// Writer is the ingestion side used by seeding tooling. Kept separate from
// Store so the consent and aggregation packages cannot accidentally depend on
// write access.
type Writer interface {
	UpsertIndividual(ctx context.Context, individual domain.Individual) error
	UpsertTransaction(ctx context.Context, individualID string, tx domain.Transaction) error
}

// ErrIndividualNotFound indicates the individual ID does not resolve in the
// system of record.
var ErrIndividualNotFound = errors.New("individual not found")
