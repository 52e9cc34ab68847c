package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dariak/consentshare/internal/domain"
	"github.com/dariak/consentshare/internal/records"
)

// ErrAggregationDeferred indicates a valid consent transition was stored but
// the summaries could not be computed (for example the individual's record
// vanished between submission and computation). The submission is safe to
// retry; until then the pair serves no data.
var ErrAggregationDeferred = errors.New("aggregation deferred")

// Engine computes de-identified summaries for a scope set.
type Engine interface {
	Compute(individual domain.Individual, txs []domain.Transaction, scopes []domain.DataType) ([]domain.AggregateSummary, error)
}

// Publisher is the catalog surface the coordinator drives.
type Publisher interface {
	Publish(summaries []domain.AggregateSummary)
	Withdraw(individualID, partyID string)
}

// Coordinator reacts to consent transitions: activation triggers
// recomputation and republishing of the pair's summaries, revocation
// withdraws them. It runs under the registry's per-pair transition lock, so
// the compute/withdraw/publish sequence for one pair is never interleaved.
type Coordinator struct {
	store   records.Store
	engine  Engine
	catalog Publisher
	logger  *slog.Logger
}

// New wires the coordinator against its collaborators.
func New(store records.Store, engine Engine, catalog Publisher, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:   store,
		engine:  engine,
		catalog: catalog,
		logger:  logger,
	}
}

// ConsentChanged implements the registry's TransitionObserver.
//
// On any transition the pair's previous summaries are withdrawn first: a
// revocation must hide data immediately, and a scope change must not leave
// summaries for data types that were dropped. When computation then fails,
// the pair is left with no published data and ErrAggregationDeferred is
// returned, which matches the contract that a deferred pair behaves as if no
// summaries exist until the submission is retried.
func (c *Coordinator) ConsentChanged(ctx context.Context, record domain.ConsentRecord) error {
	c.catalog.Withdraw(record.IndividualID, record.PartyID)

	if !record.Active {
		c.logger.Info("consent revoked, summaries withdrawn",
			"individualId", record.IndividualID,
			"partyId", record.PartyID,
		)
		return nil
	}

	individual, err := c.store.GetIndividual(ctx, record.IndividualID)
	if err != nil {
		return c.deferred(record, fmt.Errorf("load individual: %w", err))
	}

	txs, err := c.store.GetTransactions(ctx, record.IndividualID)
	if err != nil {
		return c.deferred(record, fmt.Errorf("load transactions: %w", err))
	}

	summaries, err := c.engine.Compute(individual, txs, record.Scopes)
	if err != nil {
		return c.deferred(record, fmt.Errorf("compute summaries: %w", err))
	}

	for i := range summaries {
		summaries[i].PartyID = record.PartyID
	}
	c.catalog.Publish(summaries)

	c.logger.Info("summaries published",
		"individualId", record.IndividualID,
		"partyId", record.PartyID,
		"dataTypes", len(summaries),
	)
	return nil
}

func (c *Coordinator) deferred(record domain.ConsentRecord, cause error) error {
	c.logger.Warn("aggregation deferred",
		"individualId", record.IndividualID,
		"partyId", record.PartyID,
		"error", cause,
	)
	return fmt.Errorf("%w: %w", ErrAggregationDeferred, cause)
}
