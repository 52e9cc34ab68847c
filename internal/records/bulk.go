package records

import (
	"context"
	"errors"
	"sync"

	"github.com/dariak/consentshare/internal/domain"
)

// LoadError accumulates the individual failures of a bulk load.
type LoadError struct {
	Errors []error
}

func (e *LoadError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := "multiple errors:"
	for _, err := range e.Errors {
		msg += " " + err.Error() + ";"
	}
	return msg
}

func (e *LoadError) append(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

func (e *LoadError) asError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// IndividualRecord bundles a profile with its transaction sequence for bulk
// ingestion.
type IndividualRecord struct {
	Individual   domain.Individual
	Transactions []domain.Transaction
}

// BulkLoader writes record datasets through a Writer with bounded
// concurrency. Each individual's profile and transactions are loaded by a
// single worker, preserving per-individual write ordering.
type BulkLoader struct {
	writer  Writer
	workers int
}

// NewBulkLoader creates a loader with the given worker count.
func NewBulkLoader(writer Writer, workers int) *BulkLoader {
	if workers <= 0 {
		workers = 4
	}
	return &BulkLoader{writer: writer, workers: workers}
}

// Load ingests every record, fanning out across workers. Context
// cancellation aborts the remaining work; all other failures are collected
// into a LoadError so one bad record does not hide the rest.
func (l *BulkLoader) Load(ctx context.Context, dataset []IndividualRecord) error {
	if len(dataset) == 0 {
		return nil
	}

	indexCh := make(chan int)
	errCh := make(chan error, len(dataset))
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for idx := range indexCh {
			if err := l.loadOne(ctx, dataset[idx]); err != nil {
				select {
				case errCh <- err:
				case <-ctx.Done():
					return
				}
			}
		}
	}

	for i := 0; i < l.workers; i++ {
		wg.Add(1)
		go worker()
	}

Loop:
	for i := 0; i < len(dataset); i++ {
		select {
		case indexCh <- i:
		case <-ctx.Done():
			break Loop
		}
	}
	close(indexCh)
	wg.Wait()
	close(errCh)

	var loadErr LoadError
	for err := range errCh {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		loadErr.append(err)
	}
	return loadErr.asError()
}

func (l *BulkLoader) loadOne(ctx context.Context, record IndividualRecord) error {
	if err := l.writer.UpsertIndividual(ctx, record.Individual); err != nil {
		return err
	}
	for _, tx := range record.Transactions {
		if err := l.writer.UpsertTransaction(ctx, record.Individual.ID, tx); err != nil {
			return err
		}
	}
	return nil
}
