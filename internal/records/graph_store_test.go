package records

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dariak/consentshare/internal/domain"
	"github.com/dariak/consentshare/internal/graph"
)

func TestGraphStoreGetIndividual(t *testing.T) {
	client := graph.NewMemoryClient()
	client.PushReadResult(graph.Result{Records: []graph.Record{{
		"individualId": "IND-1",
		"fullName":     "Jane Doe",
		"ageGroup":     "25-35",
		"city":         "Seattle",
		"totalBalance": "150000.50",
		"updatedAt":    "2024-01-15T10:00:00Z",
	}}})

	store := NewGraphStore(client)
	individual, err := store.GetIndividual(context.Background(), "IND-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if individual.FullName != "Jane Doe" {
		t.Errorf("expected full name parsed, got %q", individual.FullName)
	}
	if !individual.TotalBalance.Equal(decimal.NewFromFloat(150000.50)) {
		t.Errorf("expected balance parsed from decimal string, got %s", individual.TotalBalance)
	}
	if individual.UpdatedAt.IsZero() {
		t.Errorf("expected updatedAt parsed")
	}

	calls := client.ReadCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 read, got %d", len(calls))
	}
	if calls[0].Params["individualId"] != "IND-1" {
		t.Errorf("expected individualId parameter, got %v", calls[0].Params)
	}
}

func TestGraphStoreGetIndividualNotFound(t *testing.T) {
	client := graph.NewMemoryClient()
	client.PushReadResult(graph.Result{})

	store := NewGraphStore(client)
	if _, err := store.GetIndividual(context.Background(), "IND-404"); !errors.Is(err, ErrIndividualNotFound) {
		t.Fatalf("expected ErrIndividualNotFound, got %v", err)
	}
}

func TestGraphStoreGetTransactions(t *testing.T) {
	client := graph.NewMemoryClient()
	client.PushReadResult(graph.Result{Records: []graph.Record{{"individualId": "IND-1"}}})
	client.PushReadResult(graph.Result{Records: []graph.Record{
		{
			"transactionId": "TX-1",
			"amount":        "2500",
			"category":      "Dining",
			"counterparty":  "Cafe Luna",
			"timestamp":     "2024-01-15T10:00:00Z",
		},
		{
			"transactionId": "TX-2",
			"amount":        "1000.25",
			"category":      "Transport",
			"timestamp":     "2024-01-16T08:00:00Z",
		},
	}})

	store := NewGraphStore(client)
	txs, err := store.GetTransactions(context.Background(), "IND-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	if txs[0].ID != "TX-1" || !txs[0].Amount.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("unexpected first transaction: %+v", txs[0])
	}
	if !txs[1].Amount.Equal(decimal.NewFromFloat(1000.25)) {
		t.Errorf("expected decimal string round trip, got %s", txs[1].Amount)
	}
	if txs[0].Timestamp.IsZero() {
		t.Errorf("expected timestamp parsed")
	}
}

func TestGraphStoreGetTransactionsUnknownIndividual(t *testing.T) {
	client := graph.NewMemoryClient()
	client.PushReadResult(graph.Result{})

	store := NewGraphStore(client)
	if _, err := store.GetTransactions(context.Background(), "IND-404"); !errors.Is(err, ErrIndividualNotFound) {
		t.Fatalf("expected ErrIndividualNotFound, got %v", err)
	}
}

func TestGraphStoreUpsertTransactionSendsDecimalString(t *testing.T) {
	client := graph.NewMemoryClient()
	store := NewGraphStore(client)

	tx := domain.Transaction{
		ID:        "TX-1",
		Amount:    decimal.NewFromFloat(2500.75),
		Category:  "Dining",
		Timestamp: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
	}
	if err := store.UpsertTransaction(context.Background(), "IND-1", tx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	calls := client.WriteCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 write, got %d", len(calls))
	}
	props := calls[0].Params["props"].(map[string]any)
	if props["amount"] != "2500.75" {
		t.Errorf("expected amount as canonical decimal string, got %v", props["amount"])
	}
}

func TestGraphStoreUpsertValidatesIDs(t *testing.T) {
	store := NewGraphStore(graph.NewMemoryClient())

	if err := store.UpsertIndividual(context.Background(), domain.Individual{}); err == nil {
		t.Errorf("expected error for missing individual id")
	}
	if err := store.UpsertTransaction(context.Background(), "IND-1", domain.Transaction{}); err == nil {
		t.Errorf("expected error for missing transaction id")
	}
	if err := store.UpsertTransaction(context.Background(), "", domain.Transaction{ID: "TX-1"}); err == nil {
		t.Errorf("expected error for missing individual id")
	}
}

func TestGraphStoreProbe(t *testing.T) {
	healthy := NewGraphStore(graph.NewMemoryClient())
	if err := healthy.Probe(context.Background()); err != nil {
		t.Errorf("expected healthy probe, got %v", err)
	}

	down := NewGraphStore(graph.NewMemoryClient().WithConnectivityError(errors.New("unreachable")))
	if err := down.Probe(context.Background()); err == nil {
		t.Errorf("expected probe failure")
	}
}
