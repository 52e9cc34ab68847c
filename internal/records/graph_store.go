package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dariak/consentshare/internal/domain"
	"github.com/dariak/consentshare/internal/graph"
)

// GraphStore persists individuals and transactions in a graph database.
// Individuals are nodes; each transaction is a node connected by a MADE edge,
// keeping the timeline queryable without duplicating profile data.
type GraphStore struct {
	client graph.Client
}

// NewGraphStore wraps the supplied graph client.
func NewGraphStore(client graph.Client) *GraphStore {
	return &GraphStore{client: client}
}

func (s *GraphStore) GetIndividual(ctx context.Context, individualID string) (domain.Individual, error) {
	if individualID == "" {
		return domain.Individual{}, errors.New("individual id is required")
	}

	res, err := s.client.ExecuteRead(ctx, getIndividualCypher, map[string]any{
		"individualId": individualID,
	})
	if err != nil {
		return domain.Individual{}, fmt.Errorf("get individual %s: %w", individualID, err)
	}
	if len(res.Records) == 0 {
		return domain.Individual{}, ErrIndividualNotFound
	}

	return parseIndividual(res.Records[0]), nil
}

func (s *GraphStore) GetTransactions(ctx context.Context, individualID string) ([]domain.Transaction, error) {
	if individualID == "" {
		return nil, errors.New("individual id is required")
	}

	exists, err := s.client.ExecuteRead(ctx, individualExistsCypher, map[string]any{
		"individualId": individualID,
	})
	if err != nil {
		return nil, fmt.Errorf("check individual %s: %w", individualID, err)
	}
	if len(exists.Records) == 0 {
		return nil, ErrIndividualNotFound
	}

	res, err := s.client.ExecuteRead(ctx, getTransactionsCypher, map[string]any{
		"individualId": individualID,
	})
	if err != nil {
		return nil, fmt.Errorf("get transactions for %s: %w", individualID, err)
	}

	txs := make([]domain.Transaction, 0, len(res.Records))
	for _, record := range res.Records {
		txs = append(txs, parseTransaction(record))
	}
	return txs, nil
}

func (s *GraphStore) ListIndividualIDs(ctx context.Context) ([]string, error) {
	res, err := s.client.ExecuteRead(ctx, listIndividualIDsCypher, nil)
	if err != nil {
		return nil, fmt.Errorf("list individual ids: %w", err)
	}

	ids := make([]string, 0, len(res.Records))
	for _, record := range res.Records {
		if id := toString(record["individualId"]); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *GraphStore) UpsertIndividual(ctx context.Context, individual domain.Individual) error {
	if individual.ID == "" {
		return errors.New("individual id is required")
	}

	_, err := s.client.ExecuteWrite(ctx, upsertIndividualCypher, map[string]any{
		"individualId": individual.ID,
		"props":        individualProperties(individual),
	})
	if err != nil {
		return fmt.Errorf("upsert individual %s: %w", individual.ID, err)
	}
	return nil
}

func (s *GraphStore) UpsertTransaction(ctx context.Context, individualID string, tx domain.Transaction) error {
	if individualID == "" {
		return errors.New("individual id is required")
	}
	if tx.ID == "" {
		return errors.New("transaction id is required")
	}

	_, err := s.client.ExecuteWrite(ctx, upsertTransactionCypher, map[string]any{
		"individualId":  individualID,
		"transactionId": tx.ID,
		"props":         transactionProperties(tx),
	})
	if err != nil {
		return fmt.Errorf("upsert transaction %s: %w", tx.ID, err)
	}
	return nil
}

// Probe verifies connectivity, backing the health endpoint.
func (s *GraphStore) Probe(ctx context.Context) error {
	return s.client.VerifyConnectivity(ctx)
}

// Close releases the underlying driver resources.
func (s *GraphStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func individualProperties(individual domain.Individual) map[string]any {
	props := map[string]any{
		"fullName":     individual.FullName,
		"ageGroup":     individual.AgeGroup,
		"city":         individual.City,
		"totalBalance": individual.TotalBalance.String(),
		"updatedAt":    formatTime(individual.UpdatedAt),
	}
	if !individual.CreatedAt.IsZero() {
		props["createdAt"] = formatTime(individual.CreatedAt)
	}
	return props
}

func transactionProperties(tx domain.Transaction) map[string]any {
	// Amounts travel as canonical decimal strings so no precision is lost in
	// the round trip through the graph's numeric types.
	return map[string]any{
		"amount":       tx.Amount.String(),
		"category":     tx.Category,
		"counterparty": tx.Counterparty,
		"timestamp":    formatTime(tx.Timestamp),
	}
}

func parseIndividual(record graph.Record) domain.Individual {
	individual := domain.Individual{
		ID:           toString(record["individualId"]),
		FullName:     toString(record["fullName"]),
		AgeGroup:     toString(record["ageGroup"]),
		City:         toString(record["city"]),
		TotalBalance: toDecimal(record["totalBalance"]),
	}
	if ts := toTimePtr(record["createdAt"]); ts != nil {
		individual.CreatedAt = *ts
	}
	if ts := toTimePtr(record["updatedAt"]); ts != nil {
		individual.UpdatedAt = *ts
	}
	return individual
}

func parseTransaction(record graph.Record) domain.Transaction {
	tx := domain.Transaction{
		ID:           toString(record["transactionId"]),
		Amount:       toDecimal(record["amount"]),
		Category:     toString(record["category"]),
		Counterparty: toString(record["counterparty"]),
	}
	if ts := toTimePtr(record["timestamp"]); ts != nil {
		tx.Timestamp = *ts
	}
	return tx
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func toString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case []byte:
		return string(v)
	default:
		return ""
	}
}

func toDecimal(val any) decimal.Decimal {
	switch v := val.(type) {
	case string:
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	case float64:
		return decimal.NewFromFloat(v)
	case int64:
		return decimal.NewFromInt(v)
	case int:
		return decimal.NewFromInt(int64(v))
	}
	return decimal.Zero
}

func toTimePtr(val any) *time.Time {
	switch v := val.(type) {
	case time.Time:
		return &v
	case string:
		if v == "" {
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return &parsed
		}
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			return &parsed
		}
	}
	return nil
}

const upsertIndividualCypher = `
MERGE (i:Individual {individualId: $individualId})
SET i += $props
RETURN i.individualId AS individualId
`

const upsertTransactionCypher = `
MATCH (i:Individual {individualId: $individualId})
MERGE (t:Transaction {transactionId: $transactionId})
SET t += $props
MERGE (i)-[:MADE]->(t)
RETURN t.transactionId AS transactionId
`

const getIndividualCypher = `
MATCH (i:Individual {individualId: $individualId})
RETURN i.individualId AS individualId,
       i.fullName AS fullName,
       i.ageGroup AS ageGroup,
       i.city AS city,
       i.totalBalance AS totalBalance,
       i.createdAt AS createdAt,
       i.updatedAt AS updatedAt
`

const individualExistsCypher = `
MATCH (i:Individual {individualId: $individualId})
RETURN i.individualId AS individualId
`

const getTransactionsCypher = `
MATCH (i:Individual {individualId: $individualId})-[:MADE]->(t:Transaction)
RETURN t.transactionId AS transactionId,
       t.amount AS amount,
       t.category AS category,
       t.counterparty AS counterparty,
       t.timestamp AS timestamp
ORDER BY t.timestamp ASC, t.transactionId ASC
`

const listIndividualIDsCypher = `
MATCH (i:Individual)
RETURN i.individualId AS individualId
ORDER BY i.individualId ASC
`
