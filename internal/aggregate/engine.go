package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dariak/consentshare/internal/domain"
)

// TopCategoryNoData is reported as the top spending category when the
// transaction sequence is empty.
const TopCategoryNoData = "no data"

// amountScale is the number of decimal places reported for derived amounts
// such as means and ratios.
const amountScale = 2

// Engine turns a transaction sequence into de-identified statistical
// summaries. Compute is pure: it performs no I/O, never consults consent
// state, and is deterministic for a fixed transaction sequence and scope set.
// Gating is the coordinator's and catalog's responsibility.
type Engine struct {
	nowFn func() time.Time
}

// NewEngine constructs an Engine with the wall clock.
func NewEngine() *Engine {
	return &Engine{nowFn: time.Now}
}

// WithClock overrides the time provider (used primarily in tests).
func (e *Engine) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		e.nowFn = nowFn
	}
}

// Compute produces one summary per requested data type, ordered by data type
// for deterministic output. Scopes are de-duplicated; an unknown scope is a
// programming error upstream (the registry validates submissions) and is
// rejected here as well so the engine can never emit an unspecified artifact.
func (e *Engine) Compute(individual domain.Individual, txs []domain.Transaction, scopes []domain.DataType) ([]domain.AggregateSummary, error) {
	generatedAt := e.nowFn().UTC()

	summaries := make([]domain.AggregateSummary, 0, len(scopes))
	for _, scope := range domain.NormalizeScopes(scopes) {
		metrics, err := metricsFor(scope, individual, txs)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, domain.AggregateSummary{
			IndividualID: individual.ID,
			PartyID:      "", // stamped by the coordinator when publishing
			DataType:     scope,
			Metrics:      metrics,
			SampleSize:   1,
			GeneratedAt:  generatedAt,
		})
	}
	return summaries, nil
}

func metricsFor(dt domain.DataType, individual domain.Individual, txs []domain.Transaction) (domain.Metrics, error) {
	switch dt {
	case domain.DataTypeCategorySpending:
		return categorySpendingMetrics(txs), nil
	case domain.DataTypeAverageBill:
		return averageBillMetrics(txs), nil
	case domain.DataTypeSpendingFrequency:
		return spendingFrequencyMetrics(txs), nil
	case domain.DataTypeAgeGroupStats:
		return ageGroupStatsMetrics(individual), nil
	default:
		return nil, fmt.Errorf("no transformation for data type %q", dt)
	}
}

func categorySpendingMetrics(txs []domain.Transaction) domain.Metrics {
	spendingByCategory := make(map[string]decimal.Decimal)
	countByCategory := make(map[string]int)
	totalSpent := decimal.Zero

	for _, tx := range txs {
		spendingByCategory[tx.Category] = spendingByCategory[tx.Category].Add(tx.Amount)
		countByCategory[tx.Category]++
		totalSpent = totalSpent.Add(tx.Amount)
	}

	return domain.Metrics{
		"spending_by_category":     spendingByCategory,
		"transactions_by_category": countByCategory,
		"top_category":             topCategory(spendingByCategory),
		"total_spent":              totalSpent,
		"total_categories":         len(spendingByCategory),
	}
}

// topCategory returns the category with the largest spend. Ties resolve to
// the lexicographically smallest name so repeated computations agree.
func topCategory(spending map[string]decimal.Decimal) string {
	if len(spending) == 0 {
		return TopCategoryNoData
	}

	names := make([]string, 0, len(spending))
	for name := range spending {
		names = append(names, name)
	}
	sort.Strings(names)

	top := names[0]
	for _, name := range names[1:] {
		if spending[name].GreaterThan(spending[top]) {
			top = name
		}
	}
	return top
}

func averageBillMetrics(txs []domain.Transaction) domain.Metrics {
	if len(txs) == 0 {
		// Guarded: the mean is defined as zero for an empty sequence, it is
		// never computed as total/0.
		return domain.Metrics{
			"average_transaction_amount": decimal.Zero,
			"min_amount":                 decimal.Zero,
			"max_amount":                 decimal.Zero,
			"total_transactions":         0,
			"total_amount":               decimal.Zero,
		}
	}

	total := decimal.Zero
	minAmount := txs[0].Amount
	maxAmount := txs[0].Amount
	for _, tx := range txs {
		total = total.Add(tx.Amount)
		if tx.Amount.LessThan(minAmount) {
			minAmount = tx.Amount
		}
		if tx.Amount.GreaterThan(maxAmount) {
			maxAmount = tx.Amount
		}
	}

	mean := total.Div(decimal.NewFromInt(int64(len(txs)))).Round(amountScale)

	return domain.Metrics{
		"average_transaction_amount": mean,
		"min_amount":                 minAmount,
		"max_amount":                 maxAmount,
		"total_transactions":         len(txs),
		"total_amount":               total,
	}
}

func spendingFrequencyMetrics(txs []domain.Transaction) domain.Metrics {
	days := make(map[string]struct{})
	for _, tx := range txs {
		days[tx.Timestamp.UTC().Format("2006-01-02")] = struct{}{}
	}

	perDay := decimal.Zero
	if len(days) > 0 {
		perDay = decimal.NewFromInt(int64(len(txs))).
			Div(decimal.NewFromInt(int64(len(days)))).
			Round(amountScale)
	}

	return domain.Metrics{
		"active_days":                 len(days),
		"total_transactions":          len(txs),
		"transactions_per_active_day": perDay,
	}
}

func ageGroupStatsMetrics(individual domain.Individual) domain.Metrics {
	// Age group is a pre-banded cohort label, never a birth date. City is
	// deliberately omitted: combined with an age band at sample size 1 it
	// becomes a quasi-identifier.
	return domain.Metrics{
		"age_group":       individual.AgeGroup,
		"average_balance": individual.TotalBalance,
		"client_count":    1,
	}
}
