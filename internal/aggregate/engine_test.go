package aggregate

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dariak/consentshare/internal/domain"
)

func fixedClock() time.Time {
	return time.Date(2024, 4, 20, 12, 0, 0, 0, time.UTC)
}

func testIndividual() domain.Individual {
	return domain.Individual{
		ID:           "IND-1",
		FullName:     "Jane Doe",
		AgeGroup:     "25-35",
		City:         "Seattle",
		TotalBalance: decimal.NewFromInt(150000),
	}
}

func testTransactions() []domain.Transaction {
	return []domain.Transaction{
		{ID: "t1", Amount: decimal.NewFromInt(2500), Category: "Dining", Timestamp: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)},
		{ID: "t2", Amount: decimal.NewFromInt(500), Category: "Dining", Timestamp: time.Date(2024, 1, 15, 19, 0, 0, 0, time.UTC)},
		{ID: "t3", Amount: decimal.NewFromInt(1000), Category: "Transport", Timestamp: time.Date(2024, 1, 16, 8, 0, 0, 0, time.UTC)},
	}
}

func newTestEngine() *Engine {
	engine := NewEngine()
	engine.WithClock(fixedClock)
	return engine
}

func TestComputeCategorySpending(t *testing.T) {
	engine := newTestEngine()

	summaries, err := engine.Compute(testIndividual(), testTransactions(), []domain.DataType{domain.DataTypeCategorySpending})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}

	summary := summaries[0]
	if summary.DataType != domain.DataTypeCategorySpending {
		t.Fatalf("expected category_spending, got %s", summary.DataType)
	}
	if summary.SampleSize != 1 {
		t.Errorf("expected sample size 1, got %d", summary.SampleSize)
	}
	if !summary.GeneratedAt.Equal(fixedClock()) {
		t.Errorf("expected generatedAt from injected clock, got %v", summary.GeneratedAt)
	}

	spending := summary.Metrics["spending_by_category"].(map[string]decimal.Decimal)
	if !spending["Dining"].Equal(decimal.NewFromInt(3000)) {
		t.Errorf("expected Dining spend 3000, got %s", spending["Dining"])
	}
	if !spending["Transport"].Equal(decimal.NewFromInt(1000)) {
		t.Errorf("expected Transport spend 1000, got %s", spending["Transport"])
	}
	if top := summary.Metrics["top_category"].(string); top != "Dining" {
		t.Errorf("expected top category Dining, got %s", top)
	}
	if total := summary.Metrics["total_spent"].(decimal.Decimal); !total.Equal(decimal.NewFromInt(4000)) {
		t.Errorf("expected total spent 4000, got %s", total)
	}
	if count := summary.Metrics["total_categories"].(int); count != 2 {
		t.Errorf("expected 2 categories, got %d", count)
	}
	counts := summary.Metrics["transactions_by_category"].(map[string]int)
	if counts["Dining"] != 2 || counts["Transport"] != 1 {
		t.Errorf("unexpected per-category counts: %v", counts)
	}
}

func TestComputeCategorySpendingEmptySequence(t *testing.T) {
	engine := newTestEngine()

	summaries, err := engine.Compute(testIndividual(), nil, []domain.DataType{domain.DataTypeCategorySpending})
	if err != nil {
		t.Fatalf("expected no error on empty sequence, got %v", err)
	}

	metrics := summaries[0].Metrics
	if total := metrics["total_spent"].(decimal.Decimal); !total.IsZero() {
		t.Errorf("expected total spent 0, got %s", total)
	}
	if top := metrics["top_category"].(string); top != TopCategoryNoData {
		t.Errorf("expected %q top category, got %q", TopCategoryNoData, top)
	}
	if count := metrics["total_categories"].(int); count != 0 {
		t.Errorf("expected 0 categories, got %d", count)
	}
}

func TestTopCategoryTieBreaksLexicographically(t *testing.T) {
	engine := newTestEngine()

	txs := []domain.Transaction{
		{ID: "t1", Amount: decimal.NewFromInt(1000), Category: "Transport"},
		{ID: "t2", Amount: decimal.NewFromInt(1000), Category: "Dining"},
	}
	summaries, err := engine.Compute(testIndividual(), txs, []domain.DataType{domain.DataTypeCategorySpending})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if top := summaries[0].Metrics["top_category"].(string); top != "Dining" {
		t.Errorf("expected tie to resolve to Dining, got %s", top)
	}
}

func TestComputeAverageBill(t *testing.T) {
	engine := newTestEngine()

	summaries, err := engine.Compute(testIndividual(), testTransactions(), []domain.DataType{domain.DataTypeAverageBill})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	metrics := summaries[0].Metrics
	wantMean := decimal.NewFromFloat(1333.33)
	if mean := metrics["average_transaction_amount"].(decimal.Decimal); !mean.Equal(wantMean) {
		t.Errorf("expected mean %s, got %s", wantMean, mean)
	}
	if min := metrics["min_amount"].(decimal.Decimal); !min.Equal(decimal.NewFromInt(500)) {
		t.Errorf("expected min 500, got %s", min)
	}
	if max := metrics["max_amount"].(decimal.Decimal); !max.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("expected max 2500, got %s", max)
	}
	if count := metrics["total_transactions"].(int); count != 3 {
		t.Errorf("expected 3 transactions, got %d", count)
	}
}

func TestComputeAverageBillEmptySequence(t *testing.T) {
	engine := newTestEngine()

	summaries, err := engine.Compute(testIndividual(), nil, []domain.DataType{domain.DataTypeAverageBill})
	if err != nil {
		t.Fatalf("expected no error on empty sequence, got %v", err)
	}

	metrics := summaries[0].Metrics
	if mean := metrics["average_transaction_amount"].(decimal.Decimal); !mean.IsZero() {
		t.Errorf("expected guarded mean 0, got %s", mean)
	}
	if count := metrics["total_transactions"].(int); count != 0 {
		t.Errorf("expected 0 transactions, got %d", count)
	}
}

func TestComputeSpendingFrequency(t *testing.T) {
	engine := newTestEngine()

	summaries, err := engine.Compute(testIndividual(), testTransactions(), []domain.DataType{domain.DataTypeSpendingFrequency})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	metrics := summaries[0].Metrics
	if days := metrics["active_days"].(int); days != 2 {
		t.Errorf("expected 2 active days, got %d", days)
	}
	if perDay := metrics["transactions_per_active_day"].(decimal.Decimal); !perDay.Equal(decimal.NewFromFloat(1.5)) {
		t.Errorf("expected 1.5 transactions per active day, got %s", perDay)
	}
}

func TestComputeAgeGroupStatsOmitsCity(t *testing.T) {
	engine := newTestEngine()

	summaries, err := engine.Compute(testIndividual(), testTransactions(), []domain.DataType{domain.DataTypeAgeGroupStats})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	metrics := summaries[0].Metrics
	if group := metrics["age_group"].(string); group != "25-35" {
		t.Errorf("expected banded age group, got %s", group)
	}
	if _, ok := metrics["city"]; ok {
		t.Errorf("city must not appear in de-identified metrics")
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	engine := newTestEngine()
	scopes := domain.KnownDataTypes()

	first, err := engine.Compute(testIndividual(), testTransactions(), scopes)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := engine.Compute(testIndividual(), testTransactions(), scopes)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results for identical input")
	}
}

func TestComputeDeduplicatesAndOrdersScopes(t *testing.T) {
	engine := newTestEngine()

	summaries, err := engine.Compute(testIndividual(), testTransactions(), []domain.DataType{
		domain.DataTypeCategorySpending,
		domain.DataTypeAverageBill,
		domain.DataTypeCategorySpending,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries after de-duplication, got %d", len(summaries))
	}
	if summaries[0].DataType != domain.DataTypeAverageBill || summaries[1].DataType != domain.DataTypeCategorySpending {
		t.Fatalf("expected summaries ordered by data type, got %s then %s", summaries[0].DataType, summaries[1].DataType)
	}
}

func TestComputeRejectsUnknownDataType(t *testing.T) {
	engine := newTestEngine()

	if _, err := engine.Compute(testIndividual(), nil, []domain.DataType{domain.DataType("geography")}); err == nil {
		t.Fatalf("expected error for data type without a transformation")
	}
}
