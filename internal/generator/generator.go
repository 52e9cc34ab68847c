package generator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dariak/consentshare/internal/domain"
	"github.com/dariak/consentshare/internal/records"
)

// Generator produces synthetic individuals with category-labelled
// transaction histories, deterministic under a fixed seed.
type Generator struct {
	cfg   Config
	rand  *rand.Rand
	pools fragmentPools
}

// New returns a configured Generator instance.
func New(cfg Config) *Generator {
	if cfg.NumIndividuals <= 0 {
		cfg.NumIndividuals = DefaultConfig().NumIndividuals
	}
	if cfg.TransactionsEach <= 0 {
		cfg.TransactionsEach = DefaultConfig().TransactionsEach
	}
	if cfg.TransactionJitter < 0 {
		cfg.TransactionJitter = 0
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	return &Generator{
		cfg:   cfg,
		rand:  rand.New(rand.NewSource(cfg.Seed)),
		pools: defaultFragmentPools(),
	}
}

// Generate synthesises the dataset. It respects context cancellation.
func (g *Generator) Generate(ctx context.Context) ([]records.IndividualRecord, error) {
	now := time.Now().UTC()
	dataset := make([]records.IndividualRecord, g.cfg.NumIndividuals)

	txSeq := 0
	for i := 0; i < g.cfg.NumIndividuals; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		individualID := fmt.Sprintf("IND-%04d", i+1)
		createdAt := now.Add(-time.Duration(g.rand.Intn(365*24)) * time.Hour)

		individual := domain.Individual{
			ID:           individualID,
			FullName:     g.randomFullName(),
			AgeGroup:     g.pools.ageGroups[g.rand.Intn(len(g.pools.ageGroups))],
			City:         g.pools.cities[g.rand.Intn(len(g.pools.cities))],
			TotalBalance: decimal.NewFromInt(int64(g.rand.Intn(490000) + 10000)),
			CreatedAt:    createdAt,
			UpdatedAt:    createdAt,
		}

		count := g.cfg.TransactionsEach
		if g.cfg.TransactionJitter > 0 {
			count += g.rand.Intn(g.cfg.TransactionJitter+1) - g.cfg.TransactionJitter/2
		}
		if count < 0 {
			count = 0
		}

		txs := make([]domain.Transaction, 0, count)
		for j := 0; j < count; j++ {
			txSeq++
			category := g.pools.categories[g.rand.Intn(len(g.pools.categories))]
			txs = append(txs, domain.Transaction{
				ID:           fmt.Sprintf("TX-%07d", txSeq),
				Amount:       decimal.NewFromInt(int64(g.rand.Intn(19900) + 100)),
				Category:     category,
				Counterparty: g.randomCounterparty(category),
				Timestamp:    now.Add(-time.Duration(g.rand.Intn(90*24)) * time.Hour),
			})
		}

		dataset[i] = records.IndividualRecord{
			Individual:   individual,
			Transactions: txs,
		}
	}

	return dataset, nil
}

func (g *Generator) randomFullName() string {
	return fmt.Sprintf("%s %s",
		g.pools.firstNames[g.rand.Intn(len(g.pools.firstNames))],
		g.pools.lastNames[g.rand.Intn(len(g.pools.lastNames))])
}

func (g *Generator) randomCounterparty(category string) string {
	merchants, ok := g.pools.merchants[category]
	if !ok || len(merchants) == 0 {
		return "General Merchant"
	}
	return merchants[g.rand.Intn(len(merchants))]
}

type fragmentPools struct {
	firstNames []string
	lastNames  []string
	cities     []string
	ageGroups  []string
	categories []string
	merchants  map[string][]string
}

func defaultFragmentPools() fragmentPools {
	return fragmentPools{
		firstNames: []string{"Jane", "John", "Alex", "Priya", "Liu", "Maria", "Omar", "Sofia", "Noah", "Emma", "Lucas", "Mia"},
		lastNames:  []string{"Doe", "Smith", "Chen", "Patel", "Garcia", "Khan", "Kim", "Ivanov", "Nguyen", "Silva"},
		cities:     []string{"San Francisco", "New York", "Seattle", "Austin", "Chicago", "Miami", "Denver", "Boston"},
		ageGroups:  []string{"18-25", "25-35", "35-45", "45-55", "55+"},
		categories: []string{"Dining", "Groceries", "Electronics", "Transport", "Entertainment", "Clothing", "Travel", "Education"},
		merchants: map[string][]string{
			"Dining":        {"Corner Bistro", "Noodle House", "Taco Stand", "Brasserie 21"},
			"Groceries":     {"FreshMart", "Daily Greens", "Corner Grocer"},
			"Electronics":   {"Gadget World", "Circuit City", "ByteStore"},
			"Transport":     {"Metro Transit", "City Cab", "RideShare"},
			"Entertainment": {"Cineplex", "Arcade Alley", "Concert Hall"},
			"Clothing":      {"Thread & Co", "Urban Outfit", "Stitch Studio"},
			"Travel":        {"SkyHigh Airlines", "Grand Hotel", "Rail Express"},
			"Education":     {"Online Academy", "City Library Shop", "Course Hub"},
		},
	}
}
