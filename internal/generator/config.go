package generator

// Config drives the synthetic data generator.
type Config struct {
	NumIndividuals    int
	TransactionsEach  int
	TransactionJitter int
	Seed              int64
}

// DefaultConfig returns baseline settings for a demo-sized dataset.
func DefaultConfig() Config {
	return Config{
		NumIndividuals:    25,
		TransactionsEach:  12,
		TransactionJitter: 8,
		Seed:              42,
	}
}
