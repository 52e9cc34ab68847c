package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dariak/consentshare/internal/generator"
)

func main() {
	cfg := generator.DefaultConfig()
	var (
		individuals = flag.Int("individuals", cfg.NumIndividuals, "number of individuals to generate")
		txEach      = flag.Int("transactions-each", cfg.TransactionsEach, "baseline transactions per individual")
		txJitter    = flag.Int("transaction-jitter", cfg.TransactionJitter, "random spread around the baseline count")
		seed        = flag.Int64("seed", cfg.Seed, "random seed for deterministic generation")
		output      = flag.String("output", "data/records.json", "path of the JSON dataset to write")
		writeStdout = flag.Bool("stdout", false, "write the dataset to stdout instead of a file")
	)
	flag.Parse()

	genCfg := generator.Config{
		NumIndividuals:    *individuals,
		TransactionsEach:  *txEach,
		TransactionJitter: *txJitter,
		Seed:              *seed,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dataset, err := generator.New(genCfg).Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		os.Exit(1)
	}

	if *writeStdout {
		if err := json.NewEncoder(os.Stdout).Encode(dataset); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write dataset: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := generator.WriteDataset(dataset, *output); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write dataset: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d individuals to %s\n", len(dataset), *output)
}
