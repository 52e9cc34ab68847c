package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dariak/consentshare/internal/config"
	"github.com/dariak/consentshare/internal/generator"
	"github.com/dariak/consentshare/internal/graph"
	"github.com/dariak/consentshare/internal/logging"
	"github.com/dariak/consentshare/internal/records"
)

func main() {
	var (
		datasetPath = flag.String("dataset", "", "path to a records.json produced by datagen; empty generates a fresh dataset")
		individuals = flag.Int("individuals", generator.DefaultConfig().NumIndividuals, "individuals to generate when no dataset is given")
		seed        = flag.Int64("seed", generator.DefaultConfig().Seed, "random seed when generating")
		workers     = flag.Int("workers", 4, "number of concurrent load workers")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging).With("component", "seed")

	if cfg.Graph.URI == "" {
		logger.Error("GRAPH_URI must be set; seeding targets the graph-backed record store")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dataset, err := loadDataset(ctx, *datasetPath, *individuals, *seed)
	if err != nil {
		logger.Error("failed to load dataset", "error", err)
		os.Exit(1)
	}
	if len(dataset) == 0 {
		logger.Error("dataset is empty")
		os.Exit(1)
	}

	client, err := graph.NewNeo4jClient(ctx, graph.Options{
		URI:            cfg.Graph.URI,
		Database:       cfg.Graph.Database,
		Username:       cfg.Graph.Username,
		Password:       cfg.Graph.Password,
		MaxConnections: cfg.Graph.MaxConnections,
	})
	if err != nil {
		logger.Error("failed to create graph client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(context.Background()); err != nil {
			logger.Warn("closing graph client failed", "error", err)
		}
	}()

	store := records.NewGraphStore(client)
	loader := records.NewBulkLoader(store, *workers)

	start := time.Now()
	logger.Info("loading records", "individuals", len(dataset), "workers", *workers)
	if err := loader.Load(ctx, dataset); err != nil {
		logger.Error("bulk load failed", "error", err)
		os.Exit(1)
	}
	logger.Info("seed complete", "individuals", len(dataset), "duration", time.Since(start).String())
}

func loadDataset(ctx context.Context, path string, individuals int, seed int64) ([]records.IndividualRecord, error) {
	if path != "" {
		return generator.ReadDataset(path)
	}

	genCfg := generator.DefaultConfig()
	genCfg.NumIndividuals = individuals
	genCfg.Seed = seed
	return generator.New(genCfg).Generate(ctx)
}
