package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dariak/consentshare/internal/aggregate"
	"github.com/dariak/consentshare/internal/catalog"
	"github.com/dariak/consentshare/internal/config"
	"github.com/dariak/consentshare/internal/consent"
	"github.com/dariak/consentshare/internal/coordinator"
	"github.com/dariak/consentshare/internal/domain"
	"github.com/dariak/consentshare/internal/generator"
	"github.com/dariak/consentshare/internal/graph"
	"github.com/dariak/consentshare/internal/logging"
	"github.com/dariak/consentshare/internal/records"
	"github.com/dariak/consentshare/internal/server"
)

func main() {
	ctx := context.Background()

	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	dataTypes, err := parseDataTypes(cfg.Sharing.DataTypes)
	if err != nil {
		logger.Error("invalid sharing configuration", "error", err)
		os.Exit(1)
	}

	store, prober, closeStore, err := buildRecordStore(ctx, logger, cfg)
	if err != nil {
		logger.Error("failed to create record store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeStore != nil {
			if err := closeStore(context.Background()); err != nil {
				logger.Warn("closing record store failed", "error", err)
			}
		}
	}()

	registry := consent.NewRegistry(store, dataTypes)
	cat := catalog.New(registry, cfg.Sharing.Parties)
	engine := aggregate.NewEngine()
	coord := coordinator.New(store, engine, cat, logger)
	registry.SetObserver(coord)

	apiHandlers := server.NewAPIHandlers(logger, registry, cat, store, dataTypes)

	var requestMetrics *server.RequestMetrics
	if cfg.HTTP.MetricsEnabled {
		requestMetrics = server.NewRequestMetrics()
	}

	router := server.NewRouter(logger, server.RouterDependencies{
		Health:           server.RecordsHealthService{Store: prober},
		API:              apiHandlers,
		Metrics:          requestMetrics,
		AllowedOrigins:   parseAllowedOrigins(cfg.HTTP.AllowedOriginsCSV),
		AllowCredentials: true,
	})

	srv := server.New(logger, cfg.HTTP, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// buildRecordStore selects the graph-backed store when a graph URI is
// configured and otherwise falls back to an in-memory store seeded with a
// small synthetic dataset, so the API is usable out of the box.
func buildRecordStore(ctx context.Context, logger *slog.Logger, cfg config.Config) (records.Store, server.StoreProber, func(context.Context) error, error) {
	if cfg.Graph.URI != "" {
		client, err := graph.NewNeo4jClient(ctx, graph.Options{
			URI:            cfg.Graph.URI,
			Database:       cfg.Graph.Database,
			Username:       cfg.Graph.Username,
			Password:       cfg.Graph.Password,
			MaxConnections: cfg.Graph.MaxConnections,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		store := records.NewGraphStore(client)
		return store, store, store.Close, nil
	}

	store := records.NewMemoryStore()
	gen := generator.New(generator.DefaultConfig())
	dataset, err := gen.Generate(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("generate demo dataset: %w", err)
	}
	if err := records.NewBulkLoader(store, 4).Load(ctx, dataset); err != nil {
		return nil, nil, nil, fmt.Errorf("seed demo dataset: %w", err)
	}
	logger.Info("using in-memory record store with demo data", "individuals", len(dataset))
	return store, store, nil, nil
}

func parseDataTypes(raw []string) ([]domain.DataType, error) {
	dataTypes := make([]domain.DataType, 0, len(raw))
	for _, s := range raw {
		dt, ok := domain.ParseDataType(s)
		if !ok {
			return nil, fmt.Errorf("unknown data type %q in SHARING_DATA_TYPES", s)
		}
		dataTypes = append(dataTypes, dt)
	}
	if len(dataTypes) == 0 {
		return nil, errors.New("at least one data type must be enabled")
	}
	return dataTypes, nil
}

func parseAllowedOrigins(csv string) []string {
	if csv == "" {
		return nil
	}
	var origins []string
	for _, part := range strings.Split(csv, ",") {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}
