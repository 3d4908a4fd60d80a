package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/cbir/internal/config"
	"github.com/kozaktomas/cbir/internal/database"
	"github.com/kozaktomas/cbir/internal/database/file"
	"github.com/kozaktomas/cbir/internal/database/postgres"
	"github.com/kozaktomas/cbir/internal/indexer"
	"github.com/kozaktomas/cbir/internal/retrieval"
)

// initBackend registers the storage backend: PostgreSQL when DATABASE_URL is
// set, the data directory otherwise. The returned function releases it.
func initBackend(cfg *config.Config) (func(), error) {
	if cfg.Database.URL != "" {
		fmt.Printf("Connecting to PostgreSQL database...\n")
		pool, err := postgres.Initialize(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		fmt.Printf("Using PostgreSQL backend\n")
		return func() { pool.Close() }, nil
	}

	store, err := file.Initialize(cfg.Corpus.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize data directory: %w", err)
	}
	fmt.Printf("Using file backend (%s)\n", store.Dir())
	return func() {}, nil
}

// configuredMethods returns the retrieval methods declared in the configuration.
func configuredMethods(cfg *config.Config) ([]retrieval.MethodSpec, error) {
	methods, err := retrieval.MethodsFromConfig(cfg.Retrieval.Methods)
	if err != nil {
		return nil, fmt.Errorf("invalid retrieval methods: %w", err)
	}
	return methods, nil
}

// loadEngine loads the indexed corpus from the registered backend.
func loadEngine(ctx context.Context, cfg *config.Config) (*retrieval.Engine, error) {
	methods, err := configuredMethods(cfg)
	if err != nil {
		return nil, err
	}
	reader, err := database.GetCorpusReader(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	snap, err := indexer.LoadSnapshot(ctx, reader, methods)
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus (run 'cbir index' first): %w", err)
	}
	engine, err := retrieval.NewEngine(methods, snap)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Loaded %d images in %s\n", snap.Features.Len(), formatDuration(time.Since(start)))
	return engine, nil
}
