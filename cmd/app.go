package cmd

import (
	"fmt"

	"github.com/DanaKeydar-LabOS/lab-ai/internal/cache"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/config"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/embedding"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/executor"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/generator"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/llm"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/logging"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/pipeline"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/retriever"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/schemastore"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/validator"
)

// app bundles the assembled pipeline with its cleanup.
type app struct {
	config   *config.Config
	pipeline *pipeline.Pipeline
	logger   *logging.Logger
	close    func()
}

// newApp loads configuration and assembles the pipeline. withDatabase
// controls whether the lab database pool is opened; commands that only
// generate SQL or manage the schema store do not need it.
func newApp(withDatabase bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if err := logging.Initialize(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		logging.SetupFallbackLogger()
	}

	logger := logging.GetLogger()

	store, err := schemastore.NewQdrantStore(schemastore.QdrantConfig{
		URL:        cfg.Store.URL,
		Collection: cfg.Store.Collection,
		VectorSize: cfg.Store.VectorSize,
		Timeout:    cfg.Store.RequestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize schema store: %w", err)
	}

	embedder, err := embedding.NewOllamaProvider(embedding.Config{
		BaseURL:    cfg.Models.BaseURL,
		Model:      cfg.Models.EmbeddingModel,
		Dimensions: cfg.Store.VectorSize,
	}, cfg.Models.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}

	client, err := llm.NewClient(llm.Config{
		Provider: cfg.Models.Provider,
		Model:    cfg.Models.ChatModel,
		APIKey:   cfg.Models.APIKey,
		BaseURL:  cfg.Models.BaseURL,
	}, cfg.Models.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize model client: %w", err)
	}

	deps := pipeline.Deps{
		Config:    cfg,
		Retriever: retriever.New(embedder, store, retriever.Config{
			TopK:           cfg.Store.TopK,
			ScoreThreshold: cfg.Store.ScoreThreshold,
		}, logger),
		Generator: generator.New(client, generator.Config{
			MaxTokens:   cfg.Models.MaxTokens,
			Temperature: cfg.Models.Temperature,
		}, logger),
		Validator: validator.New(validator.Config{
			DefaultLimit:     cfg.Query.DefaultLimit,
			MaxLimit:         cfg.Query.MaxLimit,
			MaxUnionBranches: cfg.Query.MaxUnionBranches,
		}, logger),
		Cache: cache.New(cache.Config{
			TTL:        cfg.Cache.TTL,
			MaxEntries: cfg.Cache.MaxEntries,
		}, logger),
		Store:    store,
		Embedder: embedder,
		Logger:   logger,
	}

	cleanup := func() {}

	if withDatabase {
		exec, err := executor.New(executor.Config{
			DSN:             cfg.Database.DSN,
			MaxConnections:  cfg.Database.MaxConnections,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			PoolWaitTimeout: cfg.Database.PoolWaitTimeout,
			QueryTimeout:    cfg.Database.QueryTimeout,
			RowCap:          cfg.Query.RowCap,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open lab database pool: %w", err)
		}

		deps.Executor = exec
		cleanup = func() { _ = exec.Close() }
	}

	return &app{
		config:   cfg,
		pipeline: pipeline.New(deps),
		logger:   logger,
		close:    cleanup,
	}, nil
}
