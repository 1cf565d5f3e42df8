// Package pipeline orchestrates the full question-to-SQL flow: cache
// lookup, schema retrieval, prompt rendering, generation, validation, and
// optional execution. A cache hit bypasses every model-facing stage.
package pipeline

import (
	"context"
	"sort"
	"strings"

	"github.com/DanaKeydar-LabOS/lab-ai/internal/cache"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/config"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/errors"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/executor"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/logging"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/prompt"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/schema"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/schemastore"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/validator"
)

// Retriever assembles the schema context for a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string, k int) (schema.RetrievedContext, error)
}

// Generator produces a candidate SQL statement from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Executor runs an accepted query against the lab database.
type Executor interface {
	Execute(ctx context.Context, validated validator.ValidatedQuery) (*executor.ExecutionResult, error)
	Ping(ctx context.Context) error
}

// Embedder turns schema documents into vectors during ingestion.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// QueryRequest is one natural-language question.
type QueryRequest struct {
	Question string `json:"question"`
	Execute  bool   `json:"execute"`
	Limit    int    `json:"limit"`
}

// QueryResult is the pipeline's answer. Rejected results carry the reason
// instead of SQL; they are never coerced into a runnable query.
type QueryResult struct {
	Question        string                    `json:"question"`
	SQL             string                    `json:"sql,omitempty"`
	Cached          bool                      `json:"cached"`
	Rejected        bool                      `json:"rejected"`
	RejectionReason validator.RejectionReason `json:"rejection_reason,omitempty"`
	RejectionDetail string                    `json:"rejection_detail,omitempty"`
	Tables          []string                  `json:"tables,omitempty"`
	Execution       *executor.ExecutionResult `json:"execution,omitempty"`
}

// Pipeline wires the stages together.
type Pipeline struct {
	config    *config.Config
	retriever Retriever
	generator Generator
	validator *validator.Validator
	cache     *cache.QueryCache
	executor  Executor
	store     schemastore.Store
	embedder  Embedder
	logger    *logging.Logger

	whitelist        map[string]bool
	whitelistVersion string
}

// Deps holds the pipeline's collaborators.
type Deps struct {
	Config    *config.Config
	Retriever Retriever
	Generator Generator
	Validator *validator.Validator
	Cache     *cache.QueryCache
	Executor  Executor
	Store     schemastore.Store
	Embedder  Embedder
	Logger    *logging.Logger
}

// New assembles a pipeline from its collaborators.
func New(deps Deps) *Pipeline {
	whitelist := make(map[string]bool, len(deps.Config.Whitelist))

	for _, table := range deps.Config.Whitelist {
		whitelist[strings.ToLower(strings.TrimSpace(table))] = true
	}

	return &Pipeline{
		config:           deps.Config,
		retriever:        deps.Retriever,
		generator:        deps.Generator,
		validator:        deps.Validator,
		cache:            deps.Cache,
		executor:         deps.Executor,
		store:            deps.Store,
		embedder:         deps.Embedder,
		logger:           deps.Logger,
		whitelist:        whitelist,
		whitelistVersion: deps.Config.WhitelistVersion(),
	}
}

// Query answers one question. Identical concurrent questions share a single
// generation pass; a validated answer is served from cache until the TTL or
// a schema reset invalidates it. The cache key is the normalized question
// and whitelist version only, so the first caller's limit is baked into the
// cached statement and served to later callers regardless of their limit.
func (p *Pipeline) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, errors.New(errors.ErrTypeValidation, "question must not be empty")
	}

	key := cache.Key(question, p.whitelistVersion)

	validated, hit, err := p.cache.GetOrGenerate(ctx, key, func(ctx context.Context) (validator.ValidatedQuery, error) {
		return p.generate(ctx, question, req.Limit)
	})
	if err != nil {
		return nil, err
	}

	result := &QueryResult{
		Question: question,
		Cached:   hit,
	}

	if !validated.Accepted {
		result.Rejected = true
		result.RejectionReason = validated.Reason
		result.RejectionDetail = validated.Detail

		return result, nil
	}

	result.SQL = validated.SQL
	result.Tables = validated.Tables

	if req.Execute {
		execution, err := p.executor.Execute(ctx, validated)
		if err != nil {
			// The SQL itself is sound; return it alongside the
			// execution failure so the caller can retry or run it
			// elsewhere.
			return result, err
		}

		result.Execution = execution
	}

	return result, nil
}

// generate is the uncached path: retrieve, render, generate, validate.
func (p *Pipeline) generate(ctx context.Context, question string, limit int) (validator.ValidatedQuery, error) {
	retrieved, err := p.retriever.Retrieve(ctx, question, p.config.Store.TopK)
	if err != nil && !errors.IsType(err, errors.ErrTypeNoRelevantSchema) {
		return validator.ValidatedQuery{}, err
	}

	// An empty context is not fatal: the prompt tells the model so, and
	// an unanswerable question surfaces as a generation parse error.
	rendered := prompt.Build(question, retrieved)

	candidate, err := p.generator.Generate(ctx, rendered)
	if err != nil {
		return validator.ValidatedQuery{}, err
	}

	return p.validator.Validate(candidate, p.whitelist, limit), nil
}

// IngestSchemas validates, embeds, and upserts schema documents. Returns
// the number ingested; the first failing document aborts the batch.
func (p *Pipeline) IngestSchemas(ctx context.Context, docs []schema.Document) (int, error) {
	if ensurer, ok := p.store.(interface{ EnsureCollection(context.Context) error }); ok {
		if err := ensurer.EnsureCollection(ctx); err != nil {
			return 0, err
		}
	}

	for i, doc := range docs {
		if err := doc.Validate(); err != nil {
			return i, errors.Wrapf(err, errors.ErrTypeValidation,
				"schema document %q is invalid", doc.TableName)
		}

		vector, err := p.embedder.Embed(ctx, doc.EmbeddingText())
		if err != nil {
			return i, errors.Wrapf(err, errors.ErrTypeRetrieval,
				"failed to embed schema for table %q", doc.TableName)
		}

		if err := p.store.Upsert(ctx, doc, vector); err != nil {
			return i, err
		}

		p.logger.WithField("table", doc.TableName).Debug("ingested schema document")
	}

	return len(docs), nil
}

// ResetSchema drops and recreates the schema collection and clears the
// query cache, since cached SQL may reference tables that no longer exist.
func (p *Pipeline) ResetSchema(ctx context.Context) error {
	if err := p.store.Reset(ctx); err != nil {
		return err
	}

	p.cache.InvalidateAll()
	p.logger.Info("schema store reset")

	return nil
}

// CacheStats reports cache counters.
func (p *Pipeline) CacheStats() cache.Stats {
	return p.cache.Stats()
}

// ClearCache drops every cached query.
func (p *Pipeline) ClearCache() {
	p.cache.InvalidateAll()
}

// Tables returns the whitelisted table names, sorted.
func (p *Pipeline) Tables() []string {
	tables := make([]string, 0, len(p.whitelist))

	for table := range p.whitelist {
		tables = append(tables, table)
	}

	sort.Strings(tables)

	return tables
}

// TableSchema returns the stored schema document for one table.
func (p *Pipeline) TableSchema(ctx context.Context, tableName string) (schema.Document, error) {
	return p.store.Get(ctx, strings.ToLower(strings.TrimSpace(tableName)))
}

// SchemaCount reports how many schema documents the store holds.
func (p *Pipeline) SchemaCount(ctx context.Context) (int, error) {
	return p.store.Count(ctx)
}

// Health reports per-component status. The pipeline is degraded, not down,
// when only the database is unreachable: generation still works.
func (p *Pipeline) Health(ctx context.Context) map[string]string {
	health := map[string]string{
		"store":    "ok",
		"database": "ok",
	}

	if _, err := p.store.Count(ctx); err != nil {
		health["store"] = err.Error()
	}

	if probe, ok := p.embedder.(interface{ Healthy(context.Context) error }); ok {
		health["embedder"] = "ok"

		if err := probe.Healthy(ctx); err != nil {
			health["embedder"] = err.Error()
		}
	}

	if probe, ok := p.generator.(interface{ Healthy(context.Context) error }); ok {
		health["model"] = "ok"

		if err := probe.Healthy(ctx); err != nil {
			health["model"] = err.Error()
		}
	}

	if p.executor != nil {
		if err := p.executor.Ping(ctx); err != nil {
			health["database"] = err.Error()
		}
	} else {
		health["database"] = "not configured"
	}

	return health
}
