// Package retriever embeds the question and assembles the ranked schema
// context used to ground SQL generation.
package retriever

import (
	"context"
	"time"

	"github.com/DanaKeydar-LabOS/lab-ai/internal/embedding"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/errors"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/logging"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/schema"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/schemastore"
)

// ErrNoRelevantSchema signals that no table cleared the similarity
// threshold. Non-fatal: the caller proceeds with an empty context and the
// prompt builder tells the model no table matched.
var ErrNoRelevantSchema = errors.New(
	errors.ErrTypeNoRelevantSchema,
	"no schema documents cleared the similarity threshold",
)

// Config bounds retrieval behavior.
type Config struct {
	TopK           int
	ScoreThreshold float64
	RetryBackoff   time.Duration
}

// Retriever embeds questions and searches the schema store.
type Retriever struct {
	embedder embedding.Provider
	store    schemastore.Store
	config   Config
	logger   *logging.Logger
}

// New creates a retriever over the given embedder and store.
func New(embedder embedding.Provider, store schemastore.Store, config Config, logger *logging.Logger) *Retriever {
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = 500 * time.Millisecond
	}

	return &Retriever{
		embedder: embedder,
		store:    store,
		config:   config,
		logger:   logger,
	}
}

// Retrieve embeds the question and returns the k most relevant schema
// documents above the similarity threshold, descending by score with ties
// broken by table name. Returns ErrNoRelevantSchema alongside an empty
// context when nothing clears the threshold.
func (r *Retriever) Retrieve(ctx context.Context, question string, k int) (schema.RetrievedContext, error) {
	if k <= 0 {
		k = r.config.TopK
	}

	vector, err := r.embedQuestion(ctx, question)
	if err != nil {
		return schema.RetrievedContext{}, errors.Wrap(err, errors.ErrTypeRetrieval, "failed to embed question")
	}

	hits, err := r.searchStore(ctx, vector, k)
	if err != nil {
		return schema.RetrievedContext{}, errors.Wrap(err, errors.ErrTypeRetrieval, "schema store search failed")
	}

	retrieved := schema.RetrievedContext{}

	for _, hit := range hits {
		if hit.Score < r.config.ScoreThreshold {
			continue
		}

		retrieved.Hits = append(retrieved.Hits, schema.Hit{
			Document: hit.Document,
			Score:    hit.Score,
		})
	}

	retrieved.Sort()

	if retrieved.Empty() {
		r.logger.WithField("stage", "retrieve").Warn("no schema cleared the similarity threshold")
		return retrieved, ErrNoRelevantSchema
	}

	r.logger.WithFields(map[string]interface{}{
		"stage":  "retrieve",
		"tables": retrieved.TableNames(),
	}).Debug("assembled schema context")

	return retrieved, nil
}

// embedQuestion retries once with backoff; embedder outages are the one
// transient failure worth retrying locally.
func (r *Retriever) embedQuestion(ctx context.Context, question string) ([]float32, error) {
	vector, err := r.embedder.Embed(ctx, question)
	if err == nil {
		return vector, nil
	}

	if ctx.Err() != nil {
		return nil, err
	}

	r.logger.WithError(err).Warn("embedding failed, retrying once")

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(r.config.RetryBackoff):
	}

	return r.embedder.Embed(ctx, question)
}

func (r *Retriever) searchStore(ctx context.Context, vector []float32, k int) ([]schemastore.ScoredDocument, error) {
	hits, err := r.store.Search(ctx, vector, k)
	if err == nil {
		return hits, nil
	}

	if ctx.Err() != nil {
		return nil, err
	}

	r.logger.WithError(err).Warn("schema store search failed, retrying once")

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(r.config.RetryBackoff):
	}

	return r.store.Search(ctx, vector, k)
}
