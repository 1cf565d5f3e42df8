// Package schemastore provides the k-nearest-neighbor index over schema
// description embeddings. The index's internal search algorithm is opaque;
// the pipeline only depends on the narrow Store contract.
package schemastore

import (
	"context"

	"github.com/DanaKeydar-LabOS/lab-ai/internal/errors"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/schema"
)

// ErrDocumentNotFound is returned by Get for tables without a stored schema
// document.
var ErrDocumentNotFound = errors.New(errors.ErrTypeStore, "no schema document for table")

// ScoredDocument is one search hit with its similarity score.
type ScoredDocument struct {
	Document schema.Document
	Score    float64
}

// Store is the narrow contract the pipeline consumes.
type Store interface {
	// Upsert stores a schema document under its embedding vector.
	Upsert(ctx context.Context, doc schema.Document, vector []float32) error

	// Search returns up to k documents ranked by similarity to the vector.
	Search(ctx context.Context, vector []float32, k int) ([]ScoredDocument, error)

	// Get returns the stored document for one table, or
	// ErrDocumentNotFound.
	Get(ctx context.Context, tableName string) (schema.Document, error)

	// Reset drops all stored documents.
	Reset(ctx context.Context) error

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)
}
