package schemastore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/DanaKeydar-LabOS/lab-ai/internal/schema"
)

// MemoryStore is an exact, in-process implementation of Store using
// brute-force cosine similarity. It backs single-node deployments without a
// Qdrant instance and serves as the deterministic fake in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	points map[string]memoryPoint
}

type memoryPoint struct {
	doc    schema.Document
	vector []float32
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		points: make(map[string]memoryPoint),
	}
}

// Upsert stores a schema document under its embedding vector.
func (s *MemoryStore) Upsert(_ context.Context, doc schema.Document, vector []float32) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	vec := make([]float32, len(vector))
	copy(vec, vector)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.points[doc.TableName] = memoryPoint{doc: doc, vector: vec}

	return nil
}

// Search returns up to k documents ranked by cosine similarity.
func (s *MemoryStore) Search(_ context.Context, vector []float32, k int) ([]ScoredDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]ScoredDocument, 0, len(s.points))

	for _, point := range s.points {
		results = append(results, ScoredDocument{
			Document: point.doc,
			Score:    cosineSimilarity(vector, point.vector),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}

		return results[i].Document.TableName < results[j].Document.TableName
	})

	if k > 0 && len(results) > k {
		results = results[:k]
	}

	return results, nil
}

// Get returns the stored document for one table.
func (s *MemoryStore) Get(_ context.Context, tableName string) (schema.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	point, ok := s.points[tableName]
	if !ok {
		return schema.Document{}, ErrDocumentNotFound
	}

	return point.doc, nil
}

// Reset drops all stored documents.
func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.points = make(map[string]memoryPoint)

	return nil
}

// Count returns the number of stored documents.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.points), nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64

	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
