package schemastore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DanaKeydar-LabOS/lab-ai/internal/schema"
)

// Point IDs are derived from table names so re-ingestion overwrites rather
// than duplicates.
var pointNamespace = uuid.MustParse("12345678-1234-5678-1234-123456789abc")

// QdrantConfig configures the Qdrant-backed store.
type QdrantConfig struct {
	URL        string
	Collection string
	VectorSize int
	Timeout    time.Duration
}

// QdrantStore implements Store against the Qdrant HTTP API.
type QdrantStore struct {
	config     QdrantConfig
	httpClient *http.Client
}

// NewQdrantStore creates a store client. It does not touch the network;
// call EnsureCollection before first use.
func NewQdrantStore(config QdrantConfig) (*QdrantStore, error) {
	if strings.TrimSpace(config.URL) == "" {
		return nil, fmt.Errorf("qdrant URL is required")
	}

	if strings.TrimSpace(config.Collection) == "" {
		return nil, fmt.Errorf("collection name is required")
	}

	if config.VectorSize <= 0 {
		return nil, fmt.Errorf("vector size must be positive")
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &QdrantStore{
		config:     QdrantConfig{URL: strings.TrimRight(config.URL, "/"), Collection: config.Collection, VectorSize: config.VectorSize, Timeout: timeout},
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// PointID returns the deterministic UUID for a table's schema point.
func PointID(tableName string) string {
	return uuid.NewSHA1(pointNamespace, []byte("table_"+tableName)).String()
}

// EnsureCollection creates the collection if it does not already exist.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	status, _, err := s.request(ctx, http.MethodGet, s.collectionPath(), nil)
	if err != nil {
		return err
	}

	if status == http.StatusOK {
		return nil
	}

	return s.createCollection(ctx)
}

func (s *QdrantStore) createCollection(ctx context.Context) error {
	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     s.config.VectorSize,
			"distance": "Cosine",
		},
	}

	status, respBody, err := s.request(ctx, http.MethodPut, s.collectionPath(), body)
	if err != nil {
		return err
	}

	if status != http.StatusOK {
		return fmt.Errorf("failed to create collection %s: status %d: %s", s.config.Collection, status, respBody)
	}

	return nil
}

// Upsert stores a schema document under its embedding vector.
func (s *QdrantStore) Upsert(ctx context.Context, doc schema.Document, vector []float32) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	if len(vector) != s.config.VectorSize {
		return fmt.Errorf(
			"vector size mismatch for table %s: expected %d, got %d",
			doc.TableName, s.config.VectorSize, len(vector),
		)
	}

	body := map[string]interface{}{
		"points": []map[string]interface{}{
			{
				"id":      PointID(doc.TableName),
				"vector":  vector,
				"payload": doc,
			},
		},
	}

	status, respBody, err := s.request(ctx, http.MethodPut, s.collectionPath()+"/points?wait=true", body)
	if err != nil {
		return err
	}

	if status != http.StatusOK {
		return fmt.Errorf("failed to upsert point for %s: status %d: %s", doc.TableName, status, respBody)
	}

	return nil
}

type qdrantSearchResponse struct {
	Result []struct {
		Score   float64         `json:"score"`
		Payload schema.Document `json:"payload"`
	} `json:"result"`
	Status interface{} `json:"status"`
}

// Search returns up to k documents ranked by similarity to the vector.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, k int) ([]ScoredDocument, error) {
	body := map[string]interface{}{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}

	status, respBody, err := s.request(ctx, http.MethodPost, s.collectionPath()+"/points/search", body)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, fmt.Errorf("search failed: status %d: %s", status, respBody)
	}

	var parsed qdrantSearchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	results := make([]ScoredDocument, 0, len(parsed.Result))
	for _, hit := range parsed.Result {
		results = append(results, ScoredDocument{
			Document: hit.Payload,
			Score:    hit.Score,
		})
	}

	return results, nil
}

type qdrantPointResponse struct {
	Result struct {
		Payload schema.Document `json:"payload"`
	} `json:"result"`
}

// Get returns the stored document for one table by its deterministic point
// ID.
func (s *QdrantStore) Get(ctx context.Context, tableName string) (schema.Document, error) {
	status, respBody, err := s.request(ctx, http.MethodGet, s.collectionPath()+"/points/"+PointID(tableName), nil)
	if err != nil {
		return schema.Document{}, err
	}

	if status == http.StatusNotFound {
		return schema.Document{}, ErrDocumentNotFound
	}

	if status != http.StatusOK {
		return schema.Document{}, fmt.Errorf("failed to fetch point for %s: status %d: %s", tableName, status, respBody)
	}

	var parsed qdrantPointResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return schema.Document{}, fmt.Errorf("failed to parse point response: %w", err)
	}

	if parsed.Result.Payload.TableName == "" {
		return schema.Document{}, ErrDocumentNotFound
	}

	return parsed.Result.Payload, nil
}

// Reset drops and recreates the collection.
func (s *QdrantStore) Reset(ctx context.Context) error {
	status, respBody, err := s.request(ctx, http.MethodDelete, s.collectionPath(), nil)
	if err != nil {
		return err
	}

	// 404 means the collection never existed, which is fine for a reset.
	if status != http.StatusOK && status != http.StatusNotFound {
		return fmt.Errorf("failed to delete collection: status %d: %s", status, respBody)
	}

	return s.createCollection(ctx)
}

type qdrantCountResponse struct {
	Result struct {
		Count int `json:"count"`
	} `json:"result"`
}

// Count returns the number of stored documents.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	body := map[string]interface{}{"exact": true}

	status, respBody, err := s.request(ctx, http.MethodPost, s.collectionPath()+"/points/count", body)
	if err != nil {
		return 0, err
	}

	if status == http.StatusNotFound {
		return 0, nil
	}

	if status != http.StatusOK {
		return 0, fmt.Errorf("count failed: status %d: %s", status, respBody)
	}

	var parsed qdrantCountResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return 0, fmt.Errorf("failed to parse count response: %w", err)
	}

	return parsed.Result.Count, nil
}

func (s *QdrantStore) collectionPath() string {
	return "/collections/" + s.config.Collection
}

func (s *QdrantStore) request(
	ctx context.Context,
	method, path string,
	body interface{},
) (int, []byte, error) {
	var reader io.Reader

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}

		reader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.URL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to reach qdrant: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}
