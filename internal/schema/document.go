// Package schema defines the schema documents surfaced to the generation
// pipeline and the ranked context assembled from them.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Column describes a single column of a lab table.
type Column struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Description  string `json:"description,omitempty"`
	IsPrimaryKey bool   `json:"is_primary_key,omitempty"`
}

// Document is the immutable schema description for one lab table. It is the
// source of truth for what the retriever can surface; the pipeline only
// reads it.
type Document struct {
	TableName     string              `json:"table_name"`
	Description   string              `json:"description"`
	Columns       []Column            `json:"columns"`
	Relationships []string            `json:"relationships,omitempty"`
	SampleRows    []map[string]string `json:"sample_rows,omitempty"`
}

// Validate checks the minimal structural requirements for ingestion.
func (d Document) Validate() error {
	if strings.TrimSpace(d.TableName) == "" {
		return fmt.Errorf("schema document missing table name")
	}

	if len(d.Columns) == 0 {
		return fmt.Errorf("schema document for %q has no columns", d.TableName)
	}

	for i, col := range d.Columns {
		if strings.TrimSpace(col.Name) == "" {
			return fmt.Errorf("schema document for %q has unnamed column at index %d", d.TableName, i)
		}
	}

	return nil
}

// EmbeddingText renders the document into the text that is embedded and
// indexed. Kept deterministic so re-ingestion produces identical vectors
// for identical documents.
func (d Document) EmbeddingText() string {
	var sb strings.Builder

	sb.WriteString("Table: " + d.TableName + "\n")

	if d.Description != "" {
		sb.WriteString("Description: " + d.Description + "\n")
	}

	sb.WriteString("Columns:\n")

	for _, col := range d.Columns {
		sb.WriteString("  - " + col.Name + " (" + col.Type + ")")

		if col.IsPrimaryKey {
			sb.WriteString(" [primary key]")
		}

		if col.Description != "" {
			sb.WriteString(" - " + col.Description)
		}

		sb.WriteString("\n")
	}

	for _, rel := range d.Relationships {
		sb.WriteString("Relationship: " + rel + "\n")
	}

	return sb.String()
}

// Hit is one scored retrieval result.
type Hit struct {
	Document Document
	Score    float64
}

// RetrievedContext is an ordered sequence of scored schema documents,
// descending by score with ties broken by table name ascending. It is
// created per request and discarded after prompt assembly.
type RetrievedContext struct {
	Hits []Hit
}

// Sort orders hits descending by score, ties by table name ascending.
func (c *RetrievedContext) Sort() {
	sort.SliceStable(c.Hits, func(i, j int) bool {
		if c.Hits[i].Score != c.Hits[j].Score {
			return c.Hits[i].Score > c.Hits[j].Score
		}

		return c.Hits[i].Document.TableName < c.Hits[j].Document.TableName
	})
}

// Empty reports whether no schema survived retrieval.
func (c RetrievedContext) Empty() bool {
	return len(c.Hits) == 0
}

// TableNames returns the retrieved table names in rank order.
func (c RetrievedContext) TableNames() []string {
	names := make([]string, 0, len(c.Hits))
	for _, hit := range c.Hits {
		names = append(names, hit.Document.TableName)
	}

	return names
}
