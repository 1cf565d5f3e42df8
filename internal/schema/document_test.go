package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDoc() Document {
	return Document{
		TableName:   "ao",
		Description: "Archived lab orders",
		Columns: []Column{
			{Name: "aoordno", Type: "varchar", Description: "Order number", IsPrimaryKey: true},
			{Name: "aodate", Type: "int", Description: "Order date as YYYYMMDD"},
		},
		Relationships: []string{"ao.aoordno -> ar.arordno"},
	}
}

func TestDocumentValidate(t *testing.T) {
	doc := sampleDoc()
	require.NoError(t, doc.Validate())

	noName := doc
	noName.TableName = "  "
	assert.Error(t, noName.Validate())

	noCols := doc
	noCols.Columns = nil
	assert.Error(t, noCols.Validate())

	blankCol := doc
	blankCol.Columns = []Column{{Name: ""}}
	assert.Error(t, blankCol.Validate())
}

func TestEmbeddingTextDeterministic(t *testing.T) {
	doc := sampleDoc()

	first := doc.EmbeddingText()
	second := doc.EmbeddingText()

	assert.Equal(t, first, second)
	assert.Contains(t, first, "Table: ao")
	assert.Contains(t, first, "aoordno (varchar) [primary key] - Order number")
	assert.Contains(t, first, "Relationship: ao.aoordno -> ar.arordno")
}

func TestRetrievedContextSort(t *testing.T) {
	ctx := RetrievedContext{Hits: []Hit{
		{Document: Document{TableName: "r"}, Score: 0.5},
		{Document: Document{TableName: "ao"}, Score: 0.9},
		{Document: Document{TableName: "ar"}, Score: 0.5},
	}}

	ctx.Sort()

	assert.Equal(t, []string{"ao", "ar", "r"}, ctx.TableNames())
}

func TestLoadDocuments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kb.json")

	content := `[
		{"table_name": "ao", "description": "orders", "columns": [{"name": "aoordno", "type": "varchar"}]},
		{"table_name": "ar", "description": "results", "columns": [{"name": "arordno", "type": "varchar"}]}
	]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	docs, err := LoadDocuments(path)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "ao", docs[0].TableName)
}

func TestLoadDocumentsRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kb.json")

	content := `[
		{"table_name": "ao", "columns": [{"name": "a", "type": "int"}]},
		{"table_name": "ao", "columns": [{"name": "b", "type": "int"}]}
	]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadDocuments(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestLoadDocumentsMissingFile(t *testing.T) {
	_, err := LoadDocuments(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
