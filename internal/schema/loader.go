package schema

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadDocuments reads a JSON knowledge-base file containing an array of
// schema documents. The vendor catalog format is converted to this shape
// upstream; only the normalized form is accepted here.
func LoadDocuments(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to parse schema file %s: %w", path, err)
	}

	seen := make(map[string]bool, len(docs))

	for _, doc := range docs {
		if err := doc.Validate(); err != nil {
			return nil, err
		}

		if seen[doc.TableName] {
			return nil, fmt.Errorf("duplicate schema document for table %q", doc.TableName)
		}

		seen[doc.TableName] = true
	}

	return docs, nil
}
