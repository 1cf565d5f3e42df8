// Package prompt renders the generation prompt from a question and its
// retrieved schema context. Pure and deterministic: no state, no clock, no
// randomness, so generation is reproducible against a pinned model.
package prompt

import (
	"strings"

	"github.com/DanaKeydar-LabOS/lab-ai/internal/schema"
)

const sectionDivider = "=================================================="

// Build renders the schema context, the question, and the output contract
// into a single generation prompt.
func Build(question string, context schema.RetrievedContext) string {
	var sb strings.Builder

	sb.WriteString("You are writing SQL for a laboratory operations database.\n\n")

	if context.Empty() {
		sb.WriteString("No table schema matched this question. ")
		sb.WriteString("If the question cannot be answered from the available tables, ")
		sb.WriteString("respond with exactly: NO_ANSWER\n\n")
	} else {
		sb.WriteString("Available table schemas, most relevant first:\n\n")

		for _, hit := range context.Hits {
			sb.WriteString(renderDocument(hit.Document))
			sb.WriteString(sectionDivider + "\n")
		}

		sb.WriteString("\nNotice the data conventions:\n")
		sb.WriteString("- Dates are stored as integers like 20250820, not strings or date functions\n")
		sb.WriteString("- Use only the tables and columns listed above\n")
		sb.WriteString("- Prefer simple WHERE conditions over nested subqueries\n\n")
	}

	sb.WriteString("Question: \"" + question + "\"\n\n")
	sb.WriteString("Output exactly one SELECT statement answering the question.\n")
	sb.WriteString("No prose, no markdown fencing, no explanation before or after the SQL.\n")

	return sb.String()
}

func renderDocument(doc schema.Document) string {
	var sb strings.Builder

	sb.WriteString("Table: " + doc.TableName + "\n")

	if doc.Description != "" {
		sb.WriteString("Description: " + doc.Description + "\n")
	}

	sb.WriteString("Columns:\n")

	for _, col := range doc.Columns {
		sb.WriteString("  " + col.Name + " " + col.Type)

		if col.IsPrimaryKey {
			sb.WriteString(" PRIMARY KEY")
		}

		if col.Description != "" {
			sb.WriteString("  -- " + col.Description)
		}

		sb.WriteString("\n")
	}

	if len(doc.Relationships) > 0 {
		sb.WriteString("Relationships:\n")

		for _, rel := range doc.Relationships {
			sb.WriteString("  " + rel + "\n")
		}
	}

	if len(doc.SampleRows) > 0 {
		sb.WriteString("Sample rows:\n")

		for _, row := range doc.SampleRows {
			sb.WriteString("  " + renderRow(doc.Columns, row) + "\n")
		}
	}

	return sb.String()
}

// renderRow emits values in column order so output does not depend on map
// iteration order.
func renderRow(columns []schema.Column, row map[string]string) string {
	parts := make([]string, 0, len(columns))

	for _, col := range columns {
		if value, ok := row[col.Name]; ok {
			parts = append(parts, col.Name+"="+value)
		}
	}

	return strings.Join(parts, ", ")
}
