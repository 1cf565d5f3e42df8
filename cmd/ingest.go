package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/DanaKeydar-LabOS/lab-ai/internal/schema"
)

// IngestCommand loads schema documents into the vector store.
func IngestCommand() *cli.Command {
	return &cli.Command{
		Name:      "ingest",
		Usage:     "Embed and store schema documents from a JSON file",
		ArgsUsage: " <schema-file>",
		Description: `Load table schema documents from a JSON file, embed each one, and upsert
it into the vector store. Re-ingesting a table replaces its document.`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			if args.Len() != 1 {
				return fmt.Errorf("expected exactly 1 argument, got %d", args.Len())
			}

			return runIngest(ctx, args.First())
		},
	}
}

func runIngest(ctx context.Context, path string) error {
	application, err := newApp(false)
	if err != nil {
		return err
	}
	defer application.close()

	docs, err := schema.LoadDocuments(path)
	if err != nil {
		return fmt.Errorf("failed to load schema documents: %w", err)
	}

	count, err := application.pipeline.IngestSchemas(ctx, docs)
	if err != nil {
		return fmt.Errorf("ingested %d of %d documents: %w", count, len(docs), err)
	}

	fmt.Printf("Ingested %d schema documents\n", count)

	return nil
}
