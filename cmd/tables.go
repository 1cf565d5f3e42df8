package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// TablesCommand lists the whitelisted lab tables.
func TablesCommand() *cli.Command {
	return &cli.Command{
		Name:  "tables",
		Usage: "List the whitelisted lab tables",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runTables(ctx)
		},
	}
}

func runTables(ctx context.Context) error {
	application, err := newApp(false)
	if err != nil {
		return err
	}
	defer application.close()

	for _, table := range application.pipeline.Tables() {
		fmt.Println(table)
	}

	count, err := application.pipeline.SchemaCount(ctx)
	if err == nil {
		fmt.Printf("\n%d schema documents ingested\n", count)
	}

	return nil
}
