package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"
)

// StatsCommand reports cache and schema store statistics.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:        "stats",
		Usage:       "Display cache and schema store statistics",
		Description: `Show query cache counters, the number of stored schema documents, and the configured table whitelist.`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runStats(ctx)
		},
	}
}

func runStats(ctx context.Context) error {
	application, err := newApp(false)
	if err != nil {
		return err
	}
	defer application.close()

	stats := application.pipeline.CacheStats()

	fmt.Printf("Query Cache\n")
	fmt.Printf("===========\n\n")
	fmt.Printf("Entries: %d\n", stats.Entries)
	fmt.Printf("Hits: %d\n", stats.Hits)
	fmt.Printf("Misses: %d\n", stats.Misses)
	fmt.Printf("Evictions: %d\n", stats.Evictions)

	fmt.Printf("\nSchema Store\n")
	fmt.Printf("============\n\n")

	count, err := application.pipeline.SchemaCount(ctx)
	if err != nil {
		fmt.Printf("Documents: unavailable (%v)\n", err)
	} else {
		fmt.Printf("Documents: %d\n", count)
	}

	fmt.Printf("Whitelist: %s\n", strings.Join(application.pipeline.Tables(), ", "))

	return nil
}
