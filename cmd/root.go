// Package cmd wires the CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Execute runs the CLI.
func Execute() error {
	root := &cli.Command{
		Name:  "lab-ai",
		Usage: "Ask the lab operations database questions in plain language",
		Description: `lab-ai turns natural-language questions about laboratory operations into
validated SQL. Generated statements are checked against a table whitelist
before they can touch the database; validated answers are cached.`,
		Commands: []*cli.Command{
			AskCommand(),
			IngestCommand(),
			ServeCommand(),
			StatsCommand(),
			ClearCommand(),
			ResetCommand(),
			TablesCommand(),
			VersionCommand(),
		},
	}

	return root.Run(context.Background(), os.Args)
}

// VersionCommand reports build information.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(context.Context, *cli.Command) error {
			fmt.Printf("lab-ai %s (commit: %s, built: %s)\n", version, commit, date)
			return nil
		},
	}
}
