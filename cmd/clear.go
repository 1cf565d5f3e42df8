package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
)

// ClearCommand drops every cached query.
func ClearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Clear the query cache",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runClear(ctx)
		},
	}
}

func runClear(context.Context) error {
	application, err := newApp(false)
	if err != nil {
		return err
	}
	defer application.close()

	application.pipeline.ClearCache()
	fmt.Println("Query cache cleared")

	return nil
}

// ResetCommand drops and recreates the schema store collection.
func ResetCommand() *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Reset the schema store and clear the query cache",
		Description: `Drop and recreate the schema collection. All ingested schema documents
are lost; cached queries are cleared since they may reference stale tables.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Skip the confirmation prompt",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runReset(ctx, cmd.Bool("force"))
		},
	}
}

func runReset(ctx context.Context, force bool) error {
	if !force && !confirm("This removes every ingested schema document. Continue? [y/N] ") {
		fmt.Println("Aborted")
		return nil
	}

	application, err := newApp(false)
	if err != nil {
		return err
	}
	defer application.close()

	if err := application.pipeline.ResetSchema(ctx); err != nil {
		return fmt.Errorf("failed to reset schema store: %w", err)
	}

	fmt.Println("Schema store reset; query cache cleared")

	return nil
}

func confirm(prompt string) bool {
	fmt.Print(prompt)

	reader := bufio.NewReader(os.Stdin)

	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	return strings.EqualFold(strings.TrimSpace(answer), "y")
}
