package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/urfave/cli/v3"

	"github.com/DanaKeydar-LabOS/lab-ai/internal/pipeline"
)

// AskCommand turns one question into SQL, optionally executing it.
func AskCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Ask a question and get validated SQL back",
		ArgsUsage: " <question>",
		Description: `Generate a validated SQL statement for a natural-language question.

Examples:
  lab-ai ask "how many orders were archived this week"
  lab-ai ask --execute "average turnaround time per test"
  lab-ai ask --limit 10 --json "most recent results for order A1001"`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "execute",
				Usage: "Run the validated SQL against the lab database",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Row limit for the generated statement",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the full result as JSON",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			if args.Len() != 1 {
				return fmt.Errorf("expected exactly 1 argument, got %d", args.Len())
			}

			return runAsk(ctx, args.First(), askOptions{
				execute:  cmd.Bool("execute"),
				limit:    int(cmd.Int("limit")),
				asJSON:   cmd.Bool("json"),
				progress: true,
			})
		},
	}
}

type askOptions struct {
	execute  bool
	limit    int
	asJSON   bool
	progress bool
}

func runAsk(ctx context.Context, question string, opts askOptions) error {
	application, err := newApp(opts.execute)
	if err != nil {
		return err
	}
	defer application.close()

	var spin *spinner.Spinner

	if opts.progress && !opts.asJSON {
		spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond,
			spinner.WithWriter(os.Stderr))
		spin.Suffix = " generating SQL..."
		spin.Start()
	}

	result, err := application.pipeline.Query(ctx, pipeline.QueryRequest{
		Question: question,
		Execute:  opts.execute,
		Limit:    opts.limit,
	})

	if spin != nil {
		spin.Stop()
	}

	if err != nil {
		// A sound statement may still come back with an execution error.
		if result != nil && result.SQL != "" {
			fmt.Printf("SQL: %s\n", result.SQL)
		}

		return err
	}

	if opts.asJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")

		return encoder.Encode(result)
	}

	printAskResult(result)

	return nil
}

func printAskResult(result *pipeline.QueryResult) {
	if result.Rejected {
		fmt.Printf("Rejected: %s\n", result.RejectionReason)

		if result.RejectionDetail != "" {
			fmt.Printf("Detail: %s\n", result.RejectionDetail)
		}

		return
	}

	fmt.Printf("SQL: %s\n", result.SQL)

	if len(result.Tables) > 0 {
		fmt.Printf("Tables: %s\n", strings.Join(result.Tables, ", "))
	}

	if result.Cached {
		fmt.Println("(served from cache)")
	}

	if result.Execution == nil {
		return
	}

	fmt.Printf("\nRows: %d", result.Execution.RowCount)

	if result.Execution.Truncated {
		fmt.Print(" (truncated)")
	}

	fmt.Printf("  Duration: %s\n", result.Execution.Duration.Round(time.Millisecond))

	if result.Execution.RowCount == 0 {
		return
	}

	fmt.Println(strings.Join(result.Execution.Columns, "\t"))

	for _, row := range result.Execution.Rows {
		values := make([]string, len(result.Execution.Columns))

		for i, col := range result.Execution.Columns {
			values[i] = fmt.Sprintf("%v", row[col])
		}

		fmt.Println(strings.Join(values, "\t"))
	}
}
