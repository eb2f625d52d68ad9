package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/audittrail/internal/platform"
	"github.com/aretw0/audittrail/pkg/adapters/memory"
)

var replayCmd = &cobra.Command{
	Use:   "replay <script.yaml>",
	Short: "Apply an event script and print the audit trail",
	Long: `Apply the mutations of a YAML script to an in-memory repository and write
the resulting audit lines to the configured sinks.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		script, err := platform.ReadScript(f)
		if err != nil {
			return err
		}

		ctx := context.Background()
		rt, err := platform.New(ctx, settings,
			platform.WithStore(memory.New()),
			platform.WithLogger(slog.Default()),
		)
		if err != nil {
			return err
		}
		defer rt.Close()

		result, err := rt.Replay(ctx, script)
		if err != nil {
			return err
		}
		for _, reason := range result.Rejected {
			fmt.Fprintf(os.Stderr, "rejected: %s\n", reason)
		}
		slog.Debug("replay finished", "applied", result.Applied, "rejected", len(result.Rejected))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
}
