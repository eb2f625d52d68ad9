package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/audittrail/internal/platform"
	"github.com/aretw0/audittrail/pkg/adapters/memory"
)

var writeUser string

// writeCmd writes a raw line, useful to check the sink settings end to end.
var writeCmd = &cobra.Command{
	Use:   "write <message>",
	Short: "Write a raw audit line to the configured sinks",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		rt, err := platform.New(ctx, settings,
			platform.WithStore(memory.New()),
			platform.WithLogger(slog.Default()),
		)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.WriteLine(ctx, strings.Join(args, " "), writeUser); err != nil {
			return fmt.Errorf("failed to write line: %w", err)
		}
		return nil
	},
}

func init() {
	writeCmd.Flags().StringVarP(&writeUser, "user", "u", "", "Acting user (default anonymous)")
	rootCmd.AddCommand(writeCmd)
}
