package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/audittrail/internal/platform"
)

var (
	verbose    bool
	configPath string

	// settings and settingsPath are resolved before any subcommand runs.
	settings     platform.Settings
	settingsPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "audittrail",
	Short: "An audit trail for content repository mutations",
	Long: `audittrail observes mutations of a content repository (creations, saves,
deletions, copies, moves, renames, template changes, publishing) and writes
one human-readable line per meaningful change.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)

		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		settings, settingsPath, err = platform.Resolve(configPath, cwd)
		if err != nil {
			return err
		}
		if settingsPath != "" {
			logger.Debug("settings loaded", "path", settingsPath)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Settings file (default: nearest "+platform.ConfigFileName+")")
}
