package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective settings",
	Long:  `Print the settings in effect after applying the settings file to the defaults.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if settingsPath != "" {
			fmt.Fprintf(os.Stderr, "# %s\n", settingsPath)
		} else {
			fmt.Fprintln(os.Stderr, "# defaults (no settings file found)")
		}
		return settings.Encode(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
