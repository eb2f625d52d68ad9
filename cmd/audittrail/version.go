package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/audittrail"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of audittrail",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("audittrail version %s\n", strings.TrimSpace(audittrail.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
