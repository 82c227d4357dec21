package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/langrun"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of langrun",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "langrun version %s\n", strings.TrimSpace(langrun.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
