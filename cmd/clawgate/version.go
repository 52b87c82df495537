package main

import (
	"github.com/spf13/cobra"
)

// version is set at link time with -ldflags "-X main.version=..."
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of clawgate",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("clawgate version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
