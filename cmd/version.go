package cmd

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mabhi256/dumpdiag/internal/snapshot"
)

var (
	// This will be set by goreleaser
	version = "dev"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		name := color.New(color.FgCyan, color.Bold).Sprint("dumpdiag")
		fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (%s, %s/%s, snapshot format %s)\n",
			name, version, runtime.Version(), runtime.GOOS, runtime.GOARCH, snapshot.FormatV1)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
