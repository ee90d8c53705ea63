package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mabhi256/dumpdiag/internal/snapshot"
)

var validateCmd = &cobra.Command{
	Use:               "validate [snapshot]",
	Short:             "Check that a crash snapshot decodes cleanly",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSnapshotFiles,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return checkSnapshotFile(args[0])
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := snapshot.DecodeFile(args[0])
		if err != nil {
			return err
		}

		digest, err := snapshot.Digest(snap)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), describeSnapshot(args[0], snap, digest))
		return nil
	},
}

func describeSnapshot(path string, snap *snapshot.CrashSnapshot, digest string) string {
	code := snap.Exception.Code
	if code == "" {
		code = "no exception code"
	}
	return fmt.Sprintf("✅ %s: %d threads, %d modules, %d heap blocks, %s (digest %s)",
		path, len(snap.Threads), len(snap.Modules), len(snap.HeapBlocks), code, digest[:12])
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
