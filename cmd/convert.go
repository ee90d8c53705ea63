package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mabhi256/dumpdiag/internal/snapshot"
	"github.com/mabhi256/dumpdiag/utils"
)

var convertCmd = &cobra.Command{
	Use:   "convert [snapshot] [output.cdmp]",
	Short: "Re-encode a JSON or YAML snapshot as a binary container",
	Args:  cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return utils.CompleteFilesByExtension(utils.SnapshotExtensions)(cmd, args, toComplete)
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if !strings.EqualFold(filepath.Ext(args[1]), ".cdmp") {
			return fmt.Errorf("output file must have a .cdmp extension: %s", args[1])
		}
		return checkSnapshotFile(args[0])
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return convertSnapshot(args[0], args[1])
	},
}

func convertSnapshot(in, out string) (err error) {
	snap, err := snapshot.DecodeFile(in)
	if err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", out, cerr)
		}
	}()

	return snapshot.Encode(f, snap)
}

func init() {
	rootCmd.AddCommand(convertCmd)
}
