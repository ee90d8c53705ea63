package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mabhi256/dumpdiag/internal/diagnosis"
	"github.com/mabhi256/dumpdiag/internal/logging"
	"github.com/mabhi256/dumpdiag/internal/metrics"
	"github.com/mabhi256/dumpdiag/internal/report"
	"github.com/mabhi256/dumpdiag/internal/snapshot"
	"github.com/mabhi256/dumpdiag/internal/watch"
)

var (
	debounceMillis int
	scanExisting   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Diagnose snapshots as they appear in a directory",
	Long: `Watch a directory and print a one-line diagnosis for every crash snapshot
that is created or rewritten in it. Identical snapshots are served from the
diagnosis cache. Press Ctrl-C to stop.

Examples:
  dumpdiag watch /var/crash
  dumpdiag watch ./dumps --existing --metrics-out dumpdiag.prom`,
	Args: cobra.ExactArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) != 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveFilterDirs
	},
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("metrics-out") {
			cfg.MetricsOut = metricsOut
		}
		if cmd.Flags().Changed("parallel") {
			cfg.Parallel = parallel
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd.Context(), cmd, args[0])
	},
}

func runWatch(ctx context.Context, cmd *cobra.Command, dir string) error {
	logger := logging.GetLogger("cmd.watch")

	reg := prometheus.NewRegistry()
	engine, err := diagnosis.NewEngine(cfg.EngineOptions(), metrics.NewMetrics(reg))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	handle := func(ctx context.Context, path string) {
		snap, err := snapshot.DecodeFile(path)
		if err != nil {
			// Usually a snapshot still being written; the next write event retries
			logger.Warn("skipping %s: %v", path, err)
			return
		}

		diag, err := engine.Diagnose(ctx, snap)
		if err != nil {
			return
		}

		fmt.Fprintln(out, report.SummaryLine(path, diag))

		if cfg.MetricsOut != "" {
			if err := metrics.WriteTextfile(reg, cfg.MetricsOut); err != nil {
				logger.ErrorWithErr("failed to write metrics", err)
			}
		}
	}

	w, err := watch.New(watch.Config{
		Dir:          dir,
		Debounce:     time.Duration(debounceMillis) * time.Millisecond,
		ScanExisting: scanExisting,
	}, handle)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "👀 Watching %s (Ctrl-C to stop)\n", dir)
	return w.Run(ctx)
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().IntVar(&debounceMillis, "debounce", int(watch.DefaultDebounce/time.Millisecond), "Quiet period in ms before a changed file is analyzed")
	watchCmd.Flags().BoolVar(&scanExisting, "existing", false, "Also diagnose snapshots already in the directory")
	watchCmd.Flags().BoolVar(&parallel, "parallel", false, "Run independent analyzers concurrently")
	watchCmd.Flags().StringVar(&metricsOut, "metrics-out", "", "Rewrite Prometheus metrics textfile after each diagnosis")
}
