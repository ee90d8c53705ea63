package cmd

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mabhi256/dumpdiag/internal/config"
	"github.com/mabhi256/dumpdiag/internal/diagnosis"
	"github.com/mabhi256/dumpdiag/internal/logging"
	"github.com/mabhi256/dumpdiag/internal/metrics"
	"github.com/mabhi256/dumpdiag/internal/report"
	"github.com/mabhi256/dumpdiag/internal/snapshot"
	"github.com/mabhi256/dumpdiag/internal/tui"
	"github.com/mabhi256/dumpdiag/utils"
)

var (
	outputFormat string
	outputPath   string
	parallel     bool
	metricsOut   string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [snapshot]",
	Short: "Diagnose a crash snapshot",
	Long: `Decode a crash snapshot (.cdmp, .json, .yaml) and print its diagnosis.

Examples:
  dumpdiag analyze crash.json                 # Terminal report
  dumpdiag analyze crash.cdmp -o tui          # Interactive viewer
  dumpdiag analyze crash.yaml -o html --out r # Writes r.html
  dumpdiag analyze crash.json -o json --metrics-out /var/lib/node_exporter/dumpdiag.prom`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSnapshotFiles,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		applyAnalyzeFlags(cmd)

		if !slices.Contains(config.OutputFormats, cfg.Output) {
			return fmt.Errorf("invalid output format: %s. Valid options: %v", cfg.Output, config.OutputFormats)
		}

		return checkSnapshotFile(args[0])
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyze(cmd, args[0])
	},
}

// applyAnalyzeFlags lets explicitly set flags override the loaded config.
func applyAnalyzeFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("output") {
		cfg.Output = outputFormat
	}
	if cmd.Flags().Changed("parallel") {
		cfg.Parallel = parallel
	}
	if cmd.Flags().Changed("metrics-out") {
		cfg.MetricsOut = metricsOut
	}
}

func runAnalyze(cmd *cobra.Command, path string) error {
	logger := logging.GetLogger("cmd.analyze").WithField("source", path)

	snap, err := snapshot.DecodeFile(path)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	engine, err := diagnosis.NewEngine(cfg.EngineOptions(), metrics.NewMetrics(reg))
	if err != nil {
		return err
	}

	diag, err := engine.Diagnose(cmd.Context(), snap)
	if err != nil {
		return err
	}

	logger.Debug("diagnosed as %s (confidence %d)", diag.Category, diag.Confidence)

	if err := writeDiagnosis(cmd, path, snap, diag); err != nil {
		return err
	}

	if cfg.MetricsOut != "" {
		if err := metrics.WriteTextfile(reg, cfg.MetricsOut); err != nil {
			return err
		}
		logger.Debug("metrics written to %s", cfg.MetricsOut)
	}

	return nil
}

func writeDiagnosis(cmd *cobra.Command, source string, snap *snapshot.CrashSnapshot, diag *diagnosis.CrashDiagnosis) error {
	switch cfg.Output {
	case "tui":
		if err := tui.StartTUI(source, snap, diag); err != nil {
			return fmt.Errorf("unable to start TUI: %w", err)
		}
		return nil

	case "html":
		path, err := report.GenerateHTMLReport(report.NewEnvelope(source, diag), outputPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "📄 HTML report written to %s\n", path)
		return nil
	}

	w, closeFn, err := openOutput(cmd.OutOrStdout(), outputPath)
	if err != nil {
		return err
	}
	defer closeFn()

	if cfg.Output == "json" {
		return report.WriteJSON(w, report.NewEnvelope(source, diag))
	}
	return report.WriteCLI(w, source, snap, diag)
}

// openOutput returns stdout when path is empty, otherwise a created file.
func openOutput(stdout io.Writer, path string) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func checkSnapshotFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

func completeSnapshotFiles(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) != 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return utils.CompleteFilesByExtension(utils.SnapshotExtensions)(cmd, args, toComplete)
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&outputFormat, "output", "o", "cli", "Output format (cli, json, html, tui)")
	analyzeCmd.Flags().StringVar(&outputPath, "out", "", "Write the report to a file instead of stdout")
	analyzeCmd.Flags().BoolVar(&parallel, "parallel", false, "Run independent analyzers concurrently")
	analyzeCmd.Flags().StringVar(&metricsOut, "metrics-out", "", "Write Prometheus metrics in textfile format")

	analyzeCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return config.OutputFormats, cobra.ShellCompDirectiveNoFileComp
	})
}
