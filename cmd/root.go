package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mabhi256/dumpdiag/internal/config"
	"github.com/mabhi256/dumpdiag/internal/logging"
)

var (
	configPath string
	logLevel   string

	// cfg is loaded once per invocation before any subcommand runs
	cfg = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "dumpdiag",
	Short: "Crash dump diagnostics",
	Long: `dumpdiag decodes crash snapshots and explains them: exception classification,
thread contention, heap corruption, stack overflow, suspicious modules and
actionable recommendations, each backed by confidence-scored evidence.`,
	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		logging.Initialize(cfg.LogLevel)

		if cmd.Name() == "install" || cmd.Name() == "version" || cmd.Name() == "help" || isCompletionCmd(cmd) {
			return nil
		}

		if !isShellSupported() || completionsExist() {
			return nil
		}

		// Notices go to stderr so machine-readable output stays clean
		stderr := cmd.ErrOrStderr()
		fmt.Fprintln(stderr, "🔧 First run detected, setting up dumpdiag...")
		if installCompletions(cmd.Root(), stderr) == nil {
			fmt.Fprintln(stderr, "✅ Shell completions installed")
			fmt.Fprintln(stderr, "💡 Restart your shell to enable tab completion")
		} else {
			fmt.Fprintln(stderr, "⚠️  Auto-setup failed. Run 'dumpdiag install' to try again.")
		}
		return nil
	},
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install shell completions",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()

		if !isInPath() {
			printPathInstructions(out)
			return
		}

		if !isShellSupported() {
			fmt.Fprintf(out, "❌ Shell completion not supported for: %s\n", detectShell())
			fmt.Fprintln(out, "Supported shells: bash, zsh, fish, powershell")
			return
		}

		if completionsExist() {
			fmt.Fprintln(out, "✅ Already configured!")
			return
		}

		fmt.Fprintln(out, "📦 Installing completions...")
		if err := installCompletions(cmd.Root(), out); err != nil {
			fmt.Fprintf(out, "❌ Failed: %v\n", err)
		} else {
			fmt.Fprintln(out, "✅ Done! Restart your shell to enable tab completion.")
		}
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func isCompletionCmd(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "completion" || strings.HasPrefix(c.Name(), cobra.ShellCompRequestCmd) {
			return true
		}
	}
	return false
}

func completionPaths(home string) map[string]string {
	return map[string]string{
		"bash":       filepath.Join(home, ".local/share/bash-completion/completions/dumpdiag"),
		"zsh":        filepath.Join(home, ".zsh/completions/_dumpdiag"),
		"fish":       filepath.Join(home, ".config/fish/completions/dumpdiag.fish"),
		"powershell": filepath.Join(home, "dumpdiag_completion.ps1"),
	}
}

func completionsExist() bool {
	home, _ := os.UserHomeDir()
	_, err := os.Stat(completionPaths(home)[detectShell()])
	return err == nil
}

func isShellSupported() bool {
	_, ok := completionPaths("")[detectShell()]
	return ok
}

func detectShell() string {
	if runtime.GOOS == "windows" {
		return "powershell"
	}

	shell := os.Getenv("SHELL")
	if shell == "" {
		return "bash"
	}
	return filepath.Base(shell)
}

type completionConfig struct {
	genFunc     func(io.Writer) error
	activateCmd string
}

func installCompletions(root *cobra.Command, out io.Writer) error {
	home, _ := os.UserHomeDir()
	shell := detectShell()
	path, ok := completionPaths(home)[shell]
	if !ok {
		return fmt.Errorf("unsupported shell: %s", shell)
	}

	configs := map[string]completionConfig{
		"bash": {
			genFunc:     root.GenBashCompletion,
			activateCmd: "source " + path,
		},
		"zsh": {
			genFunc:     root.GenZshCompletion,
			activateCmd: fmt.Sprintf("fpath=(%s $fpath) && autoload -U compinit && compinit", filepath.Dir(path)),
		},
		"fish": {
			genFunc:     func(w io.Writer) error { return root.GenFishCompletion(w, true) },
			activateCmd: "complete --do-complete=dumpdiag",
		},
		"powershell": {
			genFunc:     root.GenPowerShellCompletionWithDesc,
			activateCmd: ". " + path,
		},
	}
	cc := configs[shell]

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create completion directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := cc.genFunc(file); err != nil {
		return err
	}

	fmt.Fprintf(out, "🔄 Run this command to enable completions now:\n")
	fmt.Fprintf(out, "   %s\n", cc.activateCmd)

	return nil
}

func isInPath() bool {
	execPath, err := os.Executable()
	if err != nil {
		return false
	}

	paths := strings.Split(os.Getenv("PATH"), string(os.PathListSeparator))
	return slices.Contains(paths, filepath.Dir(execPath))
}

func printPathInstructions(out io.Writer) {
	execPath, _ := os.Executable()
	execDir := filepath.Dir(execPath)

	fmt.Fprintf(out, "❌ dumpdiag not in PATH. Binary location: %s\n\n", execPath)

	if runtime.GOOS == "windows" {
		fmt.Fprintf(out, "Add to PATH: %s\n", execDir)
	} else {
		fmt.Fprintf(out, "Add to shell profile: export PATH=\"%s:$PATH\"\n", execDir)
		fmt.Fprintf(out, "Or copy to: /usr/local/bin\n")
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.RegisterFlagCompletionFunc("log-level", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(installCmd)
}
