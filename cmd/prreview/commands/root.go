package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roasbeef/prreview/internal/build"
)

var (
	// repoFlag is "owner/name" for the target repository.
	repoFlag string

	// tokenFlag is the hosting-provider API token; falls back to
	// $GITHUB_TOKEN when unset.
	tokenFlag string

	// outputFormat controls output rendering: text or json.
	outputFormat string

	// logDirFlag, when non-empty, turns on a rotating log file
	// alongside stderr output.
	logDirFlag       string
	maxLogFiles      int
	maxLogFileSize   int
	activeLogRotator *build.RotatingLogWriter
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "prreview",
	Short: "Automated PR review-and-repair engine",
	Long: `prreview drives automated review, fix, and merge of pull requests:
it identifies defects in a diff, validates them against the surrounding
code, auto-fixes what's validated, and re-reviews until the PR is clean
or the iteration cap is hit. A multi-PR orchestrator extends this to a
fleet of open PRs with dependency ordering and conflict-aware merging.`,
	PersistentPreRunE: setupLogging,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if activeLogRotator != nil {
			activeLogRotator.Close()
		}
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&repoFlag, "repo", "",
		"Target repository as owner/name",
	)
	rootCmd.PersistentFlags().StringVar(
		&tokenFlag, "token", "",
		"Hosting provider API token (default: $GITHUB_TOKEN)",
	)
	rootCmd.PersistentFlags().StringVar(
		&outputFormat, "format", "text",
		"Output format: text, json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logDirFlag, "log-dir", "",
		"Directory for a rotating log file, in addition to stderr (empty disables file logging)",
	)
	rootCmd.PersistentFlags().IntVar(
		&maxLogFiles, "max-log-files", build.DefaultMaxLogFiles,
		"Maximum number of rotated log files to keep",
	)
	rootCmd.PersistentFlags().IntVar(
		&maxLogFileSize, "max-log-file-size", build.DefaultMaxLogFileSize,
		"Maximum log file size in MB before rotation",
	)

	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(orchestrateCmd)
	rootCmd.AddCommand(coverageGateCmd)
	rootCmd.AddCommand(versionCmd)
}

// setupLogging installs a rotating-file-backed slog handler when --log-dir
// is set, fanning records out to both stderr and the log file. On failure
// to open the log directory it falls back to stderr-only logging rather
// than aborting the command.
func setupLogging(cmd *cobra.Command, args []string) error {
	consoleHandler := slog.NewTextHandler(os.Stderr, nil)

	if logDirFlag == "" {
		slog.SetDefault(slog.New(consoleHandler))
		return nil
	}

	rotator := build.NewRotatingLogWriter()
	err := rotator.InitLogRotator(&build.LogRotatorConfig{
		LogDir:         logDirFlag,
		MaxLogFiles:    maxLogFiles,
		MaxLogFileSize: maxLogFileSize,
	})
	if err != nil {
		slog.SetDefault(slog.New(consoleHandler))
		slog.Warn("log rotator init failed, continuing with stderr only", "err", err)
		return nil
	}

	activeLogRotator = rotator
	fileHandler := slog.NewTextHandler(io.Writer(rotator), nil)
	slog.SetDefault(slog.New(build.NewHandlerSet(consoleHandler, fileHandler)))

	return nil
}
