package coverage

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
)

// runTests runs the configured test runner with coverage flags over the
// changed-file-derived source roots, and returns its combined stdout and
// stderr for parsing — matching §4.6 step 2's exact argument shape.
func runTests(ctx context.Context, cfg Config, changedFiles []string) string {
	roots := sourceRoots(changedFiles)
	sourceArg := "."
	if len(roots) > 0 {
		sourceArg = strings.Join(roots, ",")
	}

	testDir := cfg.TestDir
	if testDir == "" {
		testDir = "tests"
	}

	args := []string{
		"--cov=" + sourceArg,
		"--cov-report=json",
		"--cov-report=term",
		"-v",
		testDir,
	}

	runner := cfg.TestRunner
	if runner == "" {
		runner = "pytest"
	}

	slog.Info("running coverage gate tests", "runner", runner, "args", args)

	cmd := exec.CommandContext(ctx, runner, args...)
	cmd.Dir = cfg.WorkDir

	out, err := cmd.CombinedOutput()
	if err != nil {
		slog.Warn("test run exited non-zero", "err", err)
	}

	return string(out)
}
