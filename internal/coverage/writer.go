package coverage

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// writeTests writes each generated test to disk under workDir, creating
// parent directories as needed, and returns the paths actually written.
// A failure to write one test is logged and skipped, not fatal to the
// others — mirroring the original gate's write loop.
func writeTests(workDir string, tests []GeneratedTest) []string {
	written := make([]string, 0, len(tests))

	for _, test := range tests {
		path := filepath.Join(workDir, test.FilePath)

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			slog.Warn("failed to create test directory", "file", test.FilePath, "err", err)
			continue
		}
		if err := os.WriteFile(path, []byte(test.Content), 0o644); err != nil {
			slog.Warn("failed to write test", "file", test.FilePath, "err", err)
			continue
		}

		slog.Info("wrote generated test", "file", test.FilePath)
		written = append(written, path)
	}

	return written
}

// sourceRoots derives the set of first path segments of changedFiles (a
// top-level directory, or the file name itself for a file at the repo
// root), used as the coverage tool's --cov argument.
func sourceRoots(changedFiles []string) []string {
	seen := make(map[string]bool)
	var roots []string

	for _, f := range changedFiles {
		parts := strings.Split(filepath.ToSlash(f), "/")
		if len(parts) == 0 || parts[0] == "" {
			continue
		}
		if !seen[parts[0]] {
			seen[parts[0]] = true
			roots = append(roots, parts[0])
		}
	}

	return roots
}
