package coverage

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// coverageJSON mirrors the coverage tool's JSON report shape: a per-file
// map of executed/missing line numbers, plus an overall totals block.
type coverageJSON struct {
	Files map[string]struct {
		ExecutedLines []int `json:"executed_lines"`
		MissingLines  []int `json:"missing_lines"`
	} `json:"files"`
	Totals struct {
		PercentCovered float64 `json:"percent_covered"`
	} `json:"totals"`
}

// parseOutput scans the test runner's combined output for the summary
// line (`<n> passed`, `<n> failed`, `<n> skipped`, `TOTAL ... <p>%`), then
// prefers a coverage.json report in workDir when present, computing
// new-code coverage by matching the JSON's per-file entries against
// changedFiles — exactly the two-pass strategy in §4.6 step 3.
func parseOutput(workDir, output string, changedFiles []string) CoverageResult {
	result := CoverageResult{UncoveredLines: make(map[string][]int)}

	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, " passed") && !strings.Contains(line, " failed") {
			parseSummaryLine(line, &result)
		} else if strings.Contains(line, " failed") {
			parseSummaryLine(line, &result)
		}

		if strings.Contains(line, "TOTAL") && strings.Contains(line, "%") {
			for _, field := range strings.Fields(line) {
				if strings.HasSuffix(field, "%") {
					if pct, err := strconv.ParseFloat(strings.TrimSuffix(field, "%"), 64); err == nil {
						result.TotalCoverage = pct
					}
				}
			}
		}
	}

	reportPath := filepath.Join(workDir, "coverage.json")
	data, err := os.ReadFile(reportPath)
	if err != nil {
		return result
	}

	var cov coverageJSON
	if err := json.Unmarshal(data, &cov); err != nil {
		slog.Warn("failed to parse coverage.json", "err", err)
		return result
	}

	var newCovered, newTotal int
	for filePath, fileData := range cov.Files {
		if !matchesChangedFile(filePath, changedFiles) {
			continue
		}
		newTotal += len(fileData.ExecutedLines) + len(fileData.MissingLines)
		newCovered += len(fileData.ExecutedLines)
		if len(fileData.MissingLines) > 0 {
			result.UncoveredLines[filePath] = fileData.MissingLines
		}
	}
	if newTotal > 0 {
		result.NewCodeCoverage = (float64(newCovered) / float64(newTotal)) * 100
	}

	if cov.Totals.PercentCovered != 0 {
		result.TotalCoverage = cov.Totals.PercentCovered
	}
	result.CoverageReportPath = reportPath

	return result
}

// matchesChangedFile mirrors the original suffix-either-way match: a
// coverage report path and a changed-file path may be relative to
// different roots, so either containing the other as a suffix counts.
func matchesChangedFile(filePath string, changedFiles []string) bool {
	for _, cf := range changedFiles {
		if strings.HasSuffix(filePath, cf) || strings.HasSuffix(cf, filePath) {
			return true
		}
	}
	return false
}

func parseSummaryLine(line string, result *CoverageResult) {
	fields := strings.Fields(line)
	for i, f := range fields {
		if i == 0 {
			continue
		}
		switch strings.TrimRight(f, ",") {
		case "passed":
			if n, err := strconv.Atoi(fields[i-1]); err == nil {
				result.TestsPassed = n
			}
		case "failed":
			if n, err := strconv.Atoi(fields[i-1]); err == nil {
				result.TestsFailed = n
			}
		case "skipped":
			if n, err := strconv.Atoi(fields[i-1]); err == nil {
				result.TestsSkipped = n
			}
		}
	}
}
