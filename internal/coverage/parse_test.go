package coverage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseOutputSummaryLine(t *testing.T) {
	output := "===== 7 passed, 2 failed, 1 skipped in 3.21s =====\nTOTAL    120    30    75%\n"
	result := parseOutput(t.TempDir(), output, nil)

	require.Equal(t, 7, result.TestsPassed)
	require.Equal(t, 2, result.TestsFailed)
	require.Equal(t, 1, result.TestsSkipped)
	require.Equal(t, 75.0, result.TotalCoverage)
}

func TestParseOutputPrefersJSONReport(t *testing.T) {
	dir := t.TempDir()
	jsonReport := `{
		"files": {
			"pkg/foo.go": {"executed_lines": [1,2,3], "missing_lines": [4]},
			"pkg/untouched.go": {"executed_lines": [1], "missing_lines": []}
		},
		"totals": {"percent_covered": 88.5}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "coverage.json"), []byte(jsonReport), 0o644))

	result := parseOutput(dir, "", []string{"pkg/foo.go"})

	require.Equal(t, 75.0, result.NewCodeCoverage) // 3 of 4 lines covered
	require.Equal(t, 88.5, result.TotalCoverage)
	require.Equal(t, []int{4}, result.UncoveredLines["pkg/foo.go"])
	require.NotContains(t, result.UncoveredLines, "pkg/untouched.go")
}

func TestParseOutputNoReportLeavesNewCoverageZero(t *testing.T) {
	result := parseOutput(t.TempDir(), "", []string{"pkg/foo.go"})
	require.Equal(t, 0.0, result.NewCodeCoverage)
}

func TestMatchesChangedFile(t *testing.T) {
	require.True(t, matchesChangedFile("/abs/repo/pkg/foo.go", []string{"pkg/foo.go"}))
	require.True(t, matchesChangedFile("pkg/foo.go", []string{"/abs/repo/pkg/foo.go"}))
	require.False(t, matchesChangedFile("pkg/bar.go", []string{"pkg/foo.go"}))
}
