package review

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInconclusive(t *testing.T) {
	issue := PotentialIssue{FilePath: "foo.go", Kind: IssueKindBug}
	v := inconclusive(issue, "Validation inconclusive")

	require.False(t, v.IsValid)
	require.Equal(t, 0.0, v.Confidence)
	require.Equal(t, []string{"Validation inconclusive"}, v.Evidence)
	require.Equal(t, issue, v.Issue)
}

func TestStage2UserPromptTemplateEmbedsIssueFields(t *testing.T) {
	issue := PotentialIssue{
		FilePath:    "pkg/foo.go",
		LineStart:   10,
		LineEnd:     14,
		Kind:        IssueKindSecurity,
		Severity:    SeverityHigh,
		Description: "possible command injection",
		CodeSnippet: "exec.Command(userInput)",
	}

	prompt := fmt.Sprintf(stage2UserPromptTemplate,
		issue.FilePath, issue.LineStart, issue.LineEnd,
		issue.Kind, issue.Severity, issue.Description, issue.CodeSnippet,
	)

	require.Contains(t, prompt, "pkg/foo.go")
	require.Contains(t, prompt, "possible command injection")
	require.Contains(t, prompt, "exec.Command(userInput)")
	require.Contains(t, prompt, "store_verdict")
}

// TestValidateIssuesEmptyInput guards the degenerate case
// that both sequential and parallel code paths must handle identically.
func TestValidateIssuesEmptyInput(t *testing.T) {
	results, err := ValidateIssues(nil, nil, nil, false, DefaultStage2Config())
	require.NoError(t, err)
	require.Empty(t, results)

	results, err = ValidateIssues(nil, nil, nil, true, DefaultStage2Config())
	require.NoError(t, err)
	require.Empty(t, results)
}
