package fixloop

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roasbeef/prreview/internal/review"
)

func issueWithDesc(desc string) review.ValidatedIssue {
	return review.ValidatedIssue{
		Issue: review.PotentialIssue{
			FilePath:    "pkg/foo.go",
			Kind:        review.IssueKindBug,
			Description: desc,
		},
		IsValid: true,
	}
}

func TestPartitionSurvivorsSkipsUnfixable(t *testing.T) {
	issue := issueWithDesc("off by one")
	fp := issue.Issue.Fingerprint()

	unfixable := map[review.Fingerprint]bool{fp: true}
	attempted := map[review.Fingerprint]bool{}
	var skipped int

	survivors := partitionSurvivors([]review.ValidatedIssue{issue}, attempted, unfixable, &skipped)

	require.Empty(t, survivors)
	require.Equal(t, 1, skipped)
}

func TestPartitionSurvivorsPromotesReappearance(t *testing.T) {
	issue := issueWithDesc("off by one")
	fp := issue.Issue.Fingerprint()

	attempted := map[review.Fingerprint]bool{fp: true}
	unfixable := map[review.Fingerprint]bool{}
	var skipped int

	survivors := partitionSurvivors([]review.ValidatedIssue{issue}, attempted, unfixable, &skipped)

	require.Empty(t, survivors)
	require.Equal(t, 1, skipped)
	require.True(t, unfixable[fp], "reappearance must promote the fingerprint to unfixable")
}

func TestPartitionSurvivorsKeepsNewIssues(t *testing.T) {
	issue := issueWithDesc("off by one")

	attempted := map[review.Fingerprint]bool{}
	unfixable := map[review.Fingerprint]bool{}
	var skipped int

	survivors := partitionSurvivors([]review.ValidatedIssue{issue}, attempted, unfixable, &skipped)

	require.Len(t, survivors, 1)
	require.Equal(t, 0, skipped)
}

func TestDedupePreservesFirstOccurrenceOrder(t *testing.T) {
	out := dedupe([]string{"a.go", "b.go", "a.go", "c.go", "b.go"})
	require.Equal(t, []string{"a.go", "b.go", "c.go"}, out)
}

func TestDedupeEmpty(t *testing.T) {
	require.Empty(t, dedupe(nil))
}
