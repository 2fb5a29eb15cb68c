// Package reportmd builds the Markdown comment bodies the hosting client
// posts to a PR: per-issue review comments and the PR-level summary. It
// also exposes the teacher's goldmark-based markdown-to-HTML conversion,
// used to render a local preview of the same comment bodies (e.g. for a
// dry-run CLI invocation) without round-tripping through the provider.
package reportmd

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/roasbeef/prreview/internal/review"
)

// SummaryStats carries the potential/valid/false-positive counts the
// summary comment reports alongside the issue list.
type SummaryStats struct {
	Potential      int
	Valid          int
	FalsePositives int
}

// severityOrder is the display order for the summary's per-severity
// grouping, most severe first.
var severityOrder = []review.Severity{
	review.SeverityCritical,
	review.SeverityHigh,
	review.SeverityMedium,
	review.SeverityLow,
}

// FormatIssueComment renders one inline review comment body, matching
// the original tool's layout: severity/kind header, description,
// evidence (capped at 3 items), mitigation, library reference,
// confidence footer.
func FormatIssueComment(issue review.ValidatedIssue) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**%s**: %s\n\n%s\n",
		strings.ToUpper(string(issue.Issue.Severity)), issue.Issue.Kind,
		issue.Issue.Description)

	if len(issue.Evidence) > 0 {
		b.WriteString("\n**Evidence:**\n")
		for i, ev := range issue.Evidence {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&b, "- %s\n", ev)
		}
	}

	if issue.Mitigation != "" {
		fmt.Fprintf(&b, "\n**Suggested Fix:**\n%s\n", issue.Mitigation)
	}

	if issue.LibraryReference != "" {
		fmt.Fprintf(&b, "\n**Reference:** %s\n", issue.LibraryReference)
	}

	fmt.Fprintf(&b, "\n*Confidence: %d%%*", int(issue.Confidence*100))

	return b.String()
}

// FormatReviewSummary renders the PR-level summary comment: a grouped
// breakdown of every valid issue by severity, plus the run's
// potential/valid/false-positive stats.
func FormatReviewSummary(issues []review.ValidatedIssue, stats SummaryStats) string {
	var valid []review.ValidatedIssue
	for _, i := range issues {
		if i.IsValid {
			valid = append(valid, i)
		}
	}

	var b strings.Builder
	b.WriteString("## AI Code Review Summary\n\n")

	if len(valid) == 0 {
		b.WriteString("No significant issues found. The code looks good.\n")
	} else {
		bySeverity := make(map[review.Severity][]review.ValidatedIssue)
		for _, i := range valid {
			bySeverity[i.Issue.Severity] = append(bySeverity[i.Issue.Severity], i)
		}

		fmt.Fprintf(&b, "Found **%d** issues:\n", len(valid))

		for _, sev := range severityOrder {
			group, ok := bySeverity[sev]
			if !ok {
				continue
			}

			sort.Slice(group, func(i, j int) bool {
				return group[i].Issue.FilePath < group[j].Issue.FilePath
			})

			fmt.Fprintf(&b, "\n### %s (%d)\n", strings.ToUpper(string(sev)), len(group))
			for _, i := range group {
				desc := i.Issue.Description
				if len(desc) > 100 {
					desc = desc[:100]
				}
				fmt.Fprintf(&b, "- **%s:%d** - %s...\n",
					i.Issue.FilePath, i.Issue.LineStart, desc)
			}
		}
	}

	b.WriteString("\n---\n### Stats\n")
	fmt.Fprintf(&b, "- Potential issues found: %d\n", stats.Potential)
	fmt.Fprintf(&b, "- Validated as real: %d\n", stats.Valid)
	fmt.Fprintf(&b, "- False positives filtered: %d\n", stats.FalsePositives)

	b.WriteString("\n\n---\n*Reviewed by the automated PR review agent*")

	return b.String()
}

// ToHTML converts a Markdown comment body to sanitized-by-escaping HTML
// for local preview, using the same goldmark configuration (GFM
// extensions, hard wraps, XHTML output) as the original web UI's
// markdown renderer.
func ToHTML(markdown string) template.HTML {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)

	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(markdown))
	}

	return template.HTML(buf.String())
}
