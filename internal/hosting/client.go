// Package hosting talks to the pull-request hosting provider (GitHub's
// REST API): diff retrieval, comment posting, review summaries, and the
// mergeable/CI/merge/rebase operations the merge executor drives. No
// example repo in the retrieval pack imports a GitHub API client library,
// so this package is built directly on net/http and encoding/json rather
// than reaching for an ecosystem SDK that was never demonstrated anywhere
// in the corpus.
package hosting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/roasbeef/prreview/internal/reportmd"
	"github.com/roasbeef/prreview/internal/review"
)

const apiBase = "https://api.github.com"

// Client is the hosting-provider interface the feedback loop and the
// multi-PR orchestrator depend on. A real implementation talks to the
// GitHub REST API; tests substitute a fake.
type Client interface {
	// Diff returns the unified diff for the PR's current head.
	Diff(ctx context.Context, owner, repoName string, prNumber int) (string, error)

	// ChangedFiles returns the set of file paths touched by the PR.
	ChangedFiles(ctx context.Context, owner, repoName string, prNumber int) ([]string, error)

	// ListOpenPRs returns every open PR targeting base.
	ListOpenPRs(ctx context.Context, owner, repoName, base string) ([]OpenPR, error)

	// PostReviewComment posts an inline comment anchored to one
	// ValidatedIssue. No-op (returns nil) if the issue is not valid.
	PostReviewComment(ctx context.Context, owner, repoName string, prNumber int, commitSHA string, issue review.ValidatedIssue) error

	// PostReviewSummary posts the PR-level summary comment.
	PostReviewSummary(ctx context.Context, owner, repoName string, prNumber int, issues []review.ValidatedIssue, stats reportmd.SummaryStats) error

	// ApprovePR submits an APPROVE review.
	ApprovePR(ctx context.Context, owner, repoName string, prNumber int, message string) error

	// RequestChanges submits a REQUEST_CHANGES review.
	RequestChanges(ctx context.Context, owner, repoName string, prNumber int, message string) error

	// Mergeable polls the provider's computed mergeable state.
	Mergeable(ctx context.Context, owner, repoName string, prNumber int) (MergeableState, error)

	// UpdateBranch triggers the provider's update-branch (rebase)
	// operation.
	UpdateBranch(ctx context.Context, owner, repoName string, prNumber int) error

	// CombinedStatus returns the commit's combined status plus check
	// runs, already reduced to a pass/fail verdict.
	CombinedStatus(ctx context.Context, owner, repoName, commitSHA string) (CIStatus, error)

	// Merge performs the merge with the given method ("squash", "merge",
	// "rebase") and returns the merge commit SHA.
	Merge(ctx context.Context, owner, repoName string, prNumber int, method, commitMessage string) (string, error)

	// DeleteBranch deletes the given head ref.
	DeleteBranch(ctx context.Context, owner, repoName, branch string) error
}

// MergeableState is the provider's computed mergeability verdict.
type MergeableState struct {
	// Known is false while the provider is still computing mergeability
	// (GitHub returns a null "mergeable" field in this window).
	Known bool

	Mergeable      bool
	MergeableState string // "clean", "behind", "blocked", "dirty", ...
	HeadSHA        string
}

// CIStatus is the reduced verdict from combined status + check runs.
type CIStatus struct {
	Passed bool
	Reason string
}

// OpenPR is one row from the open-PR listing, enough for the orchestrator
// to build its dependency and conflict graphs.
type OpenPR struct {
	Number       int
	Branch       string
	Base         string
	ChangedFiles []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GitHubClient is the REST-based Client implementation.
type GitHubClient struct {
	httpClient *http.Client
	token      string

	// baseURL overrides apiBase; only ever set by tests.
	baseURL string
}

// NewGitHubClient returns a Client authenticated with the given token.
func NewGitHubClient(token string) *GitHubClient {
	return &GitHubClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		token:      token,
	}
}

func (c *GitHubClient) base() string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return apiBase
}

func (c *GitHubClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base()+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, string(data))
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

type pullListEntry struct {
	Number int `json:"number"`
	Head   struct {
		Ref string `json:"ref"`
	} `json:"head"`
	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListOpenPRs lists every open PR targeting base and fetches each one's
// changed files, matching the original orchestrator's load_open_prs.
func (c *GitHubClient) ListOpenPRs(ctx context.Context, owner, repoName, base string) ([]OpenPR, error) {
	var entries []pullListEntry
	path := fmt.Sprintf("/repos/%s/%s/pulls?state=open&base=%s&per_page=100", owner, repoName, base)
	if err := c.do(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}

	out := make([]OpenPR, 0, len(entries))
	for _, e := range entries {
		files, err := c.ChangedFiles(ctx, owner, repoName, e.Number)
		if err != nil {
			return nil, fmt.Errorf("changed files for PR #%d: %w", e.Number, err)
		}
		out = append(out, OpenPR{
			Number:       e.Number,
			Branch:       e.Head.Ref,
			Base:         e.Base.Ref,
			ChangedFiles: files,
			CreatedAt:    e.CreatedAt,
			UpdatedAt:    e.UpdatedAt,
		})
	}
	return out, nil
}

type prFile struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Patch    string `json:"patch"`
}

// Diff reconstructs a unified diff from the per-file patch fragments the
// "list PR files" endpoint returns, matching the original tool's
// reconstruction (the REST API does not expose a single diff blob
// alongside per-file status without a second content-type negotiation).
func (c *GitHubClient) Diff(ctx context.Context, owner, repoName string, prNumber int) (string, error) {
	var files []prFile
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/files?per_page=100", owner, repoName, prNumber)
	if err := c.do(ctx, http.MethodGet, path, nil, &files); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	for _, f := range files {
		if f.Patch == "" {
			continue
		}
		fmt.Fprintf(&buf, "diff --git a/%s b/%s\n", f.Filename, f.Filename)
		switch f.Status {
		case "added":
			buf.WriteString("new file mode 100644\n")
		case "removed":
			buf.WriteString("deleted file mode 100644\n")
		}
		fmt.Fprintf(&buf, "--- a/%s\n", f.Filename)
		fmt.Fprintf(&buf, "+++ b/%s\n", f.Filename)
		buf.WriteString(f.Patch)
		buf.WriteString("\n\n")
	}

	return buf.String(), nil
}

// ChangedFiles returns the filenames touched by the PR.
func (c *GitHubClient) ChangedFiles(ctx context.Context, owner, repoName string, prNumber int) ([]string, error) {
	var files []prFile
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/files?per_page=100", owner, repoName, prNumber)
	if err := c.do(ctx, http.MethodGet, path, nil, &files); err != nil {
		return nil, err
	}

	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Filename
	}
	return out, nil
}

type reviewCommentRequest struct {
	Body     string `json:"body"`
	CommitID string `json:"commit_id"`
	Path     string `json:"path"`
	Line     int    `json:"line"`
	Side     string `json:"side"`
}

// PostReviewComment posts one inline review comment for a validated
// issue, formatted the way the original tool formats issue comments.
func (c *GitHubClient) PostReviewComment(ctx context.Context, owner, repoName string, prNumber int, commitSHA string, issue review.ValidatedIssue) error {
	if !issue.IsValid {
		return nil
	}

	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/comments", owner, repoName, prNumber)
	req := reviewCommentRequest{
		Body:     reportmd.FormatIssueComment(issue),
		CommitID: commitSHA,
		Path:     issue.Issue.FilePath,
		Line:     issue.Issue.LineEnd,
		Side:     "RIGHT",
	}

	return c.do(ctx, http.MethodPost, path, req, nil)
}

type issueCommentRequest struct {
	Body string `json:"body"`
}

// PostReviewSummary posts the PR-level summary comment grouping issues by
// severity, matching the original tool's markdown layout.
func (c *GitHubClient) PostReviewSummary(ctx context.Context, owner, repoName string, prNumber int, issues []review.ValidatedIssue, stats reportmd.SummaryStats) error {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", owner, repoName, prNumber)
	req := issueCommentRequest{Body: reportmd.FormatReviewSummary(issues, stats)}
	return c.do(ctx, http.MethodPost, path, req, nil)
}

type reviewRequest struct {
	Body  string `json:"body"`
	Event string `json:"event"`
}

// ApprovePR submits an APPROVE review.
func (c *GitHubClient) ApprovePR(ctx context.Context, owner, repoName string, prNumber int, message string) error {
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/reviews", owner, repoName, prNumber)
	return c.do(ctx, http.MethodPost, path, reviewRequest{Body: message, Event: "APPROVE"}, nil)
}

// RequestChanges submits a REQUEST_CHANGES review.
func (c *GitHubClient) RequestChanges(ctx context.Context, owner, repoName string, prNumber int, message string) error {
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/reviews", owner, repoName, prNumber)
	return c.do(ctx, http.MethodPost, path, reviewRequest{Body: message, Event: "REQUEST_CHANGES"}, nil)
}

type pullResponse struct {
	Mergeable      *bool  `json:"mergeable"`
	MergeableState string `json:"mergeable_state"`
	Head           struct {
		SHA string `json:"sha"`
		Ref string `json:"ref"`
	} `json:"head"`
}

// Mergeable fetches the PR's current computed mergeable state. The
// caller (the merge executor) is responsible for the up-to-10x polling
// loop described in spec §4.5 — this call returns one snapshot.
func (c *GitHubClient) Mergeable(ctx context.Context, owner, repoName string, prNumber int) (MergeableState, error) {
	var resp pullResponse
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repoName, prNumber)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return MergeableState{}, err
	}

	if resp.Mergeable == nil {
		return MergeableState{Known: false}, nil
	}

	return MergeableState{
		Known:          true,
		Mergeable:      *resp.Mergeable,
		MergeableState: resp.MergeableState,
		HeadSHA:        resp.Head.SHA,
	}, nil
}

// UpdateBranch triggers GitHub's update-branch endpoint, the REST
// equivalent of rebasing the PR onto its base.
func (c *GitHubClient) UpdateBranch(ctx context.Context, owner, repoName string, prNumber int) error {
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/update-branch", owner, repoName, prNumber)
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

type combinedStatusResponse struct {
	State    string `json:"state"`
	Statuses []struct {
		State   string `json:"state"`
		Context string `json:"context"`
	} `json:"statuses"`
}

type checkRun struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
}

type checkRunsResponse struct {
	CheckRuns []checkRun `json:"check_runs"`
}

// CombinedStatus reduces the commit's combined status plus check runs to
// a pass/fail verdict: any non-success conclusion that is not "skipped"
// or "neutral" blocks, mirroring the original merge executor exactly.
func (c *GitHubClient) CombinedStatus(ctx context.Context, owner, repoName, commitSHA string) (CIStatus, error) {
	var combined combinedStatusResponse
	statusPath := fmt.Sprintf("/repos/%s/%s/commits/%s/status", owner, repoName, commitSHA)
	if err := c.do(ctx, http.MethodGet, statusPath, nil, &combined); err != nil {
		return CIStatus{}, err
	}

	switch combined.State {
	case "pending":
		return CIStatus{Passed: false, Reason: "CI checks still running"}, nil
	case "failure":
		var failed []string
		for _, s := range combined.Statuses {
			if s.State == "failure" {
				failed = append(failed, s.Context)
			}
		}
		return CIStatus{Passed: false, Reason: fmt.Sprintf("CI checks failed: %v", failed)}, nil
	case "error":
		return CIStatus{Passed: false, Reason: "CI checks errored"}, nil
	}

	var runs checkRunsResponse
	runsPath := fmt.Sprintf("/repos/%s/%s/commits/%s/check-runs", owner, repoName, commitSHA)
	if err := c.do(ctx, http.MethodGet, runsPath, nil, &runs); err != nil {
		return CIStatus{}, err
	}

	for _, run := range runs.CheckRuns {
		if run.Conclusion == "success" || run.Conclusion == "skipped" || run.Conclusion == "neutral" {
			continue
		}
		if run.Status == "in_progress" {
			return CIStatus{Passed: false, Reason: fmt.Sprintf("Check %q still running", run.Name)}, nil
		}
		return CIStatus{Passed: false, Reason: fmt.Sprintf("Check %q failed: %s", run.Name, run.Conclusion)}, nil
	}

	return CIStatus{Passed: true, Reason: "All checks passed"}, nil
}

type mergeRequest struct {
	CommitMessage string `json:"commit_message,omitempty"`
	MergeMethod   string `json:"merge_method"`
}

type mergeResponse struct {
	SHA     string `json:"sha"`
	Merged  bool   `json:"merged"`
	Message string `json:"message"`
}

// Merge performs the merge and returns the merge commit SHA.
func (c *GitHubClient) Merge(ctx context.Context, owner, repoName string, prNumber int, method, commitMessage string) (string, error) {
	var resp mergeResponse
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/merge", owner, repoName, prNumber)
	req := mergeRequest{CommitMessage: commitMessage, MergeMethod: method}
	if err := c.do(ctx, http.MethodPut, path, req, &resp); err != nil {
		return "", err
	}
	if !resp.Merged {
		return "", fmt.Errorf("merge not completed: %s", resp.Message)
	}
	return resp.SHA, nil
}

// DeleteBranch deletes the given ref. Failures are not fatal to the
// caller — branch deletion is best-effort cleanup, mirroring the
// original tool's swallow-and-continue behavior.
func (c *GitHubClient) DeleteBranch(ctx context.Context, owner, repoName, branch string) error {
	path := fmt.Sprintf("/repos/%s/%s/git/refs/heads/%s", owner, repoName, branch)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

var _ Client = (*GitHubClient)(nil)
