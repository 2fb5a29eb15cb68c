// Package mcp builds the small, per-session MCP tool servers the review
// pipeline hands to agent sessions: store_issue for Stage 1 and
// store_verdict for Stage 2. Each server is constructed fresh for one
// session and backed by a collector owned by that call — there is no
// process-wide mutable state, so two sessions running concurrently never
// see each other's stored records.
package mcp

import (
	"context"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// StoreIssueArgs mirrors the PotentialIssue schema exactly; the agent
// populates one of these per store_issue call.
type StoreIssueArgs struct {
	FilePath    string `json:"file_path" jsonschema:"path of the file containing the issue, relative to the repo root"`
	LineStart   int    `json:"line_start" jsonschema:"first line of the issue, inclusive"`
	LineEnd     int    `json:"line_end" jsonschema:"last line of the issue, inclusive"`
	IssueKind   string `json:"issue_kind" jsonschema:"one of bug, security, performance, logic_error, type_error, unused_code, best_practice"`
	Severity    string `json:"severity" jsonschema:"one of low, medium, high, critical"`
	Description string `json:"description" jsonschema:"human-readable description of the issue"`
	CodeSnippet string `json:"code_snippet,omitempty" jsonschema:"the offending code, verbatim"`
}

// storeIssueResult is returned to the agent after each store_issue call
// so it can track how many issues it has recorded so far.
type storeIssueResult struct {
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// IssueCollector accumulates StoreIssueArgs for one Stage 1 session.
type IssueCollector struct {
	mu     sync.Mutex
	issues []StoreIssueArgs
}

// Issues returns a snapshot of everything stored so far.
func (c *IssueCollector) Issues() []StoreIssueArgs {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]StoreIssueArgs, len(c.issues))
	copy(out, c.issues)
	return out
}

// NewIssueCollectorServer returns a fresh MCP server exposing a single
// store_issue tool, plus the collector it writes into. Call this once per
// Stage 1 agent session.
func NewIssueCollectorServer(serverName string) (*mcp.Server, *IssueCollector) {
	collector := &IssueCollector{}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name: "store_issue",
		Description: "Record one potential issue found in the diff. Call " +
			"this once per issue; be aggressive, false positives are " +
			"filtered downstream.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args StoreIssueArgs) (
		*mcp.CallToolResult, storeIssueResult, error) {

		collector.mu.Lock()
		collector.issues = append(collector.issues, args)
		total := len(collector.issues)
		collector.mu.Unlock()

		return nil, storeIssueResult{
			Status: "stored",
			Total:  total,
		}, nil
	})

	return server, collector
}

// StoreVerdictArgs mirrors the ValidatedIssue verdict fields the agent
// fills in during Stage 2.
type StoreVerdictArgs struct {
	IsValid          bool     `json:"is_valid" jsonschema:"whether the issue is a real, actionable defect"`
	Evidence         []string `json:"evidence" jsonschema:"ordered list of evidence strings supporting the verdict"`
	LibraryReference string   `json:"library_reference,omitempty" jsonschema:"optional documentation reference"`
	Mitigation       string   `json:"mitigation,omitempty" jsonschema:"optional minimal-fix hint"`
	Confidence       float64  `json:"confidence" jsonschema:"confidence in [0.0, 1.0]"`
}

type storeVerdictResult struct {
	Status string `json:"status"`
}

// VerdictCollector holds the single verdict stored during one Stage 2
// session. Only the first call is kept, since a session validates exactly
// one issue; later calls are ignored and still receive a "stored" reply.
type VerdictCollector struct {
	mu      sync.Mutex
	verdict *StoreVerdictArgs
}

// Verdict returns the stored verdict, or nil if the session never called
// store_verdict.
func (c *VerdictCollector) Verdict() *StoreVerdictArgs {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verdict
}

// NewVerdictCollectorServer returns a fresh MCP server exposing a single
// store_verdict tool, plus the collector it writes into. Call this once
// per Stage 2 agent session.
func NewVerdictCollectorServer(serverName string) (*mcp.Server, *VerdictCollector) {
	collector := &VerdictCollector{}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name: "store_verdict",
		Description: "Record the validation verdict for the issue under " +
			"review. Call this exactly once, after gathering evidence.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args StoreVerdictArgs) (
		*mcp.CallToolResult, storeVerdictResult, error) {

		collector.mu.Lock()
		if collector.verdict == nil {
			collector.verdict = &args
		}
		collector.mu.Unlock()

		return nil, storeVerdictResult{Status: "stored"}, nil
	})

	return server, collector
}

// ErrNoVerdict reports that a session stored no verdict. Nothing in this
// module returns it: when the verdict is missing, Stage 2 synthesizes an
// inconclusive result rather than failing.
var ErrNoVerdict = fmt.Errorf("no verdict stored")
