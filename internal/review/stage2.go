package review

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/roasbeef/prreview/internal/agent"
	"github.com/roasbeef/prreview/internal/mcp"
)

// serenaServerCommand launches the semantic code-navigation helper the
// validate stage uses for codebase_search.
var serenaServerCommand = agent.StdioServerConfig{
	Command: "uvx",
	Args: []string{
		"--from", "git+https://github.com/oraios/serena",
		"serena", "start-mcp-server", "--context", "ide-assistant",
	},
}

// context7ServerURL is the SSE endpoint the validate stage uses for
// docs_lookup.
const context7ServerURL = "https://mcp.context7.com/mcp"

// ValidateIssue runs one Stage 2 agent session to confirm or refute a
// single PotentialIssue. If the session never calls store_verdict, the
// result is synthesized as inconclusive rather than treated as an error —
// a session that runs out of turns without reaching a verdict should not
// abort the whole validation pass.
func ValidateIssue(ctx context.Context, base *agent.SpawnConfig, issue PotentialIssue, cfg Stage2Config) (ValidatedIssue, error) {
	server, collector := mcp.NewVerdictCollectorServer("validate")

	spawnCfg := cloneSpawnConfig(base)
	spawnCfg.Model = cfg.Model
	spawnCfg.MaxTurns = cfg.MaxTurns
	spawnCfg.Timeout = cfg.Timeout
	spawnCfg.SystemPrompt = Stage2SystemPrompt
	spawnCfg.PermissionMode = "acceptEdits"
	spawnCfg.AllowedTools = []string{
		"mcp__validate__store_verdict",
		"mcp__serena__find_symbol",
		"mcp__serena__search_for_pattern",
		"mcp__context7__resolve-library-id",
		"mcp__context7__get-library-docs",
	}
	spawnCfg.InProcessServers = map[string]*mcpsdk.Server{
		"validate": server,
	}
	spawnCfg.StdioServers = map[string]agent.StdioServerConfig{
		"serena": serenaServerCommand,
	}
	spawnCfg.SSEServers = map[string]string{
		"context7": context7ServerURL,
	}

	userPrompt := fmt.Sprintf(stage2UserPromptTemplate,
		issue.FilePath, issue.LineStart, issue.LineEnd,
		issue.Kind, issue.Severity, issue.Description, issue.CodeSnippet,
	)

	runner := agent.NewSpawner(spawnCfg)
	if _, err := runner.Run(ctx, userPrompt); err != nil {
		return inconclusive(issue, fmt.Sprintf("Validation failed: %v", err)), nil
	}

	verdict := collector.Verdict()
	if verdict == nil {
		return inconclusive(issue, "Validation inconclusive"), nil
	}

	return ValidatedIssue{
		Issue:            issue,
		IsValid:          verdict.IsValid,
		Confidence:       verdict.Confidence,
		Evidence:         verdict.Evidence,
		LibraryReference: verdict.LibraryReference,
		Mitigation:       verdict.Mitigation,
	}, nil
}

// inconclusive builds the fallback ValidatedIssue used whenever a Stage 2
// session fails or never reaches a verdict. Treating an inconclusive
// result as "not valid" keeps the feedback loop from fixing an issue on
// unreliable evidence.
func inconclusive(issue PotentialIssue, reason string) ValidatedIssue {
	return ValidatedIssue{
		Issue:      issue,
		IsValid:    false,
		Confidence: 0.0,
		Evidence:   []string{reason},
	}
}

// ValidateIssues validates a batch of PotentialIssues and returns results
// in the same order as the input, regardless of mode. In parallel mode,
// up to cfg.MaxParallel sessions run concurrently via a buffered-channel
// semaphore; one issue's failure never blocks or fails the others. In
// sequential mode, issues validate one at a time in order.
func ValidateIssues(ctx context.Context, base *agent.SpawnConfig, issues []PotentialIssue, parallel bool, cfg Stage2Config) ([]ValidatedIssue, error) {
	results := make([]ValidatedIssue, len(issues))

	if !parallel {
		for i, issue := range issues {
			v, err := ValidateIssue(ctx, base, issue, cfg)
			if err != nil {
				v = inconclusive(issue, fmt.Sprintf("Validation failed: %v", err))
			}
			results[i] = v
		}
		return results, nil
	}

	maxParallel := cfg.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 1
	}
	sem := make(chan struct{}, maxParallel)

	type outcome struct {
		idx int
		v   ValidatedIssue
	}
	outcomes := make(chan outcome, len(issues))

	for i, issue := range issues {
		go func(idx int, issue PotentialIssue) {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				outcomes <- outcome{idx: idx, v: inconclusive(issue,
					fmt.Sprintf("Validation failed: %v", ctx.Err()))}
				return
			}

			v, err := ValidateIssue(ctx, base, issue, cfg)
			if err != nil {
				v = inconclusive(issue, fmt.Sprintf("Validation failed: %v", err))
			}
			outcomes <- outcome{idx: idx, v: v}
		}(i, issue)
	}

	for range issues {
		o := <-outcomes
		results[o.idx] = o.v
	}

	return results, nil
}
