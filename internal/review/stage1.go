package review

import (
	"context"
	"fmt"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/roasbeef/prreview/internal/agent"
	"github.com/roasbeef/prreview/internal/mcp"
)

// thinkingServerCommand launches the sequential-thinking helper the
// identify stage uses to reason through a hunk before committing to an
// issue.
var thinkingServerCommand = agent.StdioServerConfig{
	Command: "npx",
	Args:    []string{"-y", "@modelcontextprotocol/server-sequential-thinking"},
}

// IdentifyIssues runs one Stage 1 agent session over a block of formatted
// hunks and returns every PotentialIssue it recorded. base supplies the
// ambient session settings (CLI path, working directory, config dir) that
// are the same across every stage; cfg supplies the stage-specific model,
// turn budget, and timeout. Malformed records (unrecognized severity or
// issue_kind) are dropped with a logged warning rather than failing the
// whole call — Stage 1 is a recall pass, and one bad tool call should not
// sink the rest.
func IdentifyIssues(ctx context.Context, base *agent.SpawnConfig, hunksText string, cfg Stage1Config) ([]PotentialIssue, error) {
	server, collector := mcp.NewIssueCollectorServer("review")

	spawnCfg := cloneSpawnConfig(base)
	spawnCfg.Model = cfg.Model
	spawnCfg.MaxTurns = cfg.MaxTurns
	spawnCfg.Timeout = cfg.Timeout
	spawnCfg.SystemPrompt = Stage1SystemPrompt
	spawnCfg.PermissionMode = "acceptEdits"
	spawnCfg.AllowedTools = []string{
		"mcp__review__store_issue",
		"mcp__thinking__sequentialthinking",
	}
	spawnCfg.InProcessServers = map[string]*mcpsdk.Server{
		"review": server,
	}
	spawnCfg.StdioServers = map[string]agent.StdioServerConfig{
		"thinking": thinkingServerCommand,
	}

	userPrompt := fmt.Sprintf(stage1UserPromptTemplate, hunksText)

	runner := agent.NewSpawner(spawnCfg)
	if _, err := runner.Run(ctx, userPrompt); err != nil {
		return nil, fmt.Errorf("stage 1 identify session: %w", err)
	}

	raw := collector.Issues()
	issues := make([]PotentialIssue, 0, len(raw))

	for _, r := range raw {
		kind := IssueKind(r.IssueKind)
		if !validIssueKind(kind) {
			slog.Warn("dropping issue with unrecognized kind",
				"kind", r.IssueKind, "file", r.FilePath)
			continue
		}

		sev := Severity(r.Severity)
		if sev.Rank() < 0 {
			slog.Warn("dropping issue with unrecognized severity",
				"severity", r.Severity, "file", r.FilePath)
			continue
		}
		if !sev.AtLeast(cfg.MinSeverityToValidate) {
			continue
		}

		issues = append(issues, PotentialIssue{
			FilePath:    r.FilePath,
			LineStart:   r.LineStart,
			LineEnd:     r.LineEnd,
			Kind:        kind,
			Severity:    sev,
			Description: r.Description,
			CodeSnippet: r.CodeSnippet,
		})
	}

	return issues, nil
}

func validIssueKind(k IssueKind) bool {
	switch k {
	case IssueKindBug, IssueKindSecurity, IssueKindPerformance,
		IssueKindLogicError, IssueKindTypeError, IssueKindUnusedCode,
		IssueKindBestPractice:
		return true
	default:
		return false
	}
}

// cloneSpawnConfig copies the ambient fields of base into a fresh config,
// leaving the stage-specific fields (system prompt, tools, servers, model,
// turns, timeout) for the caller to overwrite. A nil base yields the SDK
// defaults.
func cloneSpawnConfig(base *agent.SpawnConfig) *agent.SpawnConfig {
	if base == nil {
		return agent.DefaultSpawnConfig()
	}

	cp := *base
	return &cp
}
