package fixloop

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roasbeef/prreview/internal/agent"
	"github.com/roasbeef/prreview/internal/review"
)

// fixSystemPrompt instructs the fix agent to make minimal changes. Whether
// a fix succeeded is never taken from the agent's own report: the caller
// decides it by comparing file contents before and after the session.
const fixSystemPrompt = "You are a senior developer. Fix code issues with minimal changes."

const fixPromptTemplate = `
You are a senior developer fixing a single code issue in this repository.

## Issue to Fix
- File: %s
- Lines: %d-%d
- Type: %s
- Severity: %s
- Description: %s

## Current Code
` + "```" + `
%s
` + "```" + `

## Mitigation Suggestion
%s

## Instructions
1. Use the Edit tool to fix this issue.
2. Make the minimal change that eliminates this specific issue — do not refactor, do not add comments.
3. Ensure the fix is correct and doesn't introduce new issues.

Fix this issue now.
`

// fixSingleIssue invokes a fix-agent session restricted to the Edit and
// Read tools, sandboxed to workDir, then determines success by comparing
// the target file's content before and after the session — never by the
// agent's self-report, since the agent is untrusted per §4.4.1.
func fixSingleIssue(ctx context.Context, base *agent.SpawnConfig, workDir string, issue review.ValidatedIssue) (bool, error) {
	absPath := issue.Issue.FilePath
	if workDir != "" {
		absPath = filepath.Join(workDir, issue.Issue.FilePath)
	}

	before, err := os.ReadFile(absPath)
	if err != nil {
		return false, fmt.Errorf("snapshot %s: %w", issue.Issue.FilePath, err)
	}

	mitigation := issue.Mitigation
	if mitigation == "" {
		mitigation = "Use best practices to fix this issue."
	}

	prompt := fmt.Sprintf(fixPromptTemplate,
		issue.Issue.FilePath, issue.Issue.LineStart, issue.Issue.LineEnd,
		issue.Issue.Kind, issue.Issue.Severity, issue.Issue.Description,
		issue.Issue.CodeSnippet, mitigation,
	)

	spawnCfg := cloneSpawnConfig(base)
	spawnCfg.WorkDir = workDir
	spawnCfg.SystemPrompt = fixSystemPrompt
	spawnCfg.AllowedTools = []string{"Edit", "Read"}
	spawnCfg.PermissionMode = "acceptEdits"
	if spawnCfg.MaxTurns == 0 {
		spawnCfg.MaxTurns = 10
	}

	runner := agent.NewSpawner(spawnCfg)
	if _, err := runner.Run(ctx, prompt); err != nil {
		return false, fmt.Errorf("fix session for %s: %w", issue.Issue.FilePath, err)
	}

	after, err := os.ReadFile(absPath)
	if err != nil {
		// The fix session may have legitimately renamed or removed the
		// file; treat an unreadable post-state as a change, not an error.
		return true, nil
	}

	return !bytes.Equal(before, after), nil
}

// cloneSpawnConfig copies the ambient fields of base into a fresh config.
// A nil base yields the SDK defaults.
func cloneSpawnConfig(base *agent.SpawnConfig) *agent.SpawnConfig {
	if base == nil {
		return agent.DefaultSpawnConfig()
	}
	cp := *base
	return &cp
}
