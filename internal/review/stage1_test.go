package review

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roasbeef/prreview/internal/agent"
)

func TestValidIssueKind(t *testing.T) {
	require.True(t, validIssueKind(IssueKindBug))
	require.True(t, validIssueKind(IssueKindSecurity))
	require.True(t, validIssueKind(IssueKindBestPractice))
	require.False(t, validIssueKind(IssueKind("made_up")))
	require.False(t, validIssueKind(IssueKind("")))
}

func TestCloneSpawnConfigNilBase(t *testing.T) {
	cfg := cloneSpawnConfig(nil)
	require.Equal(t, "claude", cfg.CLIPath)
}

func TestCloneSpawnConfigCopiesAmbientFields(t *testing.T) {
	base := &agent.SpawnConfig{
		CLIPath: "/custom/claude",
		WorkDir: "/tmp/pr-42",
	}
	cfg := cloneSpawnConfig(base)

	require.Equal(t, "/custom/claude", cfg.CLIPath)
	require.Equal(t, "/tmp/pr-42", cfg.WorkDir)

	// Mutating the clone must not mutate the original.
	cfg.WorkDir = "/tmp/other"
	require.Equal(t, "/tmp/pr-42", base.WorkDir)
}

func TestStage1UserPromptTemplateEmbedsHunks(t *testing.T) {
	hunks := "diff --git a/foo.go b/foo.go\n@@ -1,1 +1,1 @@\n-old\n+new\n"
	prompt := fmt.Sprintf(stage1UserPromptTemplate, hunks)

	require.Contains(t, prompt, hunks)
	require.Contains(t, prompt, "store_issue")
}
