package agent

import (
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	claudeagent "github.com/roasbeef/claude-agent-sdk-go"
	"github.com/stretchr/testify/require"
)

func TestDefaultSpawnConfig(t *testing.T) {
	cfg := DefaultSpawnConfig()

	require.Equal(t, "claude", cfg.CLIPath)
	require.Equal(t, "claude-sonnet-4-5-20250929", cfg.Model)
	require.Equal(t, 5*time.Minute, cfg.Timeout)
}

func TestSpawnerBuildClientOptions(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *SpawnConfig
		expectedLen int
	}{
		{
			name:        "default config",
			cfg:         DefaultSpawnConfig(),
			expectedLen: 1, // Just model.
		},
		{
			name: "with custom CLI path",
			cfg: &SpawnConfig{
				CLIPath: "/custom/claude",
				Model:   "claude-sonnet-4-5-20250929",
			},
			expectedLen: 2,
		},
		{
			name: "with work dir",
			cfg: &SpawnConfig{
				Model:   "claude-sonnet-4-5-20250929",
				WorkDir: "/tmp/work",
			},
			expectedLen: 2,
		},
		{
			name: "with allowed tools and an in-process server",
			cfg: &SpawnConfig{
				Model:        "claude-sonnet-4-5-20250929",
				AllowedTools: []string{"mcp__review__store_issue"},
				InProcessServers: map[string]*mcp.Server{
					"review": mcp.NewServer(&mcp.Implementation{Name: "review"}, nil),
				},
			},
			expectedLen: 3,
		},
		{
			name: "full config",
			cfg: &SpawnConfig{
				CLIPath:                         "/custom/claude",
				Model:                           "claude-opus-4-5-20251101",
				WorkDir:                         "/tmp/work",
				SystemPrompt:                    "Test prompt",
				MaxTurns:                        5,
				PermissionMode:                  claudeagent.PermissionModeAcceptEdits,
				AllowDangerouslySkipPermissions: true,
				NoSessionPersistence:            true,
				AllowedTools:                    []string{"Edit", "Read"},
			},
			expectedLen: 9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spawner := NewSpawner(tt.cfg)
			opts := spawner.buildClientOptions()
			require.Len(t, opts, tt.expectedLen)
		})
	}
}

func TestNewSpawnerWithNilConfig(t *testing.T) {
	spawner := NewSpawner(nil)
	require.NotNil(t, spawner.cfg)
	require.Equal(t, "claude", spawner.cfg.CLIPath)
}

func TestSpawnResponse(t *testing.T) {
	resp := SpawnResponse{
		Result:     "Hello, world!",
		SessionID:  "abc123",
		CostUSD:    0.05,
		DurationMS: 1500,
		NumTurns:   3,
	}

	require.Equal(t, "Hello, world!", resp.Result)
	require.Equal(t, "abc123", resp.SessionID)
	require.False(t, resp.IsError)
}

func TestSpawnResponseError(t *testing.T) {
	resp := SpawnResponse{
		SessionID: "xyz789",
		IsError:   true,
		Error:     "Something went wrong",
	}

	require.True(t, resp.IsError)
	require.Equal(t, "Something went wrong", resp.Error)
}
