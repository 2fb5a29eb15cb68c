// Package agent wraps the Claude Agent SDK into the single run_agent
// operation the rest of the pipeline depends on: given a system prompt, a
// user prompt, a set of tool servers, an allow-list of tool names, and a
// turn cap, run one agent session and return its result. The agent runtime
// itself is an external collaborator; this package is a thin, typed
// adapter around it.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	claudeagent "github.com/roasbeef/claude-agent-sdk-go"
)

// SpawnConfig configures one agent session.
type SpawnConfig struct {
	// CLIPath is the path to the claude CLI binary.
	CLIPath string

	// Model specifies which Claude model to use.
	Model string

	// WorkDir sandboxes the session to a single checkout; the fix-agent
	// contract requires this to be set to the PR's working directory.
	WorkDir string

	// SystemPrompt is the system prompt for the session.
	SystemPrompt string

	// MaxTurns bounds the number of tool-use turns the agent may take.
	// The session also terminates early if the agent declares completion.
	MaxTurns int

	// PermissionMode controls tool execution permissions. The fix stage
	// uses "acceptEdits"; review stages need no file-mutating permission.
	PermissionMode claudeagent.PermissionMode

	// AllowDangerouslySkipPermissions enables bypassing permissions.
	AllowDangerouslySkipPermissions bool

	// NoSessionPersistence disables session saving.
	NoSessionPersistence bool

	// ConfigDir isolates the session's config directory (used by tests).
	ConfigDir string

	// AllowedTools is the allow-list of tool names the session may call,
	// e.g. "mcp__review__store_issue" or "Edit".
	AllowedTools []string

	// InProcessServers are MCP servers implemented in this process,
	// keyed by the name they are registered under (e.g. "review",
	// "validate"). Used for the store_issue / store_verdict tools.
	InProcessServers map[string]*mcp.Server

	// StdioServers are external MCP servers launched as subprocesses,
	// keyed by server name, e.g. the sequential-thinking helper.
	StdioServers map[string]StdioServerConfig

	// SSEServers are external MCP servers reachable over HTTP/SSE, keyed
	// by server name, e.g. a library-documentation lookup service.
	SSEServers map[string]string

	// Timeout bounds the whole session.
	Timeout time.Duration
}

// StdioServerConfig describes an external MCP server launched as a
// subprocess.
type StdioServerConfig struct {
	Command string
	Args    []string
}

// DefaultSpawnConfig returns the default spawn configuration.
func DefaultSpawnConfig() *SpawnConfig {
	return &SpawnConfig{
		CLIPath: "claude",
		Model:   "claude-sonnet-4-5-20250929",
		Timeout: 5 * time.Minute,
	}
}

// SpawnResponse contains the result of one agent session.
type SpawnResponse struct {
	Result     string
	SessionID  string
	CostUSD    float64
	DurationMS int64
	NumTurns   int
	Error      string
	IsError    bool
	Usage      *claudeagent.NonNullableUsage
}

// Spawner runs agent sessions against the Claude Agent SDK.
type Spawner struct {
	cfg *SpawnConfig
}

// NewSpawner creates a new agent spawner.
func NewSpawner(cfg *SpawnConfig) *Spawner {
	if cfg == nil {
		cfg = DefaultSpawnConfig()
	}
	return &Spawner{cfg: cfg}
}

// buildClientOptions constructs the SDK client options from config.
func (s *Spawner) buildClientOptions() []claudeagent.Option {
	opts := []claudeagent.Option{
		claudeagent.WithModel(s.cfg.Model),
	}

	if s.cfg.CLIPath != "" && s.cfg.CLIPath != "claude" {
		opts = append(opts, claudeagent.WithCLIPath(s.cfg.CLIPath))
	}
	if s.cfg.WorkDir != "" {
		opts = append(opts, claudeagent.WithCwd(s.cfg.WorkDir))
	}
	if s.cfg.SystemPrompt != "" {
		opts = append(opts, claudeagent.WithSystemPrompt(s.cfg.SystemPrompt))
	}
	if s.cfg.MaxTurns > 0 {
		opts = append(opts, claudeagent.WithMaxTurns(s.cfg.MaxTurns))
	}
	if s.cfg.PermissionMode != "" {
		opts = append(opts, claudeagent.WithPermissionMode(s.cfg.PermissionMode))
	}
	if s.cfg.AllowDangerouslySkipPermissions {
		opts = append(opts, claudeagent.WithAllowDangerouslySkipPermissions(true))
	}
	if s.cfg.NoSessionPersistence {
		opts = append(opts, claudeagent.WithNoSessionPersistence())
	}
	if s.cfg.ConfigDir != "" {
		opts = append(opts, claudeagent.WithConfigDir(s.cfg.ConfigDir))
	}
	if len(s.cfg.AllowedTools) > 0 {
		opts = append(opts, claudeagent.WithAllowedTools(s.cfg.AllowedTools))
	}
	for name, srv := range s.cfg.InProcessServers {
		opts = append(opts, claudeagent.WithMCPServer(name, srv))
	}
	for name, stdio := range s.cfg.StdioServers {
		opts = append(opts, claudeagent.WithMCPServerCommand(
			name, stdio.Command, stdio.Args...,
		))
	}
	for name, url := range s.cfg.SSEServers {
		opts = append(opts, claudeagent.WithMCPServerURL(name, url))
	}

	return opts
}

// Run executes one agent session and returns its result. This is the
// run_agent operation: the caller has already registered whatever tool
// servers it needs on the Spawner's config before calling Run.
func (s *Spawner) Run(ctx context.Context, userPrompt string) (*SpawnResponse, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	opts := s.buildClientOptions()

	client, err := claudeagent.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create claude client: %w", err)
	}
	defer client.Close()

	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to claude CLI: %w", err)
	}

	var response SpawnResponse
	var lastAssistant claudeagent.AssistantMessage

	for msg := range client.Query(ctx, userPrompt) {
		switch m := msg.(type) {
		case claudeagent.AssistantMessage:
			lastAssistant = m
			response.SessionID = m.SessionID

		case claudeagent.ResultMessage:
			response.Result = m.Result
			response.SessionID = m.SessionID
			response.CostUSD = m.TotalCostUSD
			response.DurationMS = m.DurationMs
			response.NumTurns = m.NumTurns
			response.IsError = m.IsError
			response.Usage = m.Usage

			if m.IsError && len(m.Errors) > 0 {
				response.Error = m.Errors[0]
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return &response, fmt.Errorf("agent session: %w", err)
	}

	if response.Result == "" && lastAssistant.MessageType() != "" {
		response.Result = lastAssistant.ContentText()
	}

	return &response, nil
}
