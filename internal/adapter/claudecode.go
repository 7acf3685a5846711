package adapter

import (
	"context"
	"strconv"
)

// ClaudeCodeAdapter drives the `claude` CLI in non-interactive mode,
// passing the prompt on the command line and the MCP tool-bridge via
// --mcp-server, grounded on the teacher's claude_code_adapter.go command
// construction but collapsed to a single-shot subprocess run instead of a
// long-lived streaming session.
type ClaudeCodeAdapter struct {
	Binary string
}

func NewClaudeCodeAdapter() *ClaudeCodeAdapter {
	return &ClaudeCodeAdapter{Binary: "claude"}
}

func (a *ClaudeCodeAdapter) Name() string { return "claude-code" }

func (a *ClaudeCodeAdapter) ValidateEnvironment() (bool, string) {
	return lookPath(a.Binary)
}

func (a *ClaudeCodeAdapter) BuildPrompt(in PromptInput) string {
	return BuildPrompt(in.Role, in)
}

func (a *ClaudeCodeAdapter) Run(ctx context.Context, prompt string, cfg Config) (Result, error) {
	command := []string{a.Binary, "-p", prompt, "--output-format", "text"}
	if len(cfg.MCPServerCommand) > 0 {
		command = append(command, "--mcp-server", joinArgs(cfg.MCPServerCommand))
	}
	if cfg.TaskID != nil {
		command = append(command, "--append-system-prompt", "task_id="+strconv.FormatInt(*cfg.TaskID, 10))
	}
	return RunViaSubprocess(ctx, command, cfg)
}

func joinArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}
