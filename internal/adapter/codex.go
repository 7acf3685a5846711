package adapter

import "context"

// CodexAdapter drives the `codex` CLI in non-interactive exec mode,
// grounded on the teacher's codex_adapter.go environment-preparation
// pattern (writing MCP config ahead of the run) but collapsed to the
// single-shot subprocess contract.
type CodexAdapter struct {
	Binary string
}

func NewCodexAdapter() *CodexAdapter {
	return &CodexAdapter{Binary: "codex"}
}

func (a *CodexAdapter) Name() string { return "codex" }

func (a *CodexAdapter) ValidateEnvironment() (bool, string) {
	return lookPath(a.Binary)
}

func (a *CodexAdapter) BuildPrompt(in PromptInput) string {
	return BuildPrompt(in.Role, in)
}

func (a *CodexAdapter) Run(ctx context.Context, prompt string, cfg Config) (Result, error) {
	command := []string{a.Binary, "exec", prompt, "--full-auto"}
	return RunViaSubprocess(ctx, command, cfg)
}
