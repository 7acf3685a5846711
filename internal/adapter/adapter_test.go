package adapter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/openclaw/internal/adapter"
)

func TestRegistryResolvePrecedence(t *testing.T) {
	reg := adapter.NewRegistry("claude-code")

	a, err := reg.Resolve("codex", "claude-code")
	require.NoError(t, err)
	assert.Equal(t, "codex", a.Name(), "explicit override beats agent config")

	a, err = reg.Resolve("", "codex")
	require.NoError(t, err)
	assert.Equal(t, "codex", a.Name(), "agent config beats platform default")

	a, err = reg.Resolve("", "")
	require.NoError(t, err)
	assert.Equal(t, "claude-code", a.Name(), "falls back to platform default")
}

func TestRegistryResolveUnknownAdapterErrors(t *testing.T) {
	reg := adapter.NewRegistry("claude-code")
	_, err := reg.Resolve("nonexistent", "")
	assert.Error(t, err)
}

func TestBuildPromptDispatchesByRole(t *testing.T) {
	in := adapter.PromptInput{TaskTitle: "fix bug", AgentID: "agent-1", TeamID: "team-1", TaskID: 7}

	engineer := adapter.BuildPrompt("engineer", in)
	assert.Contains(t, engineer, "engineering agent")
	assert.Contains(t, engineer, "Task #7")

	manager := adapter.BuildPrompt("manager", in)
	assert.Contains(t, manager, "manager agent")
	assert.Contains(t, manager, "Decompose this task")

	reviewer := adapter.BuildPrompt("reviewer", in)
	assert.Contains(t, reviewer, "reviewer agent")
	assert.Contains(t, reviewer, "Submit a verdict")

	unknown := adapter.BuildPrompt("", in)
	assert.Contains(t, unknown, "engineering agent", "unrecognised role falls back to engineer")
}

func TestBuildEngineerPromptIncludesConventionsAndContext(t *testing.T) {
	in := adapter.PromptInput{
		TaskTitle: "add caching", AgentID: "agent-1", TeamID: "team-1", TaskID: 3,
		Conventions: []adapter.ConventionEntry{{Key: "lint", Content: "golangci-lint run"}},
		Context:     map[string]string{"db_schema": "see migrations/"},
	}
	prompt := adapter.BuildEngineerPrompt(in)
	assert.Contains(t, prompt, "lint: golangci-lint run")
	assert.Contains(t, prompt, "db_schema: see migrations/")
}

func TestAdapterNamesAreStable(t *testing.T) {
	assert.Equal(t, "claude-code", adapter.NewClaudeCodeAdapter().Name())
	assert.Equal(t, "codex", adapter.NewCodexAdapter().Name())
}
