// Package adapter defines the Adapter interface the Agent Runner drives to
// launch a concrete coding agent CLI as a subprocess, and the registry that
// resolves a named adapter (§4.4). Grounded on the teacher's
// agentctl/server/adapter package, trimmed from its streaming protocol
// model down to the single-shot subprocess contract this system needs.
package adapter

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/openclaw/openclaw/pkg/subprocess"
)

// Result is what Run returns after one subprocess invocation.
type Result struct {
	ExitCode        int
	Stdout          string
	Stderr          string
	DurationSeconds float64
	Error           string
}

// Config carries everything an Adapter needs to build its command line and
// environment for one run.
type Config struct {
	MCPServerCommand []string
	APIURL           string
	WorkingDirectory string
	AgentID          string
	TeamID           string
	TaskID           *int64
	TimeoutSeconds   int
	EnvOverrides     map[string]string
}

// PromptInput is everything a prompt builder needs; fields are blank when
// not applicable to a role.
type PromptInput struct {
	TaskTitle       string
	TaskDescription string
	AgentID         string
	TeamID          string
	TaskID          int64
	Role            string
	Conventions     []ConventionEntry
	Context         map[string]string
}

type ConventionEntry struct {
	Key     string
	Content string
}

// Adapter is the capability set every agent CLI integration implements.
type Adapter interface {
	Name() string
	ValidateEnvironment() (bool, string)
	BuildPrompt(in PromptInput) string
	Run(ctx context.Context, prompt string, cfg Config) (Result, error)
}

// RunViaSubprocess is the shared helper every Adapter.Run should delegate
// to: it merges env_overrides onto the process environment and runs
// command under the subprocess contract (spawn, wait-with-timeout, kill,
// reap, UTF-8 decode) so no adapter hand-rolls process management.
func RunViaSubprocess(ctx context.Context, command []string, cfg Config) (Result, error) {
	env := subprocess.MergeEnv(cfg.EnvOverrides)
	res, err := subprocess.Run(ctx, subprocess.Spec{
		Command:          command,
		WorkingDirectory: cfg.WorkingDirectory,
		Env:              env,
		TimeoutSeconds:   cfg.TimeoutSeconds,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{
		ExitCode: res.ExitCode, Stdout: res.Stdout, Stderr: res.Stderr,
		DurationSeconds: res.DurationSeconds, Error: res.Error,
	}, nil
}

// lookPath is a validate_environment helper shared by adapters that wrap a
// CLI binary.
func lookPath(bin string) (bool, string) {
	if _, err := exec.LookPath(bin); err != nil {
		return false, fmt.Sprintf("%s not found on PATH: %v", bin, err)
	}
	return true, ""
}
