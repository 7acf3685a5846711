package review

import (
	"context"
	"errors"

	"github.com/openclaw/openclaw/pkg/subprocess"
)

// ErrPRAutomationUnavailable signals that pull request creation was not
// attempted because no code-host API client is configured; pushing the
// branch still succeeds independently.
var ErrPRAutomationUnavailable = errors.New("review: pull request automation not configured")

// CodeHost is the best-effort push/PR automation surface request_review
// drives (§4.6). PushBranch is always available (it only needs git);
// CreatePullRequest is a pluggable hook for a concrete code-host API client.
type CodeHost interface {
	PushBranch(ctx context.Context, repoPath, branch string) error
	CreatePullRequest(ctx context.Context, repoPath, branch, baseBranch, title string) (prURL string, prNumber int, err error)
}

// GitCodeHost pushes via the git CLI and leaves PR creation unimplemented,
// since no code-host API client is wired into this build; callers treat
// ErrPRAutomationUnavailable as an expected best-effort failure.
type GitCodeHost struct {
	GitTimeoutSeconds int
}

func NewGitCodeHost(gitTimeoutSeconds int) *GitCodeHost {
	if gitTimeoutSeconds <= 0 {
		gitTimeoutSeconds = 60
	}
	return &GitCodeHost{GitTimeoutSeconds: gitTimeoutSeconds}
}

func (c *GitCodeHost) PushBranch(ctx context.Context, repoPath, branch string) error {
	res, err := subprocess.Run(ctx, subprocess.Spec{
		Command:          []string{"git", "push", "--force-with-lease", "origin", branch},
		WorkingDirectory: repoPath,
		TimeoutSeconds:   c.GitTimeoutSeconds,
	})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return errors.New("git push failed: " + res.Stderr)
	}
	return nil
}

func (c *GitCodeHost) CreatePullRequest(ctx context.Context, repoPath, branch, baseBranch, title string) (string, int, error) {
	return "", 0, ErrPRAutomationUnavailable
}
