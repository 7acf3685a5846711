// Package worktree manages per-task git worktree checkouts, grounded on the
// teacher's agent worktree manager but trimmed to match this system's model:
// a worktree is not a persisted entity, only a filesystem projection of
// Task.branch under <repo.local_path>/.worktrees/<branch>/ (§6).
package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/logger"
	"github.com/openclaw/openclaw/pkg/subprocess"
)

var (
	ErrRepoNotGit        = fmt.Errorf("worktree: repository path is not a git repository")
	ErrInvalidBaseBranch = fmt.Errorf("worktree: base branch does not exist")
	ErrGitCommandFailed  = fmt.Errorf("worktree: git command failed")
)

// Manager creates and removes worktrees, serialising git operations per
// repository path since `git worktree` mutates shared repo-level state.
type Manager struct {
	log            *logger.Logger
	gitTimeoutSecs int

	repoLockMu sync.Mutex
	repoLocks  map[string]*sync.Mutex
}

func NewManager(log *logger.Logger, gitTimeoutSecs int) *Manager {
	if log == nil {
		log = logger.Default()
	}
	if gitTimeoutSecs <= 0 {
		gitTimeoutSecs = 60
	}
	return &Manager{
		log:            log.WithFields(zap.String("component", "worktree-manager")),
		gitTimeoutSecs: gitTimeoutSecs,
		repoLocks:      make(map[string]*sync.Mutex),
	}
}

func (m *Manager) lockFor(repoPath string) *sync.Mutex {
	m.repoLockMu.Lock()
	defer m.repoLockMu.Unlock()
	l, ok := m.repoLocks[repoPath]
	if !ok {
		l = &sync.Mutex{}
		m.repoLocks[repoPath] = l
	}
	return l
}

// Path returns the worktree directory for a task's branch under repo.
func Path(repo *domain.Repository, task *domain.Task) string {
	return filepath.Join(repo.LocalPath, ".worktrees", task.Branch)
}

// Ensure creates the worktree for task/repo if it doesn't already exist,
// branching from repo.DefaultBranch, and returns its path.
func (m *Manager) Ensure(ctx context.Context, repo *domain.Repository, task *domain.Task) (string, error) {
	path := Path(repo, task)

	if m.isValid(path) {
		return path, nil
	}

	if !m.isGitRepo(repo.LocalPath) {
		return "", ErrRepoNotGit
	}
	if !m.branchExists(ctx, repo.LocalPath, repo.DefaultBranch) {
		return "", fmt.Errorf("%w: %s", ErrInvalidBaseBranch, repo.DefaultBranch)
	}

	lock := m.lockFor(repo.LocalPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create worktree parent dir: %w", err)
	}

	res, err := m.git(ctx, repo.LocalPath, "worktree", "add", "-b", task.Branch, path, repo.DefaultBranch)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		if strings.Contains(res.Stderr, "already exists") {
			res, err = m.git(ctx, repo.LocalPath, "worktree", "add", path, task.Branch)
			if err != nil {
				return "", err
			}
		}
		if res.ExitCode != 0 {
			m.log.Error("git worktree add failed", zap.String("stderr", res.Stderr), zap.String("branch", task.Branch))
			return "", fmt.Errorf("%w: %s", ErrGitCommandFailed, res.Stderr)
		}
	}

	m.log.Info("created worktree", zap.Int64("task_id", task.ID), zap.String("path", path), zap.String("branch", task.Branch))
	return path, nil
}

// Remove deletes the worktree directory and prunes stale git metadata.
func (m *Manager) Remove(ctx context.Context, repo *domain.Repository, task *domain.Task) error {
	path := Path(repo, task)

	lock := m.lockFor(repo.LocalPath)
	lock.Lock()
	defer lock.Unlock()

	res, err := m.git(ctx, repo.LocalPath, "worktree", "remove", "--force", path)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		m.log.Warn("git worktree remove failed, falling back to rm -rf", zap.String("stderr", res.Stderr))
		if err := os.RemoveAll(path); err != nil {
			return err
		}
		_, _ = m.git(ctx, repo.LocalPath, "worktree", "prune")
	}
	return nil
}

func (m *Manager) isValid(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	content, err := os.ReadFile(filepath.Join(path, ".git"))
	if err != nil {
		return false
	}
	return strings.HasPrefix(string(content), "gitdir:")
}

func (m *Manager) isGitRepo(path string) bool {
	info, err := os.Stat(filepath.Join(path, ".git"))
	if err != nil {
		return false
	}
	return info.IsDir() || info.Mode().IsRegular()
}

func (m *Manager) branchExists(ctx context.Context, repoPath, branch string) bool {
	res, err := m.git(ctx, repoPath, "rev-parse", "--verify", branch)
	return err == nil && res.ExitCode == 0
}

func (m *Manager) git(ctx context.Context, dir string, args ...string) (subprocess.Result, error) {
	return subprocess.Run(ctx, subprocess.Spec{
		Command:          append([]string{"git"}, args...),
		WorkingDirectory: dir,
		TimeoutSeconds:   m.gitTimeoutSecs,
	})
}
