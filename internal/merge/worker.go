// Package merge implements the background merge worker: it claims queued
// MergeJobs and executes the rebase/merge/squash git strategies in the
// repository's local checkout (repo.LocalPath), grounded on the teacher's worktree manager for git
// invocation style but built around the shared subprocess contract (§4.4,
// §4.7).
package merge

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/eventlog"
	"github.com/openclaw/openclaw/internal/logger"
	"github.com/openclaw/openclaw/internal/store"
	"github.com/openclaw/openclaw/pkg/subprocess"
)

// Config controls the worker's poll cadence and git timeout.
type Config struct {
	PollIntervalSeconds int
	GitTimeoutSeconds   int
}

func DefaultConfig() Config {
	return Config{PollIntervalSeconds: 5, GitTimeoutSeconds: 60}
}

// Worker runs the background loop described in §4.7.
type Worker struct {
	store store.Store
	cfg   Config
	log   *logger.Logger
}

func NewWorker(st store.Store, cfg Config, log *logger.Logger) *Worker {
	if log == nil {
		log = logger.Default()
	}
	return &Worker{store: st, cfg: cfg, log: log.WithFields(zap.String("component", "merge-worker"))}
}

// Run blocks, polling for queued jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	interval := time.Duration(w.cfg.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for {
				claimed, err := w.claimAndRun(ctx)
				if err != nil {
					w.log.Error("merge worker tick failed", zap.Error(err))
					break
				}
				if !claimed {
					break
				}
			}
		}
	}
}

// claimAndRun claims one queued job and executes it; returns false if none
// was queued.
func (w *Worker) claimAndRun(ctx context.Context) (bool, error) {
	job, err := w.store.MergeJobs().ClaimNextQueued(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	err = w.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := w.store.Events().Append(ctx, tx, taskStream(job.TaskID), "merge.started", map[string]any{
			"job_id": job.ID, "task_id": job.TaskID, "strategy": string(job.Strategy),
		}, nil)
		return err
	})
	if err != nil {
		w.log.Warn("append merge.started failed", zap.Error(err))
	}

	w.execute(ctx, job)
	return true, nil
}

func (w *Worker) execute(ctx context.Context, job *domain.MergeJob) {
	task, err := w.store.Tasks().Get(ctx, job.TaskID)
	if err != nil {
		w.fail(ctx, job, nil, "task not found: "+err.Error())
		return
	}
	repo, err := w.store.Repositories().Get(ctx, job.RepoID)
	if err != nil {
		w.fail(ctx, job, task, "repository not found: "+err.Error())
		return
	}

	path := repo.LocalPath
	var res subprocess.Result

	switch job.Strategy {
	case domain.MergeStrategyRebase:
		res, err = w.runRebase(ctx, path, task.Branch, repo.DefaultBranch)
	case domain.MergeStrategyMerge:
		res, err = w.runMerge(ctx, path, task.Branch, repo.DefaultBranch)
	case domain.MergeStrategySquash:
		res, err = w.runSquash(ctx, path, task.Branch, repo.DefaultBranch)
	default:
		w.fail(ctx, job, task, "unknown merge strategy: "+string(job.Strategy))
		return
	}

	if err != nil {
		w.fail(ctx, job, task, err.Error())
		return
	}
	if res.ExitCode != 0 {
		w.fail(ctx, job, task, strings.TrimSpace(res.Stderr))
		return
	}

	sha, err := w.headSHA(ctx, path)
	if err != nil {
		w.fail(ctx, job, task, "read HEAD failed: "+err.Error())
		return
	}

	w.succeed(ctx, job, task, sha)
}

func (w *Worker) runRebase(ctx context.Context, dir, taskBranch, defaultBranch string) (subprocess.Result, error) {
	if res, err := w.git(ctx, dir, "checkout", taskBranch); err != nil || res.ExitCode != 0 {
		return res, err
	}
	if res, err := w.git(ctx, dir, "rebase", "--onto", defaultBranch, defaultBranch, taskBranch); err != nil || res.ExitCode != 0 {
		_, _ = w.git(ctx, dir, "rebase", "--abort")
		return res, err
	}
	if res, err := w.git(ctx, dir, "checkout", defaultBranch); err != nil || res.ExitCode != 0 {
		return res, err
	}
	return w.git(ctx, dir, "merge", "--ff-only", taskBranch)
}

func (w *Worker) runMerge(ctx context.Context, dir, taskBranch, defaultBranch string) (subprocess.Result, error) {
	if res, err := w.git(ctx, dir, "checkout", defaultBranch); err != nil || res.ExitCode != 0 {
		return res, err
	}
	msg := "Merge '" + taskBranch + "' into " + defaultBranch
	res, err := w.git(ctx, dir, "merge", "--no-ff", "-m", msg, taskBranch)
	if err != nil || res.ExitCode != 0 {
		_, _ = w.git(ctx, dir, "merge", "--abort")
	}
	return res, err
}

func (w *Worker) runSquash(ctx context.Context, dir, taskBranch, defaultBranch string) (subprocess.Result, error) {
	if res, err := w.git(ctx, dir, "checkout", defaultBranch); err != nil || res.ExitCode != 0 {
		return res, err
	}
	res, err := w.git(ctx, dir, "merge", "--squash", taskBranch)
	if err != nil || res.ExitCode != 0 {
		_, _ = w.git(ctx, dir, "merge", "--abort")
		return res, err
	}
	return w.git(ctx, dir, "commit", "-m", "Squash merge: "+taskBranch)
}

func (w *Worker) headSHA(ctx context.Context, dir string) (string, error) {
	res, err := w.git(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", &shaError{res.Stderr}
	}
	return strings.TrimSpace(res.Stdout), nil
}

type shaError struct{ msg string }

func (e *shaError) Error() string { return "rev-parse HEAD: " + e.msg }

func (w *Worker) git(ctx context.Context, dir string, args ...string) (subprocess.Result, error) {
	return subprocess.Run(ctx, subprocess.Spec{
		Command:          append([]string{"git"}, args...),
		WorkingDirectory: dir,
		TimeoutSeconds:   w.cfg.GitTimeoutSeconds,
	})
}

func (w *Worker) succeed(ctx context.Context, job *domain.MergeJob, task *domain.Task, sha string) {
	now := time.Now()
	job.Status = domain.MergeJobStatusSuccess
	job.MergeCommit = sha
	job.CompletedAt = &now

	err := w.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := w.store.MergeJobs().Update(ctx, tx, job); err != nil {
			return err
		}
		task.Status = domain.TaskStatusDone
		task.CompletedAt = &now
		if err := w.store.Tasks().Update(ctx, tx, task); err != nil {
			return err
		}
		_, err := w.store.Events().Append(ctx, tx, taskStream(task.ID), "merge.completed", map[string]any{
			"job_id": job.ID, "task_id": task.ID, "merge_commit": sha,
		}, nil)
		return err
	})
	if err != nil {
		w.log.Error("failed to commit merge success", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (w *Worker) fail(ctx context.Context, job *domain.MergeJob, task *domain.Task, reason string) {
	job.Status = domain.MergeJobStatusFailed
	job.Error = reason

	err := w.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := w.store.MergeJobs().Update(ctx, tx, job); err != nil {
			return err
		}
		if task != nil {
			task.Status = domain.TaskStatusInProgress
			if err := w.store.Tasks().Update(ctx, tx, task); err != nil {
				return err
			}
		}
		stream := mergeStream(job.ID)
		if task != nil {
			stream = taskStream(task.ID)
		}
		_, err := w.store.Events().Append(ctx, tx, stream, "merge.failed", map[string]any{
			"job_id": job.ID, "task_id": job.TaskID, "error": reason,
		}, nil)
		return err
	})
	if err != nil {
		w.log.Error("failed to commit merge failure", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func mergeStream(jobID string) string { return "merge:" + jobID }
func taskStream(taskID int64) string  { return eventlog.TaskStream(taskID) }
