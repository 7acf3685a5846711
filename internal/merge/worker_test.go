package merge_test

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/merge"
	"github.com/openclaw/openclaw/internal/store"
	"github.com/openclaw/openclaw/internal/store/memory"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(dir+"/"+name, []byte(content), 0644))
}

// setupTaskBranchRepo creates a repo on "main" with a commit, then a
// divergent "task" branch with its own commit, so a merge strategy has
// real work to do.
func setupTaskBranchRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	runGit(t, dir, "init", "--initial-branch=main")
	runGit(t, dir, "config", "user.email", "test@test.com")
	runGit(t, dir, "config", "user.name", "Test User")

	writeFile(t, dir, "README.md", "# repo\n")
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "initial commit")

	runGit(t, dir, "checkout", "-b", "task-branch")
	writeFile(t, dir, "feature.txt", "feature work\n")
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "add feature")
	runGit(t, dir, "checkout", "main")

	return dir
}

func seedMergeJob(t *testing.T, st store.Store, repoPath string, strategy domain.MergeStrategy) (*domain.Task, *domain.MergeJob) {
	t.Helper()
	ctx := context.Background()

	task := &domain.Task{ID: 1, TeamID: "team-1", Title: "add feature", Status: domain.TaskStatusMerging, Branch: "task-branch"}
	repo := &domain.Repository{ID: "repo-1", TeamID: "team-1", Name: "repo", LocalPath: repoPath, DefaultBranch: "main"}
	job := &domain.MergeJob{ID: "job-1", TaskID: task.ID, RepoID: repo.ID, Status: domain.MergeJobStatusQueued, Strategy: strategy}

	require.NoError(t, st.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := st.Tasks().Create(ctx, tx, task); err != nil {
			return err
		}
		if err := st.Repositories().Create(ctx, tx, repo); err != nil {
			return err
		}
		return st.MergeJobs().Create(ctx, tx, job)
	}))
	return task, job
}

func TestMergeWorkerMergeStrategySucceeds(t *testing.T) {
	repoPath := setupTaskBranchRepo(t)
	st := memory.New()
	_, job := seedMergeJob(t, st, repoPath, domain.MergeStrategyMerge)

	w := merge.NewWorker(st, merge.Config{PollIntervalSeconds: 1, GitTimeoutSeconds: 10}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = w.Run(ctx)
	}()
	defer cancel()

	waitForMergeJobDone(t, st, job.ID)

	updated, err := st.MergeJobs().Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, domain.MergeJobStatusSuccess, updated.Status)
	require.NotEmpty(t, updated.MergeCommit)

	task, err := st.Tasks().Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, domain.TaskStatusDone, task.Status)
}

func TestMergeWorkerUnknownStrategyFails(t *testing.T) {
	repoPath := setupTaskBranchRepo(t)
	st := memory.New()
	_, job := seedMergeJob(t, st, repoPath, domain.MergeStrategy("bogus"))

	w := merge.NewWorker(st, merge.Config{PollIntervalSeconds: 1, GitTimeoutSeconds: 10}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = w.Run(ctx)
	}()
	defer cancel()

	waitForMergeJobDone(t, st, job.ID)

	updated, err := st.MergeJobs().Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, domain.MergeJobStatusFailed, updated.Status)
	require.Contains(t, updated.Error, "unknown merge strategy")
}

func waitForMergeJobDone(t *testing.T, st store.Store, jobID string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := st.MergeJobs().Get(context.Background(), jobID)
		require.NoError(t, err)
		if job.Status != domain.MergeJobStatusQueued {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("merge job never left queued state")
}
