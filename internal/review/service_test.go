package review_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/openclaw/internal/apperrors"
	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/message"
	"github.com/openclaw/openclaw/internal/review"
	"github.com/openclaw/openclaw/internal/store/memory"
	"github.com/openclaw/openclaw/internal/task"
)

func newTask(t *testing.T, taskSvc *task.Service, teamID string) *domain.Task {
	t.Helper()
	tsk, err := taskSvc.CreateTask(context.Background(), teamID, task.Draft{Title: "ship it"})
	require.NoError(t, err)
	return tsk
}

func TestRequestReviewNumbersAttemptsSequentially(t *testing.T) {
	st := memory.New()
	taskSvc := task.NewService(st, nil, nil)
	svc := review.NewService(st, taskSvc, nil, nil, nil)
	ctx := context.Background()

	tsk := newTask(t, taskSvc, "team-1")

	first, err := svc.RequestReview(ctx, tsk, "", domain.ActorTypeAgent)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Attempt)

	second, err := svc.RequestReview(ctx, tsk, "", domain.ActorTypeAgent)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Attempt)
}

func TestSubmitVerdictRequestChangesReturnsTaskToInProgress(t *testing.T) {
	st := memory.New()
	taskSvc := task.NewService(st, nil, nil)
	msgSvc := message.NewService(st, nil, nil)
	svc := review.NewService(st, taskSvc, msgSvc, nil, nil)
	ctx := context.Background()

	tsk := newTask(t, taskSvc, "team-1")
	tsk.AssigneeID = "agent-1"
	_, err := taskSvc.UpdateFields(ctx, tsk.ID, func(task *domain.Task) { task.AssigneeID = "agent-1" })
	require.NoError(t, err)

	_, err = taskSvc.ChangeStatus(ctx, tsk.ID, domain.TaskStatusInProgress, "")
	require.NoError(t, err)
	_, err = taskSvc.ChangeStatus(ctx, tsk.ID, domain.TaskStatusInReview, "")
	require.NoError(t, err)

	r, err := svc.RequestReview(ctx, tsk, "reviewer-1", domain.ActorTypeAgent)
	require.NoError(t, err)

	resolved, err := svc.SubmitVerdict(ctx, r.ID, domain.ReviewVerdictRequestChanges, "needs more tests")
	require.NoError(t, err)
	require.NotNil(t, resolved.Verdict)
	assert.Equal(t, domain.ReviewVerdictRequestChanges, *resolved.Verdict)

	updated, err := taskSvc.GetTask(ctx, tsk.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInProgress, updated.Status)
}

func TestSubmitVerdictTwiceFailsAlreadyResolved(t *testing.T) {
	st := memory.New()
	taskSvc := task.NewService(st, nil, nil)
	svc := review.NewService(st, taskSvc, nil, nil, nil)
	ctx := context.Background()

	tsk := newTask(t, taskSvc, "team-1")
	r, err := svc.RequestReview(ctx, tsk, "reviewer-1", domain.ActorTypeAgent)
	require.NoError(t, err)

	_, err = svc.SubmitVerdict(ctx, r.ID, domain.ReviewVerdictApprove, "lgtm")
	require.NoError(t, err)

	_, err = svc.SubmitVerdict(ctx, r.ID, domain.ReviewVerdictApprove, "lgtm again")
	require.Error(t, err)
	kind, ok := apperrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindAlreadyResolved, kind)
}

func TestCreateMergeJobRefusesWithoutApprovedVerdict(t *testing.T) {
	st := memory.New()
	taskSvc := task.NewService(st, nil, nil)
	svc := review.NewService(st, taskSvc, nil, nil, nil)
	ctx := context.Background()

	tsk := newTask(t, taskSvc, "team-1")
	_, err := svc.RequestReview(ctx, tsk, "reviewer-1", domain.ActorTypeAgent)
	require.NoError(t, err)

	_, err = svc.CreateMergeJob(ctx, tsk, "repo-1", domain.MergeStrategyMerge)
	require.Error(t, err)
	kind, ok := apperrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindValidation, kind)
}

func TestCreateMergeJobSucceedsAfterApproval(t *testing.T) {
	st := memory.New()
	taskSvc := task.NewService(st, nil, nil)
	svc := review.NewService(st, taskSvc, nil, nil, nil)
	ctx := context.Background()

	tsk := newTask(t, taskSvc, "team-1")
	r, err := svc.RequestReview(ctx, tsk, "reviewer-1", domain.ActorTypeAgent)
	require.NoError(t, err)
	_, err = svc.SubmitVerdict(ctx, r.ID, domain.ReviewVerdictApprove, "lgtm")
	require.NoError(t, err)

	job, err := svc.CreateMergeJob(ctx, tsk, "repo-1", domain.MergeStrategySquash)
	require.NoError(t, err)
	assert.Equal(t, domain.MergeJobStatusQueued, job.Status)
	assert.Equal(t, domain.MergeStrategySquash, job.Strategy)

	status, err := svc.MergeStatus(ctx, tsk.ID)
	require.NoError(t, err)
	assert.True(t, status.CanMerge)
	require.Len(t, status.MergeJobs, 1)
}

func TestPushBranchFailsWithoutCodeHost(t *testing.T) {
	st := memory.New()
	taskSvc := task.NewService(st, nil, nil)
	svc := review.NewService(st, taskSvc, nil, nil, nil)
	ctx := context.Background()

	tsk := newTask(t, taskSvc, "team-1")
	err := svc.PushBranch(ctx, tsk, "repo-1")
	assert.ErrorIs(t, err, review.ErrPRAutomationUnavailable)
}
