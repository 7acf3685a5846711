package task_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/openclaw/internal/apperrors"
	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/pubsub"
	"github.com/openclaw/openclaw/internal/store/memory"
	"github.com/openclaw/openclaw/internal/task"
)

func newService(t *testing.T) *task.Service {
	t.Helper()
	return task.NewService(memory.New(), pubsub.NewMemoryBus(nil), nil)
}

func TestCreateTaskDefaultsPriorityAndBranch(t *testing.T) {
	svc := newService(t)
	tsk, err := svc.CreateTask(context.Background(), "team-1", task.Draft{Title: "Add retries"})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskPriorityMedium, tsk.Priority)
	assert.Equal(t, domain.TaskStatusTodo, tsk.Status)
	assert.NotEmpty(t, tsk.Branch)
}

func TestBatchCreateTasksResolvesIntraBatchDependencies(t *testing.T) {
	svc := newService(t)
	tasks, err := svc.BatchCreateTasks(context.Background(), "team-1", []task.Draft{
		{Title: "design"},
		{Title: "implement", DependsOnIndices: []int{0}},
	})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, []int64{tasks[0].ID}, tasks[1].DependsOn)
}

func TestBatchCreateTasksRejectsForwardDependency(t *testing.T) {
	svc := newService(t)
	_, err := svc.BatchCreateTasks(context.Background(), "team-1", []task.Draft{
		{Title: "implement", DependsOnIndices: []int{1}},
		{Title: "design"},
	})
	require.Error(t, err)
	kind, ok := apperrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindValidation, kind)
}

func TestChangeStatusEnforcesDependencyBlocked(t *testing.T) {
	svc := newService(t)
	tasks, err := svc.BatchCreateTasks(context.Background(), "team-1", []task.Draft{
		{Title: "design"},
		{Title: "implement", DependsOnIndices: []int{0}},
	})
	require.NoError(t, err)

	_, err = svc.ChangeStatus(context.Background(), tasks[1].ID, domain.TaskStatusInProgress, "")
	require.Error(t, err)
	kind, ok := apperrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindDependencyBlocked, kind)

	_, err = svc.ChangeStatus(context.Background(), tasks[0].ID, domain.TaskStatusInProgress, "")
	require.NoError(t, err)
	_, err = svc.ChangeStatus(context.Background(), tasks[0].ID, domain.TaskStatusInReview, "")
	require.NoError(t, err)
	_, err = svc.ChangeStatus(context.Background(), tasks[0].ID, domain.TaskStatusInApproval, "")
	require.NoError(t, err)
	_, err = svc.ChangeStatus(context.Background(), tasks[0].ID, domain.TaskStatusMerging, "")
	require.NoError(t, err)
	_, err = svc.ChangeStatus(context.Background(), tasks[0].ID, domain.TaskStatusDone, "")
	require.NoError(t, err)

	updated, err := svc.ChangeStatus(context.Background(), tasks[1].ID, domain.TaskStatusInProgress, "")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInProgress, updated.Status)
}

func TestChangeStatusRejectsInvalidTransition(t *testing.T) {
	svc := newService(t)
	tsk, err := svc.CreateTask(context.Background(), "team-1", task.Draft{Title: "x"})
	require.NoError(t, err)

	_, err = svc.ChangeStatus(context.Background(), tsk.ID, domain.TaskStatusDone, "")
	require.Error(t, err)
	kind, ok := apperrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindInvalidTransition, kind)
}

func TestSaveContextMergesWithoutClearingExistingKeys(t *testing.T) {
	svc := newService(t)
	tsk, err := svc.CreateTask(context.Background(), "team-1", task.Draft{Title: "x"})
	require.NoError(t, err)

	_, err = svc.SaveContext(context.Background(), tsk.ID, map[string]string{"a": "1"})
	require.NoError(t, err)
	_, err = svc.SaveContext(context.Background(), tsk.ID, map[string]string{"b": "2"})
	require.NoError(t, err)

	ctx, err := svc.ReadContext(context.Background(), tsk.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, ctx)
}
