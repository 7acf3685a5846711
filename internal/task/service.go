// Package task implements the Task Service: CRUD, the status state
// machine, DAG dependency enforcement, and batch creation with intra-batch
// dependency edges (§4.1).
package task

import (
	"context"
	"fmt"
	"time"

	"github.com/openclaw/openclaw/internal/apperrors"
	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/eventlog"
	"github.com/openclaw/openclaw/internal/logger"
	"github.com/openclaw/openclaw/internal/pubsub"
	"github.com/openclaw/openclaw/internal/store"
	"github.com/openclaw/openclaw/internal/worktree"
)

type Service struct {
	store store.Store
	bus   pubsub.Bus
	log   *logger.Logger
}

func NewService(st store.Store, bus pubsub.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{store: st, bus: bus, log: log}
}

// Draft is one task in a batch-creation request.
type Draft struct {
	Title             string
	Description       string
	Priority          domain.TaskPriority
	DRIID             string
	AssigneeID        string
	RepoIDs           []string
	Tags              []string
	DependsOnIndices  []int // positions within the same batch
	DependsOn         []int64
}

func (s *Service) CreateTask(ctx context.Context, teamID string, d Draft) (*domain.Task, error) {
	tasks, err := s.BatchCreateTasks(ctx, teamID, []Draft{d})
	if err != nil {
		return nil, err
	}
	return tasks[0], nil
}

// BatchCreateTasks atomically creates every draft, resolving
// depends_on_indices to the concrete ids reserved for earlier drafts in the
// same batch.
func (s *Service) BatchCreateTasks(ctx context.Context, teamID string, drafts []Draft) ([]*domain.Task, error) {
	for i, d := range drafts {
		for _, idx := range d.DependsOnIndices {
			if idx < 0 || idx >= i {
				return nil, apperrors.New(apperrors.KindValidation,
					fmt.Sprintf("depends_on_indices[%d] must reference an earlier position in the batch", idx))
			}
		}
	}

	tasks := make([]*domain.Task, len(drafts))
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		ids := make([]int64, len(drafts))
		for i, d := range drafts {
			id, err := s.store.Tasks().NextID(ctx, tx)
			if err != nil {
				return err
			}
			ids[i] = id

			dependsOn := append([]int64{}, d.DependsOn...)
			for _, idx := range d.DependsOnIndices {
				dependsOn = append(dependsOn, ids[idx])
			}

			priority := d.Priority
			if priority == "" {
				priority = domain.TaskPriorityMedium
			}

			t := &domain.Task{
				ID: id, TeamID: teamID, Title: d.Title, Description: d.Description,
				Status: domain.TaskStatusTodo, Priority: priority, DRIID: d.DRIID,
				AssigneeID: d.AssigneeID, DependsOn: dependsOn, RepoIDs: d.RepoIDs, Tags: d.Tags,
				Branch:   worktree.DeriveBranch(id, d.Title),
				Metadata: domain.TaskMetadata{Context: map[string]string{}},
			}
			if err := s.store.Tasks().Create(ctx, tx, t); err != nil {
				return err
			}
			if _, err := s.store.Events().Append(ctx, tx, eventlog.TaskStream(id), "task.created", map[string]any{
				"task_id": id, "team_id": teamID, "title": d.Title,
			}, nil); err != nil {
				return err
			}
			tasks[i] = t
		}
		return nil
	})
	return tasks, err
}

func (s *Service) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	return s.store.Tasks().Get(ctx, id)
}

func (s *Service) ListTasks(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	return s.store.Tasks().List(ctx, filter)
}

// UpdateFields applies a partial update to a task's free-form attributes
// (title, description, priority, tags, repo_ids); status is changed only
// through ChangeStatus.
func (s *Service) UpdateFields(ctx context.Context, id int64, fn func(t *domain.Task)) (*domain.Task, error) {
	var updated *domain.Task
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		t, err := s.store.Tasks().GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		fn(t)
		if err := s.store.Tasks().Update(ctx, tx, t); err != nil {
			return err
		}
		if _, err := s.store.Events().Append(ctx, tx, eventlog.TaskStream(id), "task.updated", map[string]any{
			"task_id": id,
		}, nil); err != nil {
			return err
		}
		updated = t
		return nil
	})
	return updated, err
}

func (s *Service) Assign(ctx context.Context, id int64, assigneeID string) (*domain.Task, error) {
	var updated *domain.Task
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		t, err := s.store.Tasks().GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		t.AssigneeID = assigneeID
		if err := s.store.Tasks().Update(ctx, tx, t); err != nil {
			return err
		}
		if _, err := s.store.Events().Append(ctx, tx, eventlog.TaskStream(id), "task.assigned", map[string]any{
			"task_id": id, "assignee_id": assigneeID,
		}, nil); err != nil {
			return err
		}
		updated = t
		return nil
	})
	return updated, err
}

// ChangeStatus validates the transition against the task state graph (I4),
// enforces DAG dependencies on entry to in_progress (I3), and stamps
// completed_at on entry to done (I2). actorID is optional (P7): it is
// recorded on the emitted event but never required for the transition
// itself.
func (s *Service) ChangeStatus(ctx context.Context, id int64, to domain.TaskStatus, actorID string) (*domain.Task, error) {
	var updated *domain.Task
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		t, err := s.store.Tasks().GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if !domain.CanTransition(t.Status, to) {
			return apperrors.New(apperrors.KindInvalidTransition,
				fmt.Sprintf("cannot transition task from %s to %s", t.Status, to))
		}

		if to == domain.TaskStatusInProgress {
			for _, depID := range t.DependsOn {
				dep, err := s.store.Tasks().Get(ctx, depID)
				if err != nil || dep.Status != domain.TaskStatusDone {
					return apperrors.New(apperrors.KindDependencyBlocked,
						fmt.Sprintf("task %d depends on task %d, which is not done", id, depID))
				}
			}
		}

		old := t.Status
		t.Status = to
		if to == domain.TaskStatusDone {
			now := time.Now()
			t.CompletedAt = &now
		}
		if err := s.store.Tasks().Update(ctx, tx, t); err != nil {
			return err
		}
		payload := map[string]any{
			"task_id": id, "from": string(old), "to": string(to),
		}
		if actorID != "" {
			payload["actor"] = actorID
		}
		if _, err := s.store.Events().Append(ctx, tx, eventlog.TaskStream(id), "task.status_changed", payload, nil); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.bus != nil {
		_ = s.bus.Publish(ctx, pubsub.SubjectTaskStatusChanged, pubsub.NewEvent(pubsub.SubjectTaskStatusChanged, "task-service", map[string]any{
			"task_id": id, "team_id": updated.TeamID,
		}))
	}
	return updated, nil
}

// SaveContext sets or overwrites keys in a task's context map; it never
// clears keys implicitly (I9).
func (s *Service) SaveContext(ctx context.Context, id int64, entries map[string]string) (*domain.Task, error) {
	return s.UpdateFields(ctx, id, func(t *domain.Task) {
		if t.Metadata.Context == nil {
			t.Metadata.Context = map[string]string{}
		}
		for k, v := range entries {
			t.Metadata.Context[k] = v
		}
	})
}

func (s *Service) ReadContext(ctx context.Context, id int64) (map[string]string, error) {
	t, err := s.store.Tasks().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return t.Metadata.Context, nil
}
