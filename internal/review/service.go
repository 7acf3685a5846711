// Package review implements the two-tier code review workflow: review
// request/assignment, best-effort push/PR automation, comments, verdicts,
// and merge-job creation (§4.6).
package review

import (
	"strconv"
	"strings"
	"time"

	"context"

	"github.com/google/uuid"

	"github.com/openclaw/openclaw/internal/apperrors"
	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/eventlog"
	"github.com/openclaw/openclaw/internal/logger"
	"github.com/openclaw/openclaw/internal/message"
	"github.com/openclaw/openclaw/internal/store"
	"github.com/openclaw/openclaw/internal/task"
	"github.com/openclaw/openclaw/internal/worktree"
)

type Service struct {
	store    store.Store
	tasks    *task.Service
	messages *message.Service
	codeHost CodeHost
	log      *logger.Logger
}

func NewService(st store.Store, tasks *task.Service, messages *message.Service, codeHost CodeHost, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{store: st, tasks: tasks, messages: messages, codeHost: codeHost, log: log}
}

// RequestReview opens the next review attempt on a task, auto-assigning an
// idle reviewer-role agent when none is specified, and best-effort pushes
// the branch and opens a pull request.
func (s *Service) RequestReview(ctx context.Context, t *domain.Task, reviewerID string, reviewerType domain.ActorType) (*domain.Review, error) {
	maxAttempt, err := s.store.Reviews().MaxAttempt(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	if reviewerID == "" {
		if idle, err := s.store.Agents().FindIdleByRole(ctx, t.TeamID, domain.AgentRoleReviewer); err == nil && idle != nil {
			reviewerID = idle.ID
			reviewerType = domain.ActorTypeAgent
		}
	}

	r := &domain.Review{
		ID: uuid.New().String(), TaskID: t.ID, Attempt: maxAttempt + 1,
		ReviewerID: reviewerID, ReviewerType: reviewerType,
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := s.store.Reviews().Create(ctx, tx, r); err != nil {
			return err
		}
		_, err := s.store.Events().Append(ctx, tx, eventlog.TaskStream(t.ID), "review.created", map[string]any{
			"review_id": r.ID, "task_id": t.ID, "attempt": r.Attempt,
		}, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.automatePushAndPR(ctx, t)

	if reviewerType == domain.ActorTypeAgent && reviewerID != "" && s.messages != nil {
		content := "Review requested: review_id=" + r.ID + " task_id=" + strconv.FormatInt(t.ID, 10) + " attempt=" + strconv.Itoa(r.Attempt)
		_, _ = s.messages.Send(ctx, t.TeamID, "review-service", domain.ActorTypeAgent, reviewerID, domain.ActorTypeAgent, &t.ID, content)
	}

	return r, nil
}

// PushBranch pushes a task's branch to its repo's remote (POST
// /tasks/{id}/push). There is no force option: GitCodeHost always pushes
// with --force-with-lease.
func (s *Service) PushBranch(ctx context.Context, t *domain.Task, repoID string) error {
	if s.codeHost == nil {
		return ErrPRAutomationUnavailable
	}
	repo, err := s.store.Repositories().Get(ctx, repoID)
	if err != nil {
		return err
	}
	return s.codeHost.PushBranch(ctx, worktree.Path(repo, t), t.Branch)
}

// CreatePullRequest opens a pull request for a task's branch (POST
// /tasks/{id}/pr), recording the URL/number on success.
func (s *Service) CreatePullRequest(ctx context.Context, t *domain.Task, repoID string) (string, int, error) {
	if s.codeHost == nil {
		return "", 0, ErrPRAutomationUnavailable
	}
	repo, err := s.store.Repositories().Get(ctx, repoID)
	if err != nil {
		return "", 0, err
	}
	prURL, prNumber, err := s.codeHost.CreatePullRequest(ctx, worktree.Path(repo, t), t.Branch, repo.DefaultBranch, t.Title)
	if err != nil {
		return "", 0, err
	}
	if _, err := s.tasks.UpdateFields(ctx, t.ID, func(task *domain.Task) {
		task.Metadata.PRURL = prURL
		task.Metadata.PRNumber = prNumber
	}); err != nil {
		return prURL, prNumber, err
	}
	return prURL, prNumber, nil
}

// automatePushAndPR is best-effort: it never fails RequestReview.
func (s *Service) automatePushAndPR(ctx context.Context, t *domain.Task) {
	if len(t.RepoIDs) == 0 || s.codeHost == nil {
		return
	}
	repo, err := s.store.Repositories().Get(ctx, t.RepoIDs[0])
	if err != nil {
		s.log.Warn("review automation: repository lookup failed: " + err.Error())
		return
	}
	path := worktree.Path(repo, t)

	if err := s.codeHost.PushBranch(ctx, path, t.Branch); err != nil {
		s.log.Warn("review automation: push failed: " + err.Error())
		return
	}

	prURL, prNumber, err := s.codeHost.CreatePullRequest(ctx, path, t.Branch, repo.DefaultBranch, t.Title)
	if err != nil {
		s.log.Warn("review automation: pull request creation failed: " + err.Error())
		return
	}

	_, err = s.tasks.UpdateFields(ctx, t.ID, func(task *domain.Task) {
		task.Metadata.PRURL = prURL
		task.Metadata.PRNumber = prNumber
	})
	if err != nil {
		s.log.Warn("review automation: saving pr metadata failed: " + err.Error())
		return
	}
	_ = s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := s.store.Events().Append(ctx, tx, eventlog.TaskStream(t.ID), "pr.created", map[string]any{
			"task_id": t.ID, "pr_url": prURL, "pr_number": prNumber,
		}, nil)
		return err
	})
}

func (s *Service) AddComment(ctx context.Context, reviewID, authorID string, authorType domain.ActorType, content, filePath string, lineNumber *int) (*domain.ReviewComment, error) {
	review, err := s.store.Reviews().Get(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	c := &domain.ReviewComment{
		ID: uuid.New().String(), ReviewID: reviewID, FilePath: filePath, LineNumber: lineNumber,
		Content: content, AuthorID: authorID, AuthorType: authorType,
	}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := s.store.Reviews().AddComment(ctx, tx, c); err != nil {
			return err
		}
		_, err := s.store.Events().Append(ctx, tx, eventlog.TaskStream(review.TaskID), "review.comment_added", map[string]any{
			"review_id": reviewID, "comment_id": c.ID,
		}, nil)
		return err
	})
	return c, err
}

// SubmitVerdict resolves a review. request_changes kicks the task back to
// in_progress and sends a feedback message to its assignee; approve leaves
// the task exactly where it is — the human tier still decides whether to
// advance it further (§4.6).
func (s *Service) SubmitVerdict(ctx context.Context, reviewID string, verdict domain.ReviewVerdict, summary string) (*domain.Review, error) {
	if !verdict.Valid() {
		return nil, apperrors.New(apperrors.KindValidation, "invalid verdict: "+string(verdict))
	}

	review, err := s.store.Reviews().Get(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review.Verdict != nil {
		return nil, apperrors.New(apperrors.KindAlreadyResolved, "review already has a verdict")
	}

	now := time.Now()
	review.Verdict = &verdict
	review.Summary = summary
	review.ResolvedAt = &now

	err = s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := s.store.Reviews().Update(ctx, tx, review); err != nil {
			return err
		}
		_, err := s.store.Events().Append(ctx, tx, eventlog.TaskStream(review.TaskID), "review.verdict_submitted", map[string]any{
			"review_id": review.ID, "verdict": string(verdict),
		}, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	switch verdict {
	case domain.ReviewVerdictRequestChanges:
		if err := s.sendFeedback(ctx, review); err != nil {
			s.log.Warn("send review feedback failed: " + err.Error())
		}
	case domain.ReviewVerdictApprove:
		if review.ReviewerType == domain.ActorTypeAgent {
			s.log.Info("review approved by agent reviewer; awaiting human tier for task " + strconv.FormatInt(review.TaskID, 10))
		}
	}

	return review, nil
}

func (s *Service) sendFeedback(ctx context.Context, review *domain.Review) error {
	t, err := s.tasks.GetTask(ctx, review.TaskID)
	if err != nil {
		return err
	}
	if _, err := s.tasks.ChangeStatus(ctx, t.ID, domain.TaskStatusInProgress, ""); err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("## Review Feedback (Attempt #" + strconv.Itoa(review.Attempt) + ")\n\n")
	if review.Summary != "" {
		b.WriteString(review.Summary + "\n\n")
	}
	full, err := s.store.Reviews().Get(ctx, review.ID)
	if err != nil {
		return err
	}
	for _, c := range full.Comments {
		if c.FilePath != "" && c.LineNumber != nil {
			b.WriteString(c.FilePath + ":" + strconv.Itoa(*c.LineNumber) + ": " + c.Content + "\n")
		} else {
			b.WriteString("General: " + c.Content + "\n")
		}
	}

	if t.AssigneeID != "" && s.messages != nil {
		if _, err := s.messages.Send(ctx, t.TeamID, "review-service", domain.ActorTypeAgent, t.AssigneeID, domain.ActorTypeAgent, &t.ID, b.String()); err != nil {
			return err
		}
	}

	return s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := s.store.Events().Append(ctx, tx, eventlog.TaskStream(t.ID), "review.feedback_sent", map[string]any{
			"review_id": review.ID, "task_id": t.ID,
		}, nil)
		return err
	})
}

// CreateMergeJob refuses unless the latest review attempt approved.
func (s *Service) CreateMergeJob(ctx context.Context, t *domain.Task, repoID string, strategy domain.MergeStrategy) (*domain.MergeJob, error) {
	latest, err := s.store.Reviews().Latest(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	if latest == nil || latest.Verdict == nil || *latest.Verdict != domain.ReviewVerdictApprove {
		return nil, apperrors.New(apperrors.KindValidation, "cannot merge: latest review is not approved")
	}

	job := &domain.MergeJob{
		ID: uuid.New().String(), TaskID: t.ID, RepoID: repoID,
		Status: domain.MergeJobStatusQueued, Strategy: strategy,
	}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := s.store.MergeJobs().Create(ctx, tx, job); err != nil {
			return err
		}
		_, err := s.store.Events().Append(ctx, tx, eventlog.TaskStream(t.ID), "merge.queued", map[string]any{
			"job_id": job.ID, "task_id": t.ID, "strategy": string(strategy),
		}, nil)
		return err
	})
	return job, err
}

// MergeStatus summarizes a task's review/merge state for the API (§4.6).
type MergeStatus struct {
	ReviewVerdict *domain.ReviewVerdict
	ReviewAttempt int
	MergeJobs     []*domain.MergeJob
	CanMerge      bool
}

func (s *Service) MergeStatus(ctx context.Context, taskID int64) (MergeStatus, error) {
	latest, err := s.store.Reviews().Latest(ctx, taskID)
	if err != nil {
		return MergeStatus{}, err
	}
	jobs, err := s.store.MergeJobs().ListByTask(ctx, taskID)
	if err != nil {
		return MergeStatus{}, err
	}

	status := MergeStatus{MergeJobs: jobs}
	if latest != nil {
		status.ReviewVerdict = latest.Verdict
		status.ReviewAttempt = latest.Attempt
		status.CanMerge = latest.Verdict != nil && *latest.Verdict == domain.ReviewVerdictApprove
	}
	return status, nil
}
