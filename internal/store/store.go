// Package store defines the repository interfaces every service depends
// on. Two implementations exist: postgres (production) and memory (tests
// and local development without a database).
package store

import (
	"context"
	"time"

	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/eventlog"
)

// Tx is an opaque transaction handle threaded through write calls so a
// projection mutation and its event-log append commit together (§7). The
// postgres implementation wraps pgx.Tx; the memory implementation is a
// marker guarded by the store's own mutex.
type Tx interface {
	isTx()
}

// Store aggregates every repository plus the event log and the
// transaction boundary that ties them together.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Organizations() OrganizationRepository
	Teams() TeamRepository
	Agents() AgentRepository
	Repositories() RepositoryRepository
	Tasks() TaskRepository
	Messages() MessageRepository
	Sessions() SessionRepository
	HumanRequests() HumanRequestRepository
	Reviews() ReviewRepository
	MergeJobs() MergeJobRepository
	Events() eventlog.Store
}

type OrganizationRepository interface {
	Create(ctx context.Context, tx Tx, org *domain.Organization) error
	Get(ctx context.Context, id string) (*domain.Organization, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Organization, error)
}

type TeamRepository interface {
	Create(ctx context.Context, tx Tx, team *domain.Team) error
	Get(ctx context.Context, id string) (*domain.Team, error)
	GetBySlug(ctx context.Context, orgID, slug string) (*domain.Team, error)
	Update(ctx context.Context, tx Tx, team *domain.Team) error
	ListByOrg(ctx context.Context, orgID string) ([]*domain.Team, error)
}

type AgentRepository interface {
	Create(ctx context.Context, tx Tx, agent *domain.Agent) error
	Get(ctx context.Context, id string) (*domain.Agent, error)
	GetForUpdate(ctx context.Context, tx Tx, id string) (*domain.Agent, error)
	GetByName(ctx context.Context, teamID, name string) (*domain.Agent, error)
	Update(ctx context.Context, tx Tx, agent *domain.Agent) error
	ListByTeam(ctx context.Context, teamID string) ([]*domain.Agent, error)
	// FindIdleByRole returns an idle agent with the given role on the team,
	// or nil if none exists (used for reviewer auto-assignment, §4.6).
	FindIdleByRole(ctx context.Context, teamID string, role domain.AgentRole) (*domain.Agent, error)
	// ListStuckWorking returns agents status=working with no Session
	// started within the given window (reconciliation, §4.5).
	ListStuckWorking(ctx context.Context, olderThanMinutes int) ([]*domain.Agent, error)
}

type RepositoryRepository interface {
	Create(ctx context.Context, tx Tx, repo *domain.Repository) error
	Get(ctx context.Context, id string) (*domain.Repository, error)
	ListByTeam(ctx context.Context, teamID string) ([]*domain.Repository, error)
}

// TaskFilter narrows TaskRepository.List.
type TaskFilter struct {
	TeamID     string
	Status     *domain.TaskStatus
	AssigneeID *string
}

type TaskRepository interface {
	Create(ctx context.Context, tx Tx, task *domain.Task) error
	Get(ctx context.Context, id int64) (*domain.Task, error)
	GetForUpdate(ctx context.Context, tx Tx, id int64) (*domain.Task, error)
	Update(ctx context.Context, tx Tx, task *domain.Task) error
	List(ctx context.Context, filter TaskFilter) ([]*domain.Task, error)
	// NextID reserves the next monotonic task id for branch derivation at
	// creation time.
	NextID(ctx context.Context, tx Tx) (int64, error)
	// MostRecentInProgress returns the agent's current in_progress task
	// ordered by updated_at desc, or nil (dispatcher step 6, §4.5).
	MostRecentInProgress(ctx context.Context, assigneeID string) (*domain.Task, error)
}

type MessageRepository interface {
	Create(ctx context.Context, tx Tx, msg *domain.Message) error
	Get(ctx context.Context, id string) (*domain.Message, error)
	Update(ctx context.Context, tx Tx, msg *domain.Message) error
	// Inbox returns an agent's messages newest-first, optionally restricted
	// to unprocessed ones (§4.2).
	Inbox(ctx context.Context, agentID string, unprocessedOnly bool) ([]*domain.Message, error)
	// ListUnprocessedForIdleAgents backs the dispatcher's fallback poller
	// (§4.5): unprocessed messages addressed to an agent that is idle.
	ListUnprocessedForIdleAgents(ctx context.Context, limit int) ([]*domain.Message, error)
}

type SessionRepository interface {
	Create(ctx context.Context, tx Tx, s *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	Update(ctx context.Context, tx Tx, s *domain.Session) error
	// OpenForAgent returns the agent's open session (ended_at IS NULL), if
	// any (I7).
	OpenForAgent(ctx context.Context, agentID string) (*domain.Session, error)
	// SumCostSince sums cost_usd for an agent's sessions started at or
	// after since.
	SumCostSince(ctx context.Context, agentID string, since time.Time) (float64, error)
	// SumCostForTask sums cost_usd for every session tied to taskID.
	SumCostForTask(ctx context.Context, taskID int64) (float64, error)
	// ListForTeamSince returns every session for agents on teamID started
	// within the last N days, for cost summaries (§4.3).
	ListForTeamSince(ctx context.Context, teamID string, days int) ([]*domain.Session, error)
}

type HumanRequestRepository interface {
	Create(ctx context.Context, tx Tx, r *domain.HumanRequest) error
	Get(ctx context.Context, id string) (*domain.HumanRequest, error)
	Update(ctx context.Context, tx Tx, r *domain.HumanRequest) error
	ListByTeam(ctx context.Context, teamID string) ([]*domain.HumanRequest, error)
	// ListExpiredPending returns pending requests whose timeout_at has
	// passed (reconciliation, §4.5/§4.8).
	ListExpiredPending(ctx context.Context) ([]*domain.HumanRequest, error)
}

type ReviewRepository interface {
	Create(ctx context.Context, tx Tx, r *domain.Review) error
	Get(ctx context.Context, id string) (*domain.Review, error)
	Update(ctx context.Context, tx Tx, r *domain.Review) error
	// MaxAttempt returns the highest attempt number recorded for a task, 0
	// if none (I1, P3).
	MaxAttempt(ctx context.Context, taskID int64) (int, error)
	// Latest returns the most recent review for a task, nil if none.
	Latest(ctx context.Context, taskID int64) (*domain.Review, error)
	AddComment(ctx context.Context, tx Tx, c *domain.ReviewComment) error
}

type MergeJobRepository interface {
	Create(ctx context.Context, tx Tx, j *domain.MergeJob) error
	Get(ctx context.Context, id string) (*domain.MergeJob, error)
	Update(ctx context.Context, tx Tx, j *domain.MergeJob) error
	ListByTask(ctx context.Context, taskID int64) ([]*domain.MergeJob, error)
	// ClaimNextQueued atomically selects and flips the oldest queued job to
	// running using skip-locked semantics (§4.7); returns nil if none.
	ClaimNextQueued(ctx context.Context) (*domain.MergeJob, error)
}
