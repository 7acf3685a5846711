// Package memory implements internal/store's repository interfaces
// in-process, for service-layer tests and single-node local runs without a
// database (mirrors internal/eventlog's MemoryStore).
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/openclaw/openclaw/internal/apperrors"
	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/eventlog"
	"github.com/openclaw/openclaw/internal/store"
)

type memTx struct{}

func (memTx) isTx() {}

// Store is an in-memory store.Store. All state lives behind a single mutex;
// WithTx just holds it for the callback's duration so writers observe a
// consistent snapshot, the same atomicity guarantee the postgres
// implementation gives via a real transaction.
type Store struct {
	mu sync.Mutex

	events *eventlog.MemoryStore

	orgs     map[string]*domain.Organization
	teams    map[string]*domain.Team
	agents   map[string]*domain.Agent
	repos    map[string]*domain.Repository
	tasks    map[int64]*domain.Task
	nextTask int64
	messages map[string]*domain.Message
	sessions map[string]*domain.Session
	humans   map[string]*domain.HumanRequest
	reviews  map[string]*domain.Review
	merges   map[string]*domain.MergeJob
}

func New() *Store {
	return &Store{
		events:   eventlog.NewMemoryStore(),
		orgs:     map[string]*domain.Organization{},
		teams:    map[string]*domain.Team{},
		agents:   map[string]*domain.Agent{},
		repos:    map[string]*domain.Repository{},
		tasks:    map[int64]*domain.Task{},
		messages: map[string]*domain.Message{},
		sessions: map[string]*domain.Session{},
		humans:   map[string]*domain.HumanRequest{},
		reviews:  map[string]*domain.Review{},
		merges:   map[string]*domain.MergeJob{},
	}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, memTx{})
}

func (s *Store) Organizations() store.OrganizationRepository { return (*orgRepo)(s) }
func (s *Store) Teams() store.TeamRepository                 { return (*teamRepo)(s) }
func (s *Store) Agents() store.AgentRepository               { return (*agentRepo)(s) }
func (s *Store) Repositories() store.RepositoryRepository    { return (*repoRepo)(s) }
func (s *Store) Tasks() store.TaskRepository                 { return (*taskRepo)(s) }
func (s *Store) Messages() store.MessageRepository           { return (*messageRepo)(s) }
func (s *Store) Sessions() store.SessionRepository           { return (*sessionRepo)(s) }
func (s *Store) HumanRequests() store.HumanRequestRepository { return (*humanRepo)(s) }
func (s *Store) Reviews() store.ReviewRepository             { return (*reviewRepo)(s) }
func (s *Store) MergeJobs() store.MergeJobRepository         { return (*mergeRepo)(s) }
func (s *Store) Events() eventlog.Store                      { return s.events }

type orgRepo Store

func (r *orgRepo) Create(ctx context.Context, tx store.Tx, org *domain.Organization) error {
	cp := *org
	(*Store)(r).orgs[org.ID] = &cp
	return nil
}

func (r *orgRepo) Get(ctx context.Context, id string) (*domain.Organization, error) {
	o, ok := (*Store)(r).orgs[id]
	if !ok {
		return nil, apperrors.NotFound("organization", id)
	}
	cp := *o
	return &cp, nil
}

func (r *orgRepo) GetBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	for _, o := range (*Store)(r).orgs {
		if o.Slug == slug {
			cp := *o
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("organization", slug)
}

type teamRepo Store

func (r *teamRepo) Create(ctx context.Context, tx store.Tx, t *domain.Team) error {
	cp := *t
	(*Store)(r).teams[t.ID] = &cp
	return nil
}

func (r *teamRepo) Get(ctx context.Context, id string) (*domain.Team, error) {
	t, ok := (*Store)(r).teams[id]
	if !ok {
		return nil, apperrors.NotFound("team", id)
	}
	cp := *t
	return &cp, nil
}

func (r *teamRepo) GetBySlug(ctx context.Context, orgID, slug string) (*domain.Team, error) {
	for _, t := range (*Store)(r).teams {
		if t.OrgID == orgID && t.Slug == slug {
			cp := *t
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("team", slug)
}

func (r *teamRepo) Update(ctx context.Context, tx store.Tx, t *domain.Team) error {
	if _, ok := (*Store)(r).teams[t.ID]; !ok {
		return apperrors.NotFound("team", t.ID)
	}
	cp := *t
	(*Store)(r).teams[t.ID] = &cp
	return nil
}

func (r *teamRepo) ListByOrg(ctx context.Context, orgID string) ([]*domain.Team, error) {
	var out []*domain.Team
	for _, t := range (*Store)(r).teams {
		if t.OrgID == orgID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type agentRepo Store

func (r *agentRepo) Create(ctx context.Context, tx store.Tx, a *domain.Agent) error {
	cp := *a
	(*Store)(r).agents[a.ID] = &cp
	return nil
}

func (r *agentRepo) Get(ctx context.Context, id string) (*domain.Agent, error) {
	a, ok := (*Store)(r).agents[id]
	if !ok {
		return nil, apperrors.NotFound("agent", id)
	}
	cp := *a
	return &cp, nil
}

func (r *agentRepo) GetForUpdate(ctx context.Context, tx store.Tx, id string) (*domain.Agent, error) {
	return r.Get(ctx, id)
}

func (r *agentRepo) GetByName(ctx context.Context, teamID, name string) (*domain.Agent, error) {
	for _, a := range (*Store)(r).agents {
		if a.TeamID == teamID && a.Name == name {
			cp := *a
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("agent", name)
}

func (r *agentRepo) Update(ctx context.Context, tx store.Tx, a *domain.Agent) error {
	if _, ok := (*Store)(r).agents[a.ID]; !ok {
		return apperrors.NotFound("agent", a.ID)
	}
	cp := *a
	(*Store)(r).agents[a.ID] = &cp
	return nil
}

func (r *agentRepo) ListByTeam(ctx context.Context, teamID string) ([]*domain.Agent, error) {
	var out []*domain.Agent
	for _, a := range (*Store)(r).agents {
		if a.TeamID == teamID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *agentRepo) FindIdleByRole(ctx context.Context, teamID string, role domain.AgentRole) (*domain.Agent, error) {
	var best *domain.Agent
	for _, a := range (*Store)(r).agents {
		if a.TeamID == teamID && a.Role == role && a.Status == domain.AgentStatusIdle {
			if best == nil || a.UpdatedAt.Before(best.UpdatedAt) {
				cp := *a
				best = &cp
			}
		}
	}
	return best, nil
}

func (r *agentRepo) ListStuckWorking(ctx context.Context, olderThanMinutes int) ([]*domain.Agent, error) {
	cutoff := time.Now().Add(-time.Duration(olderThanMinutes) * time.Minute)
	var out []*domain.Agent
	for _, a := range (*Store)(r).agents {
		if a.Status != domain.AgentStatusWorking || !a.UpdatedAt.Before(cutoff) {
			continue
		}
		stuck := true
		for _, s := range (*Store)(r).sessions {
			if s.AgentID == a.ID && s.StartedAt.After(cutoff) {
				stuck = false
				break
			}
		}
		if stuck {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type repoRepo Store

func (r *repoRepo) Create(ctx context.Context, tx store.Tx, repo *domain.Repository) error {
	cp := *repo
	(*Store)(r).repos[repo.ID] = &cp
	return nil
}

func (r *repoRepo) Get(ctx context.Context, id string) (*domain.Repository, error) {
	repo, ok := (*Store)(r).repos[id]
	if !ok {
		return nil, apperrors.NotFound("repository", id)
	}
	cp := *repo
	return &cp, nil
}

func (r *repoRepo) ListByTeam(ctx context.Context, teamID string) ([]*domain.Repository, error) {
	var out []*domain.Repository
	for _, repo := range (*Store)(r).repos {
		if repo.TeamID == teamID {
			cp := *repo
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type taskRepo Store

func (r *taskRepo) Create(ctx context.Context, tx store.Tx, t *domain.Task) error {
	now := time.Now()
	t.CreatedAt, t.UpdatedAt = now, now
	cp := *t
	(*Store)(r).tasks[t.ID] = &cp
	return nil
}

func (r *taskRepo) Get(ctx context.Context, id int64) (*domain.Task, error) {
	t, ok := (*Store)(r).tasks[id]
	if !ok {
		return nil, apperrors.NotFound("task", strconv.FormatInt(id, 10))
	}
	cp := *t
	return &cp, nil
}

func (r *taskRepo) GetForUpdate(ctx context.Context, tx store.Tx, id int64) (*domain.Task, error) {
	return r.Get(ctx, id)
}

func (r *taskRepo) Update(ctx context.Context, tx store.Tx, t *domain.Task) error {
	if _, ok := (*Store)(r).tasks[t.ID]; !ok {
		return apperrors.NotFound("task", strconv.FormatInt(t.ID, 10))
	}
	t.UpdatedAt = time.Now()
	cp := *t
	(*Store)(r).tasks[t.ID] = &cp
	return nil
}

func (r *taskRepo) List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	var out []*domain.Task
	for _, t := range (*Store)(r).tasks {
		if t.TeamID != filter.TeamID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.AssigneeID != nil && t.AssigneeID != *filter.AssigneeID {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *taskRepo) NextID(ctx context.Context, tx store.Tx) (int64, error) {
	(*Store)(r).nextTask++
	return (*Store)(r).nextTask, nil
}

func (r *taskRepo) MostRecentInProgress(ctx context.Context, assigneeID string) (*domain.Task, error) {
	var best *domain.Task
	for _, t := range (*Store)(r).tasks {
		if t.AssigneeID != assigneeID || t.Status != domain.TaskStatusInProgress {
			continue
		}
		if best == nil || t.UpdatedAt.After(best.UpdatedAt) {
			cp := *t
			best = &cp
		}
	}
	return best, nil
}

type messageRepo Store

func (r *messageRepo) Create(ctx context.Context, tx store.Tx, m *domain.Message) error {
	m.CreatedAt = time.Now()
	cp := *m
	(*Store)(r).messages[m.ID] = &cp
	return nil
}

func (r *messageRepo) Get(ctx context.Context, id string) (*domain.Message, error) {
	m, ok := (*Store)(r).messages[id]
	if !ok {
		return nil, apperrors.NotFound("message", id)
	}
	cp := *m
	return &cp, nil
}

func (r *messageRepo) Update(ctx context.Context, tx store.Tx, m *domain.Message) error {
	if _, ok := (*Store)(r).messages[m.ID]; !ok {
		return apperrors.NotFound("message", m.ID)
	}
	cp := *m
	(*Store)(r).messages[m.ID] = &cp
	return nil
}

func (r *messageRepo) Inbox(ctx context.Context, agentID string, unprocessedOnly bool) ([]*domain.Message, error) {
	var out []*domain.Message
	for _, m := range (*Store)(r).messages {
		if m.RecipientID != agentID || m.RecipientType != domain.ActorTypeAgent {
			continue
		}
		if unprocessedOnly && m.ProcessedAt != nil {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *messageRepo) ListUnprocessedForIdleAgents(ctx context.Context, limit int) ([]*domain.Message, error) {
	var out []*domain.Message
	for _, m := range (*Store)(r).messages {
		if m.ProcessedAt != nil || m.RecipientType != domain.ActorTypeAgent {
			continue
		}
		a, ok := (*Store)(r).agents[m.RecipientID]
		if !ok || a.Status != domain.AgentStatusIdle {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type sessionRepo Store

func (r *sessionRepo) Create(ctx context.Context, tx store.Tx, s *domain.Session) error {
	s.StartedAt = time.Now()
	cp := *s
	(*Store)(r).sessions[s.ID] = &cp
	return nil
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*domain.Session, error) {
	s, ok := (*Store)(r).sessions[id]
	if !ok {
		return nil, apperrors.NotFound("session", id)
	}
	cp := *s
	return &cp, nil
}

func (r *sessionRepo) Update(ctx context.Context, tx store.Tx, s *domain.Session) error {
	if _, ok := (*Store)(r).sessions[s.ID]; !ok {
		return apperrors.NotFound("session", s.ID)
	}
	cp := *s
	(*Store)(r).sessions[s.ID] = &cp
	return nil
}

func (r *sessionRepo) OpenForAgent(ctx context.Context, agentID string) (*domain.Session, error) {
	for _, s := range (*Store)(r).sessions {
		if s.AgentID == agentID && s.EndedAt == nil {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *sessionRepo) SumCostSince(ctx context.Context, agentID string, since time.Time) (float64, error) {
	var total float64
	for _, s := range (*Store)(r).sessions {
		if s.AgentID == agentID && !s.StartedAt.Before(since) {
			total += s.CostUSD
		}
	}
	return total, nil
}

func (r *sessionRepo) SumCostForTask(ctx context.Context, taskID int64) (float64, error) {
	var total float64
	for _, s := range (*Store)(r).sessions {
		if s.TaskID != nil && *s.TaskID == taskID {
			total += s.CostUSD
		}
	}
	return total, nil
}

func (r *sessionRepo) ListForTeamSince(ctx context.Context, teamID string, days int) ([]*domain.Session, error) {
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	var out []*domain.Session
	for _, s := range (*Store)(r).sessions {
		a, ok := (*Store)(r).agents[s.AgentID]
		if !ok || a.TeamID != teamID || s.StartedAt.Before(cutoff) {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

type humanRepo Store

func (r *humanRepo) Create(ctx context.Context, tx store.Tx, h *domain.HumanRequest) error {
	h.CreatedAt = time.Now()
	cp := *h
	(*Store)(r).humans[h.ID] = &cp
	return nil
}

func (r *humanRepo) Get(ctx context.Context, id string) (*domain.HumanRequest, error) {
	h, ok := (*Store)(r).humans[id]
	if !ok {
		return nil, apperrors.NotFound("human_request", id)
	}
	cp := *h
	return &cp, nil
}

func (r *humanRepo) Update(ctx context.Context, tx store.Tx, h *domain.HumanRequest) error {
	if _, ok := (*Store)(r).humans[h.ID]; !ok {
		return apperrors.NotFound("human_request", h.ID)
	}
	cp := *h
	(*Store)(r).humans[h.ID] = &cp
	return nil
}

func (r *humanRepo) ListByTeam(ctx context.Context, teamID string) ([]*domain.HumanRequest, error) {
	var out []*domain.HumanRequest
	for _, h := range (*Store)(r).humans {
		if h.TeamID == teamID {
			cp := *h
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *humanRepo) ListExpiredPending(ctx context.Context) ([]*domain.HumanRequest, error) {
	now := time.Now()
	var out []*domain.HumanRequest
	for _, h := range (*Store)(r).humans {
		if h.Status == domain.HumanRequestStatusPending && h.TimeoutAt != nil && h.TimeoutAt.Before(now) {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

type reviewRepo Store

func (r *reviewRepo) Create(ctx context.Context, tx store.Tx, rv *domain.Review) error {
	rv.CreatedAt = time.Now()
	cp := *rv
	(*Store)(r).reviews[rv.ID] = &cp
	return nil
}

func (r *reviewRepo) Get(ctx context.Context, id string) (*domain.Review, error) {
	rv, ok := (*Store)(r).reviews[id]
	if !ok {
		return nil, apperrors.NotFound("review", id)
	}
	cp := *rv
	return &cp, nil
}

func (r *reviewRepo) Update(ctx context.Context, tx store.Tx, rv *domain.Review) error {
	if _, ok := (*Store)(r).reviews[rv.ID]; !ok {
		return apperrors.NotFound("review", rv.ID)
	}
	cp := *rv
	(*Store)(r).reviews[rv.ID] = &cp
	return nil
}

func (r *reviewRepo) MaxAttempt(ctx context.Context, taskID int64) (int, error) {
	max := 0
	for _, rv := range (*Store)(r).reviews {
		if rv.TaskID == taskID && rv.Attempt > max {
			max = rv.Attempt
		}
	}
	return max, nil
}

func (r *reviewRepo) Latest(ctx context.Context, taskID int64) (*domain.Review, error) {
	var best *domain.Review
	for _, rv := range (*Store)(r).reviews {
		if rv.TaskID == taskID && (best == nil || rv.Attempt > best.Attempt) {
			cp := *rv
			best = &cp
		}
	}
	return best, nil
}

func (r *reviewRepo) AddComment(ctx context.Context, tx store.Tx, c *domain.ReviewComment) error {
	c.CreatedAt = time.Now()
	rv, ok := (*Store)(r).reviews[c.ReviewID]
	if !ok {
		return apperrors.NotFound("review", c.ReviewID)
	}
	rv.Comments = append(rv.Comments, *c)
	return nil
}

type mergeRepo Store

func (r *mergeRepo) Create(ctx context.Context, tx store.Tx, j *domain.MergeJob) error {
	j.CreatedAt = time.Now()
	cp := *j
	(*Store)(r).merges[j.ID] = &cp
	return nil
}

func (r *mergeRepo) Get(ctx context.Context, id string) (*domain.MergeJob, error) {
	j, ok := (*Store)(r).merges[id]
	if !ok {
		return nil, apperrors.NotFound("merge_job", id)
	}
	cp := *j
	return &cp, nil
}

func (r *mergeRepo) Update(ctx context.Context, tx store.Tx, j *domain.MergeJob) error {
	if _, ok := (*Store)(r).merges[j.ID]; !ok {
		return apperrors.NotFound("merge_job", j.ID)
	}
	cp := *j
	(*Store)(r).merges[j.ID] = &cp
	return nil
}

func (r *mergeRepo) ListByTask(ctx context.Context, taskID int64) ([]*domain.MergeJob, error) {
	var out []*domain.MergeJob
	for _, j := range (*Store)(r).merges {
		if j.TaskID == taskID {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *mergeRepo) ClaimNextQueued(ctx context.Context) (*domain.MergeJob, error) {
	var best *domain.MergeJob
	for _, j := range (*Store)(r).merges {
		if j.Status != domain.MergeJobStatusQueued {
			continue
		}
		if best == nil || j.CreatedAt.Before(best.CreatedAt) {
			best = j
		}
	}
	if best == nil {
		return nil, nil
	}
	now := time.Now()
	best.Status = domain.MergeJobStatusRunning
	best.StartedAt = &now
	cp := *best
	return &cp, nil
}
