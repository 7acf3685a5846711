// Package directory implements Organization, Team, Agent, and Repository
// registration and lookup — the system's tenancy tree (§3).
package directory

import (
	"context"

	"github.com/google/uuid"

	"github.com/openclaw/openclaw/internal/apperrors"
	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/eventlog"
	"github.com/openclaw/openclaw/internal/logger"
	"github.com/openclaw/openclaw/internal/store"
)

// Service wraps the directory repositories with validation and event
// emission. It has no business logic beyond uniqueness checks and id
// generation — the interesting behavior lives in Task/Dispatcher/Review.
type Service struct {
	store store.Store
	log   *logger.Logger
}

func NewService(st store.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{store: st, log: log}
}

func (s *Service) CreateOrganization(ctx context.Context, name, slug string) (*domain.Organization, error) {
	if existing, _ := s.store.Organizations().GetBySlug(ctx, slug); existing != nil {
		return nil, apperrors.New(apperrors.KindDuplicateKey, "organization slug already in use")
	}
	org := &domain.Organization{ID: uuid.New().String(), Name: name, Slug: slug}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return s.store.Organizations().Create(ctx, tx, org)
	})
	return org, err
}

func (s *Service) GetOrganization(ctx context.Context, id string) (*domain.Organization, error) {
	return s.store.Organizations().Get(ctx, id)
}

func (s *Service) CreateTeam(ctx context.Context, orgID, name, slug string) (*domain.Team, error) {
	if existing, _ := s.store.Teams().GetBySlug(ctx, orgID, slug); existing != nil {
		return nil, apperrors.New(apperrors.KindDuplicateKey, "team slug already in use for this organization")
	}
	team := &domain.Team{
		ID: uuid.New().String(), OrgID: orgID, Name: name, Slug: slug,
		Config: domain.TeamConfig{Extra: map[string]any{}},
	}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return s.store.Teams().Create(ctx, tx, team)
	})
	return team, err
}

func (s *Service) GetTeam(ctx context.Context, id string) (*domain.Team, error) {
	return s.store.Teams().Get(ctx, id)
}

func (s *Service) ListTeams(ctx context.Context, orgID string) ([]*domain.Team, error) {
	return s.store.Teams().ListByOrg(ctx, orgID)
}

// AddConvention appends a convention to a team's config, refusing a
// duplicate key (§3).
func (s *Service) AddConvention(ctx context.Context, teamID string, c domain.Convention) (*domain.Team, error) {
	team, err := s.store.Teams().Get(ctx, teamID)
	if err != nil {
		return nil, err
	}
	for _, existing := range team.Config.Conventions {
		if existing.Key == c.Key {
			return nil, apperrors.New(apperrors.KindDuplicateKey, "convention key already exists: "+c.Key)
		}
	}
	team.Config.Conventions = append(team.Config.Conventions, c)
	err = s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return s.store.Teams().Update(ctx, tx, team)
	})
	return team, err
}

// ActiveConventions returns a team's Active conventions in declared order.
func (s *Service) ActiveConventions(ctx context.Context, teamID string) ([]domain.Convention, error) {
	team, err := s.store.Teams().Get(ctx, teamID)
	if err != nil {
		return nil, err
	}
	var out []domain.Convention
	for _, c := range team.Config.Conventions {
		if c.Active {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Service) CreateAgent(ctx context.Context, teamID, name string, role domain.AgentRole, model string, cfg domain.AgentConfig) (*domain.Agent, error) {
	if existing, _ := s.store.Agents().GetByName(ctx, teamID, name); existing != nil {
		return nil, apperrors.New(apperrors.KindDuplicateKey, "agent name already in use on this team")
	}
	agent := &domain.Agent{
		ID: uuid.New().String(), TeamID: teamID, Name: name, Role: role, Model: model,
		Status: domain.AgentStatusIdle, Config: cfg,
	}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := s.store.Agents().Create(ctx, tx, agent); err != nil {
			return err
		}
		_, err := s.store.Events().Append(ctx, tx, eventlog.AgentStream(agent.ID), "agent.created", map[string]any{
			"agent_id": agent.ID, "team_id": teamID, "role": string(role),
		}, nil)
		return err
	})
	return agent, err
}

func (s *Service) GetAgent(ctx context.Context, id string) (*domain.Agent, error) {
	return s.store.Agents().Get(ctx, id)
}

func (s *Service) ListAgents(ctx context.Context, teamID string) ([]*domain.Agent, error) {
	return s.store.Agents().ListByTeam(ctx, teamID)
}

func (s *Service) PauseAgent(ctx context.Context, id string) (*domain.Agent, error) {
	return s.setAgentStatus(ctx, id, domain.AgentStatusPaused)
}

func (s *Service) ResumeAgent(ctx context.Context, id string) (*domain.Agent, error) {
	return s.setAgentStatus(ctx, id, domain.AgentStatusIdle)
}

func (s *Service) setAgentStatus(ctx context.Context, id string, status domain.AgentStatus) (*domain.Agent, error) {
	agent, err := s.store.Agents().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	agent.Status = status
	err = s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return s.store.Agents().Update(ctx, tx, agent)
	})
	return agent, err
}

func (s *Service) CreateRepository(ctx context.Context, teamID, name, localPath, defaultBranch string) (*domain.Repository, error) {
	repo := &domain.Repository{
		ID: uuid.New().String(), TeamID: teamID, Name: name,
		LocalPath: localPath, DefaultBranch: defaultBranch, Config: map[string]any{},
	}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return s.store.Repositories().Create(ctx, tx, repo)
	})
	return repo, err
}

func (s *Service) GetRepository(ctx context.Context, id string) (*domain.Repository, error) {
	return s.store.Repositories().Get(ctx, id)
}

func (s *Service) ListRepositories(ctx context.Context, teamID string) ([]*domain.Repository, error) {
	return s.store.Repositories().ListByTeam(ctx, teamID)
}
