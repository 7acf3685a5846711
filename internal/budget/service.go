// Package budget implements the Budget/Session Manager: pricing, budget
// checks, and session lifecycle accounting (§4.3).
package budget

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/openclaw/internal/apperrors"
	"github.com/openclaw/openclaw/internal/config"
	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/eventlog"
	"github.com/openclaw/openclaw/internal/logger"
	"github.com/openclaw/openclaw/internal/store"
)

type Service struct {
	store  store.Store
	table  Table
	cfg    config.BudgetConfig
	log    *logger.Logger
}

func NewService(st store.Store, table Table, cfg config.BudgetConfig, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{store: st, table: table, cfg: cfg, log: log}
}

// Status is the result of a budget check (§4.3).
type Status struct {
	WithinBudget bool     `json:"within_budget"`
	DailySpent   float64  `json:"daily_spent"`
	DailyLimit   float64  `json:"daily_limit"`
	TaskSpent    float64  `json:"task_spent"`
	TaskLimit    float64  `json:"task_limit"`
	Violations   []string `json:"violations,omitempty"`
}

// GetSession is a passthrough lookup for API handlers that only hold a
// session id (POST /sessions/{id}/usage, /end).
func (s *Service) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	return s.store.Sessions().Get(ctx, id)
}

// AgentBudgetStatus is the GET /agents/{id}/budget read path: a budget
// check with no task in scope.
func (s *Service) AgentBudgetStatus(ctx context.Context, agentID string) (Status, error) {
	agent, err := s.store.Agents().Get(ctx, agentID)
	if err != nil {
		return Status{}, err
	}
	return s.CheckBudget(ctx, agent, nil)
}

func (s *Service) limits(agent *domain.Agent) (daily, task float64) {
	daily = s.cfg.DefaultDailyCostLimitUSD
	if agent.Config.DailyCostLimitUSD != nil {
		daily = *agent.Config.DailyCostLimitUSD
	}
	task = s.cfg.DefaultTaskCostLimitUSD
	if agent.Config.TaskCostLimitUSD != nil {
		task = *agent.Config.TaskCostLimitUSD
	}
	return daily, task
}

// CheckBudget sums spend for the local calendar day and, if taskID is
// non-nil, for the task, and compares against the agent's configured caps
// (falling back to platform defaults).
func (s *Service) CheckBudget(ctx context.Context, agent *domain.Agent, taskID *int64) (Status, error) {
	dailyLimit, taskLimit := s.limits(agent)

	now := time.Now().Local()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	dailySpent, err := s.store.Sessions().SumCostSince(ctx, agent.ID, dayStart)
	if err != nil {
		return Status{}, err
	}

	status := Status{
		WithinBudget: true,
		DailySpent:   dailySpent,
		DailyLimit:   dailyLimit,
		TaskLimit:    taskLimit,
	}
	if dailyLimit > 0 && dailySpent >= dailyLimit {
		status.WithinBudget = false
		status.Violations = append(status.Violations, "daily_cost_limit_exceeded")
	}

	if taskID != nil {
		taskSpent, err := s.store.Sessions().SumCostForTask(ctx, *taskID)
		if err != nil {
			return Status{}, err
		}
		status.TaskSpent = taskSpent
		if taskLimit > 0 && taskSpent >= taskLimit {
			status.WithinBudget = false
			status.Violations = append(status.Violations, "task_cost_limit_exceeded")
		}
	}

	return status, nil
}

// StartSession opens a Session for agent, refusing with budget_exceeded if
// CheckBudget fails, and flips the agent to working.
func (s *Service) StartSession(ctx context.Context, agent *domain.Agent, taskID *int64, model string) (*domain.Session, error) {
	status, err := s.CheckBudget(ctx, agent, taskID)
	if err != nil {
		return nil, err
	}
	if !status.WithinBudget {
		_ = s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			_, err := s.store.Events().Append(ctx, tx, eventlog.AgentStream(agent.ID), "agent.budget_exceeded", map[string]any{
				"agent_id": agent.ID, "violations": status.Violations,
			}, nil)
			return err
		})
		return nil, apperrors.New(apperrors.KindBudgetExceeded, "agent has exceeded its budget")
	}

	if model == "" {
		model = agent.Model
	}
	if model == "" {
		model = s.cfg.DefaultModel
	}

	session := &domain.Session{
		ID: uuid.New().String(), AgentID: agent.ID, TaskID: taskID,
		StartedAt: time.Now(), Model: model,
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := s.store.Sessions().Create(ctx, tx, session); err != nil {
			return err
		}
		agent.Status = domain.AgentStatusWorking
		if err := s.store.Agents().Update(ctx, tx, agent); err != nil {
			return err
		}
		_, err := s.store.Events().Append(ctx, tx, eventlog.AgentStream(agent.ID), "session.started", map[string]any{
			"session_id": session.ID, "agent_id": agent.ID, "model": model,
		}, nil)
		return err
	})
	return session, err
}

// RecordUsage accumulates token deltas onto a session and recomputes its
// cost as a pure function of the running totals (I6, P5).
func (s *Service) RecordUsage(ctx context.Context, session *domain.Session, tokensIn, tokensOut, cacheRead, cacheWrite int64) error {
	session.TokensIn += tokensIn
	session.TokensOut += tokensOut
	session.CacheRead += cacheRead
	session.CacheWrite += cacheWrite
	session.CostUSD = s.table.Cost(session.Model, session.TokensIn, session.TokensOut, session.CacheRead, session.CacheWrite)

	return s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := s.store.Sessions().Update(ctx, tx, session); err != nil {
			return err
		}
		_, err := s.store.Events().Append(ctx, tx, eventlog.AgentStream(session.AgentID), "session.usage_recorded", map[string]any{
			"session_id": session.ID, "tokens_in": tokensIn, "tokens_out": tokensOut,
			"cache_read": cacheRead, "cache_write": cacheWrite, "cost_usd": session.CostUSD,
		}, nil)
		return err
	})
}

// EndSession closes a session, optionally with an error, and returns the
// agent to idle. The caller must guarantee this runs even on a mid-run
// exception (§4.3).
func (s *Service) EndSession(ctx context.Context, session *domain.Session, runErr string) error {
	now := time.Now()
	session.EndedAt = &now
	session.Error = runErr

	return s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := s.store.Sessions().Update(ctx, tx, session); err != nil {
			return err
		}
		agent, err := s.store.Agents().Get(ctx, session.AgentID)
		if err != nil {
			return err
		}
		agent.Status = domain.AgentStatusIdle
		if err := s.store.Agents().Update(ctx, tx, agent); err != nil {
			return err
		}
		_, err = s.store.Events().Append(ctx, tx, eventlog.AgentStream(session.AgentID), "session.ended", map[string]any{
			"session_id": session.ID, "error": runErr,
		}, nil)
		return err
	})
}

// AgentCostRow and ModelCostRow are the per-agent / per-model rollups in a
// CostSummary.
type AgentCostRow struct {
	AgentID   string  `json:"agent_id"`
	AgentName string  `json:"agent_name"`
	CostUSD   float64 `json:"cost_usd"`
	Sessions  int     `json:"sessions"`
}

type ModelCostRow struct {
	Model    string  `json:"model"`
	CostUSD  float64 `json:"cost_usd"`
	Sessions int     `json:"sessions"`
}

// CostSummary aggregates a team's session spend over the last N days.
type CostSummary struct {
	TotalCostUSD  float64        `json:"total_cost_usd"`
	TotalSessions int            `json:"total_sessions"`
	ByAgent       []AgentCostRow `json:"by_agent,omitempty"`
	ByModel       []ModelCostRow `json:"by_model,omitempty"`
}

func (s *Service) CostSummary(ctx context.Context, teamID string, days int) (CostSummary, error) {
	sessions, err := s.store.Sessions().ListForTeamSince(ctx, teamID, days)
	if err != nil {
		return CostSummary{}, err
	}

	agentRows := map[string]*AgentCostRow{}
	modelRows := map[string]*ModelCostRow{}
	var summary CostSummary

	for _, sess := range sessions {
		summary.TotalCostUSD += sess.CostUSD
		summary.TotalSessions++

		ar, ok := agentRows[sess.AgentID]
		if !ok {
			agent, err := s.store.Agents().Get(ctx, sess.AgentID)
			name := sess.AgentID
			if err == nil {
				name = agent.Name
			}
			ar = &AgentCostRow{AgentID: sess.AgentID, AgentName: name}
			agentRows[sess.AgentID] = ar
		}
		ar.CostUSD += sess.CostUSD
		ar.Sessions++

		mr, ok := modelRows[sess.Model]
		if !ok {
			mr = &ModelCostRow{Model: sess.Model}
			modelRows[sess.Model] = mr
		}
		mr.CostUSD += sess.CostUSD
		mr.Sessions++
	}

	for _, ar := range agentRows {
		summary.ByAgent = append(summary.ByAgent, *ar)
	}
	for _, mr := range modelRows {
		summary.ByModel = append(summary.ByModel, *mr)
	}
	return summary, nil
}
