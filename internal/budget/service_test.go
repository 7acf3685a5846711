package budget_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/openclaw/internal/apperrors"
	"github.com/openclaw/openclaw/internal/budget"
	"github.com/openclaw/openclaw/internal/config"
	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/store"
	"github.com/openclaw/openclaw/internal/store/memory"
)

func newAgent(t *testing.T, st store.Store, dailyLimit *float64) *domain.Agent {
	t.Helper()
	agent := &domain.Agent{ID: "agent-1", TeamID: "team-1", Name: "engineer-1",
		Role: domain.AgentRoleEngineer, Status: domain.AgentStatusIdle,
		Model:  "claude-sonnet-4",
		Config: domain.AgentConfig{DailyCostLimitUSD: dailyLimit},
	}
	require.NoError(t, st.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return st.Agents().Create(ctx, tx, agent)
	}))
	return agent
}

func TestStartSessionRefusesWhenDailyBudgetExhausted(t *testing.T) {
	st := memory.New()
	limit := 0.0001
	agent := newAgent(t, st, &limit)

	svc := budget.NewService(st, budget.DefaultTable(), config.BudgetConfig{DefaultModel: "claude-sonnet-4"}, nil)

	session, err := svc.StartSession(context.Background(), agent, nil, "")
	require.NoError(t, err)
	require.NoError(t, svc.RecordUsage(context.Background(), session, 1_000_000, 1_000_000, 0, 0))
	require.NoError(t, svc.EndSession(context.Background(), session, ""))

	_, err = svc.StartSession(context.Background(), agent, nil, "")
	require.Error(t, err)
	kind, ok := apperrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindBudgetExceeded, kind)
}

func TestStartSessionFallsBackToPlatformDefaultModel(t *testing.T) {
	st := memory.New()
	agent := newAgent(t, st, nil)
	agent.Model = ""

	svc := budget.NewService(st, budget.DefaultTable(), config.BudgetConfig{DefaultModel: "claude-haiku-3.5"}, nil)

	session, err := svc.StartSession(context.Background(), agent, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "claude-haiku-3.5", session.Model)
}

func TestEndSessionReturnsAgentToIdle(t *testing.T) {
	st := memory.New()
	agent := newAgent(t, st, nil)
	svc := budget.NewService(st, budget.DefaultTable(), config.BudgetConfig{DefaultModel: "claude-sonnet-4"}, nil)

	session, err := svc.StartSession(context.Background(), agent, nil, "")
	require.NoError(t, err)

	refreshed, err := st.Agents().Get(context.Background(), agent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusWorking, refreshed.Status)

	require.NoError(t, svc.EndSession(context.Background(), session, "adapter crashed"))

	refreshed, err = st.Agents().Get(context.Background(), agent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusIdle, refreshed.Status)
}
