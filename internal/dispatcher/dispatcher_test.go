package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/openclaw/internal/adapter"
	"github.com/openclaw/openclaw/internal/budget"
	"github.com/openclaw/openclaw/internal/config"
	"github.com/openclaw/openclaw/internal/directory"
	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/pubsub"
	"github.com/openclaw/openclaw/internal/runner"
	"github.com/openclaw/openclaw/internal/store"
	"github.com/openclaw/openclaw/internal/store/memory"
	"github.com/openclaw/openclaw/internal/task"
)

// blockingAdapter stands in for a coding-agent CLI whose subprocess hasn't
// exited yet, so tests can observe the Dispatcher's in-flight/concurrency
// bookkeeping while a run is still "in progress".
type blockingAdapter struct {
	release chan struct{}
}

func (b *blockingAdapter) Name() string                        { return "fake" }
func (b *blockingAdapter) ValidateEnvironment() (bool, string) { return true, "" }
func (b *blockingAdapter) BuildPrompt(in adapter.PromptInput) string {
	return "prompt"
}
func (b *blockingAdapter) Run(ctx context.Context, prompt string, cfg adapter.Config) (adapter.Result, error) {
	<-b.release
	return adapter.Result{ExitCode: 0}, nil
}

func newTestDispatcher(t *testing.T, maxConcurrent int, a adapter.Adapter) (*Dispatcher, *memory.Store, *directory.Service) {
	t.Helper()
	st := memory.New()
	reg := adapter.NewRegistry("fake")
	reg.Register(a)
	dirSvc := directory.NewService(st, nil)
	taskSvc := task.NewService(st, pubsub.NewMemoryBus(nil), nil)
	budgetSvc := budget.NewService(st, budget.DefaultTable(), config.BudgetConfig{
		DefaultDailyCostLimitUSD: 100,
		DefaultTaskCostLimitUSD:  100,
	}, nil)
	r := runner.New(st, reg, budgetSvc, dirSvc, taskSvc, pubsub.NewMemoryBus(nil), config.AdapterConfig{
		DefaultAdapter: "fake", TimeoutSeconds: 30,
	}, nil)
	d := New(st, config.DatabaseConfig{}, config.DispatcherConfig{MaxConcurrent: maxConcurrent}, r, pubsub.NewMemoryBus(nil), nil)
	return d, st, dirSvc
}

func TestDispatchSkipsNonIdleAgent(t *testing.T) {
	release := make(chan struct{})
	close(release)
	d, _, dirSvc := newTestDispatcher(t, 4, &blockingAdapter{release: release})

	ctx := context.Background()
	agent, err := dirSvc.CreateAgent(ctx, "team-1", "eng-1", domain.AgentRoleEngineer, "claude-sonnet-4", domain.AgentConfig{})
	require.NoError(t, err)
	_, err = dirSvc.PauseAgent(ctx, agent.ID)
	require.NoError(t, err)

	d.dispatch(ctx, candidate{agentID: agent.ID, reason: "test"})

	assert.Equal(t, int64(0), d.Stats().Dispatched)
	assert.Equal(t, int64(1), d.Stats().Skipped)

	got, err := dirSvc.GetAgent(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusPaused, got.Status, "dispatch must not touch a non-idle agent's status")
}

func TestDispatchDedupesInFlightAgent(t *testing.T) {
	release := make(chan struct{})
	d, _, dirSvc := newTestDispatcher(t, 4, &blockingAdapter{release: release})
	defer close(release)

	ctx := context.Background()
	agent, err := dirSvc.CreateAgent(ctx, "team-1", "eng-2", domain.AgentRoleEngineer, "claude-sonnet-4", domain.AgentConfig{})
	require.NoError(t, err)

	d.dispatch(ctx, candidate{agentID: agent.ID, reason: "test"})

	// dispatch marks the agent in-flight before it starts the Runner
	// goroutine; confirm the mark is held while the run blocks.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		d.inFlightMu.Lock()
		inFlight := d.inFlight[agent.ID]
		d.inFlightMu.Unlock()
		if inFlight {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	d.dispatch(ctx, candidate{agentID: agent.ID, reason: "dup"})

	assert.Equal(t, int64(1), d.Stats().Dispatched)
	assert.Equal(t, int64(1), d.Stats().Skipped, "second dispatch of the same in-flight agent must be skipped")
}

func TestDispatchGlobalConcurrencyCap(t *testing.T) {
	release := make(chan struct{})
	d, _, dirSvc := newTestDispatcher(t, 1, &blockingAdapter{release: release})
	defer close(release)

	ctx := context.Background()
	a1, err := dirSvc.CreateAgent(ctx, "team-1", "eng-3", domain.AgentRoleEngineer, "claude-sonnet-4", domain.AgentConfig{})
	require.NoError(t, err)
	a2, err := dirSvc.CreateAgent(ctx, "team-1", "eng-4", domain.AgentRoleEngineer, "claude-sonnet-4", domain.AgentConfig{})
	require.NoError(t, err)

	done1 := make(chan struct{})
	go func() {
		d.dispatch(ctx, candidate{agentID: a1.ID, reason: "first"})
		close(done1)
	}()
	<-done1

	// The semaphore is released once the Runner goroutine is scheduled, not
	// once it completes (§4.5 step 9), so a second distinct agent can still
	// be dispatched immediately even while the first is still "running".
	done2 := make(chan struct{})
	go func() {
		d.dispatch(ctx, candidate{agentID: a2.ID, reason: "second"})
		close(done2)
	}()
	select {
	case <-done2:
	case <-time.After(2 * time.Second):
		t.Fatal("second dispatch should not block on the first agent's in-flight run")
	}
}

func TestReconcileOnceExpiresStaleHumanRequests(t *testing.T) {
	release := make(chan struct{})
	close(release)
	d, st, dirSvc := newTestDispatcher(t, 4, &blockingAdapter{release: release})

	ctx := context.Background()
	agent, err := dirSvc.CreateAgent(ctx, "team-1", "eng-5", domain.AgentRoleEngineer, "claude-sonnet-4", domain.AgentConfig{})
	require.NoError(t, err)

	past := time.Now().Add(-time.Minute)
	hr := &domain.HumanRequest{
		ID: "hr-1", TeamID: "team-1", AgentID: agent.ID, Kind: domain.RequestKindQuestion,
		Question: "blocked?", Status: domain.HumanRequestStatusPending, TimeoutAt: &past,
		CreatedAt: time.Now(),
	}
	require.NoError(t, st.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return st.HumanRequests().Create(ctx, tx, hr)
	}))

	d.reconcileOnce(ctx)

	got, err := st.HumanRequests().Get(ctx, "hr-1")
	require.NoError(t, err)
	assert.Equal(t, domain.HumanRequestStatusExpired, got.Status)
}

func TestReconcileOnceResetsStuckWorkingAgent(t *testing.T) {
	release := make(chan struct{})
	close(release)
	d, st, dirSvc := newTestDispatcher(t, 4, &blockingAdapter{release: release})
	d.cfg.StuckAgentMinutes = 30

	ctx := context.Background()
	agent, err := dirSvc.CreateAgent(ctx, "team-1", "eng-6", domain.AgentRoleEngineer, "claude-sonnet-4", domain.AgentConfig{})
	require.NoError(t, err)
	agent.Status = domain.AgentStatusWorking
	agent.UpdatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, st.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return st.Agents().Update(ctx, tx, agent)
	}))

	d.reconcileOnce(ctx)

	got, err := dirSvc.GetAgent(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusIdle, got.Status)
}
