package runner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/openclaw/internal/adapter"
	"github.com/openclaw/openclaw/internal/apperrors"
	"github.com/openclaw/openclaw/internal/budget"
	"github.com/openclaw/openclaw/internal/config"
	"github.com/openclaw/openclaw/internal/directory"
	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/pubsub"
	"github.com/openclaw/openclaw/internal/runner"
	"github.com/openclaw/openclaw/internal/store/memory"
	"github.com/openclaw/openclaw/internal/task"
)

// fakeAdapter is a stand-in coding-agent CLI integration for exercising the
// Runner without spawning a real subprocess.
type fakeAdapter struct {
	result    adapter.Result
	err       error
	lastInput adapter.PromptInput
}

func (f *fakeAdapter) Name() string                         { return "fake" }
func (f *fakeAdapter) ValidateEnvironment() (bool, string)  { return true, "" }
func (f *fakeAdapter) BuildPrompt(in adapter.PromptInput) string {
	f.lastInput = in
	return "prompt for " + in.Role
}
func (f *fakeAdapter) Run(ctx context.Context, prompt string, cfg adapter.Config) (adapter.Result, error) {
	return f.result, f.err
}

func newHarness(t *testing.T, a adapter.Adapter) (*runner.Runner, *memory.Store, *directory.Service, *task.Service) {
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
		DefaultAdapter: "fake",
		TimeoutSeconds: 30,
	}, nil)
	return r, st, dirSvc, taskSvc
}

func TestRunCompletesAndClosesSession(t *testing.T) {
	ctx := context.Background()
	a := &fakeAdapter{result: adapter.Result{ExitCode: 0, Stdout: "done"}}
	r, _, dirSvc, _ := newHarness(t, a)

	agent, err := dirSvc.CreateAgent(ctx, "team-1", "engineer-1", domain.AgentRoleEngineer, "claude-sonnet-4", domain.AgentConfig{})
	require.NoError(t, err)

	res, err := r.Run(ctx, agent.ID, nil, runner.Options{})
	require.NoError(t, err)
	assert.Equal(t, runner.OutcomeCompleted, res.Outcome)
	assert.Equal(t, 0, res.ExitCode)

	got, err := dirSvc.GetAgent(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusIdle, got.Status)
}

func TestRunClassifiesNonZeroExitAsFailed(t *testing.T) {
	ctx := context.Background()
	a := &fakeAdapter{result: adapter.Result{ExitCode: 1, Stderr: "boom", Error: "exit status 1"}}
	r, _, dirSvc, _ := newHarness(t, a)

	agent, err := dirSvc.CreateAgent(ctx, "team-1", "engineer-2", domain.AgentRoleEngineer, "claude-sonnet-4", domain.AgentConfig{})
	require.NoError(t, err)

	res, err := r.Run(ctx, agent.ID, nil, runner.Options{})
	require.NoError(t, err)
	assert.Equal(t, runner.OutcomeFailed, res.Outcome)

	got, err := dirSvc.GetAgent(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusIdle, got.Status, "session must close and agent return to idle even on failure")
}

func TestRunClassifiesTimeout(t *testing.T) {
	ctx := context.Background()
	a := &fakeAdapter{result: adapter.Result{ExitCode: -1, Error: "timed out after 30s"}}
	r, _, dirSvc, _ := newHarness(t, a)

	agent, err := dirSvc.CreateAgent(ctx, "team-1", "engineer-3", domain.AgentRoleEngineer, "claude-sonnet-4", domain.AgentConfig{})
	require.NoError(t, err)

	res, err := r.Run(ctx, agent.ID, nil, runner.Options{})
	require.NoError(t, err)
	assert.Equal(t, runner.OutcomeTimeout, res.Outcome)
}

func TestRunBudgetExceededRefusesBeforeSession(t *testing.T) {
	ctx := context.Background()
	a := &fakeAdapter{result: adapter.Result{ExitCode: 0}}
	st := memory.New()
	reg := adapter.NewRegistry("fake")
	reg.Register(a)
	dirSvc := directory.NewService(st, nil)
	taskSvc := task.NewService(st, pubsub.NewMemoryBus(nil), nil)
	budgetSvc := budget.NewService(st, budget.DefaultTable(), config.BudgetConfig{
		DefaultDailyCostLimitUSD: 0.01,
		DefaultTaskCostLimitUSD:  100,
	}, nil)
	r := runner.New(st, reg, budgetSvc, dirSvc, taskSvc, pubsub.NewMemoryBus(nil), config.AdapterConfig{
		DefaultAdapter: "fake", TimeoutSeconds: 30,
	}, nil)

	agent, err := dirSvc.CreateAgent(ctx, "team-1", "engineer-4", domain.AgentRoleEngineer, "claude-opus-4", domain.AgentConfig{})
	require.NoError(t, err)

	session, err := budgetSvc.StartSession(ctx, agent, nil, agent.Model)
	require.NoError(t, err)
	require.NoError(t, budgetSvc.RecordUsage(ctx, session, 1_000_000, 0, 0, 0))
	require.NoError(t, budgetSvc.EndSession(ctx, session, ""))

	_, err = r.Run(ctx, agent.ID, nil, runner.Options{})
	require.Error(t, err)
	kind, ok := apperrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindBudgetExceeded, kind)
}

func TestRunWithTaskLoadsContextAndConventions(t *testing.T) {
	ctx := context.Background()
	a := &fakeAdapter{result: adapter.Result{ExitCode: 0}}
	r, _, dirSvc, taskSvc := newHarness(t, a)

	org, err := dirSvc.CreateOrganization(ctx, "Acme", "acme")
	require.NoError(t, err)
	team, err := dirSvc.CreateTeam(ctx, org.ID, "Platform", "platform")
	require.NoError(t, err)
	_, err = dirSvc.AddConvention(ctx, team.ID, domain.Convention{Key: "lint", Content: "golangci-lint", Active: true})
	require.NoError(t, err)

	agent, err := dirSvc.CreateAgent(ctx, team.ID, "engineer-5", domain.AgentRoleEngineer, "claude-sonnet-4", domain.AgentConfig{})
	require.NoError(t, err)
	tsk, err := taskSvc.CreateTask(ctx, team.ID, task.Draft{Title: "Add retries"})
	require.NoError(t, err)
	_, err = taskSvc.SaveContext(ctx, tsk.ID, map[string]string{"discovered_file": "internal/foo.go"})
	require.NoError(t, err)

	res, err := r.Run(ctx, agent.ID, &tsk.ID, runner.Options{})
	require.NoError(t, err)
	assert.Equal(t, runner.OutcomeCompleted, res.Outcome)
	assert.Equal(t, []adapter.ConventionEntry{{Key: "lint", Content: "golangci-lint"}}, a.lastInput.Conventions)
	assert.Equal(t, "internal/foo.go", a.lastInput.Context["discovered_file"])
}
