// Package runner implements the Agent Runner: the stateless orchestrator
// that loads an Agent (and optional Task), resolves and runs an Adapter
// subprocess, and accounts for the session regardless of outcome (§4.4).
package runner

import (
	"context"
	"time"

	"github.com/openclaw/openclaw/internal/adapter"
	"github.com/openclaw/openclaw/internal/apperrors"
	"github.com/openclaw/openclaw/internal/budget"
	"github.com/openclaw/openclaw/internal/config"
	"github.com/openclaw/openclaw/internal/directory"
	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/eventlog"
	"github.com/openclaw/openclaw/internal/logger"
	"github.com/openclaw/openclaw/internal/pubsub"
	"github.com/openclaw/openclaw/internal/store"
	"github.com/openclaw/openclaw/internal/task"
)

// Outcome classifies how a run ended (§4.4 step 8).
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimeout   Outcome = "timeout"
)

// Options lets a caller override the normally-resolved adapter or prompt.
type Options struct {
	AdapterOverride string
	RawPrompt       string
}

// Result is what Run returns once the session is closed.
type Result struct {
	Outcome  Outcome `json:"outcome"`
	ExitCode int     `json:"exit_code"`
	Stdout   string  `json:"stdout,omitempty"`
	Stderr   string  `json:"stderr,omitempty"`
	Error    string  `json:"error,omitempty"`
}

type Runner struct {
	store     store.Store
	registry  *adapter.Registry
	budget    *budget.Service
	directory *directory.Service
	tasks     *task.Service
	bus       pubsub.Bus
	cfg       config.AdapterConfig
	log       *logger.Logger
}

func New(st store.Store, registry *adapter.Registry, budgetSvc *budget.Service, dirSvc *directory.Service, taskSvc *task.Service, bus pubsub.Bus, cfg config.AdapterConfig, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Default()
	}
	return &Runner{
		store: st, registry: registry, budget: budgetSvc, directory: dirSvc,
		tasks: taskSvc, bus: bus, cfg: cfg, log: log,
	}
}

// Run executes one agent turn end to end. It acquires its own session and
// is safe to call concurrently from the Dispatcher or a synchronous
// entry point.
func (r *Runner) Run(ctx context.Context, agentID string, taskID *int64, opts Options) (Result, error) {
	agent, err := r.store.Agents().Get(ctx, agentID)
	if err != nil {
		return Result{}, err
	}

	var t *domain.Task
	if taskID != nil {
		t, err = r.store.Tasks().Get(ctx, *taskID)
		if err != nil {
			return Result{}, err
		}
	}

	a, err := r.registry.Resolve(opts.AdapterOverride, agent.Config.Adapter)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.KindAdapterUnavailable, "resolve adapter", err)
	}
	if ok, msg := a.ValidateEnvironment(); !ok {
		return Result{}, apperrors.New(apperrors.KindAdapterUnavailable, "adapter environment invalid: "+msg)
	}

	session, err := r.budget.StartSession(ctx, agent, taskID, agent.Model)
	if err != nil {
		return Result{}, err
	}

	res, runErr := r.runWithSession(ctx, agent, t, a, session, opts)

	endErr := ""
	if runErr != nil {
		endErr = runErr.Error()
	} else if res.Error != "" {
		endErr = res.Error
	}
	if endErr != "" {
		_ = r.budget.EndSession(ctx, session, endErr)
	} else {
		_ = r.budget.EndSession(ctx, session, "")
	}

	eventType := "agent.run." + string(res.Outcome)
	_ = r.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := r.store.Events().Append(ctx, tx, eventlog.AgentStream(agent.ID), eventType, map[string]any{
			"agent_id": agent.ID, "session_id": session.ID, "exit_code": res.ExitCode,
		}, nil)
		return err
	})
	if r.bus != nil {
		_ = r.bus.Publish(ctx, pubsub.TeamEventsSubject(agent.TeamID), pubsub.NewEvent(eventType, "agent-runner", map[string]any{
			"agent_id": agent.ID, "session_id": session.ID,
		}))
	}

	return res, runErr
}

func (r *Runner) runWithSession(ctx context.Context, agent *domain.Agent, t *domain.Task, a adapter.Adapter, session *domain.Session, opts Options) (res Result, runErr error) {
	defer func() {
		if rec := recover(); rec != nil {
			res = Result{Outcome: OutcomeFailed, Error: "panic during run"}
		}
	}()

	_ = r.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := r.store.Events().Append(ctx, tx, eventlog.AgentStream(agent.ID), "agent.run.started", map[string]any{
			"agent_id": agent.ID, "session_id": session.ID,
		}, nil)
		return err
	})

	prompt := opts.RawPrompt
	if prompt == "" {
		in := adapter.PromptInput{AgentID: agent.ID, TeamID: agent.TeamID, Role: string(agent.Role)}
		if r.directory != nil {
			if conventions, err := r.directory.ActiveConventions(ctx, agent.TeamID); err == nil {
				in.Conventions = toConventionEntries(conventions)
			}
		}
		if t != nil {
			in.TaskID = t.ID
			in.TaskTitle = t.Title
			in.TaskDescription = t.Description
			in.Context = t.Metadata.Context
		}
		prompt = a.BuildPrompt(in)
	}

	workDir := ""
	var taskID *int64
	if t != nil {
		taskID = &t.ID
	}

	bridgePath, err := adapter.ResolveToolBridge(r.cfg.ToolBridgePath)
	if err != nil {
		r.log.Warn("tool-bridge resolution failed: " + err.Error())
	}

	timeout := agent.Config.TimeoutSeconds
	if timeout <= 0 {
		timeout = r.cfg.TimeoutSeconds
	}

	acfg := adapter.Config{
		APIURL:           r.cfg.APIBaseURL,
		WorkingDirectory: workDir,
		AgentID:          agent.ID,
		TeamID:           agent.TeamID,
		TaskID:           taskID,
		TimeoutSeconds:   timeout,
	}
	if bridgePath != "" {
		acfg.MCPServerCommand = []string{bridgePath}
	}

	start := time.Now()
	out, err := a.Run(ctx, prompt, acfg)
	_ = time.Since(start)

	if err != nil {
		return Result{Outcome: OutcomeFailed, Error: err.Error()}, err
	}
	if out.ExitCode == -1 && out.Error != "" {
		return Result{Outcome: OutcomeTimeout, ExitCode: out.ExitCode, Stdout: out.Stdout, Stderr: out.Stderr, Error: out.Error}, nil
	}
	if out.ExitCode != 0 {
		return Result{Outcome: OutcomeFailed, ExitCode: out.ExitCode, Stdout: out.Stdout, Stderr: out.Stderr, Error: out.Error}, nil
	}
	return Result{Outcome: OutcomeCompleted, ExitCode: out.ExitCode, Stdout: out.Stdout, Stderr: out.Stderr}, nil
}

func toConventionEntries(cs []domain.Convention) []adapter.ConventionEntry {
	out := make([]adapter.ConventionEntry, len(cs))
	for i, c := range cs {
		out[i] = adapter.ConventionEntry{Key: c.Key, Content: c.Content}
	}
	return out
}
