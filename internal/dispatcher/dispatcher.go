// Package dispatcher implements the notification-driven Dispatcher: a
// separate long-lived process that wakes idle agents in response to Listen
// notifications, a fallback poller, and a reconciliation loop (§4.5).
// Grounded on the teacher's orchestrator/scheduler start/stop/wg lifecycle
// and the dbx.Listener this system's event bus rides on.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/config"
	"github.com/openclaw/openclaw/internal/dbx"
	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/eventlog"
	"github.com/openclaw/openclaw/internal/logger"
	"github.com/openclaw/openclaw/internal/pubsub"
	"github.com/openclaw/openclaw/internal/runner"
	"github.com/openclaw/openclaw/internal/store"
)

var ErrAlreadyRunning = errors.New("dispatcher: already running")

// notificationChannels are the Postgres LISTEN channels the dispatcher
// subscribes to; the postgres store's repositories NOTIFY each inside the
// transaction that writes the matching row.
var notificationChannels = []string{"new_message", "human_request_resolved", "task_status_changed"}

type candidate struct {
	agentID string
	reason  string
}

// Stats is the live counters exposed by the dispatcher (§4.5).
type Stats struct {
	Dispatched    int64
	Skipped       int64
	Errors        int64
	InFlight      int
	MaxConcurrent int
	StartedAt     time.Time
}

type Dispatcher struct {
	store  store.Store
	dbCfg  config.DatabaseConfig
	cfg    config.DispatcherConfig
	runner *runner.Runner
	bus    pubsub.Bus
	log    *logger.Logger

	sem chan struct{}

	inFlightMu sync.Mutex
	inFlight   map[string]bool

	dispatched int64
	skipped    int64
	errorCount int64
	startedAt  time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func New(st store.Store, dbCfg config.DatabaseConfig, cfg config.DispatcherConfig, r *runner.Runner, bus pubsub.Bus, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Default()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 32
	}
	return &Dispatcher{
		store: st, dbCfg: dbCfg, cfg: cfg, runner: r, bus: bus,
		log:      log.WithFields(zap.String("component", "dispatcher")),
		sem:      make(chan struct{}, cfg.MaxConcurrent),
		inFlight: make(map[string]bool),
	}
}

// Run blocks until ctx is cancelled, driving the listen loop, fallback
// poller, and reconciliation loop concurrently.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return ErrAlreadyRunning
	}
	d.running = true
	d.startedAt = time.Now()
	d.stopCh = make(chan struct{})
	d.mu.Unlock()

	d.wg.Add(3)
	go d.listenLoop(ctx)
	go d.pollLoop(ctx)
	go d.reconcileLoop(ctx)

	<-ctx.Done()
	close(d.stopCh)
	d.wg.Wait()

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
	return ctx.Err()
}

func (d *Dispatcher) Stats() Stats {
	d.inFlightMu.Lock()
	inFlight := len(d.inFlight)
	d.inFlightMu.Unlock()
	return Stats{
		Dispatched:    atomic.LoadInt64(&d.dispatched),
		Skipped:       atomic.LoadInt64(&d.skipped),
		Errors:        atomic.LoadInt64(&d.errorCount),
		InFlight:      inFlight,
		MaxConcurrent: d.cfg.MaxConcurrent,
		StartedAt:     d.startedAt,
	}
}

// listenLoop holds a dedicated LISTEN connection and dispatches on each
// notification; reconnects with backoff if the connection drops.
func (d *Dispatcher) listenLoop(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		default:
		}

		if err := d.listenOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			d.log.Error("listen connection failed, retrying", zap.Error(err))
			time.Sleep(2 * time.Second)
		}
	}
}

func (d *Dispatcher) listenOnce(ctx context.Context) error {
	listener, err := dbx.Listen(ctx, d.dbCfg, notificationChannels[0])
	if err != nil {
		return err
	}
	defer listener.Close(ctx)

	for _, ch := range notificationChannels[1:] {
		if err := listener.ListenAlso(ctx, ch); err != nil {
			return err
		}
	}

	for {
		notif, err := listener.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		d.handleNotification(ctx, notif.Channel, notif.Payload)
	}
}

// handleNotification dispatches the recipient/originating agent named in
// the notification payload (§6's channels are JSON objects); malformed
// payloads are logged and dropped, since the fallback poller still covers
// the message. task_status_changed is informational only and never
// auto-dispatches.
func (d *Dispatcher) handleNotification(ctx context.Context, channel, payload string) {
	switch channel {
	case "new_message":
		var p struct {
			RecipientID string `json:"recipient_id"`
		}
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			d.log.Error("malformed new_message notification", zap.Error(err))
			return
		}
		d.dispatch(ctx, candidate{agentID: p.RecipientID, reason: "new_message"})
	case "human_request_resolved":
		var p struct {
			AgentID string `json:"agent_id"`
		}
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			d.log.Error("malformed human_request_resolved notification", zap.Error(err))
			return
		}
		d.dispatch(ctx, candidate{agentID: p.AgentID, reason: "human_request_resolved"})
	case "task_status_changed":
	}
}

// pollLoop is the fallback poller (§4.5): required because NOTIFY delivery
// is best-effort and a missed notification must not strand a message.
func (d *Dispatcher) pollLoop(ctx context.Context) {
	defer d.wg.Done()

	interval := time.Duration(d.cfg.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	batch := d.cfg.PollBatchSize
	if batch <= 0 {
		batch = 10
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case <-ticker.C:
			msgs, err := d.store.Messages().ListUnprocessedForIdleAgents(ctx, batch)
			if err != nil {
				d.log.Error("fallback poll failed", zap.Error(err))
				continue
			}
			for _, m := range msgs {
				d.dispatch(ctx, candidate{agentID: m.RecipientID, reason: "poll"})
			}
		}
	}
}

// reconcileLoop expires stale human requests and resets agents stuck in
// working with no recent session activity (§4.5).
func (d *Dispatcher) reconcileLoop(ctx context.Context) {
	defer d.wg.Done()

	interval := time.Duration(d.cfg.ReconcileIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.reconcileOnce(ctx)
		}
	}
}

func (d *Dispatcher) reconcileOnce(ctx context.Context) {
	expired, err := d.store.HumanRequests().ListExpiredPending(ctx)
	if err != nil {
		d.log.Error("list expired human requests failed", zap.Error(err))
	}
	for _, hr := range expired {
		hr.Status = domain.HumanRequestStatusExpired
		err := d.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			if err := d.store.HumanRequests().Update(ctx, tx, hr); err != nil {
				return err
			}
			_, err := d.store.Events().Append(ctx, tx, eventlog.AgentStream(hr.AgentID), "human_request.expired", map[string]any{
				"human_request_id": hr.ID,
			}, nil)
			return err
		})
		if err != nil {
			d.log.Error("expire human request failed", zap.String("id", hr.ID), zap.Error(err))
		}
	}

	stuckMinutes := d.cfg.StuckAgentMinutes
	if stuckMinutes <= 0 {
		stuckMinutes = 30
	}
	stuck, err := d.store.Agents().ListStuckWorking(ctx, stuckMinutes)
	if err != nil {
		d.log.Error("list stuck agents failed", zap.Error(err))
		return
	}
	for _, agent := range stuck {
		agent.Status = domain.AgentStatusIdle
		err := d.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return d.store.Agents().Update(ctx, tx, agent)
		})
		if err != nil {
			d.log.Error("reset stuck agent failed", zap.String("agent_id", agent.ID), zap.Error(err))
			continue
		}
		d.log.Warn("reset stuck agent to idle", zap.String("agent_id", agent.ID))
	}
}

// dispatch runs the per-candidate algorithm from §4.5 steps 1-9.
func (d *Dispatcher) dispatch(ctx context.Context, c candidate) {
	d.inFlightMu.Lock()
	if d.inFlight[c.agentID] {
		d.inFlightMu.Unlock()
		atomic.AddInt64(&d.skipped, 1)
		return
	}
	d.inFlight[c.agentID] = true
	d.inFlightMu.Unlock()

	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		d.clearInFlight(c.agentID)
		return
	}

	agent, err := d.store.Agents().Get(ctx, c.agentID)
	if err != nil || agent.Status != domain.AgentStatusIdle {
		<-d.sem
		d.clearInFlight(c.agentID)
		atomic.AddInt64(&d.skipped, 1)
		return
	}

	agent.Status = domain.AgentStatusWorking
	if err := d.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return d.store.Agents().Update(ctx, tx, agent)
	}); err != nil {
		<-d.sem
		d.clearInFlight(c.agentID)
		atomic.AddInt64(&d.errorCount, 1)
		return
	}

	if d.bus != nil {
		_ = d.bus.Publish(ctx, pubsub.TeamEventsSubject(agent.TeamID), pubsub.NewEvent("agent.status_changed", "dispatcher", map[string]any{
			"agent_id": agent.ID, "status": "working", "reason": c.reason,
		}))
	}

	currentTask, _ := d.store.Tasks().MostRecentInProgress(ctx, agent.ID)
	var taskID *int64
	if currentTask != nil {
		taskID = &currentTask.ID
	}

	atomic.AddInt64(&d.dispatched, 1)
	go func() {
		defer d.clearInFlight(c.agentID)
		if _, err := d.runner.Run(ctx, agent.ID, taskID, runner.Options{}); err != nil {
			atomic.AddInt64(&d.errorCount, 1)
			d.log.Error("runner failed", zap.String("agent_id", agent.ID), zap.Error(err))
		}
	}()
	// The semaphore bounds concurrent dispatch, not concurrent runs: it is
	// released as soon as the Runner goroutine is scheduled, since the
	// Runner owns its own lifetime from here (§4.5 step 9).
	<-d.sem
}

func (d *Dispatcher) clearInFlight(agentID string) {
	d.inFlightMu.Lock()
	delete(d.inFlight, agentID)
	d.inFlightMu.Unlock()
}
