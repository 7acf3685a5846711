// Package humanloop implements the human-in-the-loop rendezvous (§4.8):
// agents park on a question/approval/review request and block until a
// human responds or the request times out.
package humanloop

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
	store store.Store
	cfg   config.HumanLoopConfig
	log   *logger.Logger
}

func NewService(st store.Store, cfg config.HumanLoopConfig, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	if cfg.DefaultTimeoutMinutes <= 0 {
		cfg.DefaultTimeoutMinutes = 60
	}
	return &Service{store: st, cfg: cfg, log: log}
}

// CreateRequest parks an agent on a human rendezvous. A zero timeoutMinutes
// falls back to the configured default.
func (s *Service) CreateRequest(ctx context.Context, teamID, agentID string, taskID *int64, kind domain.RequestKind, question string, options []string, timeoutMinutes int) (*domain.HumanRequest, error) {
	if timeoutMinutes <= 0 {
		timeoutMinutes = s.cfg.DefaultTimeoutMinutes
	}
	timeoutAt := time.Now().Add(time.Duration(timeoutMinutes) * time.Minute)

	r := &domain.HumanRequest{
		ID: uuid.New().String(), TeamID: teamID, AgentID: agentID, TaskID: taskID,
		Kind: kind, Question: question, Options: options,
		Status: domain.HumanRequestStatusPending, TimeoutAt: &timeoutAt,
	}

	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := s.store.HumanRequests().Create(ctx, tx, r); err != nil {
			return err
		}
		_, err := s.store.Events().Append(ctx, tx, eventlog.AgentStream(agentID), "human_request.created", map[string]any{
			"human_request_id": r.ID, "kind": string(kind),
		}, nil)
		return err
	})
	return r, err
}

// Respond resolves a pending request with a human's answer. Resolving
// triggers a human_request_resolved notification (wired at the postgres
// repository layer) that wakes the Dispatcher for the waiting agent.
func (s *Service) Respond(ctx context.Context, id, response, respondedBy string) (*domain.HumanRequest, error) {
	r, err := s.store.HumanRequests().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != domain.HumanRequestStatusPending {
		return nil, apperrors.New(apperrors.KindAlreadyResolved, "human request is not pending")
	}

	now := time.Now()
	r.Response = response
	r.RespondedBy = respondedBy
	r.Status = domain.HumanRequestStatusResolved
	r.ResolvedAt = &now

	err = s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := s.store.HumanRequests().Update(ctx, tx, r); err != nil {
			return err
		}
		_, err := s.store.Events().Append(ctx, tx, eventlog.AgentStream(r.AgentID), "human_request.resolved", map[string]any{
			"human_request_id": r.ID, "responded_by": respondedBy,
		}, nil)
		return err
	})
	return r, err
}

func (s *Service) Get(ctx context.Context, id string) (*domain.HumanRequest, error) {
	return s.store.HumanRequests().Get(ctx, id)
}

func (s *Service) ListByTeam(ctx context.Context, teamID string) ([]*domain.HumanRequest, error) {
	return s.store.HumanRequests().ListByTeam(ctx, teamID)
}

// ExpireStaleRequests is invoked by the Dispatcher's reconciliation loop
// (§4.5); the Service exposes it independently so it can also be driven
// directly by tests or an administrative command.
func (s *Service) ExpireStaleRequests(ctx context.Context) (int, error) {
	expired, err := s.store.HumanRequests().ListExpiredPending(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, r := range expired {
		r.Status = domain.HumanRequestStatusExpired
		err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			if err := s.store.HumanRequests().Update(ctx, tx, r); err != nil {
				return err
			}
			_, err := s.store.Events().Append(ctx, tx, eventlog.AgentStream(r.AgentID), "human_request.expired", map[string]any{
				"human_request_id": r.ID,
			}, nil)
			return err
		})
		if err != nil {
			s.log.Error("expire human request failed: " + err.Error())
			continue
		}
		count++
	}
	return count, nil
}
