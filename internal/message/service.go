// Package message implements the Message Service: agent-to-agent and
// human-to-agent envelopes, inboxes, and the new_message notification that
// wakes the dispatcher (§4.2).
package message

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/eventlog"
	"github.com/openclaw/openclaw/internal/logger"
	"github.com/openclaw/openclaw/internal/pubsub"
	"github.com/openclaw/openclaw/internal/store"
)

type Service struct {
	store store.Store
	bus   pubsub.Bus
	log   *logger.Logger
}

func NewService(st store.Store, bus pubsub.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{store: st, bus: bus, log: log}
}

// Send creates a message and publishes new_message so an idle recipient
// agent gets dispatched without waiting on the fallback poller.
func (s *Service) Send(ctx context.Context, teamID, senderID string, senderType domain.ActorType, recipientID string, recipientType domain.ActorType, taskID *int64, content string) (*domain.Message, error) {
	msg := &domain.Message{
		ID: uuid.New().String(), TeamID: teamID,
		SenderID: senderID, SenderType: senderType,
		RecipientID: recipientID, RecipientType: recipientType,
		TaskID: taskID, Content: content,
	}

	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := s.store.Messages().Create(ctx, tx, msg); err != nil {
			return err
		}
		_, err := s.store.Events().Append(ctx, tx, eventlog.AgentStream(recipientID), "message.sent", map[string]any{
			"message_id": msg.ID, "team_id": teamID, "sender_id": senderID, "recipient_id": recipientID,
		}, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.bus != nil && recipientType == domain.ActorTypeAgent {
		if pubErr := s.bus.Publish(ctx, pubsub.SubjectNewMessage, pubsub.NewEvent(pubsub.SubjectNewMessage, "message-service", map[string]any{
			"message_id": msg.ID, "recipient_id": recipientID, "team_id": teamID,
		})); pubErr != nil {
			s.log.Warn("publish new_message failed: " + pubErr.Error())
		}
	}
	return msg, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Message, error) {
	return s.store.Messages().Get(ctx, id)
}

// Inbox returns an agent's messages newest-first.
func (s *Service) Inbox(ctx context.Context, agentID string, unprocessedOnly bool) ([]*domain.Message, error) {
	return s.store.Messages().Inbox(ctx, agentID, unprocessedOnly)
}

// MarkSeen stamps seen_at the first time a recipient reads a message.
func (s *Service) MarkSeen(ctx context.Context, id string) (*domain.Message, error) {
	msg, err := s.store.Messages().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.SeenAt == nil {
		now := time.Now()
		msg.SeenAt = &now
		err = s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return s.store.Messages().Update(ctx, tx, msg)
		})
	}
	return msg, err
}

// MarkProcessed stamps processed_at once the Dispatcher has handed the
// message to an agent run; idempotent.
func (s *Service) MarkProcessed(ctx context.Context, id string) (*domain.Message, error) {
	msg, err := s.store.Messages().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.ProcessedAt == nil {
		now := time.Now()
		msg.ProcessedAt = &now
		err = s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return s.store.Messages().Update(ctx, tx, msg)
		})
	}
	return msg, err
}
