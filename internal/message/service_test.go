package message_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/message"
	"github.com/openclaw/openclaw/internal/pubsub"
	"github.com/openclaw/openclaw/internal/store/memory"
)

func TestSendPublishesNewMessageForAgentRecipient(t *testing.T) {
	bus := pubsub.NewMemoryBus(nil)
	svc := message.NewService(memory.New(), bus, nil)
	ctx := context.Background()

	received := make(chan *pubsub.Event, 1)
	_, err := bus.Subscribe(pubsub.SubjectNewMessage, func(ctx context.Context, event *pubsub.Event) error {
		received <- event
		return nil
	})
	require.NoError(t, err)

	msg, err := svc.Send(ctx, "team-1", "agent-1", domain.ActorTypeAgent, "agent-2", domain.ActorTypeAgent, nil, "please review PR")
	require.NoError(t, err)
	assert.Equal(t, "please review PR", msg.Content)
	assert.Nil(t, msg.SeenAt)
	assert.Nil(t, msg.ProcessedAt)

	select {
	case evt := <-received:
		assert.Equal(t, "agent-2", evt.Data["recipient_id"])
	case <-time.After(time.Second):
		t.Fatal("expected new_message publication")
	}
}

func TestSendToHumanDoesNotPublish(t *testing.T) {
	bus := pubsub.NewMemoryBus(nil)
	svc := message.NewService(memory.New(), bus, nil)
	ctx := context.Background()

	received := make(chan *pubsub.Event, 1)
	_, err := bus.Subscribe(pubsub.SubjectNewMessage, func(ctx context.Context, event *pubsub.Event) error {
		received <- event
		return nil
	})
	require.NoError(t, err)

	_, err = svc.Send(ctx, "team-1", "agent-1", domain.ActorTypeAgent, "human-1", domain.ActorTypeUser, nil, "need a decision")
	require.NoError(t, err)

	select {
	case <-received:
		t.Fatal("did not expect a new_message publication for a human recipient")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestInboxReturnsNewestFirstAndFiltersProcessed(t *testing.T) {
	svc := message.NewService(memory.New(), nil, nil)
	ctx := context.Background()

	first, err := svc.Send(ctx, "team-1", "agent-1", domain.ActorTypeAgent, "agent-2", domain.ActorTypeAgent, nil, "first")
	require.NoError(t, err)
	_, err = svc.Send(ctx, "team-1", "agent-1", domain.ActorTypeAgent, "agent-2", domain.ActorTypeAgent, nil, "second")
	require.NoError(t, err)

	_, err = svc.MarkProcessed(ctx, first.ID)
	require.NoError(t, err)

	unprocessed, err := svc.Inbox(ctx, "agent-2", true)
	require.NoError(t, err)
	require.Len(t, unprocessed, 1)
	assert.Equal(t, "second", unprocessed[0].Content)

	all, err := svc.Inbox(ctx, "agent-2", false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMarkSeenIsIdempotent(t *testing.T) {
	svc := message.NewService(memory.New(), nil, nil)
	ctx := context.Background()

	msg, err := svc.Send(ctx, "team-1", "agent-1", domain.ActorTypeAgent, "agent-2", domain.ActorTypeAgent, nil, "hello")
	require.NoError(t, err)

	seen, err := svc.MarkSeen(ctx, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, seen.SeenAt)
	firstSeenAt := *seen.SeenAt

	seenAgain, err := svc.MarkSeen(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, firstSeenAt, *seenAgain.SeenAt)
}
