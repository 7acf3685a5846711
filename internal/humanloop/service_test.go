package humanloop_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/openclaw/internal/apperrors"
	"github.com/openclaw/openclaw/internal/config"
	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/humanloop"
	"github.com/openclaw/openclaw/internal/store"
	"github.com/openclaw/openclaw/internal/store/memory"
)

func TestRespondResolvesPendingRequest(t *testing.T) {
	svc := humanloop.NewService(memory.New(), config.HumanLoopConfig{}, nil)
	ctx := context.Background()

	req, err := svc.CreateRequest(ctx, "team-1", "agent-1", nil, domain.RequestKindQuestion, "merge now?", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.HumanRequestStatusPending, req.Status)

	resolved, err := svc.Respond(ctx, req.ID, "yes", "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.HumanRequestStatusResolved, resolved.Status)
	assert.Equal(t, "yes", resolved.Response)
	assert.Equal(t, "alice", resolved.RespondedBy)
}

func TestRespondTwiceFailsAlreadyResolved(t *testing.T) {
	svc := humanloop.NewService(memory.New(), config.HumanLoopConfig{}, nil)
	ctx := context.Background()

	req, err := svc.CreateRequest(ctx, "team-1", "agent-1", nil, domain.RequestKindApproval, "ship it?", nil, 0)
	require.NoError(t, err)

	_, err = svc.Respond(ctx, req.ID, "yes", "alice")
	require.NoError(t, err)

	_, err = svc.Respond(ctx, req.ID, "no", "bob")
	require.Error(t, err)
	kind, ok := apperrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindAlreadyResolved, kind)
}

func TestCreateRequestZeroTimeoutUsesConfiguredDefault(t *testing.T) {
	svc := humanloop.NewService(memory.New(), config.HumanLoopConfig{DefaultTimeoutMinutes: 5}, nil)
	ctx := context.Background()

	before := time.Now()
	req, err := svc.CreateRequest(ctx, "team-1", "agent-1", nil, domain.RequestKindQuestion, "q", nil, 0)
	require.NoError(t, err)
	require.NotNil(t, req.TimeoutAt)
	assert.WithinDuration(t, before.Add(5*time.Minute), *req.TimeoutAt, 2*time.Second)
}

func TestExpireStaleRequestsMarksPastDeadlinePending(t *testing.T) {
	st := memory.New()
	svc := humanloop.NewService(st, config.HumanLoopConfig{DefaultTimeoutMinutes: 60}, nil)
	ctx := context.Background()

	req, err := svc.CreateRequest(ctx, "team-1", "agent-1", nil, domain.RequestKindQuestion, "q", nil, 1)
	require.NoError(t, err)

	stored, err := svc.Get(ctx, req.ID)
	require.NoError(t, err)
	past := time.Now().Add(-time.Minute)
	stored.TimeoutAt = &past
	require.NoError(t, st.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return st.HumanRequests().Update(ctx, tx, stored)
	}))

	count, err := svc.ExpireStaleRequests(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	expired, err := svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HumanRequestStatusExpired, expired.Status)
}
