package directory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/openclaw/internal/apperrors"
	"github.com/openclaw/openclaw/internal/directory"
	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/store/memory"
)

func newService() *directory.Service {
	return directory.NewService(memory.New(), nil)
}

func TestCreateOrganizationRejectsDuplicateSlug(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	_, err := svc.CreateOrganization(ctx, "Acme", "acme")
	require.NoError(t, err)

	_, err = svc.CreateOrganization(ctx, "Acme Two", "acme")
	require.Error(t, err)
	kind, ok := apperrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindDuplicateKey, kind)
}

func TestAddConventionRejectsDuplicateKey(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	org, err := svc.CreateOrganization(ctx, "Acme", "acme")
	require.NoError(t, err)
	team, err := svc.CreateTeam(ctx, org.ID, "Platform", "platform")
	require.NoError(t, err)

	_, err = svc.AddConvention(ctx, team.ID, domain.Convention{Key: "lint", Content: "golangci-lint", Active: true})
	require.NoError(t, err)

	_, err = svc.AddConvention(ctx, team.ID, domain.Convention{Key: "lint", Content: "other"})
	require.Error(t, err)
	kind, ok := apperrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindDuplicateKey, kind)
}

func TestActiveConventionsFiltersInactive(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	org, err := svc.CreateOrganization(ctx, "Acme", "acme")
	require.NoError(t, err)
	team, err := svc.CreateTeam(ctx, org.ID, "Platform", "platform")
	require.NoError(t, err)

	_, err = svc.AddConvention(ctx, team.ID, domain.Convention{Key: "lint", Active: true})
	require.NoError(t, err)
	_, err = svc.AddConvention(ctx, team.ID, domain.Convention{Key: "legacy-format", Active: false})
	require.NoError(t, err)

	active, err := svc.ActiveConventions(ctx, team.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "lint", active[0].Key)
}

func TestCreateAgentRejectsDuplicateNameOnTeam(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	org, err := svc.CreateOrganization(ctx, "Acme", "acme")
	require.NoError(t, err)
	team, err := svc.CreateTeam(ctx, org.ID, "Platform", "platform")
	require.NoError(t, err)

	_, err = svc.CreateAgent(ctx, team.ID, "engineer-1", domain.AgentRoleEngineer, "", domain.AgentConfig{})
	require.NoError(t, err)

	_, err = svc.CreateAgent(ctx, team.ID, "engineer-1", domain.AgentRoleEngineer, "", domain.AgentConfig{})
	require.Error(t, err)
	kind, ok := apperrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindDuplicateKey, kind)
}
