package azure

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/azhpc/internal/resource"
)

func TestMockClient_Defaults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := &MockClient{}
	rg := fakeGroup()

	got, err := m.GetResource(ctx, rg)
	require.NoError(t, err)
	assert.Nil(t, got)

	created, err := m.CreateResource(ctx, resource.Descriptor{Kind: resource.KindResourceGroup, Name: rg.Name})
	require.NoError(t, err)
	assert.Equal(t, "/subscriptions/00000000-0000-0000-0000-000000000000/resourceGroups/hpc-rg", created.ID)

	tok, err := m.IssueDelegatedToken(ctx, rg, "c", time.Hour)
	require.NoError(t, err)
	assert.False(t, tok.ExpiresOn.IsZero())
}

func TestMockClient_Overrides(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	var seen RoleAssignment
	m := &MockClient{
		Subscription: "s",
		AssignRoleFunc: func(_ context.Context, a RoleAssignment) (*resource.Resource, error) {
			seen = a
			return nil, boom
		},
	}

	_, err := m.AssignRole(context.Background(), RoleAssignment{Name: "g", PrincipalID: "p"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "p", seen.PrincipalID)
	assert.Equal(t, "s", m.SubscriptionID())
}
