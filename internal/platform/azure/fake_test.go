package azure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/azhpc/internal/resource"
)

func fakeGroup() resource.Ref {
	return resource.Ref{Kind: resource.KindResourceGroup, Name: "hpc-rg"}
}

func childOf(parent resource.Ref, kind resource.Kind, name string) resource.Ref {
	return resource.Ref{Kind: kind, Name: name, Parent: &parent}
}

func seededFake(t *testing.T) (*FakeClient, resource.Ref) {
	t.Helper()
	f := NewFakeClient("sub")
	rg := fakeGroup()
	_, err := f.CreateResource(context.Background(), resource.Descriptor{Kind: resource.KindResourceGroup, Name: rg.Name, Location: "eastus"})
	require.NoError(t, err)
	return f, rg
}

func TestFakeClient_CreateAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f, rg := seededFake(t)

	d := resource.Descriptor{
		Kind:       resource.KindVNet,
		Name:       "hpc-vnet",
		Location:   "eastus",
		Parent:     &rg,
		Properties: map[string]any{"properties": map[string]any{"addressSpace": map[string]any{"addressPrefixes": []string{"10.0.0.0/16"}}}},
	}
	created, err := f.CreateResource(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, "/subscriptions/sub/resourceGroups/hpc-rg/providers/Microsoft.Network/virtualNetworks/hpc-vnet", created.ID)

	got, err := f.GetResource(ctx, d.Ref())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, resource.MissingRequired([]string{"properties.addressSpace.addressPrefixes"}, got.Properties))

	_, err = f.CreateResource(ctx, d)
	assert.True(t, resource.IsCode(err, resource.CodeAlreadyExists))

	missing, err := f.GetResource(ctx, childOf(rg, resource.KindVNet, "other"))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFakeClient_CreateRequiresParent(t *testing.T) {
	t.Parallel()
	f := NewFakeClient("sub")
	rg := fakeGroup()
	_, err := f.CreateResource(context.Background(), resource.Descriptor{Kind: resource.KindVNet, Name: "net", Parent: &rg})
	assert.True(t, resource.IsNotFound(err))
}

func TestFakeClient_GeneratedProperties(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f, rg := seededFake(t)
	f.DenySharedKey = true

	id, err := f.CreateResource(ctx, resource.Descriptor{Kind: resource.KindManagedIdentity, Name: "id", Parent: &rg})
	require.NoError(t, err)
	assert.NotEmpty(t, id.String("properties.principalId"))

	kv, err := f.CreateResource(ctx, resource.Descriptor{Kind: resource.KindKeyVault, Name: "kv1", Parent: &rg})
	require.NoError(t, err)
	assert.Equal(t, "https://kv1.vault.azure.net/", kv.String("properties.vaultUri"))

	st, err := f.CreateResource(ctx, resource.Descriptor{Kind: resource.KindStorageAccount, Name: "st1", Parent: &rg})
	require.NoError(t, err)
	assert.Equal(t, "https://st1.blob.core.windows.net/", st.String("properties.primaryEndpoints.blob"))
	v, _ := resource.Lookup(st.Properties, "properties.allowSharedKeyAccess")
	assert.Equal(t, false, v)
}

func TestFakeClient_FailNext(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f, rg := seededFake(t)
	throttled := resource.NewError(resource.CodeThrottled, OpCreate, "slow down")
	f.FailNext(OpCreate, resource.KindVNet, throttled, 2)

	d := resource.Descriptor{Kind: resource.KindVNet, Name: "net", Parent: &rg}
	for i := 0; i < 2; i++ {
		_, err := f.CreateResource(ctx, d)
		assert.ErrorIs(t, err, throttled)
	}
	_, err := f.CreateResource(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, 4, f.Count(OpCreate))

	// other kinds are unaffected by a kind-scoped failure
	f.FailNext(OpCreate, resource.KindNSG, throttled, 0)
	_, err = f.CreateResource(ctx, resource.Descriptor{Kind: resource.KindSubnet, Name: "s", Parent: &resource.Ref{Kind: resource.KindVNet, Name: "net", Parent: &rg}})
	require.NoError(t, err)
}

func TestFakeClient_UpdateMergesNested(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f, rg := seededFake(t)
	ref := childOf(rg, resource.KindKeyVault, "kv1")
	f.Seed(ref, map[string]any{"properties": map[string]any{"publicNetworkAccess": "Disabled", "enableRbacAuthorization": true}})

	res, err := f.UpdateResource(ctx, ref, map[string]any{"properties": map[string]any{"publicNetworkAccess": "Enabled"}})
	require.NoError(t, err)
	assert.Equal(t, "Enabled", res.String("properties.publicNetworkAccess"))
	v, _ := resource.Lookup(res.Properties, "properties.enableRbacAuthorization")
	assert.Equal(t, true, v)

	_, err = f.UpdateResource(ctx, childOf(rg, resource.KindKeyVault, "missing"), nil)
	assert.True(t, resource.IsNotFound(err))
}

func TestFakeClient_DeleteCascades(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f, rg := seededFake(t)
	vnet := childOf(rg, resource.KindVNet, "net")
	subnet := childOf(vnet, resource.KindSubnet, "compute")
	f.Seed(vnet, nil)
	f.Seed(subnet, nil)

	require.NoError(t, f.DeleteResource(ctx, rg))
	assert.False(t, f.Has(rg))
	assert.False(t, f.Has(vnet))
	assert.False(t, f.Has(subnet))
}

func TestFakeClient_AssignRole(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f, rg := seededFake(t)
	st := childOf(rg, resource.KindStorageAccount, "st1")
	f.Seed(st, nil)

	_, err := f.AssignRole(ctx, RoleAssignment{Name: "g1", PrincipalID: "ghost", RoleDefinitionID: "role", Scope: st})
	assert.True(t, resource.IsCode(err, resource.CodePrincipalNotFound))

	id, err := f.CreateResource(ctx, resource.Descriptor{Kind: resource.KindManagedIdentity, Name: "id", Parent: &rg})
	require.NoError(t, err)
	principal := id.String("properties.principalId")

	res, err := f.AssignRole(ctx, RoleAssignment{Name: "g1", PrincipalID: principal, RoleDefinitionID: "role", Scope: st})
	require.NoError(t, err)
	assert.Equal(t, "/subscriptions/sub/providers/Microsoft.Authorization/roleDefinitions/role", res.String("properties.roleDefinitionId"))

	_, err = f.AssignRole(ctx, RoleAssignment{Name: "g1", PrincipalID: principal, RoleDefinitionID: "role", Scope: st})
	assert.True(t, resource.IsCode(err, resource.CodeAlreadyExists))
}

func TestFakeClient_SharedKeyDenied(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f, rg := seededFake(t)
	f.DenySharedKey = true
	st := childOf(rg, resource.KindStorageAccount, "st1")
	f.Seed(st, nil)

	_, err := f.GetAccountKey(ctx, st)
	assert.Equal(t, resource.CodePolicyDeniedSharedKey, resource.CodeOf(err))

	_, err = f.RunRemoteCommand(ctx, st, resource.Script{Name: "stage", SecureEnv: map[string]string{ScriptEnvAccountKey: "k"}})
	assert.Equal(t, resource.CodePolicyDeniedSharedKey, resource.CodeOf(err))
}

func TestFakeClient_ScriptStagesCertificate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f, rg := seededFake(t)
	st := childOf(rg, resource.KindStorageAccount, "st1")
	kv := childOf(rg, resource.KindKeyVault, "kv1")
	f.Seed(st, nil)
	f.Seed(kv, nil)

	key, err := f.GetAccountKey(ctx, st)
	require.NoError(t, err)

	out, err := f.RunRemoteCommand(ctx, st, resource.Script{
		Name:      "stage",
		Env:       map[string]string{ScriptEnvVault: "kv1", ScriptEnvCertificate: "cluster", "CERT_SUBJECT": "CN=x"},
		SecureEnv: map[string]string{ScriptEnvAccountKey: key},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "cluster")

	cert, err := f.GetCertificate(ctx, kv, "cluster")
	require.NoError(t, err)
	require.NotNil(t, cert)
	policy, ok := cert.Properties["policy"].(resource.CertificatePolicy)
	require.True(t, ok)
	assert.Equal(t, "CN=x", policy.Subject)
	assert.Len(t, f.Scripts, 1)
}

func TestFakeClient_IssueDelegatedToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f, rg := seededFake(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.SetClock(func() time.Time { return now })
	st := childOf(rg, resource.KindStorageAccount, "st1")

	tok, err := f.IssueDelegatedToken(ctx, st, "staging", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), tok.ExpiresOn)
	assert.Len(t, f.Tokens, 1)

	_, err = f.IssueDelegatedToken(ctx, st, "staging", 0)
	assert.ErrorIs(t, err, resource.ErrLongLivedCredential)
}

func TestFakeClient_ContextCancelled(t *testing.T) {
	t.Parallel()
	f := NewFakeClient("sub")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.GetResource(ctx, fakeGroup())
	assert.ErrorIs(t, err, context.Canceled)
}
