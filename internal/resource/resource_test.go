package resource

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGroup() *Ref {
	return &Ref{Kind: KindResourceGroup, Name: "hpc-demo-rg"}
}

func TestRef_Key(t *testing.T) {
	t.Parallel()
	vnet := Ref{Kind: KindVNet, Name: "net", Parent: testGroup()}
	subnet := Ref{Kind: KindSubnet, Name: "compute", Parent: &vnet}

	assert.Equal(t, "ResourceGroup/hpc-demo-rg", testGroup().Key())
	assert.Equal(t, "ResourceGroup/hpc-demo-rg/VNet/net/Subnet/compute", subnet.Key())

	rg, ok := subnet.Ancestor(KindResourceGroup)
	require.True(t, ok)
	assert.Equal(t, "hpc-demo-rg", rg.Name)

	_, ok = subnet.Ancestor(KindKeyVault)
	assert.False(t, ok)
}

func TestDescriptor_Validate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		d       Descriptor
		wantErr string
	}{
		{name: "root group", d: Descriptor{Kind: KindResourceGroup, Name: "rg"}},
		{name: "child with parent", d: Descriptor{Kind: KindVNet, Name: "net", Parent: testGroup()}},
		{name: "unknown kind", d: Descriptor{Kind: "Bucket", Name: "x"}, wantErr: "unknown resource kind"},
		{name: "missing name", d: Descriptor{Kind: KindVNet, Parent: testGroup()}, wantErr: "name is required"},
		{name: "missing parent", d: Descriptor{Kind: KindVNet, Name: "net"}, wantErr: "parent reference is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.d.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMissingRequired(t *testing.T) {
	t.Parallel()
	props := map[string]any{
		"minimumTlsVersion": "TLS1_2",
		"delegation":        map[string]any{"service": "Microsoft.Batch/batchAccounts"},
		"empty":             "",
	}

	assert.Empty(t, MissingRequired([]string{"minimumTlsVersion", "delegation.service"}, props))
	assert.Equal(t, []string{"empty", "nope.deep"}, MissingRequired([]string{"nope.deep", "empty"}, props))
	assert.Equal(t, []string{"x"}, MissingRequired([]string{"x"}, nil))
}

func TestDescriptor_Accessors(t *testing.T) {
	t.Parallel()
	d := Descriptor{Properties: map[string]any{
		"addressPrefix":   "10.0.1.0/24",
		"addressPrefixes": []any{"10.0.0.0/16", 42},
		"nested":          map[string]any{"list": []string{"a"}},
	}}

	assert.Equal(t, "10.0.1.0/24", d.String("addressPrefix"))
	assert.Equal(t, []string{"10.0.0.0/16"}, d.Strings("addressPrefixes"))
	assert.Equal(t, []string{"a"}, d.Strings("nested.list"))
	assert.Equal(t, "", d.String("missing"))
}

func TestErrorCode_Category(t *testing.T) {
	t.Parallel()
	tests := map[ErrorCode]Category{
		CodeTransient:             CategoryTransient,
		CodePrincipalNotFound:     CategoryTransient,
		CodeAuthorizationPending:  CategoryTransient,
		CodeResourceDeleting:      CategoryTransient,
		CodeThrottled:             CategoryTransient,
		CodeConflict:              CategoryConflict,
		CodeAlreadyExists:         CategoryConflict,
		CodePolicyDenied:          CategoryPolicyDenied,
		CodePolicyDeniedSharedKey: CategoryPolicyDenied,
		CodeQuotaExceeded:         CategoryQuotaExceeded,
		CodeNotFound:              CategoryNotFound,
		CodeDrift:                 CategoryUnclassified,
		CodeUnclassified:          CategoryUnclassified,
	}
	for code, want := range tests {
		assert.Equal(t, want, code.Category(), "code %s", code)
	}
}

func TestError_Helpers(t *testing.T) {
	t.Parallel()
	base := errors.New("principal 123 does not exist in directory")
	err := fmt.Errorf("assign role: %w", Wrap(CodePrincipalNotFound, "AssignRole", base))

	assert.Equal(t, CodePrincipalNotFound, CodeOf(err))
	assert.True(t, IsRetryable(err))
	assert.True(t, IsPropagationDelay(err))
	assert.False(t, IsConflict(err))
	assert.ErrorIs(t, err, base)

	sig := SignatureOf(err)
	require.NotNil(t, sig)
	assert.Equal(t, CodePrincipalNotFound, sig.Code)
	assert.Contains(t, sig.String(), "does not exist")

	plain := SignatureOf(errors.New("boom"))
	assert.Equal(t, CodeUnclassified, plain.Code)
	assert.Equal(t, "boom", plain.Message)
	assert.Nil(t, SignatureOf(nil))
}

func TestProvisioningResult_FinalizeOnce(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := Descriptor{Kind: KindResourceGroup, Name: "rg"}

	r := NewPendingResult("ResourceGroupReady", d, now)
	assert.Equal(t, StatePending, r.State)
	assert.Equal(t, "ResourceGroup/rg", r.Key)

	require.NoError(t, r.Succeed("/subscriptions/s/resourceGroups/rg", true, 1, now.Add(time.Second)))
	assert.Equal(t, time.Second, r.Duration())

	assert.ErrorIs(t, r.Fail(errors.New("late"), 1, now), ErrAlreadyFinalized)
	assert.ErrorIs(t, r.Skip("late", now), ErrAlreadyFinalized)
	assert.Equal(t, StateSucceeded, r.State)
}

func TestID(t *testing.T) {
	t.Parallel()
	rg := testGroup()
	vnet := Ref{Kind: KindVNet, Name: "net", Parent: rg}
	vault := Ref{Kind: KindKeyVault, Name: "kv1", Parent: rg}
	storage := Ref{Kind: KindStorageAccount, Name: "st1", Parent: rg}

	tests := []struct {
		ref  Ref
		want string
	}{
		{*rg, "/subscriptions/sub/resourceGroups/hpc-demo-rg"},
		{vnet, "/subscriptions/sub/resourceGroups/hpc-demo-rg/providers/Microsoft.Network/virtualNetworks/net"},
		{Ref{Kind: KindSubnet, Name: "compute", Parent: &vnet}, "/subscriptions/sub/resourceGroups/hpc-demo-rg/providers/Microsoft.Network/virtualNetworks/net/subnets/compute"},
		{Ref{Kind: KindCertificate, Name: "cert", Parent: &vault}, "https://kv1.vault.azure.net/certificates/cert"},
		{Ref{Kind: KindRoleAssignment, Name: "guid", Parent: &storage}, "/subscriptions/sub/resourceGroups/hpc-demo-rg/providers/Microsoft.Storage/storageAccounts/st1/providers/Microsoft.Authorization/roleAssignments/guid"},
	}
	for _, tt := range tests {
		got, err := ID("sub", tt.ref)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ID("sub", Ref{Kind: KindCertificate, Name: "orphan", Parent: rg})
	assert.Error(t, err)
}

func TestStagingArtifact_KeylessGuards(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	keyless := StagingArtifact{StorageAccount: Ref{Name: "st"}, AccessMode: AccessKeyless}
	shared := StagingArtifact{StorageAccount: Ref{Name: "st"}, AccessMode: AccessSharedKey}

	assert.Equal(t, StrategyNative, keyless.CertificateStrategy())
	assert.Equal(t, StrategyInlineScript, shared.CertificateStrategy())
	assert.False(t, keyless.AllowsAccountKey())
	assert.True(t, shared.AllowsAccountKey())

	assert.ErrorIs(t, keyless.CheckToken(Token{Value: "x"}, now), ErrLongLivedCredential)
	assert.Error(t, keyless.CheckToken(Token{Value: "x", ExpiresOn: now.Add(-time.Minute)}, now))
	assert.Error(t, keyless.CheckToken(Token{Value: "x", ExpiresOn: now.Add(8 * 24 * time.Hour)}, now))
	assert.NoError(t, keyless.CheckToken(Token{Value: "x", ExpiresOn: now.Add(time.Hour)}, now))

	assert.ErrorIs(t, CheckTTL(0), ErrLongLivedCredential)
	assert.NoError(t, CheckTTL(time.Hour))
}

func TestCertificatePolicy_RoundTripThroughDescriptor(t *testing.T) {
	t.Parallel()
	p := CertificatePolicy{Subject: "CN=hpc", ValidityMonths: 12, EKUs: []string{"1.3.6.1.5.5.7.3.1"}}
	require.NoError(t, p.Validate())

	d := Descriptor{Kind: KindCertificate, Name: "c", Properties: p.ToProperties()}
	got, ok := PolicyFrom(d)
	require.True(t, ok)
	assert.Equal(t, p, got)

	assert.Error(t, CertificatePolicy{ValidityMonths: 1}.Validate())
	assert.Error(t, CertificatePolicy{Subject: "CN=x"}.Validate())
}
