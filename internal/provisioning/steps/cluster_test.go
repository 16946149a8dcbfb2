package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/azhpc/internal/provisioning"
	"github.com/imamik/azhpc/internal/resource"
	testutil "github.com/imamik/azhpc/internal/testing"
)

func clusterResult(t *testing.T, h *harness) resource.ProvisioningResult {
	t.Helper()
	results := h.rc.History.ForStep(string(provisioning.StateClusterDeployed))
	require.Len(t, results, 1)
	return results[0]
}

func TestCluster_CertificateIsSoftDependency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		noBlob  bool
		wantURL bool
	}{
		{name: "staged", wantURL: true},
		{name: "skipped", noBlob: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fixture := testutil.NewCloudFixture()
			if tt.noBlob {
				fixture.WithoutBlobService()
			}
			h := newHarness(t, keyless().Build(), fixture.Fake())

			_, err := h.run(t)
			require.NoError(t, err)

			props := clusterResult(t, h).Descriptor.Properties
			url, ok := resource.Lookup(props, "properties.parameters.certificateUrl.value")
			if tt.wantURL {
				require.True(t, ok)
				assert.Equal(t, h.rc.Outputs.CertificateID, url)
			} else {
				assert.False(t, ok)
			}

			subnet, _ := resource.Lookup(props, "properties.parameters.subnetId.value")
			assert.Contains(t, subnet, "/subnets/compute")
			nodes, _ := resource.Lookup(props, "properties.parameters.nodeCount.value")
			assert.Equal(t, 2, nodes)
		})
	}
}

func TestClusterDescriptor_Errors(t *testing.T) {
	t.Parallel()

	t.Run("invalid admin key", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, sharedKey().WithAdminSSHKey("ssh-rsa not-a-key").Build(), testutil.NewCloudFixture().Healthy())
		identity := resource.Ref{Kind: resource.KindManagedIdentity, Name: "id", Parent: h.rc.Group()}
		h.rc.Outputs.Identity = &identity

		_, err := ClusterDescriptor(h.rc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "admin ssh key")
	})

	t.Run("missing identity", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, sharedKey().Build(), testutil.NewCloudFixture().Healthy())

		_, err := ClusterDescriptor(h.rc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "managed identity")
	})

	t.Run("missing subnet", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, sharedKey().Build(), testutil.NewCloudFixture().Healthy())
		identity := resource.Ref{Kind: resource.KindManagedIdentity, Name: "id", Parent: h.rc.Group()}
		h.rc.Outputs.Identity = &identity

		_, err := ClusterDescriptor(h.rc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "subnet compute")
	})
}
