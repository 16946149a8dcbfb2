package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/azhpc/internal/resource"
)

func validConfig() *Config {
	return &Config{
		Prefix:         "hpc-demo",
		Location:       "region-a",
		SubscriptionID: "00000000-0000-0000-0000-000000000001",
	}
}

func TestApplyDefaults(t *testing.T) {
	t.Setenv("AZURE_SUBSCRIPTION_ID", "")
	t.Setenv("AZURE_TENANT_ID", "")
	cfg := validConfig()
	require.NoError(t, cfg.ApplyDefaults())

	assert.Equal(t, DefaultAdminUsername, cfg.AdminUsername)
	assert.Equal(t, StorageAuthKeyVaultBacked, cfg.StorageAuth)
	assert.Equal(t, "10.40.0.0/27", cfg.Network.EndpointSubnet)
	assert.Equal(t, "10.40.1.0/24", cfg.Network.ComputeSubnet)
	assert.Equal(t, "10.40.2.0/24", cfg.Network.StorageSubnet)
	assert.Equal(t, DefaultContainer, cfg.Storage.Container)
	assert.Zero(t, cfg.Storage.DelegatedTokenTTL)
	assert.Equal(t, "CN=hpc-demo.hpc.internal", cfg.Certificate.Subject)
	assert.Equal(t, []string{OIDServerAuth, OIDClientAuth}, cfg.Certificate.EKUs)
	assert.Equal(t, resource.KindKeyVault, cfg.Remediation.Target)
	assert.Equal(t, 5, cfg.Retry.Create.MaxAttempts)
	assert.Equal(t, 60*time.Second, cfg.Retry.Propagation.MaxDelay)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := validConfig()
	cfg.AdminUsername = "hpcadmin"
	cfg.StorageAuth = StorageAuthKeyless
	cfg.Network.ComputeSubnet = "10.40.10.0/24"
	cfg.Retry.Create.MaxAttempts = 9
	require.NoError(t, cfg.ApplyDefaults())

	assert.Equal(t, "hpcadmin", cfg.AdminUsername)
	assert.Equal(t, resource.AccessKeyless, cfg.AccessMode())
	assert.Equal(t, "10.40.10.0/24", cfg.Network.ComputeSubnet)
	assert.Equal(t, 9, cfg.Retry.Create.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.Create.BaseDelay)
}

func TestApplyDefaults_SubscriptionFromEnv(t *testing.T) {
	t.Setenv("AZURE_SUBSCRIPTION_ID", "sub-from-env")
	cfg := &Config{Prefix: "hpc", Location: "westeurope"}
	require.NoError(t, cfg.ApplyDefaults())

	assert.Equal(t, "sub-from-env", cfg.SubscriptionID)
	assert.Equal(t, "sub-from-env/westeurope", cfg.Scope())
}

func TestStorageAuthMode_AccessMode(t *testing.T) {
	t.Parallel()
	assert.Equal(t, resource.AccessSharedKey, StorageAuthKeyVaultBacked.AccessMode())
	assert.Equal(t, resource.AccessKeyless, StorageAuthKeyless.AccessMode())
}

func TestCertificateConfig_Policy(t *testing.T) {
	t.Parallel()
	c := CertificateConfig{Subject: "CN=x", ValidityMonths: 6, EKUs: []string{OIDServerAuth}}
	p := c.Policy()

	assert.Equal(t, "CN=x", p.Subject)
	assert.Equal(t, 6, p.ValidityMonths)
	assert.Equal(t, []string{OIDServerAuth}, p.EKUs)
}
