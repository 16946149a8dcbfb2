package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/azhpc/cmd/azhpc/handlers"
)

func TestApply(t *testing.T) {
	cmd := Apply(&handlers.Options{})

	require.NotNil(t, cmd)
	assert.Equal(t, "apply", cmd.Use)
	assert.Equal(t, "Provision the HPC environment", cmd.Short)
	assert.NotNil(t, cmd.RunE, "Apply command should have RunE function")
}

func TestApply_FlagsBindOptions(t *testing.T) {
	opts := &handlers.Options{}
	cmd := Apply(opts)

	err := cmd.ParseFlags([]string{
		"--prefix", "hpc-demo",
		"--location", "westeurope",
		"--admin-username", "hpcadmin",
		"--storage-auth", "Keyless",
		"--remediation-code", "PublicNetwork",
		"--remediation", "enable public network access",
		"--create-private-endpoint",
		"--revert-after", "1h",
		"--force-fresh",
	})
	require.NoError(t, err)

	assert.Equal(t, "hpc-demo", opts.Prefix)
	assert.Equal(t, "westeurope", opts.Location)
	assert.Equal(t, "hpcadmin", opts.AdminUsername)
	assert.Equal(t, "Keyless", opts.StorageAuth)
	assert.Equal(t, "PublicNetwork", opts.RemediationCode)
	assert.Equal(t, "enable public network access", opts.Remediation)
	assert.True(t, opts.CreatePrivateEndpoint)
	assert.Equal(t, time.Hour, opts.RevertAfter)
	assert.True(t, opts.ForceFresh)
}

func TestRepair_HasNoRemediationFlags(t *testing.T) {
	cmd := Repair(&handlers.Options{})

	assert.Equal(t, "repair", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("prefix"))
	assert.Nil(t, cmd.Flags().Lookup("remediation-code"))
	assert.Nil(t, cmd.Flags().Lookup("revert-after"))
}

func TestRemediate_Flags(t *testing.T) {
	opts := &handlers.Options{}
	cmd := Remediate(opts)

	require.NoError(t, cmd.ParseFlags([]string{"--remediation-code", "3"}))
	assert.Equal(t, "remediate", cmd.Use)
	assert.Equal(t, "3", opts.RemediationCode)
	assert.False(t, opts.CreatePrivateEndpoint)
}

func TestPlan(t *testing.T) {
	cmd := Plan(&handlers.Options{})

	assert.Equal(t, "plan", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("location"))
	assert.Nil(t, cmd.Flags().Lookup("remediation"))
}
