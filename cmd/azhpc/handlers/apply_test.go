package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/azhpc/internal/config"
	"github.com/imamik/azhpc/internal/platform/azure"
	"github.com/imamik/azhpc/internal/provisioning"
	"github.com/imamik/azhpc/internal/remediation"
	"github.com/imamik/azhpc/internal/resource"
	testutil "github.com/imamik/azhpc/internal/testing"
)

func decodeRun(t *testing.T, h *harness) RunResult {
	t.Helper()
	var result RunResult
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &result), h.stdout.String())
	return result
}

func TestApply_Healthy(t *testing.T) {
	cfg := testutil.NewConfigBuilder().WithFastRetry(2).WithRemediation("4", "", false).Build()
	fake := testutil.NewCloudFixture().Healthy()
	h := newHarness(t, cfg, fake)

	err := Apply(context.Background(), Options{Output: OutputJSON})

	require.NoError(t, err)
	result := decodeRun(t, h)
	assert.Equal(t, "apply", result.Command)
	assert.Equal(t, "hpc-demo", result.Prefix)
	require.NotNil(t, result.Report)
	assert.Equal(t, provisioning.StateDone, result.Report.Terminal)
	assert.Nil(t, result.Repair)
	assert.Nil(t, result.Resumed)
	assert.Empty(t, result.Error)

	require.NotNil(t, result.Remediation)
	assert.Equal(t, remediation.ChoicePolicyExemptionGuidance, result.Remediation.Choice)
	assert.Equal(t, "code", result.Remediation.Source)
	assert.True(t, result.Remediation.Executed)
	assert.Len(t, result.Remediation.Guidance, 4)

	require.NotNil(t, result.Outputs)
	assert.Equal(t, "hpc-demo-rg", result.Outputs.ResourceGroup)
	assert.NotEmpty(t, result.Outputs.ClusterID)
	assert.NotEmpty(t, result.Outputs.CertificateID)
	assert.Empty(t, result.AdminKeyPath)
	assert.Empty(t, h.written)
}

func TestApply_SharedKeyDeniedIsRepaired(t *testing.T) {
	cfg := testutil.NewConfigBuilder().WithFastRetry(2).WithRemediation("Custom", "", false).WithCustomNote("ticket 42").Build()
	fake := testutil.NewCloudFixture().SharedKeyDenied()
	h := newHarness(t, cfg, fake)

	err := Apply(context.Background(), Options{Output: OutputJSON})

	require.NoError(t, err)
	result := decodeRun(t, h)
	require.NotNil(t, result.Report)
	assert.Equal(t, provisioning.StateFailed, result.Report.Terminal)
	assert.Equal(t, provisioning.StateCertificateStaged, result.Report.FailedStep)

	require.NotNil(t, result.Repair)
	assert.True(t, result.Repair.Repaired)
	require.NotNil(t, result.Resumed)
	assert.Equal(t, provisioning.StateDone, result.Resumed.Terminal)
	assert.Equal(t, resource.StateSucceeded, result.Resumed.StepState(provisioning.StateCertificateStaged))
	assert.Equal(t, 1, fake.Count(azure.OpCreateCertificate))

	require.NotNil(t, result.Remediation)
	assert.Equal(t, remediation.ChoiceCustom, result.Remediation.Choice)
	assert.Equal(t, "ticket 42", result.Remediation.Note)
	assert.NotEmpty(t, result.Outputs.ClusterID)
}

// lateVault hides a certificate from the first lookup after it is
// created and counts the shared key calls made from then on.
type lateVault struct {
	*azure.FakeClient
	hide               bool
	created            bool
	keysAfterCreate    int
	scriptsAfterCreate int
}

func (c *lateVault) CreateCertificate(ctx context.Context, vault resource.Ref, name string, policy resource.CertificatePolicy) (*resource.Resource, error) {
	res, err := c.FakeClient.CreateCertificate(ctx, vault, name, policy)
	if err == nil {
		c.created = true
		c.hide = true
	}
	return res, err
}

func (c *lateVault) GetCertificate(ctx context.Context, vault resource.Ref, name string) (*resource.Resource, error) {
	if c.hide {
		c.hide = false
		return nil, nil
	}
	return c.FakeClient.GetCertificate(ctx, vault, name)
}

func (c *lateVault) GetAccountKey(ctx context.Context, account resource.Ref) (string, error) {
	if c.created {
		c.keysAfterCreate++
	}
	return c.FakeClient.GetAccountKey(ctx, account)
}

func (c *lateVault) RunRemoteCommand(ctx context.Context, target resource.Ref, script resource.Script) (string, error) {
	if c.created {
		c.scriptsAfterCreate++
	}
	return c.FakeClient.RunRemoteCommand(ctx, target, script)
}

func TestApply_RepairResumesWithoutStagingAgain(t *testing.T) {
	cfg := testutil.NewConfigBuilder().WithFastRetry(2).WithRemediation("Custom", "", false).Build()
	cloud := &lateVault{FakeClient: testutil.NewCloudFixture().SharedKeyDenied()}
	h := newHarness(t, cfg, cloud)

	err := Apply(context.Background(), Options{Output: OutputJSON})

	require.NoError(t, err)
	assert.True(t, cloud.created)
	assert.Zero(t, cloud.keysAfterCreate)
	assert.Zero(t, cloud.scriptsAfterCreate)
	assert.Equal(t, 1, cloud.Count(azure.OpCreateCertificate))

	result := decodeRun(t, h)
	require.NotNil(t, result.Repair)
	assert.True(t, result.Repair.Repaired)
	require.NotNil(t, result.Resumed)
	assert.Equal(t, provisioning.StateDone, result.Resumed.Terminal)
	assert.Empty(t, result.Resumed.FailedStep)
	assert.Equal(t, result.Repair.ResourceID, result.Outputs.CertificateID)
	assert.NotEmpty(t, result.Outputs.ClusterID)
	assert.Empty(t, result.Error)
}

func TestRepair_SkipsRemediation(t *testing.T) {
	cfg := testutil.NewConfigBuilder().WithFastRetry(2).WithRemediation("PublicNetwork", "", false).Build()
	fake := testutil.NewCloudFixture().SharedKeyDenied()
	h := newHarness(t, cfg, fake)

	err := Repair(context.Background(), Options{Output: OutputJSON})

	require.NoError(t, err)
	result := decodeRun(t, h)
	assert.Equal(t, "repair", result.Command)
	require.NotNil(t, result.Repair)
	assert.True(t, result.Repair.Repaired)
	assert.Nil(t, result.Remediation)
	assert.Zero(t, fake.Count(azure.OpUpdate))
}

func TestApply_UnrepairableFailureStillRemediates(t *testing.T) {
	cfg := testutil.NewConfigBuilder().WithFastRetry(2).WithRemediation("2", "", false).Build()
	fake := testutil.NewCloudFixture().Healthy()
	denied := resource.NewError(resource.CodePolicyDenied, azure.OpCreate, "RequestDisallowedByPolicy")
	fake.FailNext(azure.OpCreate, resource.KindClusterDeployment, denied, 0)
	h := newHarness(t, cfg, fake)

	err := Apply(context.Background(), Options{Output: OutputJSON})

	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitCode(err))
	assert.Contains(t, err.Error(), "PolicyDenied")

	result := decodeRun(t, h)
	assert.Equal(t, provisioning.StateClusterDeployed, result.Report.FailedStep)
	assert.Nil(t, result.Repair)
	require.NotNil(t, result.Remediation)
	assert.Equal(t, remediation.ChoicePrivateEndpointGuidance, result.Remediation.Choice)
	assert.NotEmpty(t, result.Error)
}

func TestApply_AbortedRunSkipsRemediation(t *testing.T) {
	cfg := testutil.NewConfigBuilder().WithFastRetry(2).WithRemediation("PublicNetwork", "", false).Build()
	h := newHarness(t, cfg, testutil.NewCloudFixture().QuotaExceeded(resource.KindClusterDeployment))

	err := Apply(context.Background(), Options{Output: OutputJSON})

	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitCode(err))
	result := decodeRun(t, h)
	assert.True(t, result.Report.Aborted)
	assert.Nil(t, result.Remediation)
}

func TestApply_CancelledSkipsRemediation(t *testing.T) {
	cfg := testutil.NewConfigBuilder().WithFastRetry(2).WithRemediation("PublicNetwork", "", false).Build()
	fake := testutil.NewCloudFixture().Healthy()
	h := newHarness(t, cfg, fake)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Apply(ctx, Options{Output: OutputJSON})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	result := decodeRun(t, h)
	assert.True(t, result.Report.Aborted)
	assert.Nil(t, result.Remediation)
	assert.Zero(t, fake.Count(azure.OpUpdate))
}

func TestApply_NoDecisionInJSONMode(t *testing.T) {
	cfg := testutil.NewConfigBuilder().WithFastRetry(2).Build()
	h := newHarness(t, cfg, testutil.NewCloudFixture().Healthy())

	err := Apply(context.Background(), Options{Output: OutputJSON})

	require.NoError(t, err)
	result := decodeRun(t, h)
	require.NotNil(t, result.Remediation)
	assert.True(t, result.Remediation.Skipped)
	assert.Equal(t, remediation.SkippedSummary, result.Remediation.Summary)
	assert.Empty(t, h.stderr.String(), "no menu is printed for JSON output")
}

func TestApply_PersistsGeneratedAdminKey(t *testing.T) {
	cfg := testutil.NewConfigBuilder().WithFastRetry(2).WithAdminSSHKey("").Build()
	h := newHarness(t, cfg, testutil.NewCloudFixture().Healthy())

	err := Apply(context.Background(), Options{Output: OutputJSON})

	require.NoError(t, err)
	result := decodeRun(t, h)
	assert.Equal(t, filepath.Join(".", "azhpc-hpc-demo-admin"), result.AdminKeyPath)
	require.Contains(t, h.written, result.AdminKeyPath)
	require.Contains(t, h.written, result.AdminKeyPath+".pub")
	assert.Contains(t, string(h.written[result.AdminKeyPath]), "PRIVATE KEY")
	assert.True(t, strings.HasPrefix(string(h.written[result.AdminKeyPath+".pub"]), "ssh-rsa "))
}

func TestApply_AdminKeyWriteFailureIsLogged(t *testing.T) {
	cfg := testutil.NewConfigBuilder().WithFastRetry(2).WithAdminSSHKey("").Build()
	h := newHarness(t, cfg, testutil.NewCloudFixture().Healthy())
	writeFile = func(string, []byte, os.FileMode) error { return errors.New("read-only file system") }

	err := Apply(context.Background(), Options{Output: OutputJSON})

	require.NoError(t, err)
	assert.Empty(t, decodeRun(t, h).AdminKeyPath)
}

func TestApply_TextOutput(t *testing.T) {
	cfg := testutil.NewConfigBuilder().WithFastRetry(2).WithRemediation("", "write a custom note", false).WithCustomNote("handled by ops").Build()
	h := newHarness(t, cfg, testutil.NewCloudFixture().SharedKeyDenied())

	err := Apply(context.Background(), Options{})

	require.NoError(t, err)
	out := h.stdout.String()
	assert.Contains(t, out, "azhpc apply: hpc-demo")
	assert.Contains(t, out, "Provisioning (after repair)")
	assert.Contains(t, out, "certificate created")
	assert.Contains(t, out, "CertificateStaged")
	assert.Contains(t, out, "Custom")
	assert.Contains(t, out, "(description)")
	assert.Contains(t, out, "note: handled by ops")
	assert.Contains(t, out, "hpc-demo-rg")
}

func TestApply_WritesMetricsTextfile(t *testing.T) {
	cfg := testutil.NewConfigBuilder().WithFastRetry(2).WithRemediation("Custom", "", false).Build()
	newHarness(t, cfg, testutil.NewCloudFixture().Healthy())
	path := filepath.Join(t.TempDir(), "azhpc.prom")

	err := Apply(context.Background(), Options{Output: OutputJSON, MetricsTextfile: path})

	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "azhpc_pipeline_steps_total")
	assert.Contains(t, string(data), `azhpc_remediations_total{choice="Custom",result="executed"} 1`)
}

func TestApply_InvalidConfigExitsWithConfigCode(t *testing.T) {
	cfg := testutil.NewConfigBuilder().WithPrefix("").BuildRaw()
	h := newHarness(t, cfg, testutil.NewCloudFixture().Healthy())

	err := Apply(context.Background(), Options{})

	require.Error(t, err)
	assert.Equal(t, ExitConfig, ExitCode(err))
	assert.Contains(t, err.Error(), "prefix")
	assert.Empty(t, h.stdout.String())
}

func TestApply_CloudClientError(t *testing.T) {
	cfg := testutil.NewConfigBuilder().Build()
	newHarness(t, cfg, nil)
	newCloudClient = func(*config.Config, bool) (azure.CloudClient, error) {
		return nil, errors.New("no credentials")
	}

	err := Apply(context.Background(), Options{})

	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitCode(err))
	assert.Contains(t, err.Error(), "failed to create cloud client")
}
