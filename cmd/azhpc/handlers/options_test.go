package handlers

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/azhpc/internal/config"
	testutil "github.com/imamik/azhpc/internal/testing"
)

func TestOptions_Validate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{name: "defaults", opts: Options{}},
		{name: "json", opts: Options{Output: OutputJSON}},
		{name: "unknown output", opts: Options{Output: "yaml"}, wantErr: `unknown output format "yaml"`},
		{name: "negative timeout", opts: Options{Timeout: -time.Second}, wantErr: "timeout must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.opts.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, ExitConfig, ExitCode(err))
		})
	}
}

func TestOptions_Overlay(t *testing.T) {
	t.Parallel()
	cfg := testutil.NewConfigBuilder().WithRemediation("Custom", "", false).BuildRaw()

	Options{
		Location:              "westeurope",
		StorageAuth:           "Keyless",
		RemediationCode:       "PublicNetwork",
		CreatePrivateEndpoint: true,
		RevertAfter:           time.Hour,
	}.overlay(cfg)

	assert.Equal(t, "hpc-demo", cfg.Prefix, "unset flags leave the file value")
	assert.Equal(t, "westeurope", cfg.Location)
	assert.Equal(t, config.StorageAuthKeyless, cfg.StorageAuth)
	assert.Equal(t, "PublicNetwork", cfg.Remediation.Code)
	assert.True(t, cfg.Remediation.CreatePrivateEndpoint)
	assert.Equal(t, time.Hour, cfg.Remediation.RevertAfter)
}

func TestLoadConfig_NoFileNoFlags(t *testing.T) {
	saveAndRestoreFactories(t)
	t.Setenv("AZURE_SUBSCRIPTION_ID", "")
	findConfigFile = func() (string, error) { return "", nil }

	_, err := loadConfig(Options{})

	require.Error(t, err)
	assert.Equal(t, ExitConfig, ExitCode(err))
	var validationErr *config.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Contains(t, validationErr.Missing, "prefix")
	assert.Contains(t, validationErr.Missing, "location")
	assert.Contains(t, validationErr.Missing, "subscription_id")
}

func TestLoadConfig_FlagsOnly(t *testing.T) {
	saveAndRestoreFactories(t)
	t.Setenv("AZURE_SUBSCRIPTION_ID", "")
	findConfigFile = func() (string, error) { return "", nil }
	loadConfigFile = func(string) (*config.Config, error) {
		t.Fatal("no config file should be read")
		return nil, nil
	}

	cfg, err := loadConfig(Options{Prefix: "hpc-demo", Location: "region-a", AdminSSHKey: testutil.TestAuthorizedKey(), Simulate: true})

	require.NoError(t, err)
	assert.Equal(t, "hpc-demo", cfg.Prefix)
	assert.Equal(t, SimulatedSubscription, cfg.SubscriptionID)
}

func TestLoadConfig_SubscriptionFromEnvironment(t *testing.T) {
	saveAndRestoreFactories(t)
	t.Setenv("AZURE_SUBSCRIPTION_ID", testutil.TestSubscription)
	findConfigFile = func() (string, error) { return "", nil }

	cfg, err := loadConfig(Options{Prefix: "hpc-demo", Location: "region-a", AdminSSHKey: testutil.TestAuthorizedKey(), Simulate: true})

	require.NoError(t, err)
	assert.Equal(t, testutil.TestSubscription, cfg.SubscriptionID)
}

func TestLoadConfig_FileErrors(t *testing.T) {
	saveAndRestoreFactories(t)

	t.Run("find", func(t *testing.T) {
		findConfigFile = func() (string, error) { return "", errors.New("permission denied") }
		_, err := loadConfig(Options{})
		require.Error(t, err)
		assert.Equal(t, ExitConfig, ExitCode(err))
	})

	t.Run("explicit path", func(t *testing.T) {
		var read string
		loadConfigFile = func(path string) (*config.Config, error) {
			read = path
			return nil, errors.New("failed to parse YAML")
		}
		_, err := loadConfig(Options{ConfigPath: "custom.yaml"})
		require.Error(t, err)
		assert.Equal(t, "custom.yaml", read)
		assert.Equal(t, ExitConfig, ExitCode(err))
		assert.Contains(t, err.Error(), "failed to parse YAML")
	})
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	saveAndRestoreFactories(t)
	findConfigFile = func() (string, error) { return "azhpc.yaml", nil }
	loadConfigFile = func(string) (*config.Config, error) {
		return testutil.NewConfigBuilder().BuildRaw(), nil
	}

	cfg, err := loadConfig(Options{Prefix: "other", StorageAuth: "Keyless"})

	require.NoError(t, err)
	assert.Equal(t, "other", cfg.Prefix)
	assert.Equal(t, config.StorageAuthKeyless, cfg.StorageAuth)
	assert.Equal(t, "region-a", cfg.Location)
}
