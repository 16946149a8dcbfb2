package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantMissing []string
		wantInvalid string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:        "missing required",
			mutate:      func(c *Config) { c.Prefix, c.Location, c.SubscriptionID = "", "", "" },
			wantMissing: []string{"prefix", "location", "subscription_id"},
		},
		{
			name:        "bad prefix",
			mutate:      func(c *Config) { c.Prefix = "1-bad" },
			wantInvalid: "prefix",
		},
		{
			name:        "reserved username",
			mutate:      func(c *Config) { c.AdminUsername = "admin" },
			wantInvalid: "admin_username",
		},
		{
			name:        "unknown storage auth",
			mutate:      func(c *Config) { c.StorageAuth = "Anonymous" },
			wantInvalid: "storage_auth",
		},
		{
			name:        "subnet outside address space",
			mutate:      func(c *Config) { c.Network.ComputeSubnet = "192.168.0.0/24" },
			wantInvalid: "outside address_space",
		},
		{
			name:        "overlapping subnets",
			mutate:      func(c *Config) { c.Network.StorageSubnet = c.Network.ComputeSubnet },
			wantInvalid: "overlaps",
		},
		{
			name:        "token ttl too long",
			mutate:      func(c *Config) { c.Storage.DelegatedTokenTTL = 30 * 24 * time.Hour },
			wantInvalid: "delegated_token_ttl",
		},
		{
			name:        "bad remediation target",
			mutate:      func(c *Config) { c.Remediation.Target = "VNet" },
			wantInvalid: "remediation.target",
		},
		{
			name:        "bad retry policy",
			mutate:      func(c *Config) { c.Retry.Revert.Multiplier = 0.5 },
			wantInvalid: "multiplier",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AZURE_SUBSCRIPTION_ID", "")
			cfg := validConfig()
			require.NoError(t, cfg.ApplyDefaults())
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantMissing == nil && tt.wantInvalid == "" {
				assert.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
			if tt.wantMissing != nil {
				assert.Equal(t, tt.wantMissing, verr.Missing)
			}
			if tt.wantInvalid != "" {
				assert.Contains(t, verr.Error(), tt.wantInvalid)
			}
		})
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := &Config{StorageAuth: "nope"}
	err := cfg.Validate()

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Missing, 4)
	assert.Contains(t, verr.Error(), "missing required configuration: prefix, location, subscription_id")
	assert.Contains(t, verr.Error(), "storage_auth")
}
