package testing

import (
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/imamik/azhpc/internal/config"
	"github.com/imamik/azhpc/internal/resource"
	"github.com/imamik/azhpc/internal/util/keygen"
)

// TestSubscription is the subscription used by the builders and fixtures.
const TestSubscription = "00000000-0000-0000-0000-000000000001"

// ConfigBuilder provides a fluent interface for constructing test configs.
// Each method returns a new builder (immutable) for chaining.
type ConfigBuilder struct {
	cfg config.Config
}

// NewConfigBuilder creates a new ConfigBuilder with the scenario defaults.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		cfg: config.Config{
			Prefix:         "hpc-demo",
			Location:       "region-a",
			SubscriptionID: TestSubscription,
			StorageAuth:    config.StorageAuthKeyVaultBacked,
			AdminSSHKey:    TestAuthorizedKey(),
		},
	}
}

var testKey = sync.OnceValue(func() string {
	kp, err := keygen.GenerateRSAKeyPair(keygen.MinRSABits)
	if err != nil {
		panic(err)
	}
	return strings.TrimSpace(string(kp.PublicKey))
})

// TestAuthorizedKey returns an authorized_keys line generated once per test binary.
func TestAuthorizedKey() string {
	return testKey()
}

// WithAdminSSHKey sets the admin key literal or path. An empty value makes
// the cluster step generate a key.
func (b *ConfigBuilder) WithAdminSSHKey(key string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.AdminSSHKey = key
	return nb
}

// WithPrefix sets the naming prefix.
func (b *ConfigBuilder) WithPrefix(prefix string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Prefix = prefix
	return nb
}

// WithLocation sets the Azure region.
func (b *ConfigBuilder) WithLocation(location string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Location = location
	return nb
}

// WithStorageAuth sets the storage auth mode.
func (b *ConfigBuilder) WithStorageAuth(mode config.StorageAuthMode) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.StorageAuth = mode
	return nb
}

// WithDelegatedTokenTTL sets the delegated token lifetime.
func (b *ConfigBuilder) WithDelegatedTokenTTL(ttl time.Duration) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Storage.DelegatedTokenTTL = ttl
	return nb
}

// WithForceFresh sets force fresh.
func (b *ConfigBuilder) WithForceFresh(force bool) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.ForceFresh = force
	return nb
}

// WithRemediation sets the pre-supplied remediation decision.
func (b *ConfigBuilder) WithRemediation(code, choice string, createPrivateEndpoint bool) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Remediation.Code = code
	nb.cfg.Remediation.Choice = choice
	nb.cfg.Remediation.CreatePrivateEndpoint = createPrivateEndpoint
	return nb
}

// WithRemediationTarget sets the resource the network actions apply to.
func (b *ConfigBuilder) WithRemediationTarget(kind resource.Kind) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Remediation.Target = kind
	return nb
}

// WithRevertAfter sets how long public network access stays enabled.
func (b *ConfigBuilder) WithRevertAfter(d time.Duration) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Remediation.RevertAfter = d
	return nb
}

// WithCustomNote sets the note recorded with a Custom remediation.
func (b *ConfigBuilder) WithCustomNote(note string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Remediation.CustomNote = note
	return nb
}

// WithTags sets the resource tags.
func (b *ConfigBuilder) WithTags(tags map[string]string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Tags = maps.Clone(tags)
	return nb
}

// WithFastRetry shrinks every retry policy to millisecond delays.
func (b *ConfigBuilder) WithFastRetry(attempts int) *ConfigBuilder {
	nb := b.clone()
	fast := config.PolicyConfig{MaxAttempts: attempts, BaseDelay: time.Millisecond, Multiplier: 1, MaxDelay: time.Millisecond}
	nb.cfg.Retry = config.RetryConfig{Create: fast, Propagation: fast, Revert: fast, Delete: fast}
	return nb
}

// Build returns the constructed config with defaults applied.
func (b *ConfigBuilder) Build() *config.Config {
	cfg := b.clone().cfg
	_ = cfg.ApplyDefaults()
	return &cfg
}

// BuildRaw returns the constructed config without applying defaults.
func (b *ConfigBuilder) BuildRaw() *config.Config {
	cfg := b.clone().cfg
	return &cfg
}

func (b *ConfigBuilder) clone() *ConfigBuilder {
	cfg := b.cfg
	cfg.Tags = maps.Clone(b.cfg.Tags)
	cfg.Network.AllowedSSHSources = cloneStringSlice(b.cfg.Network.AllowedSSHSources)
	cfg.Certificate.KeyUsage = cloneStringSlice(b.cfg.Certificate.KeyUsage)
	cfg.Certificate.EKUs = cloneStringSlice(b.cfg.Certificate.EKUs)
	cfg.Certificate.DNSNames = cloneStringSlice(b.cfg.Certificate.DNSNames)
	cfg.Cluster.Parameters = maps.Clone(b.cfg.Cluster.Parameters)
	return &ConfigBuilder{cfg: cfg}
}

func cloneStringSlice(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

// MinimalConfig returns a valid KeyVaultBacked config.
func MinimalConfig() *config.Config {
	return NewConfigBuilder().Build()
}

// KeylessConfig returns the Keyless scenario config (prefix hpc-demo, region-a).
func KeylessConfig() *config.Config {
	return NewConfigBuilder().WithStorageAuth(config.StorageAuthKeyless).Build()
}
