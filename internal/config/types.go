package config

import (
	"time"

	"github.com/imamik/azhpc/internal/resource"
)

// StorageAuthMode is how the staging storage account is accessed.
type StorageAuthMode string

const (
	// StorageAuthKeyVaultBacked uses the storage account key, kept in the key
	// vault, for the staging script.
	StorageAuthKeyVaultBacked StorageAuthMode = "KeyVaultBacked"
	// StorageAuthKeyless uses identity-based access and time-bounded
	// delegated tokens only.
	StorageAuthKeyless StorageAuthMode = "Keyless"
)

// AccessMode maps the storage auth mode onto the staging artifact access mode.
func (m StorageAuthMode) AccessMode() resource.AccessMode {
	if m == StorageAuthKeyless {
		return resource.AccessKeyless
	}
	return resource.AccessSharedKey
}

// Config holds the run configuration.
type Config struct {
	Prefix         string          `yaml:"prefix"`
	Location       string          `yaml:"location"`
	SubscriptionID string          `yaml:"subscription_id"`
	TenantID       string          `yaml:"tenant_id,omitempty"`
	AdminUsername  string          `yaml:"admin_username"`
	AdminSSHKey    string          `yaml:"admin_ssh_key,omitempty"` // key literal or path to a .pub file
	StorageAuth    StorageAuthMode `yaml:"storage_auth"`

	// ForceFresh deletes the resource group before provisioning.
	ForceFresh bool `yaml:"force_fresh,omitempty"`

	Tags map[string]string `yaml:"tags,omitempty"`

	Network     NetworkConfig     `yaml:"network"`
	Storage     StorageConfig     `yaml:"storage"`
	Certificate CertificateConfig `yaml:"certificate"`
	Cluster     ClusterConfig     `yaml:"cluster"`
	Remediation RemediationConfig `yaml:"remediation"`
	Retry       RetryConfig       `yaml:"retry"`
}

// NetworkConfig describes the virtual network and its subnets.
// Empty subnet prefixes are derived from AddressSpace.
type NetworkConfig struct {
	AddressSpace      string   `yaml:"address_space"`
	ComputeSubnet     string   `yaml:"compute_subnet,omitempty"`
	StorageSubnet     string   `yaml:"storage_subnet,omitempty"`
	EndpointSubnet    string   `yaml:"endpoint_subnet,omitempty"`
	AllowedSSHSources []string `yaml:"allowed_ssh_sources,omitempty"`
}

// StorageConfig configures the staging storage account.
type StorageConfig struct {
	Container string `yaml:"container"`
	// DelegatedTokenTTL mints a user delegation token for the staging
	// container in Keyless mode. Zero disables minting.
	DelegatedTokenTTL time.Duration `yaml:"delegated_token_ttl,omitempty"`
}

// CertificateConfig describes the cluster certificate staged in the key vault.
type CertificateConfig struct {
	Name           string   `yaml:"name"`
	Subject        string   `yaml:"subject"`
	ValidityMonths int      `yaml:"validity_months"`
	KeyType        string   `yaml:"key_type"`
	KeySize        int      `yaml:"key_size"`
	KeyUsage       []string `yaml:"key_usage"`
	EKUs           []string `yaml:"ekus"`
	DNSNames       []string `yaml:"dns_names,omitempty"`
}

// Policy returns the certificate policy described by the configuration.
func (c CertificateConfig) Policy() resource.CertificatePolicy {
	return resource.CertificatePolicy{
		Subject:        c.Subject,
		ValidityMonths: c.ValidityMonths,
		KeyType:        c.KeyType,
		KeySize:        c.KeySize,
		KeyUsage:       c.KeyUsage,
		EKUs:           c.EKUs,
		DNSNames:       c.DNSNames,
	}
}

// ClusterConfig configures the compute cluster deployment.
type ClusterConfig struct {
	TemplateDir string         `yaml:"template_dir,omitempty"`
	Template    string         `yaml:"template"`
	VMSize      string         `yaml:"vm_size"`
	NodeCount   int            `yaml:"node_count"`
	Scheduler   string         `yaml:"scheduler"`
	Parameters  map[string]any `yaml:"parameters,omitempty"`
}

// RemediationConfig holds pre-supplied post-deployment decisions.
type RemediationConfig struct {
	// Code is a short code such as "PublicNetwork" or "2".
	Code string `yaml:"code,omitempty"`

	// Choice is a descriptive choice such as "enable public network access".
	Choice string `yaml:"choice,omitempty"`

	CreatePrivateEndpoint bool          `yaml:"create_private_endpoint,omitempty"`
	RevertAfter           time.Duration `yaml:"revert_after,omitempty"`

	// Target selects the resource the network actions apply to.
	Target resource.Kind `yaml:"target,omitempty"`

	CustomNote string `yaml:"custom_note,omitempty"`
}

// RetryConfig holds the named retry policy classes.
type RetryConfig struct {
	Create      PolicyConfig `yaml:"create"`
	Propagation PolicyConfig `yaml:"propagation"`
	Revert      PolicyConfig `yaml:"revert"`
	Delete      PolicyConfig `yaml:"delete"`
}

// PolicyConfig is the configurable part of a retry policy.
type PolicyConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	Multiplier  float64       `yaml:"multiplier"`
	MaxDelay    time.Duration `yaml:"max_delay,omitempty"`
}
