package resource

import (
	"errors"
	"fmt"
	"time"
)

// AccessMode is how a staging artifact authenticates to its storage account.
type AccessMode string

const (
	AccessSharedKey AccessMode = "SharedKey"
	AccessKeyless   AccessMode = "Keyless"
)

// CertificateStrategy is how a certificate gets into the key vault.
type CertificateStrategy string

const (
	// StrategyInlineScript runs a staging script that needs the storage account key.
	StrategyInlineScript CertificateStrategy = "InlineScript"
	// StrategyNative creates the certificate directly through the vault API.
	StrategyNative CertificateStrategy = "Native"
)

// MaxDelegatedTokenTTL bounds delegated tokens. Azure rejects user delegation
// keys that live longer than seven days.
const MaxDelegatedTokenTTL = 7 * 24 * time.Hour

// ErrLongLivedCredential is returned when a keyless artifact is asked for a
// credential that does not expire.
var ErrLongLivedCredential = errors.New("keyless staging artifact must not issue long-lived credentials")

// StagingArtifact is the transient storage location that hosts staged
// payloads during provisioning.
type StagingArtifact struct {
	StorageAccount Ref
	Container      string
	Identity       Ref
	AccessMode     AccessMode
}

// CertificateStrategy returns the certificate creation strategy for the access mode.
func (a StagingArtifact) CertificateStrategy() CertificateStrategy {
	if a.AccessMode == AccessKeyless {
		return StrategyNative
	}
	return StrategyInlineScript
}

// AllowsAccountKey reports whether the artifact may use the storage account key.
func (a StagingArtifact) AllowsAccountKey() bool {
	return a.AccessMode == AccessSharedKey
}

// Token is a time-bounded delegated access token.
type Token struct {
	Value     string
	ExpiresOn time.Time
}

// CheckToken validates a token issued for the artifact.
func (a StagingArtifact) CheckToken(tok Token, now time.Time) error {
	if tok.ExpiresOn.IsZero() {
		return ErrLongLivedCredential
	}
	if !tok.ExpiresOn.After(now) {
		return fmt.Errorf("delegated token for %s already expired", a.StorageAccount.Name)
	}
	if tok.ExpiresOn.Sub(now) > MaxDelegatedTokenTTL {
		return fmt.Errorf("delegated token for %s exceeds %s", a.StorageAccount.Name, MaxDelegatedTokenTTL)
	}
	return nil
}

// CheckTTL validates a requested delegated token lifetime.
func CheckTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return ErrLongLivedCredential
	}
	if ttl > MaxDelegatedTokenTTL {
		return fmt.Errorf("delegated token ttl %s exceeds %s", ttl, MaxDelegatedTokenTTL)
	}
	return nil
}

// CertificatePolicy carries the desired properties of a certificate.
type CertificatePolicy struct {
	Subject        string   `json:"subject" yaml:"subject"`
	ValidityMonths int      `json:"validityMonths" yaml:"validity_months"`
	KeyType        string   `json:"keyType" yaml:"key_type"`
	KeySize        int      `json:"keySize" yaml:"key_size"`
	KeyUsage       []string `json:"keyUsage" yaml:"key_usage"`
	EKUs           []string `json:"ekus" yaml:"ekus"`
	DNSNames       []string `json:"dnsNames,omitempty" yaml:"dns_names,omitempty"`
	Exportable     bool     `json:"exportable" yaml:"exportable"`
}

// Validate checks the policy describes an issuable certificate.
func (p CertificatePolicy) Validate() error {
	if p.Subject == "" {
		return errors.New("certificate subject is required")
	}
	if p.ValidityMonths <= 0 {
		return errors.New("certificate validity must be positive")
	}
	return nil
}

// ToProperties encodes the policy as descriptor properties.
func (p CertificatePolicy) ToProperties() map[string]any {
	return map[string]any{
		"policy": p,
	}
}

// PolicyFrom extracts the certificate policy stored in a descriptor.
func PolicyFrom(d Descriptor) (CertificatePolicy, bool) {
	p, ok := d.Properties["policy"].(CertificatePolicy)
	return p, ok
}

// Script is a payload executed remotely by the cloud client.
type Script struct {
	Name    string
	Content string
	Env     map[string]string
	// SecureEnv values are never logged.
	SecureEnv map[string]string
	// Identity is the managed identity the script runs as.
	Identity *Ref
}
