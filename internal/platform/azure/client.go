// Package azure provides the cloud client used by the provisioning pipeline.
package azure

import (
	"context"
	"time"

	"github.com/imamik/azhpc/internal/resource"
)

// ResourceManager reads and writes resources addressed by (kind, name, parent).
type ResourceManager interface {
	// GetResource returns the resource, or nil without error when it does not exist.
	GetResource(ctx context.Context, ref resource.Ref) (*resource.Resource, error)
	CreateResource(ctx context.Context, d resource.Descriptor) (*resource.Resource, error)
	// UpdateResource merges patch into the resource properties.
	UpdateResource(ctx context.Context, ref resource.Ref, patch map[string]any) (*resource.Resource, error)
	// DeleteResource removes the resource. Deleting a resource group cascades.
	DeleteResource(ctx context.Context, ref resource.Ref) error
}

// RoleAssignment describes a role granted to a principal on a scope.
type RoleAssignment struct {
	Name             string // GUID, see naming.RoleAssignment
	PrincipalID      string
	RoleDefinitionID string
	Scope            resource.Ref
}

// RoleManager grants roles.
type RoleManager interface {
	AssignRole(ctx context.Context, a RoleAssignment) (*resource.Resource, error)
}

// CertificateManager manages key vault certificates.
type CertificateManager interface {
	// GetCertificate returns the certificate, or nil without error when it does not exist.
	GetCertificate(ctx context.Context, vault resource.Ref, name string) (*resource.Resource, error)
	CreateCertificate(ctx context.Context, vault resource.Ref, name string, policy resource.CertificatePolicy) (*resource.Resource, error)
}

// CommandRunner runs scripts inside the cloud.
type CommandRunner interface {
	RunRemoteCommand(ctx context.Context, target resource.Ref, script resource.Script) (string, error)
}

// CredentialIssuer hands out storage credentials.
type CredentialIssuer interface {
	// IssueDelegatedToken mints a user delegation token scoped to a container.
	IssueDelegatedToken(ctx context.Context, account resource.Ref, container string, ttl time.Duration) (resource.Token, error)
	// GetAccountKey returns a long-lived storage account key.
	GetAccountKey(ctx context.Context, account resource.Ref) (string, error)
}

// CloudClient is the full capability set the orchestrator depends on.
// Implementations return errors classified as *resource.Error.
type CloudClient interface {
	ResourceManager
	RoleManager
	CertificateManager
	CommandRunner
	CredentialIssuer

	SubscriptionID() string
}
