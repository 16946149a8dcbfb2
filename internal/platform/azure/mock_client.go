package azure

import (
	"context"
	"time"

	"github.com/imamik/azhpc/internal/resource"
)

// MockClient is a mock implementation of CloudClient. Unset functions
// return zero values.
type MockClient struct {
	Subscription string

	GetResourceFunc    func(ctx context.Context, ref resource.Ref) (*resource.Resource, error)
	CreateResourceFunc func(ctx context.Context, d resource.Descriptor) (*resource.Resource, error)
	UpdateResourceFunc func(ctx context.Context, ref resource.Ref, patch map[string]any) (*resource.Resource, error)
	DeleteResourceFunc func(ctx context.Context, ref resource.Ref) error

	AssignRoleFunc func(ctx context.Context, a RoleAssignment) (*resource.Resource, error)

	// Certificate
	GetCertificateFunc    func(ctx context.Context, vault resource.Ref, name string) (*resource.Resource, error)
	CreateCertificateFunc func(ctx context.Context, vault resource.Ref, name string, policy resource.CertificatePolicy) (*resource.Resource, error)

	RunRemoteCommandFunc func(ctx context.Context, target resource.Ref, script resource.Script) (string, error)

	// Credentials
	IssueDelegatedTokenFunc func(ctx context.Context, account resource.Ref, container string, ttl time.Duration) (resource.Token, error)
	GetAccountKeyFunc       func(ctx context.Context, account resource.Ref) (string, error)
}

var _ CloudClient = (*MockClient)(nil)

func (m *MockClient) SubscriptionID() string {
	if m.Subscription == "" {
		return "00000000-0000-0000-0000-000000000000"
	}
	return m.Subscription
}

func (m *MockClient) GetResource(ctx context.Context, ref resource.Ref) (*resource.Resource, error) {
	if m.GetResourceFunc != nil {
		return m.GetResourceFunc(ctx, ref)
	}
	return nil, nil
}

func (m *MockClient) CreateResource(ctx context.Context, d resource.Descriptor) (*resource.Resource, error) {
	if m.CreateResourceFunc != nil {
		return m.CreateResourceFunc(ctx, d)
	}
	id, _ := resource.ID(m.SubscriptionID(), d.Ref())
	return &resource.Resource{ID: id, Kind: d.Kind, Name: d.Name, Properties: d.Properties}, nil
}

func (m *MockClient) UpdateResource(ctx context.Context, ref resource.Ref, patch map[string]any) (*resource.Resource, error) {
	if m.UpdateResourceFunc != nil {
		return m.UpdateResourceFunc(ctx, ref, patch)
	}
	return &resource.Resource{Kind: ref.Kind, Name: ref.Name, Properties: patch}, nil
}

func (m *MockClient) DeleteResource(ctx context.Context, ref resource.Ref) error {
	if m.DeleteResourceFunc != nil {
		return m.DeleteResourceFunc(ctx, ref)
	}
	return nil
}

func (m *MockClient) AssignRole(ctx context.Context, a RoleAssignment) (*resource.Resource, error) {
	if m.AssignRoleFunc != nil {
		return m.AssignRoleFunc(ctx, a)
	}
	return &resource.Resource{Kind: resource.KindRoleAssignment, Name: a.Name}, nil
}

func (m *MockClient) GetCertificate(ctx context.Context, vault resource.Ref, name string) (*resource.Resource, error) {
	if m.GetCertificateFunc != nil {
		return m.GetCertificateFunc(ctx, vault, name)
	}
	return nil, nil
}

func (m *MockClient) CreateCertificate(ctx context.Context, vault resource.Ref, name string, policy resource.CertificatePolicy) (*resource.Resource, error) {
	if m.CreateCertificateFunc != nil {
		return m.CreateCertificateFunc(ctx, vault, name, policy)
	}
	return &resource.Resource{
		ID:         resource.VaultURL(vault.Name) + "certificates/" + name,
		Kind:       resource.KindCertificate,
		Name:       name,
		Properties: policy.ToProperties(),
	}, nil
}

func (m *MockClient) RunRemoteCommand(ctx context.Context, target resource.Ref, script resource.Script) (string, error) {
	if m.RunRemoteCommandFunc != nil {
		return m.RunRemoteCommandFunc(ctx, target, script)
	}
	return "", nil
}

func (m *MockClient) IssueDelegatedToken(ctx context.Context, account resource.Ref, container string, ttl time.Duration) (resource.Token, error) {
	if m.IssueDelegatedTokenFunc != nil {
		return m.IssueDelegatedTokenFunc(ctx, account, container, ttl)
	}
	return resource.Token{Value: "mock-token", ExpiresOn: time.Now().Add(ttl)}, nil
}

func (m *MockClient) GetAccountKey(ctx context.Context, account resource.Ref) (string, error) {
	if m.GetAccountKeyFunc != nil {
		return m.GetAccountKeyFunc(ctx, account)
	}
	return "mock-key", nil
}
