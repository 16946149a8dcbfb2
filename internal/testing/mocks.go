package testing

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/imamik/azhpc/internal/platform/azure"
	"github.com/imamik/azhpc/internal/resource"
)

// MockCloudClient is a testify mock of azure.CloudClient. Use it when a test
// needs call assertions; use azure.FakeClient when it needs a backing store.
type MockCloudClient struct {
	mock.Mock
}

var _ azure.CloudClient = (*MockCloudClient)(nil)

// SubscriptionID returns the mocked subscription.
func (m *MockCloudClient) SubscriptionID() string {
	args := m.Called()
	return args.String(0)
}

// GetResource mocks a resource lookup.
func (m *MockCloudClient) GetResource(ctx context.Context, ref resource.Ref) (*resource.Resource, error) {
	args := m.Called(ctx, ref)
	return resourceArg(args, 0), args.Error(1)
}

// CreateResource mocks a resource creation.
func (m *MockCloudClient) CreateResource(ctx context.Context, d resource.Descriptor) (*resource.Resource, error) {
	args := m.Called(ctx, d)
	return resourceArg(args, 0), args.Error(1)
}

// UpdateResource mocks a resource patch.
func (m *MockCloudClient) UpdateResource(ctx context.Context, ref resource.Ref, patch map[string]any) (*resource.Resource, error) {
	args := m.Called(ctx, ref, patch)
	return resourceArg(args, 0), args.Error(1)
}

// DeleteResource mocks a resource deletion.
func (m *MockCloudClient) DeleteResource(ctx context.Context, ref resource.Ref) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

// AssignRole mocks a role assignment.
func (m *MockCloudClient) AssignRole(ctx context.Context, a azure.RoleAssignment) (*resource.Resource, error) {
	args := m.Called(ctx, a)
	return resourceArg(args, 0), args.Error(1)
}

// GetCertificate mocks a certificate lookup.
func (m *MockCloudClient) GetCertificate(ctx context.Context, vault resource.Ref, name string) (*resource.Resource, error) {
	args := m.Called(ctx, vault, name)
	return resourceArg(args, 0), args.Error(1)
}

// CreateCertificate mocks native certificate creation.
func (m *MockCloudClient) CreateCertificate(ctx context.Context, vault resource.Ref, name string, policy resource.CertificatePolicy) (*resource.Resource, error) {
	args := m.Called(ctx, vault, name, policy)
	return resourceArg(args, 0), args.Error(1)
}

// RunRemoteCommand mocks a remote script run.
func (m *MockCloudClient) RunRemoteCommand(ctx context.Context, target resource.Ref, script resource.Script) (string, error) {
	args := m.Called(ctx, target, script)
	return args.String(0), args.Error(1)
}

// IssueDelegatedToken mocks a delegated token request.
func (m *MockCloudClient) IssueDelegatedToken(ctx context.Context, account resource.Ref, container string, ttl time.Duration) (resource.Token, error) {
	args := m.Called(ctx, account, container, ttl)
	tok, _ := args.Get(0).(resource.Token)
	return tok, args.Error(1)
}

// GetAccountKey mocks an account key request.
func (m *MockCloudClient) GetAccountKey(ctx context.Context, account resource.Ref) (string, error) {
	args := m.Called(ctx, account)
	return args.String(0), args.Error(1)
}

func resourceArg(args mock.Arguments, i int) *resource.Resource {
	if args.Get(i) == nil {
		return nil
	}
	return args.Get(i).(*resource.Resource)
}

// NewMockCloudClient creates a MockCloudClient answering SubscriptionID.
func NewMockCloudClient(subscription string) *MockCloudClient {
	m := &MockCloudClient{}
	m.On("SubscriptionID").Return(subscription).Maybe()
	return m
}

// WithCertificate makes GetCertificate report an existing certificate.
func (m *MockCloudClient) WithCertificate(vault resource.Ref, name string) *MockCloudClient {
	m.On("GetCertificate", mock.Anything, vault, name).Return(&resource.Resource{
		ID:   resource.VaultURL(vault.Name) + "certificates/" + name,
		Kind: resource.KindCertificate,
		Name: name,
	}, nil)
	return m
}

// WithoutCertificate makes GetCertificate report a missing certificate.
func (m *MockCloudClient) WithoutCertificate(vault resource.Ref, name string) *MockCloudClient {
	m.On("GetCertificate", mock.Anything, vault, name).Return(nil, nil)
	return m
}
