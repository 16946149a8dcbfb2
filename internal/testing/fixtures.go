package testing

import (
	"time"

	"github.com/imamik/azhpc/internal/platform/azure"
	"github.com/imamik/azhpc/internal/resource"
)

// FixedNow is the clock used by fixtures.
var FixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// CloudFixture provides pre-configured fake clouds for common scenarios.
type CloudFixture struct {
	fake *azure.FakeClient
}

// NewCloudFixture creates a new fixture around an empty fake cloud.
func NewCloudFixture() *CloudFixture {
	f := azure.NewFakeClient(TestSubscription)
	f.SetClock(func() time.Time { return FixedNow })
	return &CloudFixture{fake: f}
}

// Fake returns the underlying FakeClient for custom configuration.
func (f *CloudFixture) Fake() *azure.FakeClient {
	return f.fake
}

// Healthy returns a cloud where every operation succeeds.
func (f *CloudFixture) Healthy() *azure.FakeClient {
	return f.fake
}

// SharedKeyDenied returns a cloud whose policy blocks shared key access on
// storage accounts.
func (f *CloudFixture) SharedKeyDenied() *azure.FakeClient {
	f.fake.DenySharedKey = true
	return f.fake
}

// WithoutPrincipal returns a cloud whose managed identities never report a
// principal ID.
func (f *CloudFixture) WithoutPrincipal() *azure.FakeClient {
	f.fake.NoPrincipal = true
	return f.fake
}

// WithoutBlobService returns a cloud whose storage accounts expose no blob endpoint.
func (f *CloudFixture) WithoutBlobService() *azure.FakeClient {
	f.fake.NoBlobService = true
	return f.fake
}

// PropagationLag makes the first role assignments fail with PrincipalNotFound.
func (f *CloudFixture) PropagationLag(times int) *azure.FakeClient {
	f.fake.FailNext(azure.OpAssignRole, resource.KindRoleAssignment,
		resource.NewError(resource.CodePrincipalNotFound, azure.OpAssignRole, "principal does not exist in the directory"), times)
	return f.fake
}

// QuotaExceeded makes creations of kind fail with QuotaExceeded.
func (f *CloudFixture) QuotaExceeded(kind resource.Kind) *azure.FakeClient {
	f.fake.FailNext(azure.OpCreate, kind,
		resource.NewError(resource.CodeQuotaExceeded, azure.OpCreate, "Operation could not be completed as it results in exceeding approved quota"), 0)
	return f.fake
}
