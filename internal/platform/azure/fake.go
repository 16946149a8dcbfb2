package azure

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/imamik/azhpc/internal/resource"
)

// Fake operation names used by FailNext.
const (
	OpGet               = "GetResource"
	OpCreate            = "CreateResource"
	OpUpdate            = "UpdateResource"
	OpDelete            = "DeleteResource"
	OpAssignRole        = "AssignRole"
	OpGetCertificate    = "GetCertificate"
	OpCreateCertificate = "CreateCertificate"
	OpRunRemoteCommand  = "RunRemoteCommand"
	OpIssueToken        = "IssueDelegatedToken"
	OpGetAccountKey     = "GetAccountKey"
)

// Script environment variables understood by the fake staging script.
const (
	ScriptEnvVault       = "VAULT_NAME"
	ScriptEnvCertificate = "CERT_NAME"
	ScriptEnvAccountKey  = "STORAGE_ACCOUNT_KEY"
)

type scriptedFailure struct {
	op    string
	kind  resource.Kind // empty matches every kind
	err   error
	times int // <= 0 fails forever
}

// FakeClient is an in-memory CloudClient. It backs unit tests and
// `azhpc apply --simulate`.
type FakeClient struct {
	mu           sync.Mutex
	subscription string
	resources    map[string]*resource.Resource
	failures     []*scriptedFailure
	now          func() time.Time

	// DenySharedKey simulates a policy that blocks shared key access on
	// every storage account.
	DenySharedKey bool
	// NoBlobService creates storage accounts without a blob endpoint, which
	// leaves certificate staging without a supported access mode.
	NoBlobService bool
	// NoPrincipal creates managed identities without a principal ID.
	NoPrincipal bool

	// Calls counts every call by operation name.
	Calls map[string]int
	// Created lists the keys of resources created, in order.
	Created []string
	// Scripts records every script run.
	Scripts []resource.Script
	// Tokens records every delegated token issued.
	Tokens []resource.Token
}

// NewFakeClient creates an empty fake.
func NewFakeClient(subscription string) *FakeClient {
	return &FakeClient{
		subscription: subscription,
		resources:    make(map[string]*resource.Resource),
		now:          time.Now,
		Calls:        make(map[string]int),
	}
}

// SetClock overrides the clock used for token expiry.
func (f *FakeClient) SetClock(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// FailNext makes the next `times` calls of op on kind return err.
// times <= 0 fails every call.
func (f *FakeClient) FailNext(op string, kind resource.Kind, err error, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, &scriptedFailure{op: op, kind: kind, err: err, times: times})
}

// Seed stores a resource as if it already existed.
func (f *FakeClient) Seed(ref resource.Ref, props map[string]any) *resource.Resource {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := f.newResource(ref, props)
	f.resources[ref.Key()] = res
	return res
}

// Has reports whether a resource exists.
func (f *FakeClient) Has(ref resource.Ref) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.resources[ref.Key()]
	return ok
}

// Count returns the number of calls of op.
func (f *FakeClient) Count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[op]
}

func (f *FakeClient) SubscriptionID() string {
	return f.subscription
}

// enter records the call and returns a scripted failure, if any.
// The caller must hold f.mu.
func (f *FakeClient) enter(op string, kind resource.Kind) error {
	f.Calls[op]++
	for i, sf := range f.failures {
		if sf.op != op || (sf.kind != "" && sf.kind != kind) {
			continue
		}
		if sf.times > 0 {
			sf.times--
			if sf.times == 0 {
				f.failures = append(f.failures[:i], f.failures[i+1:]...)
			}
		}
		return sf.err
	}
	return nil
}

func (f *FakeClient) newResource(ref resource.Ref, props map[string]any) *resource.Resource {
	id, err := resource.ID(f.subscription, ref)
	if err != nil {
		id = "/fake/" + ref.Key()
	}
	return &resource.Resource{
		ID:         id,
		Kind:       ref.Kind,
		Name:       ref.Name,
		Properties: deepCopy(props),
		Outputs:    map[string]any{},
	}
}

func (f *FakeClient) GetResource(ctx context.Context, ref resource.Ref) (*resource.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpGet, ref.Kind); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, ok := f.resources[ref.Key()]
	if !ok {
		return nil, nil
	}
	return clone(res), nil
}

func (f *FakeClient) CreateResource(ctx context.Context, d resource.Descriptor) (*resource.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpCreate, d.Kind); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ref := d.Ref()
	if _, ok := f.resources[ref.Key()]; ok {
		return nil, resource.NewError(resource.CodeAlreadyExists, OpCreate, fmt.Sprintf("%s already exists", ref.Key()))
	}
	if d.Parent != nil {
		if _, ok := f.resources[d.Parent.Key()]; !ok {
			return nil, resource.NewError(resource.CodeNotFound, OpCreate, fmt.Sprintf("parent %s not found", d.Parent.Key()))
		}
	}

	res := f.newResource(ref, d.Properties)
	if res.Properties == nil {
		res.Properties = map[string]any{}
	}
	switch d.Kind {
	case resource.KindManagedIdentity:
		if !f.NoPrincipal {
			setPath(res.Properties, "properties.principalId", uuid.NewSHA1(uuid.NameSpaceOID, []byte(res.ID)).String())
			setPath(res.Properties, "properties.clientId", uuid.NewSHA1(uuid.NameSpaceURL, []byte(res.ID)).String())
		}
	case resource.KindKeyVault:
		setPath(res.Properties, "properties.vaultUri", resource.VaultURL(d.Name))
	case resource.KindStorageAccount:
		if f.DenySharedKey {
			setPath(res.Properties, "properties.allowSharedKeyAccess", false)
		}
		if !f.NoBlobService {
			setPath(res.Properties, "properties.primaryEndpoints.blob", resource.BlobURL(d.Name))
		}
	case resource.KindClusterDeployment:
		res.Outputs["clusterId"] = res.ID + "/cluster"
		res.Outputs["schedulerEndpoint"] = fmt.Sprintf("https://%s.scheduler.internal:6817", d.Name)
	}

	f.resources[ref.Key()] = res
	f.Created = append(f.Created, ref.Key())
	return clone(res), nil
}

func (f *FakeClient) UpdateResource(ctx context.Context, ref resource.Ref, patch map[string]any) (*resource.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpUpdate, ref.Kind); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, ok := f.resources[ref.Key()]
	if !ok {
		return nil, resource.NewError(resource.CodeNotFound, OpUpdate, fmt.Sprintf("%s not found", ref.Key()))
	}
	if res.Properties == nil {
		res.Properties = map[string]any{}
	}
	merge(res.Properties, patch)
	return clone(res), nil
}

func (f *FakeClient) DeleteResource(ctx context.Context, ref resource.Ref) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpDelete, ref.Kind); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	key := ref.Key()
	for k := range f.resources {
		if k == key || strings.HasPrefix(k, key+"/") {
			delete(f.resources, k)
		}
	}
	return nil
}

func (f *FakeClient) AssignRole(ctx context.Context, a RoleAssignment) (*resource.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpAssignRole, resource.KindRoleAssignment); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !f.principalExists(a.PrincipalID) {
		return nil, resource.NewError(resource.CodePrincipalNotFound, OpAssignRole,
			fmt.Sprintf("principal %s does not exist in the directory", a.PrincipalID))
	}
	if _, ok := f.resources[a.Scope.Key()]; !ok {
		return nil, resource.NewError(resource.CodeNotFound, OpAssignRole, fmt.Sprintf("scope %s not found", a.Scope.Key()))
	}

	scope := a.Scope
	ref := resource.Ref{Kind: resource.KindRoleAssignment, Name: a.Name, Parent: &scope}
	if existing, ok := f.resources[ref.Key()]; ok {
		return nil, resource.NewError(resource.CodeAlreadyExists, OpAssignRole, fmt.Sprintf("role assignment %s already exists", existing.Name))
	}
	res := f.newResource(ref, map[string]any{
		"properties": map[string]any{
			"principalId":      a.PrincipalID,
			"roleDefinitionId": RoleDefinitionID(f.subscription, a.RoleDefinitionID),
			"principalType":    "ServicePrincipal",
		},
	})
	f.resources[ref.Key()] = res
	f.Created = append(f.Created, ref.Key())
	return clone(res), nil
}

func (f *FakeClient) principalExists(id string) bool {
	if id == "" {
		return false
	}
	for _, res := range f.resources {
		if res.Kind != resource.KindManagedIdentity {
			continue
		}
		if v, _ := resource.Lookup(res.Properties, "properties.principalId"); v == id {
			return true
		}
	}
	return false
}

func (f *FakeClient) GetCertificate(ctx context.Context, vault resource.Ref, name string) (*resource.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpGetCertificate, resource.KindCertificate); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, ok := f.resources[certRef(vault, name).Key()]
	if !ok {
		return nil, nil
	}
	return clone(res), nil
}

func (f *FakeClient) CreateCertificate(ctx context.Context, vault resource.Ref, name string, policy resource.CertificatePolicy) (*resource.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpCreateCertificate, resource.KindCertificate); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.storeCertificate(vault, name, policy)
}

// storeCertificate creates or replaces a certificate. The caller must hold f.mu.
func (f *FakeClient) storeCertificate(vault resource.Ref, name string, policy resource.CertificatePolicy) (*resource.Resource, error) {
	if _, ok := f.resources[vault.Key()]; !ok {
		return nil, resource.NewError(resource.CodeNotFound, OpCreateCertificate, fmt.Sprintf("vault %s not found", vault.Name))
	}
	ref := certRef(vault, name)
	res := f.newResource(ref, policy.ToProperties())
	res.Properties["status"] = "completed"
	f.resources[ref.Key()] = res
	f.Created = append(f.Created, ref.Key())
	return clone(res), nil
}

// RunRemoteCommand simulates the certificate staging script: a storage
// account target requires shared key access, and a script carrying VAULT_NAME
// and CERT_NAME leaves a certificate behind in that vault.
func (f *FakeClient) RunRemoteCommand(ctx context.Context, target resource.Ref, script resource.Script) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpRunRemoteCommand, target.Kind); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.Scripts = append(f.Scripts, script)

	if target.Kind == resource.KindStorageAccount {
		if f.sharedKeyDenied(target) {
			return "", resource.NewError(resource.CodePolicyDeniedSharedKey, OpRunRemoteCommand,
				"Key based authentication is not permitted on this storage account.")
		}
		if script.SecureEnv[ScriptEnvAccountKey] == "" {
			return "", resource.NewError(resource.CodeUnclassified, OpRunRemoteCommand, "storage account key not supplied")
		}
	}

	vaultName, certName := script.Env[ScriptEnvVault], script.Env[ScriptEnvCertificate]
	if vaultName == "" || certName == "" {
		return "ok", nil
	}
	vault, ok := f.findByName(resource.KindKeyVault, vaultName)
	if !ok {
		return "", resource.NewError(resource.CodeNotFound, OpRunRemoteCommand, fmt.Sprintf("vault %s not found", vaultName))
	}
	if _, err := f.storeCertificate(vault, certName, policyFromEnv(script.Env)); err != nil {
		return "", err
	}
	return fmt.Sprintf("certificate %s staged in %s", certName, vaultName), nil
}

func (f *FakeClient) IssueDelegatedToken(ctx context.Context, account resource.Ref, container string, ttl time.Duration) (resource.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpIssueToken, resource.KindStorageAccount); err != nil {
		return resource.Token{}, err
	}
	if err := ctx.Err(); err != nil {
		return resource.Token{}, err
	}
	if err := resource.CheckTTL(ttl); err != nil {
		return resource.Token{}, err
	}
	tok := resource.Token{
		Value:     fmt.Sprintf("sv=2023-11-03&sr=c&sig=fake-%s-%s", account.Name, container),
		ExpiresOn: f.now().Add(ttl),
	}
	f.Tokens = append(f.Tokens, tok)
	return tok, nil
}

func (f *FakeClient) GetAccountKey(ctx context.Context, account resource.Ref) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpGetAccountKey, resource.KindStorageAccount); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.sharedKeyDenied(account) {
		return "", resource.NewError(resource.CodePolicyDeniedSharedKey, OpGetAccountKey,
			"Key based authentication is not permitted on this storage account.")
	}
	return "fake-key-" + account.Name, nil
}

// sharedKeyDenied reports whether shared key access is blocked. The caller must hold f.mu.
func (f *FakeClient) sharedKeyDenied(account resource.Ref) bool {
	if f.DenySharedKey {
		return true
	}
	if res, ok := f.resources[account.Key()]; ok {
		v, _ := resource.Lookup(res.Properties, "properties.allowSharedKeyAccess")
		if allowed, set := v.(bool); set && !allowed {
			return true
		}
	}
	return false
}

// findByName returns the ref of the first resource of kind with name. The caller must hold f.mu.
func (f *FakeClient) findByName(kind resource.Kind, name string) (resource.Ref, bool) {
	for key, res := range f.resources {
		if res.Kind != kind || res.Name != name {
			continue
		}
		return refFromKey(key), true
	}
	return resource.Ref{}, false
}

func certRef(vault resource.Ref, name string) resource.Ref {
	return resource.Ref{Kind: resource.KindCertificate, Name: name, Parent: &vault}
}

// refFromKey parses a key produced by resource.Ref.Key.
func refFromKey(key string) resource.Ref {
	parts := strings.Split(key, "/")
	var cur *resource.Ref
	for i := 0; i+1 < len(parts); i += 2 {
		cur = &resource.Ref{Kind: resource.Kind(parts[i]), Name: parts[i+1], Parent: cur}
	}
	if cur == nil {
		return resource.Ref{}
	}
	return *cur
}

func policyFromEnv(env map[string]string) resource.CertificatePolicy {
	p := resource.CertificatePolicy{Subject: env["CERT_SUBJECT"], ValidityMonths: 12}
	if v := env["CERT_VALIDITY_MONTHS"]; v != "" {
		_, _ = fmt.Sscanf(v, "%d", &p.ValidityMonths)
	}
	return p
}

// setPath stores v at a dot-separated path, creating intermediate maps.
func setPath(props map[string]any, path string, v any) {
	parts := strings.Split(path, ".")
	cur := props
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

// merge applies patch onto dst the way an ARM PATCH does: nested objects
// merge, everything else replaces.
func merge(dst, patch map[string]any) {
	for k, v := range patch {
		src, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		existing, ok := dst[k].(map[string]any)
		if !ok {
			existing = map[string]any{}
			dst[k] = existing
		}
		merge(existing, src)
	}
}

func clone(res *resource.Resource) *resource.Resource {
	out := *res
	out.Properties = deepCopy(res.Properties)
	out.Outputs = maps.Clone(res.Outputs)
	return &out
}

func deepCopy(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = deepCopy(nested)
			continue
		}
		out[k] = v
	}
	return out
}
