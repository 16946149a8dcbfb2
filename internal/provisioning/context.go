package provisioning

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/imamik/azhpc/internal/config"
	"github.com/imamik/azhpc/internal/platform/azure"
	"github.com/imamik/azhpc/internal/resource"
	"github.com/imamik/azhpc/internal/template"
	"github.com/imamik/azhpc/internal/util/keygen"
	"github.com/imamik/azhpc/internal/util/naming"
	"github.com/imamik/azhpc/internal/util/retry"
)

// Subnet roles.
const (
	SubnetCompute  = "compute"
	SubnetStorage  = "storage"
	SubnetEndpoint = "endpoints"
)

// Outputs holds the identifiers produced by earlier steps.
// It is progressively populated as each step completes and is read by
// later steps that need earlier results.
type Outputs struct {
	ResourceGroup resource.Ref

	// Identity results (populated by IdentityReady)
	Identity    *resource.Ref
	PrincipalID string
	ClientID    string

	// Network results (populated by NetworkReady)
	VNet    *resource.Ref
	NSG     *resource.Ref
	Subnets map[string]resource.Ref // role -> subnet

	// Storage results (populated by StorageReady)
	StorageAccount *resource.Ref
	BlobEndpoint   string
	KeyVault       *resource.Ref
	VaultURI       string
	Staging        *resource.StagingArtifact

	// Certificate results (populated by CertificateStaged)
	Certificate   *resource.Ref
	CertificateID string
	Token         *resource.Token

	// Cluster results (populated by ClusterDeployed)
	ClusterID         string
	SchedulerEndpoint string
	// AdminKey is set when the admin key pair was generated during the run.
	AdminKey *keygen.KeyPair

	// IDs maps descriptor keys to resource IDs for everything ensured.
	IDs map[string]string
}

// NewOutputs creates empty outputs.
func NewOutputs() *Outputs {
	return &Outputs{
		Subnets: make(map[string]resource.Ref),
		IDs:     make(map[string]string),
	}
}

// RunContext is the explicit context of one deployment run. It is passed to
// every step and is the only channel between them.
type RunContext struct {
	context.Context
	Config    *config.Config
	Cloud     azure.CloudClient
	Namer     *naming.Namer
	Policies  config.Policies
	Executor  *retry.Executor
	Ensurer   *Ensurer
	History   *History
	Outputs   *Outputs
	Observer  Observer
	Metrics   *Metrics
	Templates *template.Repository
	Now       func() time.Time
	RunID     string

	step string
}

// RunOption customizes a RunContext.
type RunOption func(*RunContext)

// WithObserver sets the observer.
func WithObserver(o Observer) RunOption {
	return func(rc *RunContext) { rc.Observer = o }
}

// WithMetrics sets the run metrics.
func WithMetrics(m *Metrics) RunOption {
	return func(rc *RunContext) { rc.Metrics = m }
}

// WithExecutor sets the retry executor.
func WithExecutor(x *retry.Executor) RunOption {
	return func(rc *RunContext) { rc.Executor = x }
}

// WithClock sets the clock.
func WithClock(now func() time.Time) RunOption {
	return func(rc *RunContext) { rc.Now = now }
}

// WithTemplates sets the template repository.
func WithTemplates(repo *template.Repository) RunOption {
	return func(rc *RunContext) { rc.Templates = repo }
}

// WithRunID sets the run ID.
func WithRunID(id string) RunOption {
	return func(rc *RunContext) { rc.RunID = id }
}

// NewRunContext creates the context of a run. cfg must be finalized.
func NewRunContext(ctx context.Context, cfg *config.Config, cloud azure.CloudClient, opts ...RunOption) *RunContext {
	rc := &RunContext{
		Context:  ctx,
		Config:   cfg,
		Cloud:    cloud,
		Namer:    naming.New(cfg.Prefix, cfg.Scope()),
		Policies: cfg.Retry.Policies(),
		History:  NewHistory(),
		Outputs:  NewOutputs(),
		Now:      time.Now,
	}
	for _, opt := range opts {
		opt(rc)
	}
	if rc.Observer == nil {
		rc.Observer = NewLogObserver(logr.Discard())
	}
	if rc.Executor == nil {
		rc.Executor = retry.NewExecutor()
	}
	if rc.Templates == nil {
		rc.Templates = template.NewRepository(cfg.Cluster.TemplateDir)
	}
	if rc.RunID == "" {
		rc.RunID = uuid.NewString()
	}
	rc.Observer = rc.Observer.WithFields(map[string]string{"run": rc.RunID})
	rc.Outputs.ResourceGroup = resource.Ref{Kind: resource.KindResourceGroup, Name: rc.Namer.ResourceGroup()}
	rc.Ensurer = &Ensurer{
		Cloud:        cloud,
		Executor:     rc.Executor,
		Policy:       rc.Policies.Create,
		DeletePolicy: rc.Policies.Delete,
		Observer:     rc.Observer,
		Metrics:      rc.Metrics,
		Now:          rc.Now,
	}
	return rc
}

// Step returns the name of the step currently running.
func (rc *RunContext) Step() string {
	return rc.step
}

// Group returns a pointer to the resource group ref, for use as a parent.
func (rc *RunContext) Group() *resource.Ref {
	rg := rc.Outputs.ResourceGroup
	return &rg
}

// Ensure ensures d as part of the current step and records the result.
func (rc *RunContext) Ensure(d resource.Descriptor, opts ...EnsureOption) (*resource.Resource, error) {
	opts = append([]EnsureOption{WithStep(rc.step)}, opts...)
	res, result, err := rc.Ensurer.EnsureResource(rc, d, opts...)
	rc.Record(result)
	if res != nil && res.ID != "" {
		rc.Outputs.IDs[d.Key()] = res.ID
	}
	return res, err
}

// Record appends a finalized result to the history. Results recorded
// without a step are attributed to the current one.
func (rc *RunContext) Record(result resource.ProvisioningResult) {
	if result.Step == "" {
		result.Step = rc.step
	}
	if err := rc.History.Append(result); err != nil {
		LogWarning(rc.Observer, rc.step, "dropped result "+result.Key+": "+err.Error())
	}
}

// Skip records a skipped result for d in the current step.
func (rc *RunContext) Skip(d resource.Descriptor, warning string) {
	result := resource.NewPendingResult(rc.step, d, rc.Now())
	_ = result.Skip(warning, rc.Now())
	rc.Record(result)
}

// RetryPolicy returns p with retries of direct cloud calls counted and
// logged against the current step, the same way the Ensurer reports them.
func (rc *RunContext) RetryPolicy(p retry.Policy) retry.Policy {
	step := rc.step
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		rc.Metrics.RecordRetry(p.Name)
		LogRetry(rc.Observer, step, p.Name, attempt, delay, err)
	}
	return p
}

// ResourceID returns the ID of a resource ensured earlier in the run, or
// derives it from the ref.
func (rc *RunContext) ResourceID(ref resource.Ref) (string, error) {
	if id, ok := rc.Outputs.IDs[ref.Key()]; ok {
		return id, nil
	}
	return resource.ID(rc.Cloud.SubscriptionID(), ref)
}
