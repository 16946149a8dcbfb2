package provisioning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/azhpc/internal/platform/azure"
	"github.com/imamik/azhpc/internal/resource"
	"github.com/imamik/azhpc/internal/util/retry"
)

// ErrForceFreshNotRoot is returned when force fresh is requested for a
// resource whose deletion would not cascade to its dependents.
var ErrForceFreshNotRoot = errors.New("force fresh is only valid for the resource group root")

const opEnsure = "Ensure"

// Ensurer converges single resources: it returns an existing resource when
// it carries the required properties and creates it otherwise. It never
// updates or deletes an existing resource unless force fresh is requested
// on the resource group root.
type Ensurer struct {
	Cloud    azure.CloudClient
	Executor *retry.Executor

	// Policy is used for get-or-create unless a call overrides it.
	Policy retry.Policy
	// DeletePolicy is used for force fresh deletion.
	DeletePolicy retry.Policy

	Observer Observer
	Metrics  *Metrics
	Now      func() time.Time
}

type ensureOptions struct {
	step       string
	policy     *retry.Policy
	forceFresh bool
}

// EnsureOption customizes a single Ensure call.
type EnsureOption func(*ensureOptions)

// WithStep attributes the result to a pipeline step.
func WithStep(step string) EnsureOption {
	return func(o *ensureOptions) { o.step = step }
}

// WithPolicy overrides the retry policy of the call.
func WithPolicy(p retry.Policy) EnsureOption {
	return func(o *ensureOptions) { o.policy = &p }
}

// WithForceFresh deletes the resource before creating it again.
func WithForceFresh(force bool) EnsureOption {
	return func(o *ensureOptions) { o.forceFresh = force }
}

// Ensure converges d and returns its finalized result.
func (e *Ensurer) Ensure(ctx context.Context, d resource.Descriptor, opts ...EnsureOption) (resource.ProvisioningResult, error) {
	_, result, err := e.EnsureResource(ctx, d, opts...)
	return result, err
}

// EnsureResource converges d and returns the resource as reported by the
// cloud together with the finalized result.
func (e *Ensurer) EnsureResource(ctx context.Context, d resource.Descriptor, opts ...EnsureOption) (*resource.Resource, resource.ProvisioningResult, error) {
	o := ensureOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	observer := e.observer()
	result := resource.NewPendingResult(o.step, d, e.now())

	fail := func(err error, attempts int) (*resource.Resource, resource.ProvisioningResult, error) {
		_ = result.Fail(err, attempts, e.now())
		e.Metrics.RecordEnsure(d.Kind, OutcomeFailed)
		LogResourceFailed(observer, o.step, string(d.Kind), d.Name, err)
		return nil, result, fmt.Errorf("ensure %s: %w", d.Key(), err)
	}

	if err := d.Validate(); err != nil {
		return fail(retry.Fatal(resource.Wrap(resource.CodeUnclassified, opEnsure, err)), 0)
	}
	if o.forceFresh {
		if d.Kind != resource.KindResourceGroup {
			return fail(resource.Wrap(resource.CodeUnclassified, opEnsure, ErrForceFreshNotRoot), 0)
		}
		if err := e.deleteRoot(ctx, d, o.step); err != nil {
			return fail(err, retry.Attempts(err))
		}
	}

	policy := e.Policy
	if o.policy != nil {
		policy = *o.policy
	}
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		e.Metrics.RecordRetry(policy.Name)
		LogRetry(observer, o.step, policy.Name, attempt, delay, err)
	}

	attempts := 0
	created := false
	res, err := retry.Do(ctx, e.executor(), policy, func(ctx context.Context) (*resource.Resource, error) {
		attempts++
		res, wasCreated, err := e.ensureOnce(ctx, d, o.step)
		if wasCreated {
			created = true
		}
		return res, err
	})
	if err != nil {
		return fail(err, attempts)
	}

	_ = result.Succeed(res.ID, created, attempts, e.now())
	if created {
		e.Metrics.RecordEnsure(d.Kind, OutcomeCreated)
		LogResourceCreated(observer, o.step, string(d.Kind), d.Name, res.ID)
	} else {
		e.Metrics.RecordEnsure(d.Kind, OutcomeExists)
		LogResourceExists(observer, o.step, string(d.Kind), d.Name, res.ID)
	}
	return res, result, nil
}

// ensureOnce is a single get-or-create attempt.
func (e *Ensurer) ensureOnce(ctx context.Context, d resource.Descriptor, step string) (*resource.Resource, bool, error) {
	existing, err := e.get(ctx, d)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if err := checkRequired(d, existing); err != nil {
			return nil, false, retry.Fatal(err)
		}
		return existing, false, nil
	}

	LogResourceCreating(e.observer(), step, string(d.Kind), d.Name)
	res, err := e.create(ctx, d)
	if err == nil {
		return res, true, nil
	}
	if !resource.IsConflict(err) {
		return nil, false, err
	}

	// Lost a race with another writer; converge on what is there now.
	existing, getErr := e.get(ctx, d)
	if getErr != nil {
		return nil, false, getErr
	}
	if existing == nil {
		return nil, false, resource.NewError(resource.CodeTransient, opEnsure,
			fmt.Sprintf("%s reported as existing but not readable yet", d.Key()))
	}
	if err := checkRequired(d, existing); err != nil {
		return nil, false, retry.Fatal(err)
	}
	return existing, false, nil
}

func (e *Ensurer) get(ctx context.Context, d resource.Descriptor) (*resource.Resource, error) {
	if d.Kind == resource.KindCertificate {
		return e.Cloud.GetCertificate(ctx, *d.Parent, d.Name)
	}
	return e.Cloud.GetResource(ctx, d.Ref())
}

func (e *Ensurer) create(ctx context.Context, d resource.Descriptor) (*resource.Resource, error) {
	switch d.Kind {
	case resource.KindCertificate:
		policy, ok := resource.PolicyFrom(d)
		if !ok {
			return nil, retry.Fatal(resource.NewError(resource.CodeUnclassified, opEnsure,
				fmt.Sprintf("certificate %s has no policy", d.Name)))
		}
		return e.Cloud.CreateCertificate(ctx, *d.Parent, d.Name, policy)
	case resource.KindRoleAssignment:
		return e.Cloud.AssignRole(ctx, azure.RoleAssignment{
			Name:             d.Name,
			PrincipalID:      d.String("properties.principalId"),
			RoleDefinitionID: d.String("properties.roleDefinitionId"),
			Scope:            *d.Parent,
		})
	default:
		return e.Cloud.CreateResource(ctx, d)
	}
}

// deleteRoot removes the resource group so that it is recreated from scratch.
// Deletion cascades to every resource inside it.
func (e *Ensurer) deleteRoot(ctx context.Context, d resource.Descriptor, step string) error {
	existing, err := e.Cloud.GetResource(ctx, d.Ref())
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}

	observer := e.observer()
	LogResourceDeleting(observer, step, string(d.Kind), d.Name)
	policy := e.DeletePolicy
	policy.AllowDestructive = true
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		e.Metrics.RecordRetry(policy.Name)
		LogRetry(observer, step, policy.Name, attempt, delay, err)
	}
	err = e.executor().ExecuteDestructive(ctx, func(ctx context.Context) error {
		err := e.Cloud.DeleteResource(ctx, d.Ref())
		if resource.IsNotFound(err) {
			return nil
		}
		return err
	}, policy)
	if err != nil {
		return err
	}
	LogResourceDeleted(observer, step, string(d.Kind), d.Name)
	return nil
}

// checkRequired reports drift when an existing resource lacks required properties.
func checkRequired(d resource.Descriptor, existing *resource.Resource) error {
	missing := resource.MissingRequired(d.Required, existing.Properties)
	if len(missing) == 0 {
		return nil
	}
	return resource.NewError(resource.CodeDrift, opEnsure,
		fmt.Sprintf("%s exists without %s", d.Key(), strings.Join(missing, ", ")))
}

func (e *Ensurer) executor() *retry.Executor {
	if e.Executor == nil {
		return retry.NewExecutor()
	}
	return e.Executor
}

func (e *Ensurer) observer() Observer {
	if e.Observer == nil {
		return NewLogObserver(logr.Discard())
	}
	return e.Observer
}

func (e *Ensurer) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}
