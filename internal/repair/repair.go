package repair

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/imamik/azhpc/internal/platform/azure"
	"github.com/imamik/azhpc/internal/provisioning"
	"github.com/imamik/azhpc/internal/resource"
	"github.com/imamik/azhpc/internal/util/retry"
)

// Step is the only step the engine inspects.
const Step = string(provisioning.StateCertificateStaged)

// Decision is the outcome of Inspect: either a RepairAction or NoActionNeeded.
type Decision interface {
	isDecision()
}

// RepairAction creates the certificate natively with the policy the
// failed staging attempt asked for.
type RepairAction struct {
	Vault  resource.Ref
	Name   string
	Policy resource.CertificatePolicy
	Cause  resource.Signature
}

// NoActionNeeded means the engine does nothing. Err is nil when nothing
// failed, and carries the original failure when it must be escalated.
type NoActionNeeded struct {
	Reason string
	Err    error
}

func (RepairAction) isDecision()   {}
func (NoActionNeeded) isDecision() {}

func (a RepairAction) String() string {
	return fmt.Sprintf("create certificate %s in %s natively (was %s)", a.Name, a.Vault.Name, a.Cause.Code)
}

func (n NoActionNeeded) String() string {
	if n.Err != nil {
		return fmt.Sprintf("%s: %v", n.Reason, n.Err)
	}
	return n.Reason
}

// Inspect looks at the certificate step of h and decides what to do.
func Inspect(h *provisioning.History) Decision {
	rec, ok := h.Step(Step)
	if !ok {
		return NoActionNeeded{Reason: "certificate step did not run"}
	}
	if rec.State != resource.StateFailed {
		return NoActionNeeded{Reason: fmt.Sprintf("certificate step %s", rec.State)}
	}

	failure, ok := h.LastFailure(Step)
	if !ok || failure.Error == nil {
		sig := resource.Signature{Code: resource.CodeUnclassified, Message: "certificate step failed"}
		if rec.Error != nil {
			sig = *rec.Error
		}
		return NoActionNeeded{Reason: "escalate", Err: signatureError(sig)}
	}
	if failure.Error.Code != resource.CodePolicyDeniedSharedKey {
		return NoActionNeeded{Reason: "escalate", Err: signatureError(*failure.Error)}
	}

	d := failure.Descriptor
	policy, ok := resource.PolicyFrom(d)
	if d.Kind != resource.KindCertificate || d.Parent == nil || !ok {
		return NoActionNeeded{Reason: "escalate: failed result does not describe a certificate", Err: signatureError(*failure.Error)}
	}
	return RepairAction{Vault: *d.Parent, Name: d.Name, Policy: policy, Cause: *failure.Error}
}

func signatureError(sig resource.Signature) error {
	return resource.NewError(sig.Code, "", sig.Message)
}

// Result reports what Repair did.
type Result struct {
	Decision Decision `json:"-"`
	// Action is a printable form of Decision.
	Action string `json:"action"`
	// Repaired is set when the certificate was created.
	Repaired bool `json:"repaired"`
	// Existing is set when the certificate was already there.
	Existing   bool   `json:"existing"`
	ResourceID string `json:"resourceId,omitempty"`
}

// Engine executes repair decisions.
type Engine struct {
	Cloud    azure.CloudClient
	Executor *retry.Executor
	// Policy retries the certificate lookup. Creation is never retried.
	Policy   retry.Policy
	Observer provisioning.Observer
}

// NewEngine creates an engine with default collaborators.
func NewEngine(cloud azure.CloudClient, policy retry.Policy) *Engine {
	return &Engine{
		Cloud:    cloud,
		Executor: retry.NewExecutor(),
		Policy:   policy,
		Observer: provisioning.NewLogObserver(logr.Discard()),
	}
}

// Repair inspects h and executes the decision. A NoActionNeeded decision
// returns its error unchanged.
func (e *Engine) Repair(ctx context.Context, h *provisioning.History) (Result, error) {
	decision := Inspect(h)
	result := Result{Decision: decision, Action: fmt.Sprint(decision)}

	action, ok := decision.(RepairAction)
	if !ok {
		return result, decision.(NoActionNeeded).Err
	}

	observer := e.Observer
	if observer == nil {
		observer = provisioning.NewLogObserver(logr.Discard())
	}
	executor := e.Executor
	if executor == nil {
		executor = retry.NewExecutor()
	}
	observer.Printf("Repairing %s: %s", Step, action)

	existing, err := retry.Do(ctx, executor, e.Policy, func(ctx context.Context) (*resource.Resource, error) {
		return e.Cloud.GetCertificate(ctx, action.Vault, action.Name)
	})
	if err != nil {
		return result, fmt.Errorf("repair: look up certificate %s: %w", action.Name, err)
	}
	if existing != nil {
		result.Existing = true
		result.ResourceID = existing.ID
		provisioning.LogResourceExists(observer, Step, string(resource.KindCertificate), action.Name, existing.ID)
		return result, nil
	}

	provisioning.LogResourceCreating(observer, Step, string(resource.KindCertificate), action.Name)
	created, err := e.Cloud.CreateCertificate(ctx, action.Vault, action.Name, action.Policy)
	if err != nil {
		provisioning.LogResourceFailed(observer, Step, string(resource.KindCertificate), action.Name, err)
		return result, fmt.Errorf("repair: create certificate %s: %w", action.Name, err)
	}
	result.Repaired = true
	result.ResourceID = created.ID
	provisioning.LogResourceCreated(observer, Step, string(resource.KindCertificate), action.Name, created.ID)
	return result, nil
}
