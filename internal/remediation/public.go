package remediation

import (
	"context"
	"fmt"

	"github.com/imamik/azhpc/internal/platform/azure"
	"github.com/imamik/azhpc/internal/provisioning"
	"github.com/imamik/azhpc/internal/resource"
	"github.com/imamik/azhpc/internal/util/retry"
)

// Values of properties.publicNetworkAccess.
const (
	accessEnabled  = "Enabled"
	accessDisabled = "Disabled"
)

// enablePublicNetwork opens the target to public ingress and, when a
// revert delay is configured, closes it again once the delay has passed.
func enablePublicNetwork(rc *provisioning.RunContext, out *Outcome) error {
	ref := target(rc)
	id, err := rc.ResourceID(ref)
	if err != nil {
		return err
	}
	out.Target = id

	changed, err := setPublicNetworkAccess(rc, ref, accessEnabled, rc.Policies.Create)
	if err != nil {
		return err
	}
	if changed {
		out.Changed = append(out.Changed, ref.Key())
	}
	out.Summary = fmt.Sprintf("public network access enabled on %s %s", ref.Kind, ref.Name)

	after := rc.Config.Remediation.RevertAfter
	if after <= 0 {
		return nil
	}
	provisioning.LogWarning(rc.Observer, Step, fmt.Sprintf("public network access on %s reverts in %s", ref.Name, after))
	sleep := rc.Executor.Sleep
	if sleep == nil {
		sleep = retry.ContextSleep
	}
	if err := sleep(rc, after); err != nil {
		return fmt.Errorf("%s stays publicly reachable, revert was interrupted: %w", ref.Name, err)
	}

	if _, err := setPublicNetworkAccess(rc, ref, accessDisabled, rc.Policies.Revert); err != nil {
		return fmt.Errorf("revert public network access on %s: %w", ref.Name, err)
	}
	out.Reverted = true
	out.Summary += fmt.Sprintf(", reverted after %s", after)
	return nil
}

// setPublicNetworkAccess sets the flag unless it already has the value.
func setPublicNetworkAccess(rc *provisioning.RunContext, ref resource.Ref, value string, p retry.Policy) (bool, error) {
	return retry.Do(rc, rc.Executor, rc.RetryPolicy(p), func(ctx context.Context) (bool, error) {
		res, err := rc.Cloud.GetResource(ctx, ref)
		if err != nil {
			return false, err
		}
		if res == nil {
			return false, resource.NewError(resource.CodeNotFound, azure.OpGet, fmt.Sprintf("%s %s not found", ref.Kind, ref.Name))
		}
		if res.String("properties.publicNetworkAccess") == value {
			return false, nil
		}
		patch := map[string]any{"properties": map[string]any{"publicNetworkAccess": value}}
		if _, err := rc.Cloud.UpdateResource(ctx, ref, patch); err != nil {
			return false, err
		}
		return true, nil
	})
}
