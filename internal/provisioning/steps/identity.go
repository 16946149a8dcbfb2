package steps

import (
	"github.com/imamik/azhpc/internal/provisioning"
	"github.com/imamik/azhpc/internal/resource"
)

// Identity returns the step that ensures the user-assigned managed identity
// the cluster and the staging script run as.
func Identity() provisioning.Step {
	return provisioning.Step{
		State:       provisioning.StateIdentityReady,
		Description: "managed identity",
		DependsOn:   []provisioning.State{provisioning.StateResourceGroupReady},
		Run:         ensureIdentity,
	}
}

func ensureIdentity(rc *provisioning.RunContext) provisioning.Outcome {
	d := resource.Descriptor{
		Kind:       resource.KindManagedIdentity,
		Name:       rc.Namer.Name(resource.KindManagedIdentity, ""),
		Location:   rc.Config.Location,
		Parent:     rc.Group(),
		Properties: map[string]any{"tags": tags(rc)},
	}
	res, err := rc.Ensure(d)
	if err != nil {
		return provisioning.Failed(err)
	}

	ref := d.Ref()
	rc.Outputs.Identity = &ref
	rc.Outputs.PrincipalID = res.String("properties.principalId")
	rc.Outputs.ClientID = res.String("properties.clientId")
	if rc.Outputs.PrincipalID == "" {
		provisioning.LogWarning(rc.Observer, rc.Step(), "identity "+d.Name+" reports no principal ID")
	}
	return provisioning.Succeeded()
}
