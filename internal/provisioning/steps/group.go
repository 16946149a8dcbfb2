package steps

import (
	"github.com/imamik/azhpc/internal/provisioning"
	"github.com/imamik/azhpc/internal/resource"
)

// ResourceGroup returns the step that ensures the root resource group.
// With force fresh configured, an existing group is deleted first.
func ResourceGroup() provisioning.Step {
	return provisioning.Step{
		State:       provisioning.StateResourceGroupReady,
		Description: "resource group",
		Run:         ensureResourceGroup,
	}
}

func ensureResourceGroup(rc *provisioning.RunContext) provisioning.Outcome {
	_, err := rc.Ensure(groupDescriptor(rc), provisioning.WithForceFresh(rc.Config.ForceFresh))
	return provisioning.FromError(err)
}

func groupDescriptor(rc *provisioning.RunContext) resource.Descriptor {
	return resource.Descriptor{
		Kind:       resource.KindResourceGroup,
		Name:       rc.Outputs.ResourceGroup.Name,
		Location:   rc.Config.Location,
		Properties: map[string]any{"tags": tags(rc)},
	}
}
