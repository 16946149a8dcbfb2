package steps

import (
	"fmt"

	"github.com/imamik/azhpc/internal/platform/azure"
	"github.com/imamik/azhpc/internal/provisioning"
	"github.com/imamik/azhpc/internal/resource"
	"github.com/imamik/azhpc/internal/util/naming"
)

// Built-in role definition GUIDs.
const (
	RoleStorageBlobDataContributor  = "ba92f5b4-2d11-453d-a403-e96b0029c9fe"
	RoleKeyVaultCertificatesOfficer = "a4417e6f-fecd-4de8-b567-7b0420b9f43c"
)

// RoleAssignments returns the step that grants the managed identity data
// plane access to the staging container and the key vault. The step is
// optional: an identity without a principal ID skips it.
func RoleAssignments() provisioning.Step {
	return provisioning.Step{
		State:       provisioning.StateRoleAssigned,
		Description: "role assignments",
		DependsOn:   []provisioning.State{provisioning.StateIdentityReady, provisioning.StateStorageReady},
		Optional:    true,
		Run:         assignRoles,
	}
}

type grant struct {
	scope *resource.Ref
	role  string
}

func assignRoles(rc *provisioning.RunContext) provisioning.Outcome {
	principal := rc.Outputs.PrincipalID
	if principal == "" {
		return provisioning.Skipped("identity has no principal ID")
	}

	grants := []grant{
		{scope: rc.Outputs.StorageAccount, role: RoleStorageBlobDataContributor},
		{scope: rc.Outputs.KeyVault, role: RoleKeyVaultCertificatesOfficer},
	}
	for _, g := range grants {
		if g.scope == nil {
			return provisioning.Failed(fmt.Errorf("role %s has no scope to be assigned on", g.role))
		}
		d, err := roleAssignmentDescriptor(rc, *g.scope, principal, g.role)
		if err != nil {
			return provisioning.Failed(err)
		}
		// New principals take a while to show up in the directory.
		if _, err := rc.Ensure(d, provisioning.WithPolicy(rc.Policies.Propagation)); err != nil {
			return provisioning.Failed(err)
		}
	}
	return provisioning.Succeeded()
}

func roleAssignmentDescriptor(rc *provisioning.RunContext, scope resource.Ref, principal, role string) (resource.Descriptor, error) {
	scopeID, err := rc.ResourceID(scope)
	if err != nil {
		return resource.Descriptor{}, err
	}
	roleDef := azure.RoleDefinitionID(rc.Cloud.SubscriptionID(), role)
	return resource.Descriptor{
		Kind:   resource.KindRoleAssignment,
		Name:   naming.RoleAssignment(scopeID, principal, roleDef),
		Parent: &scope,
		Properties: map[string]any{
			"properties": map[string]any{
				"principalId":      principal,
				"roleDefinitionId": roleDef,
				"principalType":    "ServicePrincipal",
			},
		},
		Required: []string{"properties.principalId"},
	}, nil
}
