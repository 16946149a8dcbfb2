package remediation

import (
	"fmt"

	"github.com/imamik/azhpc/internal/provisioning"
)

// privateEndpointGuidance lists the steps privateEndpointAutomated would
// take, with the same names. It makes no cloud calls.
func privateEndpointGuidance(rc *provisioning.RunContext, out *Outcome) error {
	plan, err := planEndpoint(rc)
	if err != nil {
		return err
	}
	rg := rc.Outputs.ResourceGroup.Name
	out.Target = plan.targetID
	out.Guidance = []string{
		fmt.Sprintf("Create the private DNS zone %s in resource group %s.", plan.zone.Name, rg),
		fmt.Sprintf("Link the zone to virtual network %s as %s, with auto-registration disabled.", rc.Outputs.VNet.Name, plan.link.Name),
		fmt.Sprintf("Create the private endpoint %s in subnet %s, connected to %s with group ID %q.",
			plan.endpoint.Name, plan.subnetID, plan.targetID, plan.groupID),
		fmt.Sprintf("Add the DNS zone group %s to %s, pointing at zone %s.", plan.group.Name, plan.endpoint.Name, plan.zone.Name),
		fmt.Sprintf("From a node in %s, check that %s resolves to a private address.", rc.Outputs.VNet.Name, hostOf(plan)),
		fmt.Sprintf("Keep public network access on %s disabled.", plan.target.Name),
	}
	out.Summary = fmt.Sprintf("private endpoint plan for %s %s (%d steps)", plan.target.Kind, plan.target.Name, len(out.Guidance))
	return nil
}

// policyExemptionGuidance explains how to exempt only the staging
// resource from the blocking policy. It makes no cloud calls.
func policyExemptionGuidance(rc *provisioning.RunContext, out *Outcome) error {
	staging := rc.Outputs.Staging.StorageAccount
	scope, err := rc.ResourceID(staging)
	if err != nil {
		return err
	}
	name := staging.Name + "-shared-key-waiver"
	out.Target = scope
	out.Guidance = []string{
		fmt.Sprintf("Find the assignment denying shared key access: az policy state list --resource %s --filter \"complianceState eq 'NonCompliant'\".", scope),
		fmt.Sprintf("Request a waiver scoped to this storage account only, not to resource group %s or the subscription.", rc.Outputs.ResourceGroup.Name),
		fmt.Sprintf("az policy exemption create --name %s --scope %s --policy-assignment <assignment-id> --exemption-category Waiver --expires-on <date>", name, scope),
		"Re-run the deployment once the exemption is in effect.",
	}
	out.Summary = fmt.Sprintf("policy exemption scoped to %s", staging.Name)
	return nil
}

func hostOf(p *endpointPlan) string {
	if p.groupID == "blob" {
		return p.target.Name + ".blob.core.windows.net"
	}
	return p.target.Name + ".vault.azure.net"
}
