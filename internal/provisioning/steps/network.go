package steps

import (
	"fmt"

	"github.com/imamik/azhpc/internal/provisioning"
	"github.com/imamik/azhpc/internal/resource"
)

// Network returns the step that ensures the NSG, the virtual network and
// its compute, storage and private endpoint subnets.
func Network() provisioning.Step {
	return provisioning.Step{
		State:       provisioning.StateNetworkReady,
		Description: "virtual network",
		DependsOn:   []provisioning.State{provisioning.StateResourceGroupReady},
		Run:         ensureNetwork,
	}
}

func ensureNetwork(rc *provisioning.RunContext) provisioning.Outcome {
	nsgDesc := nsgDescriptor(rc)
	nsg, err := rc.Ensure(nsgDesc)
	if err != nil {
		return provisioning.Failed(err)
	}
	nsgRef := nsgDesc.Ref()
	rc.Outputs.NSG = &nsgRef

	vnetDesc := resource.Descriptor{
		Kind:     resource.KindVNet,
		Name:     rc.Namer.Name(resource.KindVNet, ""),
		Location: rc.Config.Location,
		Parent:   rc.Group(),
		Properties: map[string]any{
			"tags": tags(rc),
			"properties": map[string]any{
				"addressSpace": map[string]any{
					"addressPrefixes": []any{rc.Config.Network.AddressSpace},
				},
			},
		},
		Required: []string{"properties.addressSpace.addressPrefixes"},
	}
	if _, err := rc.Ensure(vnetDesc); err != nil {
		return provisioning.Failed(err)
	}
	vnetRef := vnetDesc.Ref()
	rc.Outputs.VNet = &vnetRef

	net := rc.Config.Network
	subnets := []resource.Descriptor{
		subnetDescriptor(rc, vnetRef, provisioning.SubnetCompute, net.ComputeSubnet, map[string]any{
			"networkSecurityGroup": map[string]any{"id": nsg.ID},
		}, "properties.networkSecurityGroup.id"),
		subnetDescriptor(rc, vnetRef, provisioning.SubnetStorage, net.StorageSubnet, map[string]any{
			"delegations": []any{map[string]any{
				"name":       "netapp",
				"properties": map[string]any{"serviceName": "Microsoft.Netapp/volumes"},
			}},
		}, "properties.delegations"),
		subnetDescriptor(rc, vnetRef, provisioning.SubnetEndpoint, net.EndpointSubnet, map[string]any{
			"privateEndpointNetworkPolicies": "Disabled",
		}),
	}
	for _, d := range subnets {
		if _, err := rc.Ensure(d); err != nil {
			return provisioning.Failed(err)
		}
		rc.Outputs.Subnets[d.Name] = d.Ref()
	}
	return provisioning.Succeeded()
}

func nsgDescriptor(rc *provisioning.RunContext) resource.Descriptor {
	sources := rc.Config.Network.AllowedSSHSources
	if len(sources) == 0 {
		sources = []string{"VirtualNetwork"}
	}
	prefixes := make([]any, 0, len(sources))
	for _, s := range sources {
		prefixes = append(prefixes, s)
	}

	return resource.Descriptor{
		Kind:     resource.KindNSG,
		Name:     rc.Namer.Name(resource.KindNSG, provisioning.SubnetCompute),
		Location: rc.Config.Location,
		Parent:   rc.Group(),
		Properties: map[string]any{
			"tags": tags(rc),
			"properties": map[string]any{
				"securityRules": []any{map[string]any{
					"name": "allow-ssh",
					"properties": map[string]any{
						"priority":                 100,
						"direction":                "Inbound",
						"access":                   "Allow",
						"protocol":                 "Tcp",
						"sourcePortRange":          "*",
						"destinationPortRange":     "22",
						"sourceAddressPrefixes":    prefixes,
						"destinationAddressPrefix": "VirtualNetwork",
					},
				}},
			},
		},
	}
}

// subnetDescriptor names subnets by role so that later steps find them
// through Outputs.Subnets.
func subnetDescriptor(rc *provisioning.RunContext, vnet resource.Ref, role, prefix string, extra map[string]any, required ...string) resource.Descriptor {
	props := map[string]any{"addressPrefix": prefix}
	for k, v := range extra {
		props[k] = v
	}
	return resource.Descriptor{
		Kind:       resource.KindSubnet,
		Name:       role,
		Parent:     &vnet,
		Properties: map[string]any{"properties": props},
		Required:   append([]string{"properties.addressPrefix"}, required...),
	}
}

// subnetID returns the resource ID of the subnet with the given role.
func subnetID(rc *provisioning.RunContext, role string) (string, error) {
	ref, ok := rc.Outputs.Subnets[role]
	if !ok {
		return "", fmt.Errorf("subnet %s has not been provisioned", role)
	}
	return rc.ResourceID(ref)
}
