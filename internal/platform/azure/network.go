package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v6"

	"github.com/imamik/azhpc/internal/resource"
)

// getNetwork reads network resources through the typed armnetwork clients.
func (c *RealClient) getNetwork(ctx context.Context, ref resource.Ref) (*resource.Resource, error) {
	rg, err := resourceGroupOf(ref)
	if err != nil {
		return nil, err
	}

	switch ref.Kind {
	case resource.KindVNet:
		resp, err := c.network.NewVirtualNetworksClient().Get(ctx, rg, ref.Name, nil)
		if err != nil {
			return nil, err
		}
		return toResource(ref.Kind, resp.VirtualNetwork)
	case resource.KindSubnet:
		vnet, err := parentName(ref, resource.KindVNet)
		if err != nil {
			return nil, err
		}
		resp, err := c.network.NewSubnetsClient().Get(ctx, rg, vnet, ref.Name, nil)
		if err != nil {
			return nil, err
		}
		return toResource(ref.Kind, resp.Subnet)
	case resource.KindNSG:
		resp, err := c.network.NewSecurityGroupsClient().Get(ctx, rg, ref.Name, nil)
		if err != nil {
			return nil, err
		}
		return toResource(ref.Kind, resp.SecurityGroup)
	case resource.KindPrivateEndpoint:
		resp, err := c.network.NewPrivateEndpointsClient().Get(ctx, rg, ref.Name, nil)
		if err != nil {
			return nil, err
		}
		return toResource(ref.Kind, resp.PrivateEndpoint)
	case resource.KindPrivateDNSZoneGroup:
		pe, err := parentName(ref, resource.KindPrivateEndpoint)
		if err != nil {
			return nil, err
		}
		resp, err := c.network.NewPrivateDNSZoneGroupsClient().Get(ctx, rg, pe, ref.Name, nil)
		if err != nil {
			return nil, err
		}
		return toResource(ref.Kind, resp.PrivateDNSZoneGroup)
	}
	return nil, fmt.Errorf("%s is not a network resource", ref.Kind)
}

// createNetwork creates network resources and waits for the long running
// operation to finish.
func (c *RealClient) createNetwork(ctx context.Context, d resource.Descriptor) (*resource.Resource, error) {
	ref := d.Ref()
	rg, err := resourceGroupOf(ref)
	if err != nil {
		return nil, err
	}

	switch d.Kind {
	case resource.KindVNet:
		var body armnetwork.VirtualNetwork
		if err := fromDescriptor(d, &body); err != nil {
			return nil, err
		}
		poller, err := c.network.NewVirtualNetworksClient().BeginCreateOrUpdate(ctx, rg, d.Name, body, nil)
		if err != nil {
			return nil, err
		}
		resp, err := poller.PollUntilDone(ctx, nil)
		if err != nil {
			return nil, err
		}
		return toResource(d.Kind, resp.VirtualNetwork)

	case resource.KindSubnet:
		vnet, err := parentName(ref, resource.KindVNet)
		if err != nil {
			return nil, err
		}
		var body armnetwork.Subnet
		if err := fromDescriptor(withoutLocation(d), &body); err != nil {
			return nil, err
		}
		poller, err := c.network.NewSubnetsClient().BeginCreateOrUpdate(ctx, rg, vnet, d.Name, body, nil)
		if err != nil {
			return nil, err
		}
		resp, err := poller.PollUntilDone(ctx, nil)
		if err != nil {
			return nil, err
		}
		return toResource(d.Kind, resp.Subnet)

	case resource.KindNSG:
		var body armnetwork.SecurityGroup
		if err := fromDescriptor(d, &body); err != nil {
			return nil, err
		}
		poller, err := c.network.NewSecurityGroupsClient().BeginCreateOrUpdate(ctx, rg, d.Name, body, nil)
		if err != nil {
			return nil, err
		}
		resp, err := poller.PollUntilDone(ctx, nil)
		if err != nil {
			return nil, err
		}
		return toResource(d.Kind, resp.SecurityGroup)

	case resource.KindPrivateEndpoint:
		var body armnetwork.PrivateEndpoint
		if err := fromDescriptor(d, &body); err != nil {
			return nil, err
		}
		poller, err := c.network.NewPrivateEndpointsClient().BeginCreateOrUpdate(ctx, rg, d.Name, body, nil)
		if err != nil {
			return nil, err
		}
		resp, err := poller.PollUntilDone(ctx, nil)
		if err != nil {
			return nil, err
		}
		return toResource(d.Kind, resp.PrivateEndpoint)

	case resource.KindPrivateDNSZoneGroup:
		pe, err := parentName(ref, resource.KindPrivateEndpoint)
		if err != nil {
			return nil, err
		}
		var body armnetwork.PrivateDNSZoneGroup
		if err := fromDescriptor(withoutLocation(d), &body); err != nil {
			return nil, err
		}
		poller, err := c.network.NewPrivateDNSZoneGroupsClient().BeginCreateOrUpdate(ctx, rg, pe, d.Name, body, nil)
		if err != nil {
			return nil, err
		}
		resp, err := poller.PollUntilDone(ctx, nil)
		if err != nil {
			return nil, err
		}
		return toResource(d.Kind, resp.PrivateDNSZoneGroup)
	}
	return nil, fmt.Errorf("%s is not a network resource", d.Kind)
}

// Child resources carry no location of their own.
func withoutLocation(d resource.Descriptor) resource.Descriptor {
	d.Location = ""
	return d
}

func parentName(ref resource.Ref, kind resource.Kind) (string, error) {
	if ref.Parent == nil || ref.Parent.Kind != kind {
		return "", fmt.Errorf("%s %q must be a child of a %s", ref.Kind, ref.Name, kind)
	}
	return ref.Parent.Name, nil
}
