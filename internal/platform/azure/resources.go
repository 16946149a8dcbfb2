package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"

	"github.com/imamik/azhpc/internal/resource"
)

// apiVersions used with the generic resources client.
var apiVersions = map[resource.Kind]string{
	resource.KindManagedIdentity:    "2023-01-31",
	resource.KindStorageAccount:     "2023-05-01",
	resource.KindKeyVault:           "2023-07-01",
	resource.KindRoleAssignment:     "2022-04-01",
	resource.KindPrivateDNSZone:     "2020-06-01",
	resource.KindPrivateDNSZoneLink: "2020-06-01",
	resource.KindVNet:               "2024-05-01",
	resource.KindSubnet:             "2024-05-01",
	resource.KindNSG:                "2024-05-01",
	resource.KindPrivateEndpoint:    "2024-05-01",
}

const deploymentScriptsAPIVersion = "2023-08-01"

func apiVersion(kind resource.Kind) string {
	if v, ok := apiVersions[kind]; ok {
		return v
	}
	return "2021-04-01"
}

func (c *RealClient) getGroup(ctx context.Context, ref resource.Ref) (*resource.Resource, error) {
	resp, err := c.groups.Get(ctx, ref.Name, nil)
	if err != nil {
		return nil, err
	}
	return toResource(ref.Kind, resp.ResourceGroup)
}

func (c *RealClient) createGroup(ctx context.Context, d resource.Descriptor) (*resource.Resource, error) {
	var rg armresources.ResourceGroup
	if err := fromDescriptor(d, &rg); err != nil {
		return nil, err
	}
	rg.Location = to.Ptr(d.Location)
	resp, err := c.groups.CreateOrUpdate(ctx, d.Name, rg, nil)
	if err != nil {
		return nil, err
	}
	return toResource(d.Kind, resp.ResourceGroup)
}

func (c *RealClient) getGeneric(ctx context.Context, ref resource.Ref) (*resource.Resource, error) {
	id, err := resource.ID(c.subscription, ref)
	if err != nil {
		return nil, err
	}
	resp, err := c.generic.GetByID(ctx, id, apiVersion(ref.Kind), nil)
	if err != nil {
		return nil, err
	}
	return toResource(ref.Kind, resp.GenericResource)
}

func (c *RealClient) createGeneric(ctx context.Context, d resource.Descriptor) (*resource.Resource, error) {
	id, err := resource.ID(c.subscription, d.Ref())
	if err != nil {
		return nil, err
	}
	var body armresources.GenericResource
	if err := fromDescriptor(d, &body); err != nil {
		return nil, err
	}
	return c.putGeneric(ctx, d.Kind, id, apiVersion(d.Kind), body)
}

func (c *RealClient) putGeneric(ctx context.Context, kind resource.Kind, id, version string, body armresources.GenericResource) (*resource.Resource, error) {
	poller, err := c.generic.BeginCreateOrUpdateByID(ctx, id, version, body, nil)
	if err != nil {
		return nil, err
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return nil, err
	}
	return toResource(kind, resp.GenericResource)
}

// AssignRole creates a role assignment through the generic resources API.
// Role assignment creation is synchronous, so the poller completes at once.
func (c *RealClient) AssignRole(ctx context.Context, a RoleAssignment) (*resource.Resource, error) {
	scope := a.Scope
	ref := resource.Ref{Kind: resource.KindRoleAssignment, Name: a.Name, Parent: &scope}
	id, err := resource.ID(c.subscription, ref)
	if err != nil {
		return nil, err
	}

	body := armresources.GenericResource{
		Properties: map[string]any{
			"roleDefinitionId": RoleDefinitionID(c.subscription, a.RoleDefinitionID),
			"principalId":      a.PrincipalID,
			"principalType":    "ServicePrincipal",
		},
	}
	res, err := c.putGeneric(ctx, resource.KindRoleAssignment, id, apiVersion(resource.KindRoleAssignment), body)
	if err != nil {
		return nil, Classify(OpAssignRole, err)
	}
	return res, nil
}

// RoleDefinitionID expands a built-in role GUID into its resource ID.
func RoleDefinitionID(subscription, role string) string {
	if len(role) > 0 && role[0] == '/' {
		return role
	}
	return fmt.Sprintf("/subscriptions/%s/providers/Microsoft.Authorization/roleDefinitions/%s", subscription, role)
}
