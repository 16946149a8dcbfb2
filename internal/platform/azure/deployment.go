package azure

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"

	"github.com/imamik/azhpc/internal/resource"
)

func (c *RealClient) getDeployment(ctx context.Context, ref resource.Ref) (*resource.Resource, error) {
	rg, err := resourceGroupOf(ref)
	if err != nil {
		return nil, err
	}
	resp, err := c.deployments.Get(ctx, rg, ref.Name, nil)
	if err != nil {
		return nil, err
	}
	return deploymentResource(ref.Kind, resp.DeploymentExtended)
}

// createDeployment submits the cluster template in incremental mode and
// waits for it to finish.
func (c *RealClient) createDeployment(ctx context.Context, d resource.Descriptor) (*resource.Resource, error) {
	rg, err := resourceGroupOf(d.Ref())
	if err != nil {
		return nil, err
	}
	var body armresources.Deployment
	if err := fromDescriptor(withoutLocation(d), &body); err != nil {
		return nil, err
	}
	if body.Properties == nil {
		body.Properties = &armresources.DeploymentProperties{}
	}
	if body.Properties.Mode == nil {
		mode := armresources.DeploymentModeIncremental
		body.Properties.Mode = &mode
	}

	poller, err := c.deployments.BeginCreateOrUpdate(ctx, rg, d.Name, body, nil)
	if err != nil {
		return nil, err
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return nil, err
	}
	return deploymentResource(d.Kind, resp.DeploymentExtended)
}

// deploymentResource flattens template outputs ({"name": {"type", "value"}})
// into Resource.Outputs.
func deploymentResource(kind resource.Kind, dep armresources.DeploymentExtended) (*resource.Resource, error) {
	res, err := toResource(kind, dep)
	if err != nil {
		return nil, err
	}
	res.Outputs = map[string]any{}
	if dep.Properties == nil {
		return res, nil
	}
	outputs, ok := dep.Properties.Outputs.(map[string]any)
	if !ok {
		return res, nil
	}
	for name, raw := range outputs {
		if entry, ok := raw.(map[string]any); ok {
			res.Outputs[name] = entry["value"]
		}
	}
	return res, nil
}
