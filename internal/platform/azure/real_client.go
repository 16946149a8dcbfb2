package azure

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v6"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azcertificates"

	"github.com/imamik/azhpc/internal/resource"
)

const (
	moduleName    = "azhpc"
	moduleVersion = "v0.1.0"
)

// RealClient implements CloudClient on top of the Azure SDK for Go.
type RealClient struct {
	subscription string
	tenantID     string
	cred         azcore.TokenCredential
	armOptions   *arm.ClientOptions

	groups      *armresources.ResourceGroupsClient
	generic     *armresources.Client
	deployments *armresources.DeploymentsClient
	network     *armnetwork.ClientFactory
	raw         *arm.Client

	mu     sync.Mutex
	vaults map[string]*azcertificates.Client
}

var _ CloudClient = (*RealClient)(nil)

// ClientOption configures a RealClient.
type ClientOption func(*RealClient)

// WithCredential sets the credential instead of the default credential chain.
func WithCredential(cred azcore.TokenCredential) ClientOption {
	return func(c *RealClient) {
		c.cred = cred
	}
}

// WithARMOptions sets the options of every management plane client.
func WithARMOptions(o *arm.ClientOptions) ClientOption {
	return func(c *RealClient) {
		c.armOptions = o
	}
}

// NewRealClient creates a client for the subscription. Without WithCredential
// it authenticates through the azidentity default credential chain
// (environment, workload identity, managed identity, Azure CLI).
func NewRealClient(subscription, tenantID string, opts ...ClientOption) (*RealClient, error) {
	c := &RealClient{
		subscription: subscription,
		tenantID:     tenantID,
		vaults:       make(map[string]*azcertificates.Client),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.cred == nil {
		cred, err := azidentity.NewDefaultAzureCredential(&azidentity.DefaultAzureCredentialOptions{TenantID: tenantID})
		if err != nil {
			return nil, fmt.Errorf("failed to create azure credential: %w", err)
		}
		c.cred = cred
	}

	resources, err := armresources.NewClientFactory(subscription, c.cred, c.armOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create resources client: %w", err)
	}
	c.groups = resources.NewResourceGroupsClient()
	c.generic = resources.NewClient()
	c.deployments = resources.NewDeploymentsClient()

	c.network, err = armnetwork.NewClientFactory(subscription, c.cred, c.armOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create network client: %w", err)
	}

	c.raw, err = arm.NewClient(moduleName, moduleVersion, c.cred, c.armOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create management client: %w", err)
	}
	return c, nil
}

func (c *RealClient) SubscriptionID() string {
	return c.subscription
}

func (c *RealClient) GetResource(ctx context.Context, ref resource.Ref) (*resource.Resource, error) {
	var (
		res *resource.Resource
		err error
	)
	switch ref.Kind {
	case resource.KindResourceGroup:
		res, err = c.getGroup(ctx, ref)
	case resource.KindVNet, resource.KindSubnet, resource.KindNSG, resource.KindPrivateEndpoint, resource.KindPrivateDNSZoneGroup:
		res, err = c.getNetwork(ctx, ref)
	case resource.KindClusterDeployment:
		res, err = c.getDeployment(ctx, ref)
	case resource.KindCertificate:
		if ref.Parent == nil {
			return nil, fmt.Errorf("certificate %q has no vault", ref.Name)
		}
		return c.GetCertificate(ctx, *ref.Parent, ref.Name)
	default:
		res, err = c.getGeneric(ctx, ref)
	}
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, Classify(OpGet, err)
	}
	return res, nil
}

func (c *RealClient) CreateResource(ctx context.Context, d resource.Descriptor) (*resource.Resource, error) {
	var (
		res *resource.Resource
		err error
	)
	switch d.Kind {
	case resource.KindResourceGroup:
		res, err = c.createGroup(ctx, d)
	case resource.KindVNet, resource.KindSubnet, resource.KindNSG, resource.KindPrivateEndpoint, resource.KindPrivateDNSZoneGroup:
		res, err = c.createNetwork(ctx, d)
	case resource.KindClusterDeployment:
		res, err = c.createDeployment(ctx, d)
	case resource.KindCertificate:
		if d.Parent == nil {
			return nil, fmt.Errorf("certificate %q has no vault", d.Name)
		}
		policy, ok := resource.PolicyFrom(d)
		if !ok {
			return nil, fmt.Errorf("certificate %q has no policy", d.Name)
		}
		return c.CreateCertificate(ctx, *d.Parent, d.Name, policy)
	case resource.KindRoleAssignment:
		return nil, fmt.Errorf("role assignments are created with AssignRole")
	default:
		res, err = c.createGeneric(ctx, d)
	}
	if err != nil {
		return nil, Classify(OpCreate, err)
	}
	return res, nil
}

// UpdateResource patches a resource through the generic resources API.
func (c *RealClient) UpdateResource(ctx context.Context, ref resource.Ref, patch map[string]any) (*resource.Resource, error) {
	id, err := resource.ID(c.subscription, ref)
	if err != nil {
		return nil, err
	}
	var body armresources.GenericResource
	if err := remarshal(patch, &body); err != nil {
		return nil, fmt.Errorf("failed to encode patch for %s: %w", ref.Key(), err)
	}

	poller, err := c.generic.BeginUpdateByID(ctx, id, apiVersion(ref.Kind), body, nil)
	if err != nil {
		return nil, Classify(OpUpdate, err)
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return nil, Classify(OpUpdate, err)
	}
	return toResource(ref.Kind, resp.GenericResource)
}

// DeleteResource deletes a resource and waits for completion. It succeeds
// when the resource does not exist.
func (c *RealClient) DeleteResource(ctx context.Context, ref resource.Ref) error {
	if ref.Kind == resource.KindResourceGroup {
		poller, err := c.groups.BeginDelete(ctx, ref.Name, nil)
		if err != nil {
			if IsNotFound(err) {
				return nil
			}
			return Classify(OpDelete, err)
		}
		_, err = poller.PollUntilDone(ctx, nil)
		return Classify(OpDelete, err)
	}

	id, err := resource.ID(c.subscription, ref)
	if err != nil {
		return err
	}
	poller, err := c.generic.BeginDeleteByID(ctx, id, apiVersion(ref.Kind), nil)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return Classify(OpDelete, err)
	}
	_, err = poller.PollUntilDone(ctx, nil)
	return Classify(OpDelete, err)
}

// toResource converts an SDK model into a resource whose properties are the
// ARM body (id, name, location, properties, sku, ...).
func toResource(kind resource.Kind, v any) (*resource.Resource, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", kind, err)
	}
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", kind, err)
	}
	id, _ := body["id"].(string)
	name, _ := body["name"].(string)
	return &resource.Resource{ID: id, Kind: kind, Name: name, Properties: body}, nil
}

// fromDescriptor decodes the descriptor body into an SDK model.
func fromDescriptor(d resource.Descriptor, out any) error {
	body := maps.Clone(d.Properties)
	if body == nil {
		body = map[string]any{}
	}
	if d.Location != "" {
		body["location"] = d.Location
	}
	if err := remarshal(body, out); err != nil {
		return fmt.Errorf("invalid %s %q: %w", d.Kind, d.Name, err)
	}
	return nil
}

func remarshal(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func resourceGroupOf(ref resource.Ref) (string, error) {
	rg, ok := ref.Ancestor(resource.KindResourceGroup)
	if !ok {
		return "", fmt.Errorf("%s is not inside a resource group", ref.Key())
	}
	return rg.Name, nil
}
