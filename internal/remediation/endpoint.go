package remediation

import (
	"fmt"

	"github.com/imamik/azhpc/internal/provisioning"
	"github.com/imamik/azhpc/internal/resource"
)

// Private endpoint sub-pipeline states.
const (
	StateDNSZoneReady   provisioning.State = "PrivateDNSZoneReady"
	StateDNSZoneLinked  provisioning.State = "PrivateDNSZoneLinked"
	StateEndpointReady  provisioning.State = "PrivateEndpointReady"
	StateZoneGroupReady provisioning.State = "PrivateDNSZoneGroupReady"
)

// endpointPlan holds the descriptors of the private connectivity for the
// target. Guidance and automation share it so both name the same resources.
type endpointPlan struct {
	target   resource.Ref
	targetID string
	groupID  string
	subnetID string
	vnetID   string

	zone     resource.Descriptor
	link     resource.Descriptor
	endpoint resource.Descriptor
	group    resource.Descriptor
}

// privateLinkZone returns the private DNS zone and sub-resource group of a
// private link target.
func privateLinkZone(kind resource.Kind) (zone, group string) {
	if kind == resource.KindStorageAccount {
		return "privatelink.blob.core.windows.net", "blob"
	}
	return "privatelink.vaultcore.azure.net", "vault"
}

func planEndpoint(rc *provisioning.RunContext) (*endpointPlan, error) {
	p := &endpointPlan{target: target(rc)}
	var err error
	if p.targetID, err = rc.ResourceID(p.target); err != nil {
		return nil, err
	}
	if p.vnetID, err = rc.ResourceID(*rc.Outputs.VNet); err != nil {
		return nil, err
	}
	subnet, ok := rc.Outputs.Subnets[provisioning.SubnetEndpoint]
	if !ok {
		return nil, fmt.Errorf("subnet %s has not been provisioned", provisioning.SubnetEndpoint)
	}
	if p.subnetID, err = rc.ResourceID(subnet); err != nil {
		return nil, err
	}

	zoneName, groupID := privateLinkZone(p.target.Kind)
	p.groupID = groupID
	p.zone = resource.Descriptor{
		Kind:       resource.KindPrivateDNSZone,
		Name:       zoneName,
		Location:   "global",
		Parent:     rc.Group(),
		Properties: map[string]any{"location": "global"},
	}
	zoneRef := p.zone.Ref()
	zoneID, err := rc.ResourceID(zoneRef)
	if err != nil {
		return nil, err
	}

	p.link = resource.Descriptor{
		Kind:     resource.KindPrivateDNSZoneLink,
		Name:     rc.Namer.Name(resource.KindPrivateDNSZoneLink, groupID),
		Location: "global",
		Parent:   &zoneRef,
		Properties: map[string]any{
			"location": "global",
			"properties": map[string]any{
				"virtualNetwork":      map[string]any{"id": p.vnetID},
				"registrationEnabled": false,
			},
		},
		Required: []string{"properties.virtualNetwork.id"},
	}

	p.endpoint = resource.Descriptor{
		Kind:     resource.KindPrivateEndpoint,
		Name:     rc.Namer.Name(resource.KindPrivateEndpoint, groupID),
		Location: rc.Config.Location,
		Parent:   rc.Group(),
		Properties: map[string]any{
			"location": rc.Config.Location,
			"properties": map[string]any{
				"subnet": map[string]any{"id": p.subnetID},
				"privateLinkServiceConnections": []any{
					map[string]any{
						"name": p.target.Name,
						"properties": map[string]any{
							"privateLinkServiceId": p.targetID,
							"groupIds":             []any{groupID},
						},
					},
				},
			},
		},
		Required: []string{"properties.subnet.id"},
	}

	endpointRef := p.endpoint.Ref()
	p.group = resource.Descriptor{
		Kind:   resource.KindPrivateDNSZoneGroup,
		Name:   rc.Namer.Name(resource.KindPrivateDNSZoneGroup, groupID),
		Parent: &endpointRef,
		Properties: map[string]any{
			"properties": map[string]any{
				"privateDnsZoneConfigs": []any{
					map[string]any{
						"name":       groupID,
						"properties": map[string]any{"privateDnsZoneId": zoneID},
					},
				},
			},
		},
	}
	return p, nil
}

// steps returns the sub-pipeline ensuring the plan.
func (p *endpointPlan) steps() []provisioning.Step {
	ensure := func(d resource.Descriptor) func(*provisioning.RunContext) provisioning.Outcome {
		return func(rc *provisioning.RunContext) provisioning.Outcome {
			_, err := rc.Ensure(d)
			return provisioning.FromError(err)
		}
	}
	return []provisioning.Step{
		{State: StateDNSZoneReady, Description: "private DNS zone", Run: ensure(p.zone)},
		{State: StateDNSZoneLinked, Description: "private DNS zone link", DependsOn: []provisioning.State{StateDNSZoneReady}, Run: ensure(p.link)},
		{State: StateEndpointReady, Description: "private endpoint", Run: ensure(p.endpoint)},
		{
			State:       StateZoneGroupReady,
			Description: "private DNS zone group",
			DependsOn:   []provisioning.State{StateDNSZoneReady, StateEndpointReady},
			Run:         ensure(p.group),
		},
	}
}

// privateEndpointAutomated ensures the private connectivity of the target
// in a sub-pipeline sharing the run's executor, observer and metrics.
// Every sub-step is an ensure, so re-running it is safe.
func privateEndpointAutomated(rc *provisioning.RunContext, out *Outcome) error {
	plan, err := planEndpoint(rc)
	if err != nil {
		return err
	}
	out.Target = plan.targetID

	sub := provisioning.NewRunContext(rc, rc.Config, rc.Cloud,
		provisioning.WithObserver(rc.Observer),
		provisioning.WithExecutor(rc.Executor),
		provisioning.WithMetrics(rc.Metrics),
		provisioning.WithClock(rc.Now),
		provisioning.WithTemplates(rc.Templates),
		provisioning.WithRunID(rc.RunID),
	)
	sub.Outputs = rc.Outputs

	report, err := provisioning.NewPipeline(plan.steps()...).Run(sub)
	out.Report = report
	if report != nil {
		for _, r := range report.Results {
			if r.Created {
				out.Changed = append(out.Changed, r.Key)
			}
		}
	}
	if err != nil {
		return err
	}
	out.Summary = fmt.Sprintf("private endpoint %s connects %s %s through %s",
		plan.endpoint.Name, plan.target.Kind, plan.target.Name, plan.zone.Name)
	return nil
}
