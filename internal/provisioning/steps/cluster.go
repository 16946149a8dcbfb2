package steps

import (
	"errors"
	"fmt"

	"github.com/imamik/azhpc/internal/provisioning"
	"github.com/imamik/azhpc/internal/resource"
	"github.com/imamik/azhpc/internal/template"
	"github.com/imamik/azhpc/internal/util/keygen"
)

// Cluster returns the step that deploys the compute cluster from the
// configured template. The certificate is passed in when one was staged.
func Cluster() provisioning.Step {
	return provisioning.Step{
		State:       provisioning.StateClusterDeployed,
		Description: "cluster deployment",
		DependsOn: []provisioning.State{
			provisioning.StateIdentityReady,
			provisioning.StateNetworkReady,
			provisioning.StateStorageReady,
		},
		Run: deployCluster,
	}
}

func deployCluster(rc *provisioning.RunContext) provisioning.Outcome {
	d, err := ClusterDescriptor(rc)
	if err != nil {
		return provisioning.Failed(err)
	}
	res, err := rc.Ensure(d)
	if err != nil {
		return provisioning.Failed(err)
	}

	outputs := template.OutputsFrom(res)
	if rc.Outputs.ClusterID, err = outputs.ID("clusterId"); err != nil {
		return provisioning.Failed(fmt.Errorf("deployment %s: %w", d.Name, err))
	}
	if rc.Outputs.SchedulerEndpoint, err = outputs.String("schedulerEndpoint"); err != nil {
		return provisioning.Failed(fmt.Errorf("deployment %s: %w", d.Name, err))
	}
	return provisioning.Succeeded()
}

// ClusterDescriptor renders the cluster template with the run's outputs.
// A generated admin key is kept on the outputs so the caller can persist it.
func ClusterDescriptor(rc *provisioning.RunContext) (resource.Descriptor, error) {
	cfg := rc.Config
	if rc.Outputs.Identity == nil {
		return resource.Descriptor{}, errors.New("managed identity has not been provisioned")
	}

	tmpl, err := rc.Templates.Load(cfg.Cluster.Template)
	if err != nil {
		return resource.Descriptor{}, err
	}

	adminKey, generated, err := keygen.ResolveAdminKey(cfg.AdminSSHKey)
	if err != nil {
		return resource.Descriptor{}, fmt.Errorf("admin ssh key: %w", err)
	}
	if generated != nil {
		rc.Outputs.AdminKey = generated
		provisioning.LogWarning(rc.Observer, rc.Step(), "generated admin ssh key "+generated.Fingerprint)
	}

	subnet, err := subnetID(rc, provisioning.SubnetCompute)
	if err != nil {
		return resource.Descriptor{}, err
	}
	identity, err := rc.ResourceID(*rc.Outputs.Identity)
	if err != nil {
		return resource.Descriptor{}, err
	}

	name := rc.Namer.Name(resource.KindClusterDeployment, "")
	params := template.Parameters{
		"clusterName":   name,
		"location":      cfg.Location,
		"adminUsername": cfg.AdminUsername,
		"adminSshKey":   adminKey,
		"subnetId":      subnet,
		"identityId":    identity,
		"vmSize":        cfg.Cluster.VMSize,
		"nodeCount":     cfg.Cluster.NodeCount,
		"scheduler":     cfg.Cluster.Scheduler,
		"tags":          tags(rc),
	}
	if rc.Outputs.CertificateID != "" {
		params["certificateUrl"] = rc.Outputs.CertificateID
	}
	for k, v := range cfg.Cluster.Parameters {
		params[k] = v
	}

	return tmpl.Descriptor(name, rc.Outputs.ResourceGroup, params)
}
