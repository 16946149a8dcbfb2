package steps

import (
	"github.com/imamik/azhpc/internal/provisioning"
	"github.com/imamik/azhpc/internal/resource"
)

// Locate fills the resource references of rc from the deterministic names
// of an earlier run. Nothing is read from the cloud and references already
// set are kept.
func Locate(rc *provisioning.RunContext) {
	out := rc.Outputs
	locate := func(dst **resource.Ref, d resource.Descriptor) {
		if *dst == nil {
			ref := d.Ref()
			*dst = &ref
		}
	}

	locate(&out.Identity, resource.Descriptor{
		Kind:   resource.KindManagedIdentity,
		Name:   rc.Namer.Name(resource.KindManagedIdentity, ""),
		Parent: rc.Group(),
	})
	locate(&out.NSG, nsgDescriptor(rc))
	locate(&out.VNet, resource.Descriptor{
		Kind:   resource.KindVNet,
		Name:   rc.Namer.Name(resource.KindVNet, ""),
		Parent: rc.Group(),
	})
	for _, role := range []string{provisioning.SubnetCompute, provisioning.SubnetStorage, provisioning.SubnetEndpoint} {
		if _, ok := out.Subnets[role]; !ok {
			out.Subnets[role] = resource.Ref{Kind: resource.KindSubnet, Name: role, Parent: out.VNet}
		}
	}
	locate(&out.StorageAccount, storageAccountDescriptor(rc))
	locate(&out.KeyVault, keyVaultDescriptor(rc))
	if out.Staging == nil {
		out.Staging = &resource.StagingArtifact{
			StorageAccount: *out.StorageAccount,
			Container:      rc.Config.Storage.Container,
			Identity:       *out.Identity,
			AccessMode:     rc.Config.AccessMode(),
		}
	}
}
