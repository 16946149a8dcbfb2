package steps

import (
	"errors"

	"github.com/imamik/azhpc/internal/config"
	"github.com/imamik/azhpc/internal/provisioning"
	"github.com/imamik/azhpc/internal/resource"
)

// Storage returns the step that ensures the staging storage account and the
// key vault, and describes the staging artifact for the certificate step.
func Storage() provisioning.Step {
	return provisioning.Step{
		State:       provisioning.StateStorageReady,
		Description: "staging storage and key vault",
		DependsOn:   []provisioning.State{provisioning.StateResourceGroupReady, provisioning.StateIdentityReady},
		Run:         ensureStorage,
	}
}

func ensureStorage(rc *provisioning.RunContext) provisioning.Outcome {
	if rc.Outputs.Identity == nil {
		return provisioning.Failed(errors.New("managed identity has not been provisioned"))
	}

	accountDesc := storageAccountDescriptor(rc)
	account, err := rc.Ensure(accountDesc)
	if err != nil {
		return provisioning.Failed(err)
	}
	accountRef := accountDesc.Ref()
	rc.Outputs.StorageAccount = &accountRef
	rc.Outputs.BlobEndpoint = account.String("properties.primaryEndpoints.blob")

	vaultDesc := keyVaultDescriptor(rc)
	vault, err := rc.Ensure(vaultDesc)
	if err != nil {
		return provisioning.Failed(err)
	}
	vaultRef := vaultDesc.Ref()
	rc.Outputs.KeyVault = &vaultRef
	rc.Outputs.VaultURI = vault.String("properties.vaultUri")
	if rc.Outputs.VaultURI == "" {
		rc.Outputs.VaultURI = resource.VaultURL(vaultDesc.Name)
	}

	rc.Outputs.Staging = &resource.StagingArtifact{
		StorageAccount: accountRef,
		Container:      rc.Config.Storage.Container,
		Identity:       *rc.Outputs.Identity,
		AccessMode:     rc.Config.AccessMode(),
	}
	return provisioning.Succeeded()
}

// storageAccountDescriptor disables shared key access up front in Keyless
// mode so that no account key can be listed later.
func storageAccountDescriptor(rc *provisioning.RunContext) resource.Descriptor {
	return resource.Descriptor{
		Kind:     resource.KindStorageAccount,
		Name:     rc.Namer.Name(resource.KindStorageAccount, "staging"),
		Location: rc.Config.Location,
		Parent:   rc.Group(),
		Properties: map[string]any{
			"kind": "StorageV2",
			"sku":  map[string]any{"name": "Standard_LRS"},
			"tags": tags(rc),
			"properties": map[string]any{
				"minimumTlsVersion":        "TLS1_2",
				"supportsHttpsTrafficOnly": true,
				"allowBlobPublicAccess":    false,
				"allowSharedKeyAccess":     rc.Config.StorageAuth != config.StorageAuthKeyless,
			},
		},
		Required: []string{"properties.minimumTlsVersion"},
	}
}

func keyVaultDescriptor(rc *provisioning.RunContext) resource.Descriptor {
	return resource.Descriptor{
		Kind:     resource.KindKeyVault,
		Name:     rc.Namer.Name(resource.KindKeyVault, ""),
		Location: rc.Config.Location,
		Parent:   rc.Group(),
		Properties: map[string]any{
			"tags": tags(rc),
			"properties": map[string]any{
				"tenantId":                rc.Config.TenantID,
				"sku":                     map[string]any{"family": "A", "name": "standard"},
				"enableRbacAuthorization": true,
				"enableSoftDelete":        true,
			},
		},
		Required: []string{"properties.enableRbacAuthorization"},
	}
}
