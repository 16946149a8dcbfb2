package resource

import (
	"fmt"
	"strings"
)

// ProviderType returns the Azure resource type path for a kind.
func ProviderType(k Kind) string {
	switch k {
	case KindManagedIdentity:
		return "Microsoft.ManagedIdentity/userAssignedIdentities"
	case KindVNet:
		return "Microsoft.Network/virtualNetworks"
	case KindSubnet:
		return "subnets"
	case KindNSG:
		return "Microsoft.Network/networkSecurityGroups"
	case KindStorageAccount:
		return "Microsoft.Storage/storageAccounts"
	case KindKeyVault:
		return "Microsoft.KeyVault/vaults"
	case KindRoleAssignment:
		return "Microsoft.Authorization/roleAssignments"
	case KindClusterDeployment:
		return "Microsoft.Resources/deployments"
	case KindPrivateEndpoint:
		return "Microsoft.Network/privateEndpoints"
	case KindPrivateDNSZone:
		return "Microsoft.Network/privateDnsZones"
	case KindPrivateDNSZoneLink:
		return "virtualNetworkLinks"
	case KindPrivateDNSZoneGroup:
		return "privateDnsZoneGroups"
	}
	return ""
}

// ID returns the Azure Resource Manager ID for ref in the given subscription.
// Certificates are data-plane objects and get their vault URL instead.
func ID(subscription string, ref Ref) (string, error) {
	switch ref.Kind {
	case KindResourceGroup:
		return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s", subscription, ref.Name), nil
	case KindCertificate:
		if ref.Parent == nil || ref.Parent.Kind != KindKeyVault {
			return "", fmt.Errorf("certificate %q must have a key vault parent", ref.Name)
		}
		return fmt.Sprintf("%scertificates/%s", VaultURL(ref.Parent.Name), ref.Name), nil
	}

	if ref.Parent == nil {
		return "", fmt.Errorf("%s %q has no parent", ref.Kind, ref.Name)
	}
	parentID, err := ID(subscription, *ref.Parent)
	if err != nil {
		return "", err
	}

	typ := ProviderType(ref.Kind)
	if typ == "" {
		return "", fmt.Errorf("no resource type for kind %q", ref.Kind)
	}
	if strings.Contains(typ, "/") {
		return fmt.Sprintf("%s/providers/%s/%s", parentID, typ, ref.Name), nil
	}
	// child resource types nest directly under their parent
	return fmt.Sprintf("%s/%s/%s", parentID, typ, ref.Name), nil
}

// VaultURL returns the data-plane URL of a key vault.
func VaultURL(vault string) string {
	return fmt.Sprintf("https://%s.vault.azure.net/", vault)
}

// BlobURL returns the blob service URL of a storage account.
func BlobURL(account string) string {
	return fmt.Sprintf("https://%s.blob.core.windows.net/", account)
}
