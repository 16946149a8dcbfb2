package azure

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"

	"github.com/imamik/azhpc/internal/resource"
)

const (
	azCLIVersion         = "2.61.0"
	scriptTimeout        = "PT30M"
	scriptRetention      = "PT1H"
	scriptCleanupOnFinal = "OnSuccess"

	kindDeploymentScript resource.Kind = "DeploymentScript"
)

// RunRemoteCommand runs script as an Azure CLI deployment script next to the
// target storage account. The account key from the script's secure
// environment backs the script's working share.
func (c *RealClient) RunRemoteCommand(ctx context.Context, target resource.Ref, script resource.Script) (string, error) {
	if target.Kind != resource.KindStorageAccount {
		return "", fmt.Errorf("remote commands cannot target %s", target.Kind)
	}
	if script.Identity == nil {
		return "", fmt.Errorf("script %q has no identity to run as", script.Name)
	}

	account, err := c.getGeneric(ctx, target)
	if err != nil {
		return "", Classify(OpRunRemoteCommand, err)
	}
	location, _ := account.Properties["location"].(string)

	identityID, err := resource.ID(c.subscription, *script.Identity)
	if err != nil {
		return "", err
	}
	rg, _ := target.Ancestor(resource.KindResourceGroup)
	id := fmt.Sprintf("%s/providers/Microsoft.Resources/deploymentScripts/%s", mustID(c.subscription, rg), script.Name)

	body := armresources.GenericResource{
		Location: to.Ptr(location),
		Kind:     to.Ptr("AzureCLI"),
		Identity: &armresources.Identity{
			Type: to.Ptr(armresources.ResourceIdentityTypeUserAssigned),
			UserAssignedIdentities: map[string]*armresources.IdentityUserAssignedIdentitiesValue{
				identityID: {},
			},
		},
		Properties: map[string]any{
			"azCliVersion":         azCLIVersion,
			"scriptContent":        script.Content,
			"timeout":              scriptTimeout,
			"retentionInterval":    scriptRetention,
			"cleanupPreference":    scriptCleanupOnFinal,
			"environmentVariables": scriptEnvironment(script),
			"storageAccountSettings": map[string]any{
				"storageAccountName": target.Name,
				"storageAccountKey":  script.SecureEnv[ScriptEnvAccountKey],
			},
		},
	}

	poller, err := c.generic.BeginCreateOrUpdateByID(ctx, id, deploymentScriptsAPIVersion, body, nil)
	if err != nil {
		return "", Classify(OpRunRemoteCommand, err)
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return "", Classify(OpRunRemoteCommand, err)
	}

	res, err := toResource(kindDeploymentScript, resp.GenericResource)
	if err != nil {
		return "", err
	}
	if res.String("properties.provisioningState") == "Failed" {
		msg := res.String("properties.status.error.message")
		if msg == "" {
			msg = fmt.Sprintf("deployment script %s failed", script.Name)
		}
		return "", resource.NewError(ClassifyMessage(msg), OpRunRemoteCommand, msg)
	}

	outputs, _ := resource.Lookup(res.Properties, "properties.outputs")
	if outputs == nil {
		return "", nil
	}
	data, err := json.Marshal(outputs)
	if err != nil {
		return "", fmt.Errorf("failed to encode script outputs: %w", err)
	}
	return string(data), nil
}

// scriptEnvironment renders Env and SecureEnv in a stable order. The account
// key travels in storageAccountSettings and is not repeated here.
func scriptEnvironment(script resource.Script) []map[string]any {
	vars := make([]map[string]any, 0, len(script.Env)+len(script.SecureEnv))
	for _, k := range sortedKeys(script.Env) {
		vars = append(vars, map[string]any{"name": k, "value": script.Env[k]})
	}
	for _, k := range sortedKeys(script.SecureEnv) {
		if k == ScriptEnvAccountKey {
			continue
		}
		vars = append(vars, map[string]any{"name": k, "secureValue": script.SecureEnv[k]})
	}
	return vars
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func mustID(subscription string, ref resource.Ref) string {
	id, err := resource.ID(subscription, ref)
	if err != nil {
		return "/subscriptions/" + subscription
	}
	return id
}
