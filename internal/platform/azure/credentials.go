package azure

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"

	"github.com/imamik/azhpc/internal/resource"
)

// clockSkew backdates token start times.
const clockSkew = 5 * time.Minute

// IssueDelegatedToken signs a container SAS with a user delegation key, so
// the token is bound to the caller's Entra identity and expires after ttl.
func (c *RealClient) IssueDelegatedToken(ctx context.Context, account resource.Ref, container string, ttl time.Duration) (resource.Token, error) {
	if err := resource.CheckTTL(ttl); err != nil {
		return resource.Token{}, err
	}

	svc, err := service.NewClient(resource.BlobURL(account.Name), c.cred, nil)
	if err != nil {
		return resource.Token{}, fmt.Errorf("failed to create blob client for %s: %w", account.Name, err)
	}

	now := time.Now().UTC()
	start := now.Add(-clockSkew)
	expiry := now.Add(ttl)
	udc, err := svc.GetUserDelegationCredential(ctx, service.KeyInfo{
		Start:  to.Ptr(start.Format(sas.TimeFormat)),
		Expiry: to.Ptr(expiry.Format(sas.TimeFormat)),
	}, nil)
	if err != nil {
		return resource.Token{}, Classify(OpIssueToken, err)
	}

	perms := sas.ContainerPermissions{Read: true, Add: true, Create: true, Write: true, List: true}
	qp, err := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		StartTime:     start,
		ExpiryTime:    expiry,
		Permissions:   perms.String(),
		ContainerName: container,
	}.SignWithUserDelegation(udc)
	if err != nil {
		return resource.Token{}, fmt.Errorf("failed to sign delegated token: %w", err)
	}
	return resource.Token{Value: qp.Encode(), ExpiresOn: expiry}, nil
}

type listKeysResult struct {
	Keys []struct {
		KeyName string `json:"keyName"`
		Value   string `json:"value"`
	} `json:"keys"`
}

// GetAccountKey calls listKeys on the storage account and returns the first key.
func (c *RealClient) GetAccountKey(ctx context.Context, account resource.Ref) (string, error) {
	id, err := resource.ID(c.subscription, account)
	if err != nil {
		return "", err
	}

	req, err := runtime.NewRequest(ctx, http.MethodPost, runtime.JoinPaths(c.raw.Endpoint(), id, "listKeys"))
	if err != nil {
		return "", err
	}
	q := req.Raw().URL.Query()
	q.Set("api-version", apiVersion(resource.KindStorageAccount))
	req.Raw().URL.RawQuery = q.Encode()
	req.Raw().Header["Accept"] = []string{"application/json"}

	resp, err := c.raw.Pipeline().Do(req)
	if err != nil {
		return "", Classify(OpGetAccountKey, err)
	}
	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return "", Classify(OpGetAccountKey, runtime.NewResponseError(resp))
	}

	var result listKeysResult
	if err := runtime.UnmarshalAsJSON(resp, &result); err != nil {
		return "", fmt.Errorf("failed to decode account keys: %w", err)
	}
	if len(result.Keys) == 0 || result.Keys[0].Value == "" {
		return "", resource.NewError(resource.CodeUnclassified, OpGetAccountKey, fmt.Sprintf("no keys returned for %s", account.Name))
	}
	return result.Keys[0].Value, nil
}
