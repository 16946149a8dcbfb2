package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azcertificates"

	"github.com/imamik/azhpc/internal/resource"
)

// vaultClient returns the cached data plane client for a vault.
func (c *RealClient) vaultClient(vault resource.Ref) (*azcertificates.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.vaults[vault.Name]; ok {
		return client, nil
	}
	client, err := azcertificates.NewClient(resource.VaultURL(vault.Name), c.cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate client for %s: %w", vault.Name, err)
	}
	c.vaults[vault.Name] = client
	return client, nil
}

func (c *RealClient) GetCertificate(ctx context.Context, vault resource.Ref, name string) (*resource.Resource, error) {
	client, err := c.vaultClient(vault)
	if err != nil {
		return nil, err
	}
	resp, err := client.GetCertificate(ctx, name, "", nil)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, Classify(OpGetCertificate, err)
	}

	res := &resource.Resource{
		Kind:       resource.KindCertificate,
		Name:       name,
		Properties: map[string]any{"status": "completed"},
		Outputs:    map[string]any{},
	}
	if resp.ID != nil {
		res.ID = string(*resp.ID)
	}
	if resp.Policy != nil {
		res.Properties["policy"] = policyFromSDK(resp.Policy)
	}
	if resp.Attributes != nil && resp.Attributes.Expires != nil {
		res.Outputs["expires"] = resp.Attributes.Expires.UTC().Format("2006-01-02T15:04:05Z")
	}
	return res, nil
}

// CreateCertificate issues a self-signed certificate directly through the
// vault API. The vault completes issuance asynchronously; the returned
// resource reports the pending operation status.
func (c *RealClient) CreateCertificate(ctx context.Context, vault resource.Ref, name string, policy resource.CertificatePolicy) (*resource.Resource, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	client, err := c.vaultClient(vault)
	if err != nil {
		return nil, err
	}

	resp, err := client.CreateCertificate(ctx, name, azcertificates.CreateCertificateParameters{
		CertificatePolicy: policyToSDK(policy),
	}, nil)
	if err != nil {
		return nil, Classify(OpCreateCertificate, err)
	}

	res := &resource.Resource{
		ID:         resource.VaultURL(vault.Name) + "certificates/" + name,
		Kind:       resource.KindCertificate,
		Name:       name,
		Properties: policy.ToProperties(),
		Outputs:    map[string]any{},
	}
	if resp.Status != nil {
		res.Properties["status"] = *resp.Status
	}
	return res, nil
}

func policyToSDK(p resource.CertificatePolicy) *azcertificates.CertificatePolicy {
	keyType := azcertificates.KeyTypeRSA
	if p.KeyType != "" {
		keyType = azcertificates.KeyType(p.KeyType)
	}
	keySize := int32(p.KeySize)
	if keySize == 0 {
		keySize = 2048
	}

	usage := make([]*azcertificates.KeyUsageType, 0, len(p.KeyUsage))
	for _, u := range p.KeyUsage {
		usage = append(usage, to.Ptr(azcertificates.KeyUsageType(u)))
	}

	x509 := &azcertificates.X509CertificateProperties{
		Subject:          to.Ptr(p.Subject),
		ValidityInMonths: to.Ptr(int32(p.ValidityMonths)),
		EnhancedKeyUsage: to.SliceOfPtrs(p.EKUs...),
		KeyUsage:         usage,
	}
	if len(p.DNSNames) > 0 {
		x509.SubjectAlternativeNames = &azcertificates.SubjectAlternativeNames{
			DNSNames: to.SliceOfPtrs(p.DNSNames...),
		}
	}

	return &azcertificates.CertificatePolicy{
		IssuerParameters: &azcertificates.IssuerParameters{Name: to.Ptr("Self")},
		KeyProperties: &azcertificates.KeyProperties{
			KeyType:    to.Ptr(keyType),
			KeySize:    to.Ptr(keySize),
			Exportable: to.Ptr(p.Exportable),
			ReuseKey:   to.Ptr(false),
		},
		SecretProperties:          &azcertificates.SecretProperties{ContentType: to.Ptr("application/x-pkcs12")},
		X509CertificateProperties: x509,
	}
}

func policyFromSDK(sp *azcertificates.CertificatePolicy) resource.CertificatePolicy {
	var p resource.CertificatePolicy
	if kp := sp.KeyProperties; kp != nil {
		if kp.KeyType != nil {
			p.KeyType = string(*kp.KeyType)
		}
		if kp.KeySize != nil {
			p.KeySize = int(*kp.KeySize)
		}
		if kp.Exportable != nil {
			p.Exportable = *kp.Exportable
		}
	}
	if x := sp.X509CertificateProperties; x != nil {
		if x.Subject != nil {
			p.Subject = *x.Subject
		}
		if x.ValidityInMonths != nil {
			p.ValidityMonths = int(*x.ValidityInMonths)
		}
		for _, eku := range x.EnhancedKeyUsage {
			if eku != nil {
				p.EKUs = append(p.EKUs, *eku)
			}
		}
		for _, u := range x.KeyUsage {
			if u != nil {
				p.KeyUsage = append(p.KeyUsage, string(*u))
			}
		}
		if x.SubjectAlternativeNames != nil {
			for _, n := range x.SubjectAlternativeNames.DNSNames {
				if n != nil {
					p.DNSNames = append(p.DNSNames, *n)
				}
			}
		}
	}
	return p
}
