package config

import (
	"fmt"
	"os"

	"github.com/imamik/azhpc/internal/resource"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultAddressSpace   = "10.40.0.0/16"
	DefaultAdminUsername  = "azureuser"
	DefaultContainer      = "staging"
	DefaultCertificate    = "hpc-cluster"
	DefaultValidityMonths = 12
	DefaultKeyType        = "RSA"
	DefaultKeySize        = 2048
	DefaultTemplate       = "hpc-cluster"
	DefaultVMSize         = "Standard_HB120rs_v3"
	DefaultNodeCount      = 2
	DefaultScheduler      = "slurm"
)

// Extended key usage OIDs.
const (
	OIDServerAuth = "1.3.6.1.5.5.7.3.1"
	OIDClientAuth = "1.3.6.1.5.5.7.3.2"
)

// ApplyDefaults fills unset fields. It never overrides explicit values.
func (c *Config) ApplyDefaults() error {
	if c.SubscriptionID == "" {
		c.SubscriptionID = os.Getenv("AZURE_SUBSCRIPTION_ID")
	}
	if c.TenantID == "" {
		c.TenantID = os.Getenv("AZURE_TENANT_ID")
	}
	if c.AdminUsername == "" {
		c.AdminUsername = DefaultAdminUsername
	}
	if c.StorageAuth == "" {
		c.StorageAuth = StorageAuthKeyVaultBacked
	}

	if err := c.Network.applyDefaults(); err != nil {
		return fmt.Errorf("network defaults: %w", err)
	}

	if c.Storage.Container == "" {
		c.Storage.Container = DefaultContainer
	}

	cert := &c.Certificate
	if cert.Name == "" {
		cert.Name = DefaultCertificate
	}
	if cert.Subject == "" && c.Prefix != "" {
		cert.Subject = fmt.Sprintf("CN=%s.hpc.internal", c.Prefix)
	}
	if cert.ValidityMonths == 0 {
		cert.ValidityMonths = DefaultValidityMonths
	}
	if cert.KeyType == "" {
		cert.KeyType = DefaultKeyType
	}
	if cert.KeySize == 0 {
		cert.KeySize = DefaultKeySize
	}
	if len(cert.KeyUsage) == 0 {
		cert.KeyUsage = []string{"digitalSignature", "keyEncipherment"}
	}
	if len(cert.EKUs) == 0 {
		cert.EKUs = []string{OIDServerAuth, OIDClientAuth}
	}

	if c.Cluster.Template == "" {
		c.Cluster.Template = DefaultTemplate
	}
	if c.Cluster.VMSize == "" {
		c.Cluster.VMSize = DefaultVMSize
	}
	if c.Cluster.NodeCount == 0 {
		c.Cluster.NodeCount = DefaultNodeCount
	}
	if c.Cluster.Scheduler == "" {
		c.Cluster.Scheduler = DefaultScheduler
	}

	if c.Remediation.Target == "" {
		c.Remediation.Target = resource.KindKeyVault
	}

	c.Retry.applyDefaults()
	return nil
}

// applyDefaults derives the subnets from the address space:
// compute /24 at index 1, storage /24 at index 2, private endpoints /27 at the start.
func (n *NetworkConfig) applyDefaults() error {
	if n.AddressSpace == "" {
		n.AddressSpace = DefaultAddressSpace
	}
	var err error
	if n.EndpointSubnet == "" {
		if n.EndpointSubnet, err = CIDRSubnet(n.AddressSpace, 27, 0); err != nil {
			return err
		}
	}
	if n.ComputeSubnet == "" {
		if n.ComputeSubnet, err = CIDRSubnet(n.AddressSpace, 24, 1); err != nil {
			return err
		}
	}
	if n.StorageSubnet == "" {
		if n.StorageSubnet, err = CIDRSubnet(n.AddressSpace, 24, 2); err != nil {
			return err
		}
	}
	return nil
}

// AccessMode returns the staging artifact access mode for the run.
func (c *Config) AccessMode() resource.AccessMode {
	return c.StorageAuth.AccessMode()
}

// Scope is the naming scope of a run. Names are stable for the same
// subscription, location and prefix.
func (c *Config) Scope() string {
	return c.SubscriptionID + "/" + c.Location
}
