package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/imamik/azhpc/internal/resource"
	"github.com/imamik/azhpc/internal/util/keygen"
	"github.com/imamik/azhpc/internal/util/retry"
)

var (
	prefixPattern   = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-]{1,15}$`)
	locationPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
	usernamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)
)

// reservedUsernames are rejected by Azure for Linux admin users.
var reservedUsernames = map[string]bool{
	"admin": true, "administrator": true, "root": true, "guest": true, "user": true, "test": true,
}

// ValidationError collects every configuration problem found.
type ValidationError struct {
	Missing []string
	Invalid []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required configuration: "+strings.Join(e.Missing, ", "))
	}
	parts = append(parts, e.Invalid...)
	return strings.Join(parts, "; ")
}

func (e *ValidationError) empty() bool {
	return len(e.Missing) == 0 && len(e.Invalid) == 0
}

func (e *ValidationError) invalid(format string, args ...any) {
	e.Invalid = append(e.Invalid, fmt.Sprintf(format, args...))
}

// Validate checks the configuration and returns a *ValidationError listing
// every problem, or nil.
func (c *Config) Validate() error {
	v := &ValidationError{}

	if c.Prefix == "" {
		v.Missing = append(v.Missing, "prefix")
	} else if !prefixPattern.MatchString(c.Prefix) {
		v.invalid("prefix %q must start with a letter and contain 2-16 letters, digits or hyphens", c.Prefix)
	}
	if c.Location == "" {
		v.Missing = append(v.Missing, "location")
	} else if !locationPattern.MatchString(c.Location) {
		v.invalid("location %q must be a lowercase region name", c.Location)
	}
	if c.SubscriptionID == "" {
		v.Missing = append(v.Missing, "subscription_id")
	}

	if c.AdminUsername != "" && (!usernamePattern.MatchString(c.AdminUsername) || reservedUsernames[c.AdminUsername]) {
		v.invalid("admin_username %q is not allowed", c.AdminUsername)
	}
	if strings.HasPrefix(c.AdminSSHKey, "ssh-") {
		if _, err := keygen.ValidateAuthorizedKey(c.AdminSSHKey); err != nil {
			v.invalid("admin_ssh_key: %v", err)
		}
	}

	switch c.StorageAuth {
	case StorageAuthKeyVaultBacked, StorageAuthKeyless:
	default:
		v.invalid("storage_auth %q must be %s or %s", c.StorageAuth, StorageAuthKeyVaultBacked, StorageAuthKeyless)
	}

	c.validateNetwork(v)
	c.validateStaging(v)
	c.validateRemediation(v)
	c.validateRetry(v)

	if v.empty() {
		return nil
	}
	return v
}

func (c *Config) validateNetwork(v *ValidationError) {
	n := c.Network
	subnets := map[string]string{
		"compute_subnet":  n.ComputeSubnet,
		"storage_subnet":  n.StorageSubnet,
		"endpoint_subnet": n.EndpointSubnet,
	}
	names := []string{"compute_subnet", "storage_subnet", "endpoint_subnet"}

	for _, name := range names {
		inside, err := SubnetOf(n.AddressSpace, subnets[name])
		if err != nil {
			v.invalid("network.%s: %v", name, err)
			continue
		}
		if !inside {
			v.invalid("network.%s %s is outside address_space %s", name, subnets[name], n.AddressSpace)
		}
	}
	for i, a := range names {
		for _, b := range names[i+1:] {
			overlap, err := Overlaps(subnets[a], subnets[b])
			if err == nil && overlap {
				v.invalid("network.%s overlaps network.%s", a, b)
			}
		}
	}
}

func (c *Config) validateStaging(v *ValidationError) {
	if c.Storage.Container == "" {
		v.Missing = append(v.Missing, "storage.container")
	}
	if ttl := c.Storage.DelegatedTokenTTL; ttl != 0 {
		if err := resource.CheckTTL(ttl); err != nil {
			v.invalid("storage.delegated_token_ttl: %v", err)
		}
	}
	if err := c.Certificate.Policy().Validate(); err != nil {
		v.invalid("certificate: %v", err)
	}
	if c.Cluster.NodeCount < 1 {
		v.invalid("cluster.node_count must be at least 1")
	}
}

func (c *Config) validateRemediation(v *ValidationError) {
	switch c.Remediation.Target {
	case resource.KindKeyVault, resource.KindStorageAccount:
	default:
		v.invalid("remediation.target %q must be %s or %s", c.Remediation.Target, resource.KindKeyVault, resource.KindStorageAccount)
	}
	if c.Remediation.RevertAfter < 0 {
		v.invalid("remediation.revert_after must not be negative")
	}
}

func (c *Config) validateRetry(v *ValidationError) {
	p := c.Retry.Policies()
	for _, policy := range []retry.Policy{p.Create, p.Propagation, p.Revert, p.Delete} {
		if err := policy.Validate(); err != nil {
			v.invalid("%v", err)
		}
	}
}
