package naming

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/imamik/azhpc/internal/resource"
)

func TestNamer_Deterministic(t *testing.T) {
	t.Parallel()
	a := New("hpc-demo", "sub-1/region-a")
	b := New("hpc-demo", "sub-1/region-a")
	other := New("hpc-demo", "sub-2/region-a")

	for _, kind := range resource.Kinds() {
		if kind == resource.KindRoleAssignment || kind == resource.KindPrivateDNSZone {
			continue
		}
		assert.Equal(t, a.Name(kind, "x"), b.Name(kind, "x"), "kind %s", kind)
		if kind != resource.KindResourceGroup {
			assert.NotEqual(t, a.Name(kind, "x"), other.Name(kind, "x"), "kind %s", kind)
		}
	}
	assert.NotEqual(t, a.Name(resource.KindSubnet, "compute"), a.Name(resource.KindSubnet, "storage"))
}

func TestNamer_ResourceGroup(t *testing.T) {
	t.Parallel()
	n := New("hpc-demo", "sub-1/region-a")

	assert.Equal(t, "hpc-demo-rg", n.ResourceGroup())
	assert.Equal(t, n.ResourceGroup(), n.Name(resource.KindResourceGroup, "ignored"))
	assert.Equal(t, "hpc-demo-rg", New("HPC_Demo", "s").ResourceGroup())
}

func TestNamer_Limits(t *testing.T) {
	t.Parallel()
	prefixes := []string{
		"hpc-demo",
		"A_Very_Long_Prefix_With_Mixed_CASE_and__underscores_that_keeps_going_and_going",
		"9starts-with-digit",
		"--",
	}
	kinds := []resource.Kind{
		resource.KindStorageAccount, resource.KindKeyVault, resource.KindVNet,
		resource.KindSubnet, resource.KindManagedIdentity, resource.KindClusterDeployment,
	}

	for _, prefix := range prefixes {
		n := New(prefix, "scope")
		for _, kind := range kinds {
			name := n.Name(kind, "compute")
			assert.True(t, Valid(kind, name), "prefix %q kind %s produced %q", prefix, kind, name)
		}
	}
}

func TestNamer_StorageAccountCharset(t *testing.T) {
	t.Parallel()
	name := New("hpc-demo", "scope").Name(resource.KindStorageAccount, "")

	assert.True(t, strings.HasPrefix(name, "hpcdemost"))
	assert.NotContains(t, name, "-")
	assert.LessOrEqual(t, len(name), 24)
}

func TestNamer_KeyVaultStartsWithLetter(t *testing.T) {
	t.Parallel()
	name := New("42", "scope").Name(resource.KindKeyVault, "")

	assert.True(t, strings.HasPrefix(name, "kv42"))
	assert.True(t, Valid(resource.KindKeyVault, name))
}

func TestRoleAssignment(t *testing.T) {
	t.Parallel()
	a := RoleAssignment("/subscriptions/s/x", "principal", "role")
	b := RoleAssignment("/subscriptions/s/x", "principal", "role")
	c := RoleAssignment("/subscriptions/s/x", "other", "role")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, Valid(resource.KindRoleAssignment, a))
}

func TestValid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		kind resource.Kind
		name string
		want bool
	}{
		{resource.KindStorageAccount, "abc", true},
		{resource.KindStorageAccount, "ab", false},
		{resource.KindStorageAccount, "has-hyphen", false},
		{resource.KindStorageAccount, "UPPER", false},
		{resource.KindKeyVault, "kv-1", true},
		{resource.KindKeyVault, "1kv", false},
		{resource.KindVNet, "net-a", true},
		{resource.KindVNet, "", false},
		{resource.KindVNet, strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Valid(tt.kind, tt.name), "%s %q", tt.kind, tt.name)
	}
}
