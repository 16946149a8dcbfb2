package naming

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"

	"github.com/imamik/azhpc/internal/resource"
)

// Azure name limits per kind.
const (
	storageAccountMaxLen = 24
	keyVaultMaxLen       = 24
	genericMaxLen        = 64
	hashLen              = 6
)

var suffixes = map[resource.Kind]string{
	resource.KindResourceGroup:       "rg",
	resource.KindManagedIdentity:     "id",
	resource.KindVNet:                "vnet",
	resource.KindSubnet:              "snet",
	resource.KindNSG:                 "nsg",
	resource.KindStorageAccount:      "st",
	resource.KindKeyVault:            "kv",
	resource.KindCertificate:         "cert",
	resource.KindClusterDeployment:   "hpc",
	resource.KindPrivateEndpoint:     "pe",
	resource.KindPrivateDNSZoneLink:  "link",
	resource.KindPrivateDNSZoneGroup: "zg",
}

// roleAssignmentNamespace seeds deterministic role assignment GUIDs.
var roleAssignmentNamespace = uuid.MustParse("5b3c7a52-3f0e-4c1b-9d3e-7a2f7f0c8e11")

// Namer derives deterministic resource names from a human prefix and the
// enclosing scope (subscription and location).
type Namer struct {
	prefix string
	scope  string
}

// New creates a Namer.
func New(prefix, scope string) *Namer {
	return &Namer{prefix: prefix, scope: scope}
}

// Prefix returns the human prefix.
func (n *Namer) Prefix() string {
	return n.prefix
}

// ResourceGroup returns the root resource group name. It carries no hash so
// that operators can find it by prefix.
func (n *Namer) ResourceGroup() string {
	return truncate(fold(n.prefix+"-rg", true), genericMaxLen)
}

// Name returns the name of a resource of the given kind. role distinguishes
// several resources of the same kind (e.g. "compute" and "storage" subnets).
func (n *Namer) Name(kind resource.Kind, role string) string {
	if kind == resource.KindResourceGroup {
		return n.ResourceGroup()
	}
	sum := n.hash(kind, role)
	base := n.prefix + "-" + suffixes[kind]
	if role != "" {
		base += "-" + role
	}

	switch kind {
	case resource.KindStorageAccount:
		return truncate(fold(base, false), storageAccountMaxLen-hashLen) + sum
	case resource.KindKeyVault:
		head := strings.TrimRight(truncate(fold(base, true), keyVaultMaxLen-hashLen-1), "-")
		if head == "" || !isLetter(head[0]) {
			head = "kv" + head
			head = strings.TrimRight(truncate(head, keyVaultMaxLen-hashLen-1), "-")
		}
		return head + "-" + sum
	default:
		head := strings.TrimRight(truncate(fold(base, true), genericMaxLen-hashLen-1), "-")
		if head == "" {
			return sum
		}
		return head + "-" + sum
	}
}

func (n *Namer) hash(kind resource.Kind, role string) string {
	h := sha256.Sum256([]byte(n.scope + "|" + n.prefix + "|" + string(kind) + "|" + role))
	return hex.EncodeToString(h[:])[:hashLen]
}

// RoleAssignment returns the deterministic GUID name of a role assignment.
// Azure requires role assignment names to be GUIDs.
func RoleAssignment(scope, principalID, roleDefinitionID string) string {
	return uuid.NewSHA1(roleAssignmentNamespace, []byte(scope+"|"+principalID+"|"+roleDefinitionID)).String()
}

// fold lowercases s and drops characters outside [a-z0-9] (and hyphens when
// allowed). Runs of hyphens collapse into one.
func fold(s string, hyphens bool) string {
	var b strings.Builder
	prevHyphen := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevHyphen = false
		case hyphens && !prevHyphen:
			b.WriteByte('-')
			prevHyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z'
}

// Valid reports whether name satisfies the Azure naming rules for kind.
func Valid(kind resource.Kind, name string) bool {
	switch kind {
	case resource.KindStorageAccount:
		return len(name) >= 3 && len(name) <= storageAccountMaxLen && fold(name, false) == name
	case resource.KindKeyVault:
		return len(name) >= 3 && len(name) <= keyVaultMaxLen && isLetter(name[0]) && fold(name, true) == name
	case resource.KindRoleAssignment:
		_, err := uuid.Parse(name)
		return err == nil
	default:
		return len(name) >= 1 && len(name) <= genericMaxLen && fold(name, true) == name
	}
}
