package resource

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies the type of cloud resource a Descriptor addresses.
type Kind string

const (
	KindResourceGroup       Kind = "ResourceGroup"
	KindManagedIdentity     Kind = "ManagedIdentity"
	KindVNet                Kind = "VNet"
	KindSubnet              Kind = "Subnet"
	KindNSG                 Kind = "NSG"
	KindStorageAccount      Kind = "StorageAccount"
	KindKeyVault            Kind = "KeyVault"
	KindCertificate         Kind = "Certificate"
	KindRoleAssignment      Kind = "RoleAssignment"
	KindClusterDeployment   Kind = "ClusterDeployment"
	KindPrivateEndpoint     Kind = "PrivateEndpoint"
	KindPrivateDNSZone      Kind = "PrivateDNSZone"
	KindPrivateDNSZoneLink  Kind = "PrivateDNSZoneLink"
	KindPrivateDNSZoneGroup Kind = "PrivateDNSZoneGroup"
)

// Kinds returns every known kind.
func Kinds() []Kind {
	return []Kind{
		KindResourceGroup, KindManagedIdentity, KindVNet, KindSubnet, KindNSG,
		KindStorageAccount, KindKeyVault, KindCertificate, KindRoleAssignment,
		KindClusterDeployment, KindPrivateEndpoint, KindPrivateDNSZone,
		KindPrivateDNSZoneLink, KindPrivateDNSZoneGroup,
	}
}

// IsValid returns true if k is a known kind.
func (k Kind) IsValid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Ref points at a resource by (kind, name, parent).
type Ref struct {
	Kind   Kind
	Name   string
	Parent *Ref
}

// Key renders the identity path, e.g. "ResourceGroup/rg/VNet/net/Subnet/compute".
func (r Ref) Key() string {
	var parts []string
	for cur := &r; cur != nil; cur = cur.Parent {
		parts = append(parts, cur.Name, string(cur.Kind))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

func (r Ref) String() string {
	return r.Key()
}

// Ancestor walks up the parent chain and returns the first ref of the given kind.
func (r Ref) Ancestor(kind Kind) (Ref, bool) {
	for cur := &r; cur != nil; cur = cur.Parent {
		if cur.Kind == kind {
			return *cur, true
		}
	}
	return Ref{}, false
}

// Descriptor is the desired shape of a single resource.
// Descriptors are built by pipeline steps and never mutated afterwards.
type Descriptor struct {
	Kind     Kind
	Name     string
	Location string
	Parent   *Ref

	// Properties are the desired properties passed to the cloud client.
	Properties map[string]any

	// Required lists property paths (dot separated) an existing resource must
	// carry for it to be accepted without modification.
	Required []string
}

// Ref returns the identity of the descriptor.
func (d Descriptor) Ref() Ref {
	return Ref{Kind: d.Kind, Name: d.Name, Parent: d.Parent}
}

// Key returns the identity path of the descriptor.
func (d Descriptor) Key() string {
	return d.Ref().Key()
}

// Validate checks the descriptor is addressable.
func (d Descriptor) Validate() error {
	if !d.Kind.IsValid() {
		return fmt.Errorf("unknown resource kind %q", d.Kind)
	}
	if d.Name == "" {
		return fmt.Errorf("%s: name is required", d.Kind)
	}
	if d.Kind != KindResourceGroup && d.Parent == nil {
		return fmt.Errorf("%s %q: parent reference is required", d.Kind, d.Name)
	}
	return nil
}

// String returns the property at a dot-separated path, or "".
func (d Descriptor) String(path string) string {
	v, _ := Lookup(d.Properties, path)
	s, _ := v.(string)
	return s
}

// Strings returns the string slice at a dot-separated path.
func (d Descriptor) Strings(path string) []string {
	v, _ := Lookup(d.Properties, path)
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Lookup resolves a dot-separated path in nested maps.
func Lookup(props map[string]any, path string) (any, bool) {
	if props == nil || path == "" {
		return nil, false
	}
	var cur any = props
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// MissingRequired returns the Required paths that props does not satisfy.
// A path is satisfied when it exists and is not empty.
func MissingRequired(required []string, props map[string]any) []string {
	var missing []string
	for _, path := range required {
		v, ok := Lookup(props, path)
		if !ok || isEmpty(v) {
			missing = append(missing, path)
		}
	}
	sort.Strings(missing)
	return missing
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

// Resource is what the cloud client reports about an existing resource.
type Resource struct {
	ID         string
	Kind       Kind
	Name       string
	Properties map[string]any
	Outputs    map[string]any
}

// String returns the property at a dot-separated path, or "".
func (r *Resource) String(path string) string {
	if r == nil {
		return ""
	}
	v, _ := Lookup(r.Properties, path)
	s, _ := v.(string)
	return s
}

// Output returns a string output value, or "".
func (r *Resource) Output(name string) string {
	if r == nil || r.Outputs == nil {
		return ""
	}
	s, _ := r.Outputs[name].(string)
	return s
}
