package template

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/imamik/azhpc/internal/resource"
)

// Template is a deployment template. Its content is passed through as is;
// only the parameter and output declarations are read.
type Template struct {
	Name    string
	Content map[string]any
}

// Parameter is a declared template parameter.
type Parameter struct {
	Name     string
	Type     string
	Required bool
	Default  any
}

// Parameters are the values passed into a template.
type Parameters map[string]any

// ARM renders the parameters in the {"name": {"value": v}} deployment shape.
func (p Parameters) ARM() map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = map[string]any{"value": v}
	}
	return out
}

// Parameters returns the declared parameters sorted by name.
func (t *Template) Parameters() []Parameter {
	decl, _ := t.Content["parameters"].(map[string]any)
	out := make([]Parameter, 0, len(decl))
	for name, raw := range decl {
		spec, _ := raw.(map[string]any)
		def, hasDefault := spec["defaultValue"]
		typ, _ := spec["type"].(string)
		out = append(out, Parameter{
			Name:     name,
			Type:     strings.ToLower(typ),
			Required: !hasDefault,
			Default:  def,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Outputs returns the declared output names, sorted.
func (t *Template) Outputs() []string {
	decl, _ := t.Content["outputs"].(map[string]any)
	out := make([]string, 0, len(decl))
	for name := range decl {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Validate checks that every required parameter is supplied and that no
// undeclared parameter is passed.
func (t *Template) Validate(params Parameters) error {
	declared := make(map[string]bool)
	var errs []error
	for _, p := range t.Parameters() {
		declared[p.Name] = true
		v, ok := params[p.Name]
		if p.Required && (!ok || v == nil || v == "") {
			errs = append(errs, fmt.Errorf("template %s: parameter %s is required", t.Name, p.Name))
		}
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !declared[name] {
			errs = append(errs, fmt.Errorf("template %s: unknown parameter %s", t.Name, name))
		}
	}
	return errors.Join(errs...)
}

// Descriptor builds the cluster deployment descriptor for the template.
func (t *Template) Descriptor(name string, group resource.Ref, params Parameters) (resource.Descriptor, error) {
	if err := t.Validate(params); err != nil {
		return resource.Descriptor{}, err
	}
	return resource.Descriptor{
		Kind:   resource.KindClusterDeployment,
		Name:   name,
		Parent: &group,
		Properties: map[string]any{
			"properties": map[string]any{
				"mode":       "Incremental",
				"template":   t.Content,
				"parameters": params.ARM(),
			},
		},
	}, nil
}
