package template

import (
	"fmt"
	"strings"

	"github.com/imamik/azhpc/internal/resource"
)

// Outputs are the values a deployment reports back.
type Outputs map[string]any

// OutputsFrom reads the outputs of a deployed resource.
func OutputsFrom(res *resource.Resource) Outputs {
	if res == nil {
		return Outputs{}
	}
	return Outputs(res.Outputs)
}

// String returns a string output.
func (o Outputs) String(name string) (string, error) {
	v, ok := o[name]
	if !ok {
		return "", fmt.Errorf("output %s missing", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("output %s is %T, not a string", name, v)
	}
	return s, nil
}

// ID returns an output that must be a resource ID.
func (o Outputs) ID(name string) (string, error) {
	s, err := o.String(name)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(strings.ToLower(s), "/subscriptions/") {
		return "", fmt.Errorf("output %s is not a resource ID: %q", name, s)
	}
	return s, nil
}
