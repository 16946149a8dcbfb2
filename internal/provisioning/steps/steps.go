package steps

import (
	"github.com/imamik/azhpc/internal/config"
	"github.com/imamik/azhpc/internal/provisioning"
)

// Default returns the provisioning steps for cfg, in execution order.
func Default(cfg *config.Config) []provisioning.Step {
	return []provisioning.Step{
		ResourceGroup(),
		Identity(),
		Network(),
		Storage(),
		RoleAssignments(),
		Certificate(cfg.AccessMode()),
		Cluster(),
	}
}

// NewPipeline returns the validated default pipeline for cfg.
func NewPipeline(cfg *config.Config) (*provisioning.Pipeline, error) {
	p := provisioning.NewPipeline(Default(cfg)...)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// tags returns the tags put on every taggable resource.
func tags(rc *provisioning.RunContext) map[string]any {
	out := map[string]any{
		"managed-by": "azhpc",
		"prefix":     rc.Config.Prefix,
	}
	for k, v := range rc.Config.Tags {
		out[k] = v
	}
	return out
}
