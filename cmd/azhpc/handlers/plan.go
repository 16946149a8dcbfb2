package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/imamik/azhpc/internal/config"
	"github.com/imamik/azhpc/internal/platform/azure"
	"github.com/imamik/azhpc/internal/provisioning"
	"github.com/imamik/azhpc/internal/provisioning/steps"
	"github.com/imamik/azhpc/internal/resource"
)

// PlanResult lists what apply would do, without calling the cloud.
type PlanResult struct {
	Prefix       string            `json:"prefix"`
	Location     string            `json:"location"`
	Subscription string            `json:"subscription"`
	AccessMode   string            `json:"accessMode"`
	Steps        []PlannedStep     `json:"steps"`
	Resources    []PlannedResource `json:"resources"`
}

// PlannedStep is a pipeline step in execution order.
type PlannedStep struct {
	Step        string   `json:"step"`
	Description string   `json:"description"`
	DependsOn   []string `json:"dependsOn,omitempty"`
	Optional    bool     `json:"optional,omitempty"`
}

// PlannedResource is a resource apply ensures, with its derived name.
type PlannedResource struct {
	Kind resource.Kind `json:"kind"`
	Name string        `json:"name"`
	ID   string        `json:"id"`
}

// Plan prints the pipeline and the deterministic resource names of the
// configuration. It needs no credentials.
func Plan(ctx context.Context, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	plan, err := buildPlan(ctx, cfg)
	if err != nil {
		return err
	}
	return writeResult(opts.Output, plan)
}

func buildPlan(ctx context.Context, cfg *config.Config) (*PlanResult, error) {
	// the fake only supplies the subscription, nothing is called
	rc := provisioning.NewRunContext(ctx, cfg, azure.NewFakeClient(cfg.SubscriptionID))
	steps.Locate(rc)

	plan := &PlanResult{
		Prefix:       cfg.Prefix,
		Location:     cfg.Location,
		Subscription: cfg.SubscriptionID,
		AccessMode:   string(cfg.AccessMode()),
	}
	for _, s := range steps.Default(cfg) {
		ps := PlannedStep{Step: s.Name(), Description: s.Description, Optional: s.Optional}
		for _, dep := range s.DependsOn {
			ps.DependsOn = append(ps.DependsOn, string(dep))
		}
		plan.Steps = append(plan.Steps, ps)
	}

	out := rc.Outputs
	refs := []resource.Ref{out.ResourceGroup, *out.Identity, *out.NSG, *out.VNet}
	roles := make([]string, 0, len(out.Subnets))
	for role := range out.Subnets {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		refs = append(refs, out.Subnets[role])
	}
	refs = append(refs, *out.StorageAccount, *out.KeyVault, steps.CertificateDescriptor(rc).Ref(), resource.Ref{
		Kind:   resource.KindClusterDeployment,
		Name:   rc.Namer.Name(resource.KindClusterDeployment, ""),
		Parent: rc.Group(),
	})

	for _, ref := range refs {
		id, err := rc.ResourceID(ref)
		if err != nil {
			return nil, fmt.Errorf("plan %s: %w", ref.Key(), err)
		}
		plan.Resources = append(plan.Resources, PlannedResource{Kind: ref.Kind, Name: ref.Name, ID: id})
	}
	return plan, nil
}

func renderPlan(p *PlanResult) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(titleStyle.Render(fmt.Sprintf("  azhpc plan: %s (%s)", p.Prefix, p.Location)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  " + strings.Repeat("═", 30)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  storage access: %s\n", p.AccessMode)

	b.WriteString("\n")
	b.WriteString(sectionStyle.Render("  Steps"))
	b.WriteString("\n")
	for i, s := range p.Steps {
		line := fmt.Sprintf("    %d. %-20s %s", i+1, s.Step, s.Description)
		if len(s.DependsOn) > 0 {
			line += dimStyle.Render(" after " + strings.Join(s.DependsOn, ", "))
		}
		if s.Optional {
			line += dimStyle.Render(" (optional)")
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n")
	b.WriteString(sectionStyle.Render("  Resources"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("    %-18s %s", "Kind", "Name")))
	b.WriteString("\n")
	for _, r := range p.Resources {
		fmt.Fprintf(&b, "    %-18s %s\n", r.Kind, r.Name)
	}
	return b.String()
}
