package remediation

import (
	"context"
	"fmt"

	"github.com/imamik/azhpc/internal/provisioning"
	"github.com/imamik/azhpc/internal/provisioning/steps"
	"github.com/imamik/azhpc/internal/resource"
)

// Step is the name remediation events are logged under.
const Step = "Remediation"

// SkippedSummary is reported when no source yields a valid choice.
const SkippedSummary = "remediation skipped"

// Outcome is the result of one remediation.
type Outcome struct {
	Selection

	Executed bool   `json:"executed"`
	Skipped  bool   `json:"skipped,omitempty"`
	Summary  string `json:"summary"`

	// Target is the ID of the resource the action applies to.
	Target string `json:"target,omitempty"`
	// Guidance holds the ordered manual steps of the guidance actions.
	Guidance []string `json:"guidance,omitempty"`
	// Changed lists the keys of resources created or modified.
	Changed  []string `json:"changed,omitempty"`
	Reverted bool     `json:"reverted,omitempty"`

	// Report is the sub-pipeline report of PrivateEndpointAutomated.
	Report *provisioning.Report `json:"report,omitempty"`
}

// Engine resolves a choice from its sources and executes it.
type Engine struct {
	Sources []DecisionSource
}

// NewEngine creates an engine asking sources in order.
func NewEngine(sources ...DecisionSource) *Engine {
	return &Engine{Sources: sources}
}

// Decide returns the first valid selection of the sources, or a selection
// with ChoiceNone when none has one.
func (e *Engine) Decide(ctx context.Context, req Request) (Selection, error) {
	for _, src := range e.Sources {
		sel, ok, err := src.Decide(ctx, req)
		if err != nil {
			return Selection{}, fmt.Errorf("decision source %s: %w", src.Name(), err)
		}
		if ok && sel.Choice.Valid() {
			return sel, nil
		}
	}
	return Selection{}, nil
}

// Run decides and executes the remediation for the run in rc. Resources
// not provisioned by rc itself are located by their deterministic names.
func (e *Engine) Run(rc *provisioning.RunContext) (*Outcome, error) {
	steps.Locate(rc)
	cfg := rc.Config.Remediation
	req := Request{
		CreatePrivateEndpoint: cfg.CreatePrivateEndpoint,
		Note:                  cfg.CustomNote,
		Context:               fmt.Sprintf("%s %s is not reachable as deployed.", target(rc).Kind, target(rc).Name),
	}

	sel, err := e.Decide(rc, req)
	if err != nil {
		return nil, err
	}
	if sel.Choice == ChoiceNone {
		provisioning.LogWarning(rc.Observer, Step, SkippedSummary)
		rc.Metrics.RecordRemediation("", "skipped")
		return &Outcome{Skipped: true, Summary: SkippedSummary}, nil
	}
	return Execute(rc, sel)
}

// Execute performs the selected action.
func Execute(rc *provisioning.RunContext, sel Selection) (*Outcome, error) {
	steps.Locate(rc)
	out := &Outcome{Selection: sel}
	rc.Observer.Printf("Executing remediation %s (from %s)", sel.Choice, sel.Source)

	var err error
	switch sel.Choice {
	case ChoiceEnablePublicNetwork:
		err = enablePublicNetwork(rc, out)
	case ChoicePrivateEndpointGuidance:
		err = privateEndpointGuidance(rc, out)
	case ChoicePrivateEndpointAutomated:
		err = privateEndpointAutomated(rc, out)
	case ChoicePolicyExemptionGuidance:
		err = policyExemptionGuidance(rc, out)
	case ChoiceCustom:
		out.Summary = "custom remediation recorded, no action taken"
	default:
		return nil, fmt.Errorf("unknown remediation choice %q", sel.Choice)
	}
	if err != nil {
		rc.Metrics.RecordRemediation(string(sel.Choice), "failed")
		return out, fmt.Errorf("remediation %s: %w", sel.Choice, err)
	}

	out.Executed = true
	rc.Metrics.RecordRemediation(string(sel.Choice), "executed")
	rc.Observer.Printf("Remediation %s: %s", sel.Choice, out.Summary)
	return out, nil
}

// target returns the resource the network actions apply to.
func target(rc *provisioning.RunContext) resource.Ref {
	if rc.Config.Remediation.Target == resource.KindStorageAccount {
		return *rc.Outputs.StorageAccount
	}
	return *rc.Outputs.KeyVault
}
