// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command definitions
// in the commands package. Handlers are framework-agnostic and can be tested
// independently of the CLI framework.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/imamik/azhpc/internal/provisioning"
	"github.com/imamik/azhpc/internal/provisioning/steps"
	"github.com/imamik/azhpc/internal/remediation"
	"github.com/imamik/azhpc/internal/repair"
)

// RunResult is what apply, repair and remediate report.
type RunResult struct {
	Command string `json:"command"`
	Prefix  string `json:"prefix"`

	Report *provisioning.Report `json:"report,omitempty"`
	Repair *repair.Result       `json:"repair,omitempty"`
	// Resumed covers the steps run after a successful repair.
	Resumed     *provisioning.Report `json:"resumed,omitempty"`
	Remediation *remediation.Outcome `json:"remediation,omitempty"`

	Outputs      *OutputSummary `json:"outputs,omitempty"`
	AdminKeyPath string         `json:"adminKeyPath,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// OutputSummary is the user-facing subset of the run outputs.
type OutputSummary struct {
	ResourceGroup     string `json:"resourceGroup"`
	StorageAccount    string `json:"storageAccount,omitempty"`
	KeyVault          string `json:"keyVault,omitempty"`
	CertificateID     string `json:"certificateId,omitempty"`
	ClusterID         string `json:"clusterId,omitempty"`
	SchedulerEndpoint string `json:"schedulerEndpoint,omitempty"`
}

// Apply provisions the HPC environment and resolves its post-deployment state.
//
// The workflow:
//  1. Loads the configuration and layers the flags on top
//  2. Runs the provisioning pipeline
//  3. If the certificate step failed with a recognized policy denial,
//     creates the certificate natively and resumes after that step
//  4. Resolves one remediation choice and executes it, unless the run was aborted
//  5. Writes a generated admin key, the report and, optionally, the metrics
//
// Provisioning failures exit with ExitFailure even when a remediation ran.
func Apply(ctx context.Context, opts Options) error {
	return run(ctx, "apply", opts, true)
}

// Repair provisions like Apply and repairs the certificate step, but skips
// the post-deployment decision.
func Repair(ctx context.Context, opts Options) error {
	return run(ctx, "repair", opts, false)
}

func run(ctx context.Context, command string, opts Options, remediate bool) error {
	s, err := newSession(ctx, opts)
	if err != nil {
		return err
	}
	result, runErr := provision(s, command, remediate)
	if err := writeResult(opts.Output, result); err != nil {
		runErr = errors.Join(runErr, err)
	}
	return s.finish(runErr)
}

// provision runs the pipeline, the repair engine and the decision engine.
func provision(s *session, command string, remediate bool) (*RunResult, error) {
	result := &RunResult{Command: command, Prefix: s.cfg.Prefix}
	pipeline, err := steps.NewPipeline(s.cfg)
	if err != nil {
		return result, err
	}

	rc := s.runContext()
	report, runErr := pipeline.Run(rc)
	result.Report = report
	if path, err := persistAdminKey(s, rc.Outputs); err != nil {
		s.log.Error(err, "failed to persist generated admin key")
	} else {
		result.AdminKeyPath = path
	}

	if runErr != nil && report != nil && !report.Aborted {
		if _, ok := repair.Inspect(rc.History).(repair.RepairAction); ok {
			report, runErr = repairAndResume(s, rc, pipeline, result, runErr)
		}
	}
	result.Outputs = summarize(rc)

	if remediate && report != nil && !report.Aborted && rc.Err() == nil {
		outcome, err := remediation.NewEngine(decisionSources(s)...).Run(rc)
		result.Remediation = outcome
		if err != nil {
			runErr = errors.Join(runErr, err)
		}
	}

	if runErr != nil {
		result.Error = runErr.Error()
		return result, &ExitError{Code: ExitFailure, Err: runErr}
	}
	return result, nil
}

// repairAndResume repairs the certificate step and, when it is fixed,
// records the certificate as staged and runs only the steps after it.
func repairAndResume(s *session, rc *provisioning.RunContext, pipeline *provisioning.Pipeline, result *RunResult, runErr error) (*provisioning.Report, error) {
	started := rc.Now()
	engine := repair.NewEngine(s.cloud, rc.Policies.Create)
	engine.Observer = s.observer
	res, err := engine.Repair(s.ctx, rc.History)
	result.Repair = &res
	if err != nil {
		return result.Report, errors.Join(runErr, err)
	}

	if err := steps.AdoptCertificate(rc, res.ResourceID, res.Repaired); err != nil {
		return result.Report, errors.Join(runErr, err)
	}
	if err := pipeline.Complete(rc, provisioning.StateCertificateStaged, started); err != nil {
		return result.Report, errors.Join(runErr, err)
	}

	s.observer.Printf("Certificate repaired, resuming the pipeline")
	report, err := pipeline.Resume(rc, provisioning.StateCertificateStaged)
	result.Resumed = report
	if report == nil {
		return result.Report, errors.Join(runErr, err)
	}
	return report, err
}

// decisionSources chains the configured decision inputs. The interactive
// menu is only offered for text output.
func decisionSources(s *session) []remediation.DecisionSource {
	var interactive remediation.DecisionSource
	if s.opts.Output != OutputJSON {
		interactive = remediation.Interactive(stdin, stderr)
	}
	cfg := s.cfg.Remediation
	return remediation.Sources(cfg.Code, cfg.Choice, interactive)
}

// persistAdminKey writes an admin key generated during the run next to the
// working directory, private part owner-readable only.
func persistAdminKey(s *session, out *provisioning.Outputs) (string, error) {
	if out.AdminKey == nil {
		return "", nil
	}
	path := filepath.Join(".", fmt.Sprintf("azhpc-%s-admin", s.cfg.Prefix))
	if err := writeFile(path, out.AdminKey.PrivateKey, 0o600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := writeFile(path+".pub", out.AdminKey.PublicKey, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s.pub: %w", path, err)
	}
	return path, nil
}

func summarize(rc *provisioning.RunContext) *OutputSummary {
	out := rc.Outputs
	sum := &OutputSummary{
		ResourceGroup:     out.ResourceGroup.Name,
		CertificateID:     out.CertificateID,
		ClusterID:         out.ClusterID,
		SchedulerEndpoint: out.SchedulerEndpoint,
	}
	if out.StorageAccount != nil {
		sum.StorageAccount = out.StorageAccount.Name
	}
	if out.KeyVault != nil {
		sum.KeyVault = out.KeyVault.Name
	}
	return sum
}
