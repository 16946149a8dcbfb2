package handlers

import (
	"context"

	"github.com/imamik/azhpc/internal/remediation"
)

// Remediate runs only the post-deployment decision against an environment
// provisioned earlier. Resources are located by their deterministic names.
func Remediate(ctx context.Context, opts Options) error {
	s, err := newSession(ctx, opts)
	if err != nil {
		return err
	}

	rc := s.runContext()
	result := &RunResult{Command: "remediate", Prefix: s.cfg.Prefix}
	outcome, runErr := remediation.NewEngine(decisionSources(s)...).Run(rc)
	result.Remediation = outcome
	if runErr != nil {
		result.Error = runErr.Error()
		runErr = &ExitError{Code: ExitFailure, Err: runErr}
	}

	if err := writeResult(opts.Output, result); err != nil && runErr == nil {
		runErr = err
	}
	return s.finish(runErr)
}
