package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/azhpc/cmd/azhpc/handlers"
)

// Remediate returns the command that runs only the post-deployment decision.
func Remediate(opts *handlers.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remediate",
		Short: "Select and execute one remediation",
		Long: `Select one remediation for an environment provisioned earlier and
execute it. A short code takes precedence over a description; without
either, a numbered menu is offered. Nothing is done without a valid choice.

Choices (number or short code):
  1  PublicNetwork             enable public network access
  2  PrivateEndpointGuidance   print the private endpoint steps
  3  PrivateEndpointAutomated  create the private endpoint
  4  PolicyExemption           print the policy exemption steps
  5  Custom                    record a note, no action

PrivateEndpoint resolves to 2, or to 3 with --create-private-endpoint.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Remediate(cmd.Context(), *opts)
		},
	}

	bindRunFlags(cmd, opts)
	bindRemediationFlags(cmd, opts)

	return cmd
}
