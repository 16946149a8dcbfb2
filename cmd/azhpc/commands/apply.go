package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/azhpc/cmd/azhpc/handlers"
)

// Apply returns the command that provisions the environment.
//
// Environment variables:
//
//	AZURE_SUBSCRIPTION_ID: subscription to deploy into (unless set in the config)
//	AZURE_TENANT_ID: tenant of the key vault (unless set in the config)
//	AZHPC_RETRY_<CLASS>_*: retry policy overrides
func Apply(opts *handlers.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Provision the HPC environment",
		Long: `Provision the HPC environment and resolve its post-deployment state.

Resources are created in dependency order and existing resources are reused,
so apply can be re-run safely. When the certificate step is blocked by a
policy denying shared key access, the certificate is created natively and
the pipeline runs again. Finally one remediation is selected, from
--remediation-code, --remediation or an interactive menu, and executed.

Examples:
  # Provision using azhpc.yaml in the current directory
  azhpc apply

  # Keyless staging, open the key vault for an hour afterwards
  azhpc apply --storage-auth Keyless --remediation-code PublicNetwork --revert-after 1h

  # Dry run against an in-memory cloud
  azhpc apply --simulate --prefix demo --location westeurope`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Apply(cmd.Context(), *opts)
		},
	}

	bindRunFlags(cmd, opts)
	bindRemediationFlags(cmd, opts)

	return cmd
}
