package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/azhpc/cmd/azhpc/handlers"
)

// Repair returns the command that provisions and repairs the certificate
// step without the post-deployment decision.
func Repair(opts *handlers.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Provision and repair the certificate step",
		Long: `Run the provisioning pipeline and, when the certificate step failed
because shared key access is denied by policy, create the certificate
natively and run the pipeline again. No remediation is selected.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Repair(cmd.Context(), *opts)
		},
	}

	bindRunFlags(cmd, opts)

	return cmd
}
