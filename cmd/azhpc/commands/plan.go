package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/azhpc/cmd/azhpc/handlers"
)

// Plan returns the command that prints the steps and resource names.
func Plan(opts *handlers.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the steps and resource names without calling Azure",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Plan(cmd.Context(), *opts)
		},
	}

	bindRunFlags(cmd, opts)

	return cmd
}
