// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/azhpc/cmd/azhpc/handlers"
)

// Root returns the root command for the azhpc CLI.
func Root() *cobra.Command {
	opts := &handlers.Options{}

	cmd := &cobra.Command{
		Use:           "azhpc",
		Short:         "Provision an HPC environment on Azure",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file (default: azhpc.yaml)")
	flags.StringVar(&opts.Output, "output", handlers.OutputText, "Output format: text or json")
	flags.BoolVar(&opts.Simulate, "simulate", false, "Run against an in-memory cloud instead of Azure")
	flags.DurationVar(&opts.Timeout, "timeout", 0, "Abort the run after this duration (0 for no limit)")
	flags.StringVar(&opts.MetricsTextfile, "metrics-textfile", "", "Write run metrics to this file in the Prometheus text format")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(Apply(opts))
	cmd.AddCommand(Repair(opts))
	cmd.AddCommand(Remediate(opts))
	cmd.AddCommand(Plan(opts))
	cmd.AddCommand(Version())

	return cmd
}

// bindRunFlags binds the flags that override the configuration file.
func bindRunFlags(cmd *cobra.Command, opts *handlers.Options) {
	flags := cmd.Flags()
	flags.StringVar(&opts.Prefix, "prefix", "", "Resource name prefix")
	flags.StringVar(&opts.Location, "location", "", "Azure region, e.g. westeurope")
	flags.StringVar(&opts.AdminUsername, "admin-username", "", "Cluster admin username")
	flags.StringVar(&opts.AdminSSHKey, "admin-ssh-key", "", "Admin SSH public key or path to a .pub file (generated when empty)")
	flags.StringVar(&opts.StorageAuth, "storage-auth", "", "Storage auth mode: KeyVaultBacked or Keyless")
	flags.BoolVar(&opts.ForceFresh, "force-fresh", false, "Delete the resource group before provisioning")
}

// bindRemediationFlags binds the pre-supplied remediation decision.
func bindRemediationFlags(cmd *cobra.Command, opts *handlers.Options) {
	flags := cmd.Flags()
	flags.StringVar(&opts.RemediationCode, "remediation-code", "", "Remediation short code, e.g. PublicNetwork, PrivateEndpoint or 1-5")
	flags.StringVar(&opts.Remediation, "remediation", "", "Remediation described in words, e.g. \"enable public network access\"")
	flags.BoolVar(&opts.CreatePrivateEndpoint, "create-private-endpoint", false, "Create the private endpoint instead of printing the steps")
	flags.DurationVar(&opts.RevertAfter, "revert-after", 0, "Disable public network access again after this duration")
}
