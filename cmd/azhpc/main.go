// Package main is the entry point for the azhpc CLI.
//
// azhpc provisions an HPC environment on Azure (network, identity, staging
// storage, key vault certificate and compute cluster) and then resolves its
// post-deployment state through a scripted or interactive remediation.
//
// Commands: apply, repair, remediate, plan, version.
//
// For detailed usage information, run:
//
//	azhpc --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/azhpc/cmd/azhpc/commands"
	"github.com/imamik/azhpc/cmd/azhpc/handlers"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(handlers.ExitCode(err))
	}
}
