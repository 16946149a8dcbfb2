// Package config defines the run configuration of azhpc.
//
// A [Config] is read from azhpc.yaml, overlaid with command line flags, then
// finalized: defaults fill unset fields (subnets are carved out of the address
// space, certificate policy and cluster sizing get sensible values), retry
// policy classes pick up AZHPC_RETRY_* environment overrides, and Validate
// reports every problem at once as a [ValidationError].
package config
