// Package remediation is the post-deployment decision engine. It resolves
// exactly one remediation choice from a chain of decision sources (a short
// code, a descriptive string, an interactive menu) and executes it.
//
// When no source yields a valid choice the engine does nothing and reports
// the remediation as skipped. It never guesses.
//
// The actions are idempotent: EnablePublicNetwork leaves an already open
// resource alone, PrivateEndpointAutomated reuses the provisioning Ensurer
// for every sub-resource, and the guidance actions make no cloud calls.
package remediation
