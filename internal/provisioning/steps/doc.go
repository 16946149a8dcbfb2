// Package steps holds the provisioning steps of an HPC environment run.
//
// The steps run in order:
//
//	ResourceGroupReady → IdentityReady → NetworkReady → StorageReady →
//	RoleAssigned → CertificateStaged → ClusterDeployed
//
// Each step builds descriptors from the run configuration and earlier
// outputs, converges them through the run's Ensurer and publishes what later
// steps need on RunContext.Outputs.
package steps
