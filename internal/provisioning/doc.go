// Package provisioning provides the orchestration core: the idempotent
// resource ensurer, the sequential step pipeline and the run context.
//
// # Subpackages
//
//   - steps/: the HPC step set (resource group through cluster deployment)
//
// # Core Types
//
// RunContext carries configuration, the cloud client, the retry executor,
// outputs of earlier steps and the append-only History.
// Ensurer converges a single Descriptor through get-or-create.
// Pipeline runs Steps in order, moving through the states NotStarted to Done,
// or stopping in Failed.
// Observer receives structured events, logged through logr.
package provisioning
