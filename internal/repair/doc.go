// Package repair inspects a failed provisioning history and recovers from
// the one failure it recognizes: a certificate staging script that was
// blocked because the storage account forbids shared key access. The
// certificate is then created natively through the key vault API.
//
// Every other failure is escalated unchanged.
package repair
