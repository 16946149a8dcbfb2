// Package keygen produces and validates the SSH key of the cluster admin user.
//
// Keys are emitted in PEM format (private) and OpenSSH authorized_keys
// format (public). Supplied keys must be ed25519 or RSA of at least 2048 bits.
package keygen
