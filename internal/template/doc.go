// Package template loads deployment templates and builds the cluster
// deployment descriptor from them. Templates stay opaque: parameters go in,
// typed outputs (resource IDs, endpoints) come out.
package template
