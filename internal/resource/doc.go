// Package resource defines the data model shared by the provisioning pipeline,
// the repair engine and the remediation engine: resource descriptors and
// references, provisioning results, structured error signatures and staging
// artifacts.
package resource
