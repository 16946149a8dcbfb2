// Package naming derives deterministic Azure resource names.
//
// Names follow the pattern {prefix}-{kind}[-{role}]-{hash} where hash is a
// short sha256 digest of the enclosing scope. The same prefix and scope always
// yield the same names, which is what makes repeated runs idempotent. Each
// name is case-folded and truncated to the character set and length limits of
// its kind (storage accounts drop hyphens entirely).
package naming
