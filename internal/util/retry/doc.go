// Package retry provides exponential backoff retry logic for transient failures.
//
// An [Executor] runs an operation under a [Policy]: bounded attempts, a
// deterministic delay schedule (BaseDelay * Multiplier^(n-1), capped), and a
// Retryable predicate. It is used for Azure Resource Manager calls that fail
// while identities and role assignments propagate.
package retry
