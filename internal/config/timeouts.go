package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/imamik/azhpc/internal/resource"
	"github.com/imamik/azhpc/internal/util/retry"
)

// Retry policy classes.
const (
	ClassCreate      = "create"
	ClassPropagation = "propagation"
	ClassRevert      = "revert"
	ClassDelete      = "delete"
)

// DefaultRetry returns the default retry policy classes.
func DefaultRetry() RetryConfig {
	return RetryConfig{
		Create:      PolicyConfig{MaxAttempts: 5, BaseDelay: 2 * time.Second, Multiplier: 2, MaxDelay: 30 * time.Second},
		Propagation: PolicyConfig{MaxAttempts: 6, BaseDelay: 5 * time.Second, Multiplier: 2, MaxDelay: 60 * time.Second},
		Revert:      PolicyConfig{MaxAttempts: 3, BaseDelay: 2 * time.Second, Multiplier: 2, MaxDelay: 10 * time.Second},
		Delete:      PolicyConfig{MaxAttempts: 3, BaseDelay: 5 * time.Second, Multiplier: 2, MaxDelay: 30 * time.Second},
	}
}

// ApplyEnv overrides retry settings from environment variables.
// If an environment variable is not set or invalid, the current value is kept.
//
// Environment Variables (CLASS is CREATE, PROPAGATION, REVERT or DELETE):
//   - AZHPC_RETRY_<CLASS>_MAX_ATTEMPTS
//   - AZHPC_RETRY_<CLASS>_BASE_DELAY
//   - AZHPC_RETRY_<CLASS>_MULTIPLIER
//   - AZHPC_RETRY_<CLASS>_MAX_DELAY
func (r *RetryConfig) ApplyEnv() {
	for class, pc := range r.classes() {
		env := "AZHPC_RETRY_" + strings.ToUpper(class) + "_"
		pc.MaxAttempts = parseInt(env+"MAX_ATTEMPTS", pc.MaxAttempts)
		pc.BaseDelay = parseDuration(env+"BASE_DELAY", pc.BaseDelay)
		pc.Multiplier = parseFloat(env+"MULTIPLIER", pc.Multiplier)
		pc.MaxDelay = parseDuration(env+"MAX_DELAY", pc.MaxDelay)
	}
}

func (r *RetryConfig) classes() map[string]*PolicyConfig {
	return map[string]*PolicyConfig{
		ClassCreate:      &r.Create,
		ClassPropagation: &r.Propagation,
		ClassRevert:      &r.Revert,
		ClassDelete:      &r.Delete,
	}
}

func (r *RetryConfig) applyDefaults() {
	defaults := DefaultRetry()
	def := defaults.classes()
	for class, pc := range r.classes() {
		d := def[class]
		if pc.MaxAttempts == 0 {
			pc.MaxAttempts = d.MaxAttempts
		}
		if pc.BaseDelay == 0 {
			pc.BaseDelay = d.BaseDelay
		}
		if pc.Multiplier == 0 {
			pc.Multiplier = d.Multiplier
		}
		if pc.MaxDelay == 0 {
			pc.MaxDelay = d.MaxDelay
		}
	}
}

// Policies are the named retry policies of a run.
type Policies struct {
	Create      retry.Policy
	Propagation retry.Policy
	Revert      retry.Policy
	Delete      retry.Policy
}

// Policies builds the executor policies from the configuration. Every class
// retries the Transient error category.
func (r RetryConfig) Policies() Policies {
	build := func(name string, pc PolicyConfig) retry.Policy {
		return retry.Policy{
			Name:        name,
			MaxAttempts: pc.MaxAttempts,
			BaseDelay:   pc.BaseDelay,
			Multiplier:  pc.Multiplier,
			MaxDelay:    pc.MaxDelay,
			Retryable:   resource.IsRetryable,
		}
	}
	return Policies{
		Create:      build(ClassCreate, r.Create),
		Propagation: build(ClassPropagation, r.Propagation),
		Revert:      build(ClassRevert, r.Revert),
		Delete:      build(ClassDelete, r.Delete),
	}
}

// For returns the policy of a class.
func (p Policies) For(class string) (retry.Policy, error) {
	switch class {
	case ClassCreate:
		return p.Create, nil
	case ClassPropagation:
		return p.Propagation, nil
	case ClassRevert:
		return p.Revert, nil
	case ClassDelete:
		return p.Delete, nil
	}
	return retry.Policy{}, fmt.Errorf("unknown retry policy class %q", class)
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}

func parseFloat(envVar string, defaultVal float64) float64 {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}

	return f
}
