package handlers

import (
	"fmt"
	"time"

	"github.com/imamik/azhpc/internal/config"
)

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// Options holds the flag values of the run commands. Empty values leave
// the configuration file untouched.
type Options struct {
	ConfigPath string

	Prefix        string
	Location      string
	AdminUsername string
	AdminSSHKey   string
	StorageAuth   string

	RemediationCode       string
	Remediation           string
	CreatePrivateEndpoint bool
	RevertAfter           time.Duration
	ForceFresh            bool

	Simulate        bool
	Timeout         time.Duration
	Output          string
	MetricsTextfile string
	Verbose         bool
}

// Validate checks the options that do not depend on the configuration.
func (o Options) Validate() error {
	switch o.Output {
	case "", OutputText, OutputJSON:
	default:
		return &ExitError{Code: ExitConfig, Err: fmt.Errorf("unknown output format %q, use %s or %s", o.Output, OutputText, OutputJSON)}
	}
	if o.Timeout < 0 {
		return &ExitError{Code: ExitConfig, Err: fmt.Errorf("timeout must not be negative")}
	}
	return nil
}

// overlay applies the flags set in o on top of cfg.
func (o Options) overlay(cfg *config.Config) {
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setString(&cfg.Prefix, o.Prefix)
	setString(&cfg.Location, o.Location)
	setString(&cfg.AdminUsername, o.AdminUsername)
	setString(&cfg.AdminSSHKey, o.AdminSSHKey)
	if o.StorageAuth != "" {
		cfg.StorageAuth = config.StorageAuthMode(o.StorageAuth)
	}

	setString(&cfg.Remediation.Code, o.RemediationCode)
	setString(&cfg.Remediation.Choice, o.Remediation)
	if o.CreatePrivateEndpoint {
		cfg.Remediation.CreatePrivateEndpoint = true
	}
	if o.RevertAfter > 0 {
		cfg.Remediation.RevertAfter = o.RevertAfter
	}
	if o.ForceFresh {
		cfg.ForceFresh = true
	}
}
