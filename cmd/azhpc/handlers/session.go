package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/imamik/azhpc/internal/config"
	"github.com/imamik/azhpc/internal/platform/azure"
	"github.com/imamik/azhpc/internal/provisioning"
)

// SimulatedSubscription is used by --simulate runs without a subscription.
const SimulatedSubscription = "00000000-0000-0000-0000-000000000000"

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// findConfigFile looks for azhpc.yaml.
	findConfigFile = config.FindConfigFile

	// loadConfigFile reads a config file without validating it.
	loadConfigFile = config.LoadWithoutValidation

	// newCloudClient creates the cloud client of a run.
	newCloudClient = func(cfg *config.Config, simulate bool) (azure.CloudClient, error) {
		if simulate {
			return azure.NewFakeClient(cfg.SubscriptionID), nil
		}
		return azure.NewRealClient(cfg.SubscriptionID, cfg.TenantID)
	}

	// newLogger creates the process logger.
	newLogger = newZapLogger

	// writeFile writes data to a file (for testing injection).
	writeFile = os.WriteFile

	// stdout and stderr receive command output and prompts.
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr

	// stdin is read by the interactive remediation menu.
	stdin = os.Stdin
)

// newZapLogger logs to stderr. Verbose enables logr V(1) lines.
func newZapLogger(verbose bool) (logr.Logger, func(), error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.DisableStacktrace = true
	if verbose {
		// logr V(n) maps to zap level -n
		zc.Level = zap.NewAtomicLevelAt(zapcore.Level(-1))
	}
	z, err := zc.Build()
	if err != nil {
		return logr.Discard(), func() {}, fmt.Errorf("failed to create logger: %w", err)
	}
	return zapr.NewLogger(z), func() { _ = z.Sync() }, nil
}

// loadConfig loads the config file, if any, and layers the flags on top.
// Every configuration problem is an ExitConfig error.
func loadConfig(opts Options) (*config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		found, err := findConfigFile()
		if err != nil {
			return nil, &ExitError{Code: ExitConfig, Err: err}
		}
		path = found
	}

	cfg := &config.Config{}
	if path != "" {
		loaded, err := loadConfigFile(path)
		if err != nil {
			return nil, &ExitError{Code: ExitConfig, Err: err}
		}
		cfg = loaded
	}

	opts.overlay(cfg)
	if opts.Simulate && cfg.SubscriptionID == "" && os.Getenv("AZURE_SUBSCRIPTION_ID") == "" {
		cfg.SubscriptionID = SimulatedSubscription
	}
	if err := cfg.Finalize(); err != nil {
		return nil, &ExitError{Code: ExitConfig, Err: err}
	}
	return cfg, nil
}

// session is the shared setup of the run commands.
type session struct {
	opts     Options
	cfg      *config.Config
	cloud    azure.CloudClient
	log      logr.Logger
	observer provisioning.Observer
	metrics  *provisioning.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	sync   func()
}

func newSession(ctx context.Context, opts Options) (*session, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	log, sync, err := newLogger(opts.Verbose)
	if err != nil {
		return nil, err
	}
	cloud, err := newCloudClient(cfg, opts.Simulate)
	if err != nil {
		sync()
		return nil, fmt.Errorf("failed to create cloud client: %w", err)
	}

	s := &session{
		opts:     opts,
		cfg:      cfg,
		cloud:    cloud,
		log:      log,
		observer: provisioning.NewLogObserver(log),
		metrics:  provisioning.NewMetrics(),
		sync:     sync,
	}
	if opts.Timeout > 0 {
		s.ctx, s.cancel = context.WithTimeout(ctx, opts.Timeout)
	} else {
		s.ctx, s.cancel = context.WithCancel(ctx)
	}
	return s, nil
}

// runContext creates the context of one pipeline run.
func (s *session) runContext() *provisioning.RunContext {
	return provisioning.NewRunContext(s.ctx, s.cfg, s.cloud,
		provisioning.WithObserver(s.observer),
		provisioning.WithMetrics(s.metrics),
	)
}

// close writes the metrics textfile and flushes the logger.
func (s *session) close() error {
	defer s.sync()
	defer s.cancel()
	if s.opts.MetricsTextfile == "" {
		return nil
	}
	if err := s.metrics.WriteTextfile(s.opts.MetricsTextfile); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// finish closes s and joins a close error into err.
func (s *session) finish(err error) error {
	if cerr := s.close(); cerr != nil {
		return errors.Join(err, cerr)
	}
	return err
}
