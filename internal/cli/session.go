package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/phasetrack/internal/config"
	"github.com/roach88/phasetrack/internal/service"
	"github.com/roach88/phasetrack/internal/store"
)

// session is everything a command needs to talk to the store.
type session struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *store.Store
	svc      *service.Service
	registry *prometheus.Registry
	out      *OutputFormatter
	in       io.Reader
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// loadConfig resolves the effective configuration: file, environment,
// then flags.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return config.Config{}, err
	}
	if o.Driver != "" {
		cfg.Storage.Driver = o.Driver
	}
	if o.Database != "" {
		cfg.Storage.DSN = o.Database
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func openSession(ctx context.Context, cmd *cobra.Command, o *RootOptions) (*session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: "failed to load config", Err: err, ErrCode: ErrCodeConfig}
	}

	// Configure logging based on config and verbose flag
	logger := cfg.NewLogger(cmd.ErrOrStderr(), o.Verbose)
	slog.SetDefault(logger)

	hasher, err := cfg.Hasher()
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: "invalid secrets config", Err: err, ErrCode: ErrCodeConfig}
	}
	policy, err := cfg.TransitionPolicy()
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: "invalid process config", Err: err, ErrCode: ErrCodeConfig}
	}

	logger.Debug("opening database", "driver", cfg.Storage.Driver)
	st, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: "failed to open database", Err: err, ErrCode: ErrCodeStoreOpen}
	}

	registry := prometheus.NewRegistry()
	metrics, err := service.NewMetrics(registry)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to register metrics", err)
	}

	svc := service.New(st,
		service.WithLogger(logger),
		service.WithHasher(hasher),
		service.WithTransitionPolicy(policy),
		service.WithMetrics(metrics),
	)

	return &session{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		svc:      svc,
		registry: registry,
		out:      o.formatter(cmd),
		in:       cmd.InOrStdin(),
	}, nil
}

// close flushes metrics when requested and closes the store.
func (s *session) close(metricsFile string) error {
	var errs []error
	if metricsFile != "" {
		if err := prometheus.WriteToTextfile(metricsFile, s.registry); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// withSession adapts fn into a cobra RunE that opens a session, runs fn
// and reports any error through the formatter.
func (o *RootOptions) withSession(fn func(ctx context.Context, s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		f := o.formatter(cmd)

		s, err := openSession(ctx, cmd, o)
		if err != nil {
			return f.Fail(err)
		}
		defer func() {
			if closeErr := s.close(o.MetricsFile); closeErr != nil {
				s.logger.Error("error closing session", "error", closeErr)
			}
		}()

		if err := fn(ctx, s, args); err != nil {
			return f.Fail(err)
		}
		return nil
	}
}
