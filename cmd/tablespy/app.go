package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/guillermoBallester/tablespy/internal/adapter/connection"
	"github.com/guillermoBallester/tablespy/internal/adapter/policy"
	"github.com/guillermoBallester/tablespy/internal/audit"
	"github.com/guillermoBallester/tablespy/internal/config"
	"github.com/guillermoBallester/tablespy/internal/core/port"
	"github.com/guillermoBallester/tablespy/internal/core/service"
	"github.com/guillermoBallester/tablespy/internal/telemetry"
)

// app holds the services shared by every command.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	otel       *telemetry.Provider
	tracer     trace.Tracer
	inst       port.Instrumentation
	auditor    port.TruncationAuditor
	policy     *policy.Policy
	store      port.PolicyStore
	conns      *connection.Registry
	sniffers   *service.SnifferRegistry
	truncation *service.TruncationService
}

// setup loads the configuration from the command's flags and wires the
// services. The caller must close the returned app.
func setup(cmd *cobra.Command) (*app, error) {
	overrides, err := overridesFromFlags(cmd.Flags())
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(overrides)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return newApp(cmd.Context(), cfg, newLogger(cfg, cmd.ErrOrStderr()))
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		tracer:  telemetry.NoopTracer(),
		inst:    telemetry.NoopInstruments(),
		auditor: port.NoopAuditor{},
	}
	defer func() {
		if err != nil {
			a.Close(context.WithoutCancel(ctx))
		}
	}()

	if cfg.OTelEnabled {
		names := make([]string, 0, len(cfg.Connections))
		for _, c := range cfg.Connections {
			names = append(names, c.Name)
		}
		if a.otel, err = telemetry.Init(ctx, "tablespy", version, names...); err != nil {
			return nil, fmt.Errorf("initializing telemetry: %w", err)
		}
		a.tracer = telemetry.Tracer()
		a.inst = telemetry.NewInstruments()
		logger.Info("opentelemetry enabled")
	}

	if cfg.AuditLog != "" {
		fa, err := audit.NewFileAuditor(cfg.AuditLog)
		if err != nil {
			return nil, fmt.Errorf("opening audit log: %w", err)
		}
		a.auditor = fa
		logger.Info("audit log enabled", slog.String("path", cfg.AuditLog))
	}

	// A policy file, when given, is the policy source; otherwise the
	// TABLESPY_*_TRUNCATION variables are.
	a.store = policy.NewEnvStore()
	if cfg.PolicyFile != "" {
		if a.policy, err = policy.LoadFromFile(cfg.PolicyFile); err != nil {
			return nil, fmt.Errorf("loading policy: %w", err)
		}
		a.store = policy.NewMemoryStore(a.policy.Truncation)
		logger.Info("policy loaded", slog.String("file", cfg.PolicyFile))
	}

	if a.conns, err = connection.NewRegistry(cfg.Connections, logger); err != nil {
		return nil, fmt.Errorf("configuring connections: %w", err)
	}

	a.sniffers = service.NewSnifferRegistry(a.conns, logger)
	connection.RegisterSniffers(a.sniffers, logger, a.inst)

	a.truncation = service.NewTruncationService(a.sniffers, a.conns, a.store, a.auditor, logger, a.tracer, a.inst)

	logger.Debug("tablespy ready",
		slog.String("version", version),
		slog.Any("connections", a.conns.Names()),
		slog.Any("active", a.conns.ActiveConnections()),
	)
	return a, nil
}

// Close releases connections, the audit log and telemetry. Triggers and
// collectors stay installed; teardown removes them.
func (a *app) Close(ctx context.Context) {
	if a.conns != nil {
		a.conns.Close()
	}
	var errs []error
	if a.auditor != nil {
		errs = append(errs, a.auditor.Close())
	}
	errs = append(errs, a.otel.Shutdown(ctx))
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("shutdown incomplete", slog.String("error", err.Error()))
	}
}

// targets returns args, or every active connection when args is empty.
func (a *app) targets(args []string) []string {
	if len(args) == 0 {
		return a.conns.ActiveConnections()
	}
	return args
}
