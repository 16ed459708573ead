package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/guillermoBallester/tablespy/internal/core/domain"
	"github.com/guillermoBallester/tablespy/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TruncationService resolves the current policy and truncates the dirty
// tables of every selected connection.
type TruncationService struct {
	sniffers port.SnifferProvider
	conns    port.ConnectionRegistry
	store    port.PolicyStore
	auditor  port.TruncationAuditor
	logger   *slog.Logger
	tracer   trace.Tracer
	inst     port.Instrumentation
}

func NewTruncationService(sniffers port.SnifferProvider, conns port.ConnectionRegistry, store port.PolicyStore, auditor port.TruncationAuditor, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *TruncationService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	if auditor == nil {
		auditor = port.NoopAuditor{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TruncationService{
		sniffers: sniffers,
		conns:    conns,
		store:    store,
		auditor:  auditor,
		logger:   logger,
		tracer:   tracer,
		inst:     inst,
	}
}

// Truncate cleans the connections selected by the policy, or exactly the
// manual ones when given. A disabled policy performs no database call.
// A failing connection does not stop the others; all failures are joined.
func (s *TruncationService) Truncate(ctx context.Context, manual ...string) (domain.Report, error) {
	ctx, span := s.tracer.Start(ctx, "TruncationService.Truncate",
		trace.WithAttributes(attribute.StringSlice("tablespy.manual", manual)),
	)
	defer span.End()

	policy, err := s.store.Policy(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Report{}, fmt.Errorf("reading truncation policy: %w", err)
	}

	active := s.conns.ActiveConnections()
	explicit := len(manual) > 0
	manual = domain.ExpandAll(manual, active)

	res, err := policy.Resolve(active, manual)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Report{}, err
	}

	if res.Disabled {
		s.logger.DebugContext(ctx, "truncation disabled")
		span.SetAttributes(attribute.Bool("tablespy.disabled", true))
		return domain.Report{Disabled: true, Connections: []domain.ConnectionReport{}}, nil
	}

	report := domain.Report{Manual: res.Manual || explicit, Connections: []domain.ConnectionReport{}}
	if explicit && len(manual) == 0 {
		return report, nil
	}

	runID := uuid.NewString()
	var errs []error
	for _, name := range res.Connections {
		tables, err := s.truncateConnection(ctx, runID, name, report.Manual)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		report.Connections = append(report.Connections, domain.ConnectionReport{Name: name, Tables: tables})
	}

	span.SetAttributes(attribute.StringSlice("tablespy.connections", report.Names()))
	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	}
	return report, nil
}

func (s *TruncationService) truncateConnection(ctx context.Context, runID, name string, manual bool) ([]string, error) {
	start := time.Now()

	var tables []string
	sniffer, err := s.sniffers.Get(ctx, name)
	if err == nil {
		tables, err = sniffer.TruncateDirtyTables(ctx)
	}
	durationMS := time.Since(start).Milliseconds()

	s.inst.RecordTruncationDuration(ctx, name, float64(durationMS))
	s.auditor.Record(ctx, port.AuditEntry{
		RunID:      runID,
		Connection: name,
		Tables:     tables,
		Manual:     manual,
		DurationMS: durationMS,
		Err:        err,
	})

	if err != nil {
		s.inst.IncrementTruncationErrors(ctx, name)
		s.logger.ErrorContext(ctx, "truncation failed",
			slog.String("db.connection", name),
			slog.String("error.type", "truncation_error"),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("truncating %q: %w", name, err)
	}

	s.inst.IncrementTruncations(ctx, name)
	s.inst.AddTruncatedTables(ctx, name, len(tables))
	s.logger.InfoContext(ctx, "tables truncated",
		slog.String("db.connection", name),
		slog.Any("tables", tables),
		slog.Int64("duration_ms", durationMS),
	)
	return tables, nil
}
