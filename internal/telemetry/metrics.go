package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/guillermoBallester/tablespy/internal/core/port"
)

const meterName = "github.com/guillermoBallester/tablespy"

var _ port.Instrumentation = (*Instruments)(nil)

// Instruments holds pre-created OTel metric instruments. Per-connection
// measurements carry a db.connection attribute.
type Instruments struct {
	TruncationCount    metric.Int64Counter
	TruncationDuration metric.Float64Histogram
	TruncationErrors   metric.Int64Counter
	TruncatedTables    metric.Int64Counter
	SnifferRestarts    metric.Int64Counter
	ToolDuration       metric.Float64Histogram
}

// NewInstruments creates metric instruments from the global MeterProvider.
func NewInstruments() *Instruments {
	return newInstrumentsFromMeter(otel.Meter(meterName))
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	return newInstrumentsFromMeter(noop.NewMeterProvider().Meter(meterName))
}

func newInstrumentsFromMeter(meter metric.Meter) *Instruments {
	// OTel SDK returns noop instruments on error; safe to discard.
	truncationCount, _ := meter.Int64Counter("tablespy.truncation.count",
		metric.WithDescription("Total number of dirty table truncations"),
	)
	truncationDuration, _ := meter.Float64Histogram("tablespy.truncation.duration",
		metric.WithDescription("Dirty table truncation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	truncationErrors, _ := meter.Int64Counter("tablespy.truncation.errors",
		metric.WithDescription("Total number of failed truncations"),
	)
	truncatedTables, _ := meter.Int64Counter("tablespy.truncation.tables",
		metric.WithDescription("Total number of tables emptied"),
	)
	snifferRestarts, _ := meter.Int64Counter("tablespy.sniffer.restarts",
		metric.WithDescription("Total number of sniffer restarts"),
	)
	toolDuration, _ := meter.Float64Histogram("tablespy.tool.duration",
		metric.WithDescription("MCP tool call duration in milliseconds"),
		metric.WithUnit("ms"),
	)

	return &Instruments{
		TruncationCount:    truncationCount,
		TruncationDuration: truncationDuration,
		TruncationErrors:   truncationErrors,
		TruncatedTables:    truncatedTables,
		SnifferRestarts:    snifferRestarts,
		ToolDuration:       toolDuration,
	}
}

func connAttr(connection string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("db.connection", connection))
}

func (i *Instruments) RecordTruncationDuration(ctx context.Context, connection string, ms float64) {
	i.TruncationDuration.Record(ctx, ms, connAttr(connection))
}

func (i *Instruments) IncrementTruncations(ctx context.Context, connection string) {
	i.TruncationCount.Add(ctx, 1, connAttr(connection))
}

func (i *Instruments) IncrementTruncationErrors(ctx context.Context, connection string) {
	i.TruncationErrors.Add(ctx, 1, connAttr(connection))
}

func (i *Instruments) AddTruncatedTables(ctx context.Context, connection string, n int) {
	i.TruncatedTables.Add(ctx, int64(n), connAttr(connection))
}

func (i *Instruments) IncrementSnifferRestarts(ctx context.Context, connection string) {
	i.SnifferRestarts.Add(ctx, 1, connAttr(connection))
}

func (i *Instruments) RecordToolDuration(ctx context.Context, ms float64) {
	i.ToolDuration.Record(ctx, ms)
}
