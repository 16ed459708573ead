package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNoopTracer(t *testing.T) {
	tracer := NoopTracer()
	assert.NotNil(t, tracer)

	_, span := tracer.Start(context.Background(), "test")
	assert.NotNil(t, span)
	span.End()
}

func TestNoopInstruments(t *testing.T) {
	inst := NoopInstruments()
	require.NotNil(t, inst)

	// Should not panic.
	ctx := context.Background()
	inst.IncrementTruncations(ctx, "test")
	inst.RecordTruncationDuration(ctx, "test", 12.5)
	inst.IncrementTruncationErrors(ctx, "test")
	inst.AddTruncatedTables(ctx, "test", 3)
	inst.IncrementSnifferRestarts(ctx, "test")
	inst.RecordToolDuration(ctx, 1)
}

func TestProvider_Shutdown_Nil(t *testing.T) {
	var p *Provider
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSpanRecording(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()
	tracer := tp.Tracer("test")

	ctx := context.Background()
	_, span := tracer.Start(ctx, "truncate")
	span.SetAttributes(attribute.String("db.connection", "test"))
	span.End()

	require.NoError(t, tp.ForceFlush(ctx))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "truncate", spans[0].Name)
}

func TestInstruments_RecordPerConnection(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	inst := newInstrumentsFromMeter(mp.Meter("test"))

	ctx := context.Background()
	inst.IncrementTruncations(ctx, "test")
	inst.IncrementTruncations(ctx, "test")
	inst.IncrementTruncations(ctx, "legacy")
	inst.AddTruncatedTables(ctx, "test", 4)
	inst.IncrementSnifferRestarts(ctx, "legacy")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	sums := map[string]map[string]int64{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		data, ok := m.Data.(metricdata.Sum[int64])
		require.True(t, ok, m.Name)
		sums[m.Name] = map[string]int64{}
		for _, dp := range data.DataPoints {
			conn, _ := dp.Attributes.Value("db.connection")
			sums[m.Name][conn.AsString()] = dp.Value
		}
	}

	assert.Equal(t, map[string]int64{"test": 2, "legacy": 1}, sums["tablespy.truncation.count"])
	assert.Equal(t, map[string]int64{"test": 4}, sums["tablespy.truncation.tables"])
	assert.Equal(t, map[string]int64{"legacy": 1}, sums["tablespy.sniffer.restarts"])
}
