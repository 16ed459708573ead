package port

import "context"

// Instrumentation records application-level metrics.
type Instrumentation interface {
	RecordTruncationDuration(ctx context.Context, connection string, ms float64)
	IncrementTruncations(ctx context.Context, connection string)
	IncrementTruncationErrors(ctx context.Context, connection string)
	AddTruncatedTables(ctx context.Context, connection string, n int)
	IncrementSnifferRestarts(ctx context.Context, connection string)
	RecordToolDuration(ctx context.Context, ms float64)
}

// NoopInstrumentation discards all metrics.
type NoopInstrumentation struct{}

func (NoopInstrumentation) RecordTruncationDuration(context.Context, string, float64) {}
func (NoopInstrumentation) IncrementTruncations(context.Context, string)              {}
func (NoopInstrumentation) IncrementTruncationErrors(context.Context, string)         {}
func (NoopInstrumentation) AddTruncatedTables(context.Context, string, int)           {}
func (NoopInstrumentation) IncrementSnifferRestarts(context.Context, string)          {}
func (NoopInstrumentation) RecordToolDuration(context.Context, float64)               {}
