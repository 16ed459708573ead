package mcp

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type toolTimer struct{ calls int }

func (*toolTimer) RecordTruncationDuration(context.Context, string, float64) {}
func (*toolTimer) IncrementTruncations(context.Context, string)              {}
func (*toolTimer) IncrementTruncationErrors(context.Context, string)         {}
func (*toolTimer) AddTruncatedTables(context.Context, string, int)           {}
func (*toolTimer) IncrementSnifferRestarts(context.Context, string)          {}
func (t *toolTimer) RecordToolDuration(context.Context, float64)             { t.calls++ }

func TestToolCallHooks(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	timer := &toolTimer{}
	s := server.NewMCPServer("test", "0.1.0",
		server.WithToolCapabilities(true),
		server.WithHooks(ToolCallHooks(logger, tp.Tracer("test"), timer)),
	)
	s.AddTool(mcp.NewTool("ok"), func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("fine"), nil
	})
	s.AddTool(mcp.NewTool("broken"), func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultError("nope"), nil
	})

	callTool(t, s, "ok", nil)
	callTool(t, s, "broken", map[string]any{"connection": "app"})

	assert.Equal(t, 2, timer.calls)
	assert.Contains(t, logs.String(), `"mcp.tool":"ok"`)
	assert.Contains(t, logs.String(), `"mcp.tool":"broken"`)
	assert.Contains(t, logs.String(), `"db.connection":"app"`)
	assert.Contains(t, logs.String(), `"error":"nope"`)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assert.Equal(t, "tablespy.tool.ok", spans[0].Name)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
	assert.Equal(t, "nope", spans[1].Status.Description)
	assert.Contains(t, spans[1].Attributes, attribute.String("db.connection", "app"))
}
