package mcp

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/guillermoBallester/tablespy/internal/core/port"
)

// toolCall is the in-flight state of one tools/call request.
type toolCall struct {
	tool       string
	connection string
	start      time.Time
	span       trace.Span
}

// ToolCallHooks logs every tool call with the connection it targets, times
// it and wraps it in a span.
func ToolCallHooks(logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.Hooks {
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}

	hooks := &server.Hooks{}
	var inflight sync.Map // request id -> *toolCall

	hooks.AddBeforeCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest) {
		call := &toolCall{
			tool:       req.Params.Name,
			connection: req.GetString("connection", ""),
			start:      time.Now(),
		}
		if tracer != nil {
			attrs := []attribute.KeyValue{attribute.String("mcp.tool", call.tool)}
			if call.connection != "" {
				attrs = append(attrs, attribute.String("db.connection", call.connection))
			}
			_, call.span = tracer.Start(ctx, "tablespy.tool."+call.tool, trace.WithAttributes(attrs...))
		}
		inflight.Store(id, call)
	})

	finish := func(ctx context.Context, id any, err error) {
		v, ok := inflight.LoadAndDelete(id)
		if !ok {
			return
		}
		call := v.(*toolCall)
		elapsed := time.Since(call.start)

		attrs := []slog.Attr{
			slog.String("rpc.method", "tools/call"),
			slog.String("mcp.tool", call.tool),
			slog.Duration("duration", elapsed),
		}
		if call.connection != "" {
			attrs = append(attrs, slog.String("db.connection", call.connection))
		}
		level := slog.LevelInfo
		if err != nil {
			level = slog.LevelError
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		logger.LogAttrs(ctx, level, "tool call", attrs...)

		inst.RecordToolDuration(ctx, float64(elapsed.Milliseconds()))

		if call.span == nil {
			return
		}
		if err != nil {
			call.span.RecordError(err)
			call.span.SetStatus(codes.Error, err.Error())
		}
		call.span.End()
	}

	hooks.AddAfterCallTool(func(ctx context.Context, id any, _ *mcp.CallToolRequest, result any) {
		finish(ctx, id, resultError(result))
	})

	hooks.AddOnError(func(ctx context.Context, id any, _ mcp.MCPMethod, _ any, err error) {
		finish(ctx, id, err)
	})

	return hooks
}

// resultError turns an error tool result into an error carrying its text.
func resultError(result any) error {
	r, ok := result.(*mcp.CallToolResult)
	if !ok || !r.IsError {
		return nil
	}
	for _, c := range r.Content {
		if text, ok := c.(mcp.TextContent); ok {
			return errors.New(text.Text)
		}
	}
	return errors.New("tool returned an error")
}
