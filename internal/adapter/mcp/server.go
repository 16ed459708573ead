package mcp

import (
	"log/slog"

	"github.com/guillermoBallester/tablespy/internal/core/port"
	"github.com/guillermoBallester/tablespy/internal/core/service"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/trace"
)

// Services are the collaborators the tools call into.
type Services struct {
	Connections port.ConnectionRegistry
	Sniffers    *service.SnifferRegistry
	Truncation  *service.TruncationService
}

// NewServer creates an MCPServer with tools and logging hooks.
func NewServer(version string, svc Services, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(true),
		server.WithHooks(ToolCallHooks(logger, tracer, inst)),
	)

	RegisterTools(s, svc)

	return s
}
