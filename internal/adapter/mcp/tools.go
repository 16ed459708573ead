package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/guillermoBallester/tablespy/internal/core/domain"
	"github.com/guillermoBallester/tablespy/internal/core/port"
	"github.com/guillermoBallester/tablespy/internal/core/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server metadata
const serverName = "tablespy"

// Tool descriptions
const (
	descListConnections = "List the configured database connections with their driver, " +
		"whether they take part in automatic truncation, and the collector mode of loaded sniffers."

	descDirtyTables = "List the tables of a connection that received inserts since the last truncation. " +
		"Starts the connection's sniffer if needed."

	descListTables = "List the tables a connection's sniffer tracks, excluding migration logs and the collector."

	descListTriggers = "List the triggers the sniffer installed on a connection."

	descTruncate = "Truncate the dirty tables. Without connections the current truncation policy decides " +
		"which connections are cleaned; with connections exactly those are cleaned. " +
		"Returns the truncated tables per connection."

	descRestartSniffer = "Drop and recreate a connection's collector and triggers, picking up tables created since it started."

	descSetMode = "Switch a connection's collector between a session-scoped temporary table (temp) " +
		"and a regular table (perm). Dirty tables are kept."

	descConnectionParam  = "Name of the connection"
	descConnectionsParam = "Comma-separated connection names, or * for every active connection (optional)"
)

// connectionConfigs is implemented by registries that expose configuration
// without opening connections.
type connectionConfigs interface {
	Config(name string) (port.ConnectionConfig, bool)
}

type connectionInfo struct {
	Name   string `json:"name"`
	Driver string `json:"driver,omitempty"`
	Active bool   `json:"active"`
	Loaded bool   `json:"loaded"`
	Mode   string `json:"mode,omitempty"`
}

type tablesResult struct {
	Connection string   `json:"connection"`
	Tables     []string `json:"tables"`
}

type triggersResult struct {
	Connection string   `json:"connection"`
	Mode       string   `json:"mode"`
	Triggers   []string `json:"triggers"`
}

func RegisterTools(s *server.MCPServer, svc Services) {
	s.AddTool(
		mcp.NewTool("list_connections",
			mcp.WithDescription(descListConnections),
		),
		listConnectionsHandler(svc),
	)

	s.AddTool(
		mcp.NewTool("dirty_tables",
			mcp.WithDescription(descDirtyTables),
			mcp.WithString("connection",
				mcp.Required(),
				mcp.Description(descConnectionParam),
			),
		),
		dirtyTablesHandler(svc.Sniffers),
	)

	s.AddTool(
		mcp.NewTool("list_tables",
			mcp.WithDescription(descListTables),
			mcp.WithString("connection",
				mcp.Required(),
				mcp.Description(descConnectionParam),
			),
		),
		listTablesHandler(svc.Sniffers),
	)

	s.AddTool(
		mcp.NewTool("list_triggers",
			mcp.WithDescription(descListTriggers),
			mcp.WithString("connection",
				mcp.Required(),
				mcp.Description(descConnectionParam),
			),
		),
		listTriggersHandler(svc.Sniffers),
	)

	s.AddTool(
		mcp.NewTool("truncate",
			mcp.WithDescription(descTruncate),
			mcp.WithString("connections",
				mcp.Description(descConnectionsParam),
			),
		),
		truncateHandler(svc.Truncation),
	)

	s.AddTool(
		mcp.NewTool("restart_sniffer",
			mcp.WithDescription(descRestartSniffer),
			mcp.WithString("connection",
				mcp.Required(),
				mcp.Description(descConnectionParam),
			),
		),
		restartSnifferHandler(svc.Sniffers),
	)

	s.AddTool(
		mcp.NewTool("set_mode",
			mcp.WithDescription(descSetMode),
			mcp.WithString("connection",
				mcp.Required(),
				mcp.Description(descConnectionParam),
			),
			mcp.WithString("mode",
				mcp.Required(),
				mcp.Description("Collector mode"),
				mcp.Enum("temp", "perm"),
			),
		),
		setModeHandler(svc.Sniffers),
	)
}

func listConnectionsHandler(svc Services) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		active := svc.Connections.ActiveConnections()
		loaded := svc.Sniffers.Loaded()
		configs, _ := svc.Connections.(connectionConfigs)

		infos := make([]connectionInfo, 0)
		for _, name := range svc.Connections.Names() {
			info := connectionInfo{
				Name:   name,
				Active: slices.Contains(active, name),
				Loaded: slices.Contains(loaded, name),
			}
			if configs != nil {
				if cfg, ok := configs.Config(name); ok {
					info.Driver = cfg.Driver.String()
				}
			}
			if info.Loaded {
				if ts, err := svc.Sniffers.GetTriggerSniffer(ctx, name); err == nil {
					info.Mode = ts.Mode().String()
				}
			}
			infos = append(infos, info)
		}

		return jsonResult(infos)
	}
}

func dirtyTablesHandler(sniffers *service.SnifferRegistry) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, ok := request.GetArguments()["connection"].(string)
		if !ok || name == "" {
			return mcp.NewToolResultError("connection is required"), nil
		}

		s, err := sniffers.Get(ctx, name)
		if err != nil {
			return toolError("failed to load sniffer", err), nil
		}
		tables, err := s.DirtyTables(ctx)
		if err != nil {
			return toolError("failed to read dirty tables", err), nil
		}

		return jsonResult(tablesResult{Connection: name, Tables: tables})
	}
}

func listTablesHandler(sniffers *service.SnifferRegistry) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, ok := request.GetArguments()["connection"].(string)
		if !ok || name == "" {
			return mcp.NewToolResultError("connection is required"), nil
		}

		s, err := sniffers.Get(ctx, name)
		if err != nil {
			return toolError("failed to load sniffer", err), nil
		}
		tables, err := s.TrackedTables(ctx, true)
		if err != nil {
			return toolError("failed to list tables", err), nil
		}

		return jsonResult(tablesResult{Connection: name, Tables: tables})
	}
}

func listTriggersHandler(sniffers *service.SnifferRegistry) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, ok := request.GetArguments()["connection"].(string)
		if !ok || name == "" {
			return mcp.NewToolResultError("connection is required"), nil
		}

		ts, err := sniffers.GetTriggerSniffer(ctx, name)
		if err != nil {
			return toolError("failed to load sniffer", err), nil
		}
		triggers, err := ts.Triggers(ctx)
		if err != nil {
			return toolError("failed to list triggers", err), nil
		}

		return jsonResult(triggersResult{Connection: name, Mode: ts.Mode().String(), Triggers: triggers})
	}
}

func truncateHandler(truncation *service.TruncationService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, _ := request.GetArguments()["connections"].(string)

		report, err := truncation.Truncate(ctx, domain.SplitList(raw)...)
		if err != nil {
			return toolError("truncation failed", err), nil
		}

		return jsonResult(report)
	}
}

func restartSnifferHandler(sniffers *service.SnifferRegistry) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, ok := request.GetArguments()["connection"].(string)
		if !ok || name == "" {
			return mcp.NewToolResultError("connection is required"), nil
		}

		ts, err := sniffers.GetTriggerSniffer(ctx, name)
		if err != nil {
			return toolError("failed to load sniffer", err), nil
		}
		if err := ts.Restart(ctx); err != nil {
			return toolError("restart failed", err), nil
		}

		return triggersAfterChange(ctx, name, ts)
	}
}

func setModeHandler(sniffers *service.SnifferRegistry) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, ok := request.GetArguments()["connection"].(string)
		if !ok || name == "" {
			return mcp.NewToolResultError("connection is required"), nil
		}
		raw, _ := request.GetArguments()["mode"].(string)
		if raw == "" {
			return mcp.NewToolResultError("mode is required"), nil
		}
		mode, err := domain.ParseMode(raw)
		if err != nil {
			return toolError("invalid mode", err), nil
		}

		ts, err := sniffers.GetTriggerSniffer(ctx, name)
		if err != nil {
			return toolError("failed to load sniffer", err), nil
		}
		if err := ts.SetMode(ctx, mode); err != nil {
			return toolError("mode switch failed", err), nil
		}

		return triggersAfterChange(ctx, name, ts)
	}
}

func triggersAfterChange(ctx context.Context, name string, ts port.TriggerSniffer) (*mcp.CallToolResult, error) {
	triggers, err := ts.Triggers(ctx)
	if err != nil {
		return toolError("failed to list triggers", err), nil
	}
	return jsonResult(triggersResult{Connection: name, Mode: ts.Mode().String(), Triggers: triggers})
}

// toolError points unknown connection names at list_connections.
func toolError(action string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, domain.ErrUnknownConnection):
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v (see list_connections)", action, err))
	default:
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", action, err))
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
