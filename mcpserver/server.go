// Package mcpserver exposes part of the §6.1 query API (load_file,
// diagnose_file, member_info_map, list_globals) as MCP tools over a live
// engine.Engine; there are no type_of or find_decl tools,
// grounded on odvcencio-mane's use of github.com/mark3labs/mcp-go as the
// real MCP SDK in place of the teacher's hand-rolled mcp/protocol.go
// JSON-RPC framing — LSP/MCP transport is explicitly an external
// collaborator per spec §1, so this package is a thin binding over the
// engine, not a reimplementation of the transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/oxhq/emmylua-core/diagnostics"
	"github.com/oxhq/emmylua-core/engine"
	"github.com/oxhq/emmylua-core/types"
)

func typeDeclId(name string) types.TypeDeclId { return types.TypeDeclId(name) }

// New builds an MCP server with the diagnose_file, member_info_map and
// list_globals query tools plus the load_file operation every query needs a
// live file id to run against.
func New(eng *engine.Engine) *server.MCPServer {
	s := server.NewMCPServer("emmylua-core", "0.1.0")

	s.AddTool(mcp.NewTool("load_file",
		mcp.WithDescription("Read a Lua source file from disk and (re)index it, returning its file id."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Filesystem path to the Lua file.")),
	), loadFileHandler(eng))

	s.AddTool(mcp.NewTool("diagnose_file",
		mcp.WithDescription("Run every enabled diagnostic checker over a previously loaded file."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Filesystem path of a previously loaded file.")),
	), diagnoseFileHandler(eng))

	s.AddTool(mcp.NewTool("member_info_map",
		mcp.WithDescription("List every field reachable on a named type (class/alias/enum), resolved through supertypes and alias-unfolding."),
		mcp.WithString("type_name", mcp.Required(), mcp.Description("The dotted TypeDecl name, e.g. a ---@class name.")),
	), memberInfoMapHandler(eng))

	s.AddTool(mcp.NewTool("list_globals",
		mcp.WithDescription("List every bare global name written anywhere across every currently loaded file, with its first writer's location."),
	), listGlobalsHandler(eng))

	return s
}

// Serve runs s over stdio, the transport every MCP client (editor
// extension, agent harness) expects by default.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func loadFileHandler(eng *engine.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		ids, err := eng.LoadFiles(ctx, []string{path})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"file_id": ids[0]})
	}
}

func diagnoseFileHandler(eng *engine.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		uri := "file://" + path
		file, ok := eng.Driver.VFS().GetFileId(uri)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("%s is not loaded; call load_file first", path)), nil
		}
		diags, err := eng.Diagnose(file)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		out := make([]map[string]any, len(diags))
		for i, d := range diags {
			out[i] = diagnosticToMap(d)
		}
		return jsonResult(out)
	}
}

func memberInfoMapHandler(eng *engine.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("type_name")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		decl := eng.Driver.ResolveTypeDecl(typeDeclId(name))
		if decl == nil {
			return mcp.NewToolResultError(fmt.Sprintf("no type decl named %q", name)), nil
		}
		fields := make([]string, 0, len(decl.Fields))
		for key := range decl.Fields {
			fields = append(fields, key.Name)
		}
		return jsonResult(map[string]any{"type_name": name, "fields": fields, "supers": decl.Supers})
	}
}

func listGlobalsHandler(eng *engine.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out := map[string]any{}
		for name, write := range eng.Driver.Globals() {
			uri, _ := eng.Driver.VFS().URI(write.File)
			out[name] = map[string]any{"file": uri, "offset": write.Start}
		}
		return jsonResult(out)
	}
}

func diagnosticToMap(d diagnostics.Diagnostic) map[string]any {
	return map[string]any{
		"code":     d.Code,
		"severity": severityName(d.Severity),
		"start":    d.Range.Start,
		"end":      d.Range.End,
		"message":  d.Message,
	}
}

func severityName(s diagnostics.Severity) string {
	switch s {
	case diagnostics.SeverityError:
		return "error"
	case diagnostics.SeverityWarning:
		return "warning"
	case diagnostics.SeverityInformation:
		return "information"
	case diagnostics.SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcpserver: marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
