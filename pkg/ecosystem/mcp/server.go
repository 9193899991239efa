// Package mcp exposes plan validation, execution, and healing as MCP tools
// so AI agents can drive environment setup.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates an MCP server with forge tools registered.
func NewServer(version string) *server.MCPServer {
	s := server.NewMCPServer(
		"forge",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("forge/validate",
			mcp.WithDescription("Validate an installation plan YAML file"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the plan YAML file")),
		),
		HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("forge/exec",
			mcp.WithDescription("Execute an installation plan (defaults to dry-run mode for safety)"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the plan YAML file")),
			mcp.WithString("mode", mcp.Description("Execution mode: real or dry-run")),
			mcp.WithString("memory", mcp.Description("Path to the tool memory store (default .forge/tools.json)")),
		),
		HandleExec,
	)

	s.AddTool(
		mcp.NewTool("forge/heal",
			mcp.WithDescription("Attempt to heal previously failed tools using remembered install commands"),
			mcp.WithString("memory", mcp.Description("Path to the tool memory store (default .forge/tools.json)")),
		),
		HandleHeal,
	)

	s.AddTool(
		mcp.NewTool("forge/schema",
			mcp.WithDescription("Export the installation plan JSON Schema"),
		),
		HandleSchema,
	)

	return s
}
