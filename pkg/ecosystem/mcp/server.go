// Package mcp exposes envrun documents to agents over the Model Context
// Protocol. Invocations always run in batch mode: answers must be supplied
// up front.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ormasoftchile/envrun/pkg/runtime"
)

// NewServer creates an MCP server with the envrun tools registered. opts
// are applied to every invocation.
func NewServer(version string, opts ...runtime.Option) *server.MCPServer {
	s := server.NewMCPServer(
		"envrun",
		version,
		server.WithToolCapabilities(true),
	)
	h := &Handlers{Options: opts}

	s.AddTool(
		mcp.NewTool("envrun/validate",
			mcp.WithDescription("Validate an envrun document"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the document")),
		),
		HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("envrun/list_scripts",
			mcp.WithDescription("List the scripts of an envrun document"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the document")),
		),
		HandleListScripts,
	)

	s.AddTool(
		mcp.NewTool("envrun/list_envs",
			mcp.WithDescription("List the environment groups of an envrun document"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the document")),
		),
		HandleListEnvs,
	)

	s.AddTool(
		mcp.NewTool("envrun/invoke",
			mcp.WithDescription("Run a script non-interactively and return its result with a redacted command transcript"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the document")),
			mcp.WithString("script", mcp.Required(), mcp.Description("Script path, segments separated by '/' or spaces")),
			mcp.WithArray("envs", mcp.Description("Environment groups to apply, in order"), mcp.WithStringItems()),
			mcp.WithObject("answers", mcp.Description("Answers to prompts, keyed by variable name")),
		),
		h.HandleInvoke,
	)

	s.AddTool(
		mcp.NewTool("envrun/schema",
			mcp.WithDescription("Export the envrun document JSON Schema"),
		),
		HandleSchema,
	)

	return s
}
