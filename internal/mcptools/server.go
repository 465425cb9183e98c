// Package mcptools exposes MOS detection, inspection, merging and story
// search as Model Context Protocol tools.
package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewMCPServer creates an MCP server with the four running-order tools
// registered.
func NewMCPServer(svc *Service) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "mosromgr",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "detect_message",
		Description: "Classify a MOS message: returns its kind (e.g. StoryInsert, EAItemMove), messageID and roID.",
	}, svc.detectTool)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "inspect_running_order",
		Description: "Summarize a roCreate message or merged running order: slug, start and end times, duration, stories and items.",
	}, svc.inspectTool)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "merge_messages",
		Description: "Merge every message of one running order (a roCreate, its deltas and optionally the roDelete) into the final running order XML.",
	}, svc.mergeTool)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "query_stories",
		Description: "Search indexed running orders for stories whose slug contains the query, ignoring case.",
	}, svc.queryStoriesTool)

	return server
}

// Handler serves the MCP tools over streamable HTTP.
func Handler(svc *Service) http.Handler {
	server := NewMCPServer(svc)
	return mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)
}

// RunStdio runs the MCP server on stdio transport, blocking until stdin is
// closed or the context is cancelled.
func RunStdio(ctx context.Context, svc *Service) error {
	return NewMCPServer(svc).Run(ctx, &mcp.StdioTransport{})
}
