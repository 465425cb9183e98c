package mcptools

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupServerClient wires an MCP server and client together using in-memory
// transports.
func setupServerClient(t *testing.T) *mcp.ClientSession {
	t.Helper()

	svc, _ := newService(t)
	server := NewMCPServer(svc)

	st, ct := mcp.NewInMemoryTransports()
	ctx := context.Background()

	_, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	require.NotNil(t, res.StructuredContent, "expected structured content")
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestMCPListTools(t *testing.T) {
	session := setupServerClient(t)

	result, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	names := make([]string, len(result.Tools))
	for i, tool := range result.Tools {
		names[i] = tool.Name
	}
	sort.Strings(names)
	assert.Equal(t, []string{"detect_message", "inspect_running_order", "merge_messages", "query_stories"}, names)
}

func TestMCPDetectMessage(t *testing.T) {
	session := setupServerClient(t)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "detect_message",
		Arguments: DetectMessageInput{XML: collection()[0].XML},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	out := decode[DetectMessageOutput](t, result)
	assert.Equal(t, "RunningOrderEnd", out.Kind)
	assert.Equal(t, 3, out.MessageID)
}

func TestMCPMergeThenQuery(t *testing.T) {
	session := setupServerClient(t)
	ctx := context.Background()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "merge_messages",
		Arguments: MergeMessagesInput{Messages: collection(), Index: true},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)
	merged := decode[MergeMessagesOutput](t, result)
	assert.True(t, merged.Completed)

	result, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "query_stories",
		Arguments: QueryStoriesInput{Query: "WEATHER"},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)
	found := decode[QueryStoriesOutput](t, result)
	require.Len(t, found.Stories, 1)
	assert.Equal(t, 2, found.Stories[0].Position)
}

func TestMCPToolError(t *testing.T) {
	session := setupServerClient(t)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "inspect_running_order",
		Arguments: InspectRunningOrderInput{XML: "not xml"},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
