package mcptools

import (
	"github.com/dusk-indust/mosromgr/internal/export"
	"github.com/dusk-indust/mosromgr/internal/rograph"
)

// --- MCP Tool Input Types ---
// The MCP Go SDK generates each tool's JSON schema from these struct tags.

// DetectMessageInput is the input for the detect_message MCP tool.
type DetectMessageInput struct {
	Name string `json:"name,omitempty" jsonschema:"file name of the message, used for decompression (.gz, .zst) and in errors"`
	XML  string `json:"xml" jsonschema:"the MOS message document"`
}

// DetectMessageOutput is the result of the detect_message MCP tool.
type DetectMessageOutput struct {
	Kind      string `json:"kind,omitempty"`
	MessageID int    `json:"messageId"`
	ROID      string `json:"roId,omitempty"`
	Completed bool   `json:"completed,omitempty"`
	// Ignored is set for status messages (roItemStat, roList) that carry
	// no running-order change.
	Ignored bool `json:"ignored,omitempty"`
}

// InspectRunningOrderInput is the input for the inspect_running_order MCP
// tool.
type InspectRunningOrderInput struct {
	XML    string `json:"xml" jsonschema:"a roCreate message or a merged running order"`
	Script bool   `json:"script,omitempty" jsonschema:"include story script text"`
}

// InspectRunningOrderOutput is the result of the inspect_running_order MCP
// tool.
type InspectRunningOrderOutput struct {
	RunningOrder export.RunningOrderExport `json:"runningOrder"`
}

// MessageDoc is one message of a collection.
type MessageDoc struct {
	Name string `json:"name,omitempty" jsonschema:"file name of the message"`
	XML  string `json:"xml" jsonschema:"the MOS message document"`
}

// MergeMessagesInput is the input for the merge_messages MCP tool.
type MergeMessagesInput struct {
	Messages        []MessageDoc `json:"messages" jsonschema:"every message of one running order, in any order"`
	NonStrict       bool         `json:"nonStrict,omitempty" jsonschema:"skip messages that cannot be applied instead of aborting"`
	AllowIncomplete bool         `json:"allowIncomplete,omitempty" jsonschema:"accept a collection with no roDelete"`
	Index           bool         `json:"index,omitempty" jsonschema:"add the merged running order to the graph index"`
}

// Diagnostic describes one message that could not be applied.
type Diagnostic struct {
	Code      string `json:"code"`
	MessageID int    `json:"messageId,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Source    string `json:"source,omitempty"`
	Detail    string `json:"detail"`
}

// MergeMessagesOutput is the result of the merge_messages MCP tool.
type MergeMessagesOutput struct {
	RunID       string       `json:"runId"`
	ROID        string       `json:"roId"`
	Completed   bool         `json:"completed"`
	Applied     int          `json:"applied"`
	Skipped     int          `json:"skipped"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	Indexed     bool         `json:"indexed,omitempty"`
	XML         string       `json:"xml"`
}

// QueryStoriesInput is the input for the query_stories MCP tool.
type QueryStoriesInput struct {
	Query string `json:"query" jsonschema:"substring to look for in story slugs, ignoring case"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results (default: 20)"`
}

// QueryStoriesOutput is the result of the query_stories MCP tool.
type QueryStoriesOutput struct {
	Stories []rograph.StoryNode `json:"stories"`
}
