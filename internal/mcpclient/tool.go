package mcpclient

import (
	"encoding/json"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool is a tool descriptor from the provider's catalog.
type Tool struct {
	Name        string
	Description string
	InputSchema InputSchema
}

type InputSchema struct {
	Type       string         `json:"type,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	Required   []string       `json:"required,omitempty"`
}

func toTool(t *mcp.Tool) Tool {
	out := Tool{Name: t.Name, Description: t.Description}
	if t.InputSchema == nil {
		return out
	}
	// InputSchema arrives as whatever the SDK decoded; round-trip through JSON
	// to read the fields we need.
	if raw, err := json.Marshal(t.InputSchema); err == nil {
		_ = json.Unmarshal(raw, &out.InputSchema)
	}
	return out
}

// Result is the outcome of a tool call. Err is non-nil (a
// *ToolExecutionError) when the call failed for any reason.
type Result struct {
	Tool   string
	Output *mcp.CallToolResult
	Err    error
}

func (r Result) Failed() bool { return r.Err != nil }

// Content serializes the result for a tool-role message.
func (r Result) Content() string {
	if r.Err != nil {
		b, _ := json.Marshal(map[string]string{"error": r.Err.Error()}) // string map marshal cannot fail
		return string(b)
	}
	if r.Output == nil {
		return "{}"
	}
	b, err := json.Marshal(r.Output)
	if err != nil {
		return textOf(r.Output)
	}
	return string(b)
}

func textOf(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
