package llm

import (
	"context"
	"fmt"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

type Message struct {
	Role       string     `json:"role"` // system, user, assistant, tool
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // for tool result messages
	Name       string     `json:"name,omitempty"`         // tool name on tool result messages
	IsError    bool       `json:"is_error,omitempty"`     // tool result reports a failed call
}

// ToolCall is a function call requested by the model. Arguments is the raw
// JSON object text exactly as the model produced it.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type Response struct {
	Content   string
	ToolCalls []ToolCall
	Model     string
	// NoChoices is set when the API answered without any choice, which the
	// conversation loop treats as early termination.
	NoChoices bool
}

// FunctionTool is a tool in the function-calling convention of
// chat-completions style APIs.
type FunctionTool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

type FunctionDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  FunctionParameters `json:"parameters"`
}

type FunctionParameters struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required"`
}

// Schema returns the parameters as a generic JSON Schema object.
func (p FunctionParameters) Schema() map[string]any {
	required := p.Required
	if required == nil {
		required = []string{}
	}
	props := p.Properties
	if props == nil {
		props = map[string]any{}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

type Client interface {
	// Chat submits messages and tools to the model. An empty model selects
	// the client's default.
	Chat(ctx context.Context, model string, messages []Message, tools []FunctionTool) (*Response, error)
	DefaultModel() string
}

// ModelAPIError wraps any failure talking to the language model.
type ModelAPIError struct {
	Provider string
	Err      error
}

func (e *ModelAPIError) Error() string {
	return fmt.Sprintf("%s chat: %v", e.Provider, e.Err)
}

func (e *ModelAPIError) Unwrap() error { return e.Err }
