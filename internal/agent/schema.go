package agent

import (
	"github.com/chris/dashbridge/internal/llm"
	"github.com/chris/dashbridge/internal/mcpclient"
)

// FunctionTool maps a provider tool descriptor to the model's function-call
// schema. Properties are passed through untouched.
func FunctionTool(t mcpclient.Tool) llm.FunctionTool {
	required := t.InputSchema.Required
	if required == nil {
		required = []string{}
	}
	return llm.FunctionTool{
		Type: "function",
		Function: llm.FunctionDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters: llm.FunctionParameters{
				Type:       "object",
				Properties: t.InputSchema.Properties,
				Required:   required,
			},
		},
	}
}

func FunctionTools(tools []mcpclient.Tool) []llm.FunctionTool {
	out := make([]llm.FunctionTool, len(tools))
	for i, t := range tools {
		out[i] = FunctionTool(t)
	}
	return out
}
